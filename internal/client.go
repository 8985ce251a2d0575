package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/postjournal/internal/generate"
	"github.com/starford/postjournal/internal/mcpserver"
	"github.com/starford/postjournal/internal/planner"
	"github.com/starford/postjournal/internal/prefs"
	"github.com/starford/postjournal/internal/remote"
	"github.com/starford/postjournal/internal/render"
	"github.com/starford/postjournal/internal/session"
)

// clientCore is the client side of the app: session, planner and local
// prefs over the remote API.
type clientCore struct {
	auth    *session.FileAuth
	remote  *remote.Client
	session *session.Provider
	planner *planner.Planner
	prefs   *prefs.Store
	logger  *slog.Logger
}

func newClientCore(cfg *Config, logger *slog.Logger) (*clientCore, error) {
	ps, err := prefs.Open(cfg.Client.PrefsDir)
	if err != nil {
		return nil, err
	}

	fa := session.NewFileAuth(cfg.Client.CredentialsPath, logger)
	rc := remote.New(cfg.Client.APIURL, fa, remote.WithLogger(logger))
	sess := session.NewProvider(fa, rc,
		session.WithLogger(logger),
		session.WithSettingsDelay(cfg.Sync.SettingsDelay))

	pl := planner.New(planner.Env{
		Store:  rc,
		Owner:  sess.Owner,
		Logger: logger,
		OnError: func(key string, err error) {
			logger.Error("sync failed", slog.String("key", key), slog.String("error", err.Error()))
		},
	}, generate.New(cfg.Generation.Generate(), generate.WithLogger(logger)), sess, ps, cfg.Sync.Delays())

	return &clientCore{auth: fa, remote: rc, session: sess, planner: pl, prefs: ps, logger: logger}, nil
}

// close flushes pending writes before dropping connections.
func (c *clientCore) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.planner.Close(ctx); err != nil {
		c.logger.Warn("flush planner", slog.String("error", err.Error()))
	}
	if err := c.session.Close(ctx); err != nil {
		c.logger.Warn("flush settings", slog.String("error", err.Error()))
	}
	c.remote.Close()
}

// RunMCP serves the planner as MCP tools on stdin/stdout. Logs go to
// stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	core, err := newClientCore(app.config, logger)
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}
	defer core.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	core.session.Start(ctx)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return core.auth.Watch(gCtx)
	})
	g.Go(func() error {
		defer cancel()
		return mcpserver.New(core.session, core.planner, core.prefs).ServeStdio()
	})
	return g.Wait()
}

// RunCalendar prints the agenda of one month. A zero year or month means the
// current one.
func RunCalendar(ctx context.Context, year, month int, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))
	}
	var out io.Writer = os.Stdout
	if app.out != nil {
		out = app.out
	}

	now := time.Now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("month %d out of range 1-12", month)
	}

	core, err := newClientCore(app.config, logger)
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}
	defer core.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	core.session.Start(ctx)
	if core.session.Owner() == "" {
		return errors.New("not signed in: run the token command with --save first")
	}
	if err := core.planner.Calendar.Load(ctx); err != nil {
		return fmt.Errorf("load calendar: %w", err)
	}
	if err := core.prefs.SetView(prefs.ViewCalendar); err != nil {
		logger.Warn("store last view", slog.String("error", err.Error()))
	}

	render.Month(out, core.planner.Calendar.Month(year, month-1), core.planner.Calendar.Summary(year, month-1))
	return nil
}
