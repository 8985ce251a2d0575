// Package generate turns journal text or a topic list into post drafts through
// the Anthropic Messages API.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/starford/postjournal/internal/models"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-6"

	journalMaxTokens  = 1000
	trendingMaxTokens = 3000
)

// Config selects the endpoint and model.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the generation endpoint. The API key travels with each call
// because it belongs to the owner's profile, not to the process.
type Client struct {
	api    anthropic.Client
	httpc  *http.Client
	model  anthropic.Model
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client from cfg.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpc:  &http.Client{Timeout: timeout},
		model:  anthropic.Model(cfg.Model),
		logger: slog.Default(),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	for _, opt := range opts {
		opt(c)
	}
	c.api = anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(c.httpc),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	)
	return c
}

// FromJournal proposes 2-3 drafts based on one day's notes.
func (c *Client) FromJournal(ctx context.Context, apiKey, tone, entry string) ([]models.Draft, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(entry) == "" {
		return nil, ErrEmptyEntry
	}
	return c.generate(ctx, apiKey, anthropic.MessageNewParams{
		MaxTokens: journalMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(tone)}},
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(journalPrompt(entry)))},
	})
}

// Trending researches recent news on topics and proposes 5-7 drafts, each
// carrying the trend it reacts to.
func (c *Client) Trending(ctx context.Context, apiKey, tone string, topics []string) ([]models.Draft, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	return c.generate(ctx, apiKey, anthropic.MessageNewParams{
		MaxTokens: trendingMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(tone)}},
		Tools: []anthropic.ToolUnionParam{
			{OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{}},
		},
		Messages: []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(trendingPrompt(topics)))},
	})
}

// apiErrorBody is the error envelope of the Messages API.
type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) generate(ctx context.Context, apiKey string, params anthropic.MessageNewParams) ([]models.Draft, error) {
	params.Model = c.model

	// The status is kept even when the SDK cannot parse the error body.
	var status int
	capture := option.WithMiddleware(func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
		resp, err := next(req)
		if resp != nil {
			status = resp.StatusCode
		}
		return resp, err
	})

	start := time.Now()
	msg, err := c.api.Messages.New(ctx, params, option.WithAPIKey(apiKey), capture)
	c.logger.Debug("generate: provider call",
		slog.Int("status", status),
		slog.Duration("took", time.Since(start)))
	if err != nil {
		return nil, providerError(err, status)
	}

	var text []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = append(text, block.Text)
		}
	}
	return ExtractDrafts(strings.Join(text, " "))
}

func providerError(err error, status int) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		pe := &ProviderError{Status: apiErr.StatusCode}
		var body apiErrorBody
		if json.Unmarshal([]byte(apiErr.RawJSON()), &body) == nil {
			pe.Message = body.Error.Message
		}
		return pe
	}
	switch {
	case status >= 200 && status <= 299:
		return ErrMalformedResponse
	case status != 0:
		return &ProviderError{Status: status}
	}
	return fmt.Errorf("generate: call provider: %w", err)
}
