package mcpserver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/prefs"
	"github.com/starford/postjournal/internal/session"
)

type profileView struct {
	Loaded             bool     `json:"loaded"`
	Exists             bool     `json:"exists"`
	ToneGuide          string   `json:"tone_guide,omitempty"`
	Topics             []string `json:"topics,omitempty"`
	HasAPIKey          bool     `json:"has_api_key"`
	OnboardingComplete bool     `json:"onboarding_complete"`
}

func viewOf(ps session.ProfileState) profileView {
	v := profileView{Loaded: ps.Loaded()}
	if p, ok := ps.Profile(); ok {
		v.Exists = true
		v.ToneGuide = p.ToneGuide
		v.Topics = p.Topics
		v.HasAPIKey = p.APIKey != ""
		v.OnboardingComplete = p.OnboardingComplete
	}
	return v
}

// remember stores the screen the caller is working in.
func (s *Server) remember(v prefs.View) {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.SetView(v); err != nil {
		slog.Warn("mcp: store last view failed", slog.String("error", err.Error()))
	}
}

func (s *Server) sessionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := map[string]any{
		"identity": map[string]string{
			"status": s.session.Identity().Status.String(),
			"owner":  s.session.Owner(),
		},
		"view":    s.session.View(),
		"profile": viewOf(s.session.Profile()),
	}
	if err := s.session.LastError(); err != nil {
		out["last_error"] = err.Error()
	}
	if s.prefs != nil {
		out["last_view"] = s.prefs.View()
	}
	return jsonResult(out), nil
}

func (s *Server) completeOnboarding(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.session.Owner() == "" {
		return mcp.NewToolResultError("not signed in"), nil
	}
	in := session.Onboarding{
		APIKey:    req.GetString("api_key", ""),
		ToneGuide: req.GetString("tone_guide", ""),
	}
	for _, raw := range strings.Split(req.GetString("topics", ""), ",") {
		in.Topics = models.AddTopic(in.Topics, raw)
	}
	if _, err := s.session.CompleteOnboarding(ctx, in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.remember(prefs.DefaultView)
	return jsonResult(viewOf(s.session.Profile())), nil
}

func (s *Server) updateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var patch models.ProfilePatch
	if v, ok := args["tone_guide"].(string); ok {
		patch.ToneGuide = &v
	}
	if v, ok := args["api_key"].(string); ok {
		patch.APIKey = &v
	}

	var err error
	if patch.ToneGuide != nil || patch.APIKey != nil {
		err = s.session.EditSettings(patch)
	}
	if v, ok := args["add_topic"].(string); ok && err == nil {
		err = s.session.AddTopic(v)
	}
	if v, ok := args["remove_topic"].(string); ok && err == nil {
		err = s.session.RemoveTopic(v)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.remember(prefs.ViewSettings)
	return jsonResult(viewOf(s.session.Profile())), nil
}

func (s *Server) date(req mcp.CallToolRequest) string {
	if d := req.GetString("date", ""); d != "" {
		return d
	}
	return s.planner.Journal.Today()
}

func (s *Server) getJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireApp(); res != nil {
		return res, nil
	}
	date := s.date(req)
	if err := s.loadDay(ctx, date); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.remember(prefs.ViewJournal)
	return jsonResult(s.planner.Journal.Entry(date)), nil
}

func (s *Server) writeJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireApp(); res != nil {
		return res, nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date := s.date(req)
	if err := s.loadDay(ctx, date); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.planner.Journal.SetText(date, text); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("saved: " + date), nil
}

func (s *Server) generateFromJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireApp(); res != nil {
		return res, nil
	}
	date := s.date(req)
	if err := s.loadDay(ctx, date); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	drafts, err := s.planner.Journal.Generate(ctx, date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(drafts), nil
}

func (s *Server) saveJournalDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireApp(); res != nil {
		return res, nil
	}
	date := s.date(req)
	if err := s.loadDay(ctx, date); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.loadBoard(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idea, err := s.planner.Journal.SaveDraft(ctx, date, req.GetInt("index", -1))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(idea), nil
}

func (s *Server) researchTrending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireApp(); res != nil {
		return res, nil
	}
	drafts, err := s.planner.Trending.Research(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.remember(prefs.ViewTrending)
	return jsonResult(drafts), nil
}

func (s *Server) saveTrendingDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireApp(); res != nil {
		return res, nil
	}
	if err := s.loadBoard(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idea, err := s.planner.Trending.SaveDraft(ctx, req.GetInt("index", -1))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(idea), nil
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.requireApp(); res != nil {
		return res, nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.planner.Search(ctx, query, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending := s.planner.Pending()
	if pending == nil {
		pending = []string{}
	}
	return jsonResult(map[string]any{
		"pending":  pending,
		"settings": s.session.SyncState().String(),
	}), nil
}
