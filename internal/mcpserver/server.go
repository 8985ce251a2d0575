// Package mcpserver exposes the postjournal client core as MCP tools over
// stdio, so an LLM client can journal, manage ideas and plan the calendar.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/postjournal/internal/planner"
	"github.com/starford/postjournal/internal/prefs"
	"github.com/starford/postjournal/internal/session"
)

// Server wraps the MCP server with the planner tools.
type Server struct {
	mcp     *server.MCPServer
	session *session.Provider
	planner *planner.Planner
	prefs   *prefs.Store

	mu       sync.Mutex
	loadedBy string
	loaded   map[string]bool
}

// New creates a new MCP server with all tools registered. ps may be nil.
func New(sess *session.Provider, pl *planner.Planner, ps *prefs.Store) *Server {
	s := &Server{session: sess, planner: pl, prefs: ps, loaded: make(map[string]bool)}

	s.mcp = server.NewMCPServer(
		"Postjournal",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("session_status",
		mcp.WithDescription("Who is signed in, which screen the app would show, and the profile settings."),
	), s.sessionStatus)

	s.mcp.AddTool(mcp.NewTool("complete_onboarding",
		mcp.WithDescription("Finish first-run setup. Stores the api key, tone guide and topics."),
		mcp.WithString("api_key", mcp.Required(), mcp.Description("Anthropic API key")),
		mcp.WithString("tone_guide", mcp.Description("How posts should sound; blank keeps the default")),
		mcp.WithString("topics", mcp.Description("Comma separated trending topics; blank keeps the defaults")),
	), s.completeOnboarding)

	s.mcp.AddTool(mcp.NewTool("update_settings",
		mcp.WithDescription("Edit the tone guide, api key or topic list. Written after a short pause."),
		mcp.WithString("tone_guide", mcp.Description("New tone guide")),
		mcp.WithString("api_key", mcp.Description("New api key")),
		mcp.WithString("add_topic", mcp.Description("Topic to add")),
		mcp.WithString("remove_topic", mcp.Description("Topic to remove")),
	), s.updateSettings)

	s.mcp.AddTool(mcp.NewTool("get_journal",
		mcp.WithDescription("Read the journal entry and its generated drafts for a day."),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD, default today")),
	), s.getJournal)

	s.mcp.AddTool(mcp.NewTool("write_journal",
		mcp.WithDescription("Replace the journal text for a day."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Full entry text")),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD, default today")),
	), s.writeJournal)

	s.mcp.AddTool(mcp.NewTool("generate_from_journal",
		mcp.WithDescription("Turn the day's journal text into post drafts. Replaces earlier drafts of that day."),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD, default today")),
	), s.generateFromJournal)

	s.mcp.AddTool(mcp.NewTool("save_journal_draft",
		mcp.WithDescription("Save one generated journal draft to the idea bank."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based draft index")),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD, default today")),
	), s.saveJournalDraft)

	s.mcp.AddTool(mcp.NewTool("list_ideas",
		mcp.WithDescription("List saved ideas, newest first, with per-category counts."),
		mcp.WithString("category", mcp.Description("Only this category")),
	), s.listIdeas)

	s.mcp.AddTool(mcp.NewTool("create_idea",
		mcp.WithDescription("Add an idea by hand. Read the draft format first via get_draft_contract."),
		mcp.WithString("body", mcp.Required(), mcp.Description("Post text")),
		mcp.WithString("image_idea", mcp.Description("Visual to go with it")),
		mcp.WithString("content_type", mcp.Description("Category key")),
	), s.createIdea)

	s.mcp.AddTool(mcp.NewTool("update_idea",
		mcp.WithDescription("Edit fields of an idea. Only the given fields change."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Idea id")),
		mcp.WithString("body", mcp.Description("Post text")),
		mcp.WithString("image_idea", mcp.Description("Visual")),
		mcp.WithString("content_type", mcp.Description("Category key")),
		mcp.WithString("status", mcp.Description("Status label")),
	), s.updateIdea)

	s.mcp.AddTool(mcp.NewTool("delete_idea",
		mcp.WithDescription("Delete an idea and take it off the calendar."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Idea id")),
	), s.deleteIdea)

	s.mcp.AddTool(mcp.NewTool("schedule_idea",
		mcp.WithDescription("Put an idea on a calendar day, or take it off with an empty date."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Idea id")),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD; empty unschedules")),
	), s.scheduleIdea)

	s.mcp.AddTool(mcp.NewTool("calendar_month",
		mcp.WithDescription("The month grid with the posts of every visible day and the scheduled/posted totals."),
		mcp.WithNumber("year", mcp.Description("Default: this year")),
		mcp.WithNumber("month", mcp.Description("1-12, default: this month")),
	), s.calendarMonth)

	s.mcp.AddTool(mcp.NewTool("move_post",
		mcp.WithDescription("Move a calendar post to another day."),
		mcp.WithString("post_id", mcp.Required(), mcp.Description("Calendar post id")),
		mcp.WithString("date", mcp.Required(), mcp.Description("YYYY-MM-DD")),
	), s.movePost)

	s.mcp.AddTool(mcp.NewTool("toggle_posted",
		mcp.WithDescription("Mark a calendar post as posted, or back."),
		mcp.WithString("post_id", mcp.Required(), mcp.Description("Calendar post id")),
	), s.togglePosted)

	s.mcp.AddTool(mcp.NewTool("remove_post",
		mcp.WithDescription("Take a post off the calendar. The idea stays in the bank."),
		mcp.WithString("post_id", mcp.Required(), mcp.Description("Calendar post id")),
	), s.removePost)

	s.mcp.AddTool(mcp.NewTool("research_trending",
		mcp.WithDescription("Research the profile's topics on the web and propose posts."),
	), s.researchTrending)

	s.mcp.AddTool(mcp.NewTool("save_trending_draft",
		mcp.WithDescription("Save one trending result to the idea bank."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based result index")),
	), s.saveTrendingDraft)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Find journal entries and ideas containing a text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to find, case-insensitive")),
		mcp.WithNumber("limit", mcp.Description("Maximum hits (default 20)")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Writes not yet confirmed by the store."),
	), s.syncStatus)

	s.mcp.AddTool(mcp.NewTool("get_draft_contract",
		mcp.WithDescription("Returns the draft format and the category list."),
	), s.getDraftContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Draft Format",
			mcp.WithResourceDescription("Draft fields, categories and scheduling rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// requireApp fails unless the gate shows the main app.
func (s *Server) requireApp() *mcp.CallToolResult {
	if v := s.session.View(); v != session.ViewApp {
		return mcp.NewToolResultError(fmt.Sprintf("not available yet: app is on the %s screen", v))
	}
	return nil
}

// ensureLoaded runs load once per key for the current owner.
func (s *Server) ensureLoaded(ctx context.Context, key string, load func(context.Context) error) error {
	owner := s.session.Owner()
	s.mu.Lock()
	if s.loadedBy != owner {
		s.loadedBy = owner
		s.loaded = make(map[string]bool)
	}
	done := s.loaded[key]
	s.mu.Unlock()
	if done {
		return nil
	}
	if err := load(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.loadedBy == owner {
		s.loaded[key] = true
	}
	s.mu.Unlock()
	return nil
}

func (s *Server) loadBoard(ctx context.Context) error {
	return s.ensureLoaded(ctx, "board", s.planner.Ideas.Load)
}

func (s *Server) loadDay(ctx context.Context, date string) error {
	return s.ensureLoaded(ctx, "journal:"+date, func(ctx context.Context) error {
		_, err := s.planner.Journal.Load(ctx, date)
		return err
	})
}

func (s *Server) getDraftContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DraftContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     DraftContract,
		},
	}, nil
}
