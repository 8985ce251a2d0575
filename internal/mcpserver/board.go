package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/prefs"
)

func (s *Server) board(ctx context.Context) *mcp.CallToolResult {
	if res := s.requireApp(); res != nil {
		return res
	}
	if err := s.loadBoard(ctx); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return nil
}

func (s *Server) listIdeas(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	var filter models.Category
	if raw := req.GetString("category", ""); raw != "" {
		filter = models.Category(strings.ToLower(strings.TrimSpace(raw)))
		if !filter.Valid() {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category %q", raw)), nil
		}
	}
	s.remember(prefs.ViewIdeas)
	return jsonResult(map[string]any{
		"ideas":  s.planner.Ideas.Ideas(filter),
		"counts": s.planner.Ideas.Counts(),
	}), nil
}

func (s *Server) createIdea(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idea, err := s.planner.Ideas.Create(ctx, models.Draft{
		PostCopy:    strings.TrimSpace(body),
		ImageIdea:   req.GetString("image_idea", ""),
		ContentType: models.Category(req.GetString("content_type", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(idea), nil
}

func (s *Server) updateIdea(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := req.GetArguments()
	var patch models.IdeaPatch
	if v, ok := args["body"].(string); ok {
		patch.Body = &v
	}
	if v, ok := args["image_idea"].(string); ok {
		patch.ImageIdea = &v
	}
	if v, ok := args["content_type"].(string); ok {
		c := models.Category(v)
		patch.ContentType = &c
	}
	if v, ok := args["status"].(string); ok {
		patch.Status = &v
	}
	if patch.Empty() {
		return mcp.NewToolResultError("nothing to update"), nil
	}

	if err := s.planner.Ideas.Update(id, patch); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idea, _ := s.planner.Ideas.Get(id)
	return jsonResult(idea), nil
}

func (s *Server) deleteIdea(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.planner.Ideas.Delete(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted: " + id), nil
}

func (s *Server) scheduleIdea(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var (
		date *string
		full bool
	)
	if d := req.GetString("date", ""); d != "" {
		date = &d
		full = s.planner.Ideas.DayIsFull(id, d)
	}
	if err := s.planner.Ideas.Schedule(id, date); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	idea, _ := s.planner.Ideas.Get(id)
	return jsonResult(map[string]any{
		"id":             id,
		"scheduled_date": idea.ScheduledDate,
		"day_full":       full,
	}), nil
}

func (s *Server) calendarMonth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	now := time.Now()
	year := req.GetInt("year", now.Year())
	month := req.GetInt("month", int(now.Month()))
	if month < 1 || month > 12 {
		return mcp.NewToolResultError(fmt.Sprintf("month %d out of range 1-12", month)), nil
	}
	s.remember(prefs.ViewCalendar)
	return jsonResult(map[string]any{
		"month":   s.planner.Calendar.Month(year, month-1),
		"summary": s.planner.Calendar.Summary(year, month-1),
	}), nil
}

func (s *Server) movePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	postID, err := req.RequireString("post_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	full, err := s.planner.Calendar.Move(postID, date)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"post_id": postID, "date": date, "day_full": full}), nil
}

func (s *Server) togglePosted(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	postID, err := req.RequireString("post_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	posted, err := s.planner.Calendar.TogglePosted(postID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"post_id": postID, "posted": posted}), nil
}

func (s *Server) removePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if res := s.board(ctx); res != nil {
		return res, nil
	}
	postID, err := req.RequireString("post_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.planner.Calendar.Remove(postID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("removed: " + postID), nil
}
