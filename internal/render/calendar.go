// Package render prints planner views to a terminal.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/starford/postjournal/internal/calendar"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/planner"
)

const labelWidth = 40

var (
	bold    = color.New(color.Bold)
	faint   = color.New(color.Faint)
	warning = color.New(color.FgRed, color.Bold)
	posted  = color.New(color.FgGreen)
)

// Month writes the agenda of one month: every day of the month that has
// posts, with its entries, then the month totals.
func Month(w io.Writer, view planner.MonthView, sum planner.Summary) {
	_, _ = fmt.Fprintln(w, bold.Sprint(view.Title))

	var dates []string
	for date := range view.Days {
		if calendar.Contains(date, view.Month.Year, view.Month.Month) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	if len(dates) == 0 {
		_, _ = fmt.Fprintln(w, faint.Sprint("  nothing scheduled"))
	}

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = labelWidth + 2
	for _, date := range dates {
		day := date
		if view.Full[date] {
			day = warning.Sprint(date + " full")
		}
		for i, e := range view.Days[date] {
			if i > 0 {
				day = ""
			}
			tbl.AddRow(day, mark(e.Post.Posted), category(e.ContentType), label(e))
		}
	}
	_, _ = fmt.Fprintln(w, tbl)

	_, _ = fmt.Fprintf(w, "%s scheduled, %s posted this month (%d/%d overall)\n",
		bold.Sprint(sum.MonthScheduled), posted.Sprint(sum.MonthPosted), sum.Posted, sum.Scheduled)
}

func mark(done bool) string {
	if done {
		return posted.Sprint("[x]")
	}
	return "[ ]"
}

func category(c models.Category) string {
	return faint.Sprint(c.Label())
}

func label(e planner.DayEntry) string {
	text := models.Snippet(strings.Join(strings.Fields(e.Body), " "), labelWidth)
	if e.Missing {
		return faint.Sprint(text)
	}
	return text
}
