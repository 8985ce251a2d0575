// Package calendar computes month grids and day-capacity warnings.
package calendar

import (
	"time"

	"github.com/starford/postjournal/internal/models"
)

// FullThreshold is the post count at which a day is reported as full.
// It is a warning only; scheduling beyond it is allowed.
const FullThreshold = 2

// Cell is one square of a month grid.
type Cell struct {
	Date    string `json:"date"`
	Day     int    `json:"day"`
	InMonth bool   `json:"in_month"`
}

// Month is a Sunday-first grid of whole weeks covering one month.
type Month struct {
	Year  int    `json:"year"`
	Month int    `json:"month"` // zero-based
	Title string `json:"title"`
	Rows  int    `json:"rows"`
	Cells []Cell `json:"cells"`
}

// Grid builds the grid for year and zero-based month. Out-of-range months
// roll into the neighbouring years.
func Grid(year, month0 int) Month {
	first := firstOf(year, month0)
	offset := int(first.Weekday())
	days := DaysIn(first.Year(), first.Month())
	rows := (offset + days + 6) / 7

	start := first.AddDate(0, 0, -offset)
	cells := make([]Cell, rows*7)
	for i := range cells {
		d := start.AddDate(0, 0, i)
		cells[i] = Cell{
			Date:    models.FormatDate(d),
			Day:     d.Day(),
			InMonth: d.Month() == first.Month(),
		}
	}

	return Month{
		Year:  first.Year(),
		Month: int(first.Month()) - 1,
		Title: first.Format("January 2006"),
		Rows:  rows,
		Cells: cells,
	}
}

// DaysIn returns the number of days in month m of year.
func DaysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Prev returns the month before (year, month0).
func Prev(year, month0 int) (int, int) {
	p := firstOf(year, month0-1)
	return p.Year(), int(p.Month()) - 1
}

// Next returns the month after (year, month0).
func Next(year, month0 int) (int, int) {
	n := firstOf(year, month0+1)
	return n.Year(), int(n.Month()) - 1
}

// Contains reports whether date falls inside (year, month0).
func Contains(date string, year, month0 int) bool {
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return false
	}
	first := firstOf(year, month0)
	return d.Year() == first.Year() && d.Month() == first.Month()
}

// IsFull reports whether a day holding n posts is full.
func IsFull(n int) bool {
	return n >= FullThreshold
}

// DropIndicator reports whether moving postID onto dest lands on a full day.
// The moved post itself is not counted, so dropping a post back onto its
// own day never reports full.
func DropIndicator(posts []models.CalendarPost, postID, dest string) bool {
	n := 0
	for _, p := range posts {
		if p.Date == dest && p.ID != postID {
			n++
		}
	}
	return IsFull(n)
}

func firstOf(year, month0 int) time.Time {
	return time.Date(year, time.Month(month0+1), 1, 0, 0, 0, 0, time.UTC)
}
