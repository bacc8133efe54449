package calendar

import (
	"slices"
	"time"

	"clawdash/internal/cronexpr"
	"clawdash/internal/model"
)

// SpecialEvents picks the occurrences worth listing under the month grid:
// anything that is not a plain daily job. Entries are de-duplicated by
// (title, calendar date), first one wins, and sorted by start.
func SpecialEvents(occs []model.CalendarOccurrence) []model.CalendarOccurrence {
	type key struct {
		title string
		date  string
	}
	seen := make(map[key]bool)
	out := make([]model.CalendarOccurrence, 0)
	for _, o := range occs {
		if cronexpr.IsDaily(o.Schedule) && !o.IsOneTime && o.Type != model.OccurrenceScheduled {
			continue
		}
		k := key{title: o.Title, date: o.Start.Format(time.DateOnly)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, o)
	}
	slices.SortStableFunc(out, func(a, b model.CalendarOccurrence) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// ForDay returns the occurrences whose start falls on the given day, as
// seen in each occurrence's own location.
func ForDay(occs []model.CalendarOccurrence, year int, month time.Month, day int) []model.CalendarOccurrence {
	out := make([]model.CalendarOccurrence, 0)
	for _, o := range occs {
		y, m, d := o.Start.Date()
		if y == year && m == month && d == day {
			out = append(out, o)
		}
	}
	return out
}
