// Package calendar projects agent jobs onto the days of a calendar month.
//
// The projection is for display: a cron job contributes at most one
// occurrence per matching day, at the earliest hour and minute its
// expression names, rather than the full cross-product of fire times.
package calendar

import (
	"math"
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"clawdash/internal/cronexpr"
	appLog "clawdash/internal/log"
	"clawdash/internal/model"
)

// dayMs is one day in milliseconds. "every" schedules shorter than this are
// too dense to be useful on a month grid and are not projected.
const dayMs = 86_400_000

// ExpandJob returns the occurrences of one job within the given month,
// with days evaluated in loc (time.UTC when nil). It does not look at
// job.Enabled beyond copying it into each occurrence's status; callers that
// only want active jobs filter first (see ExpandMonth).
func ExpandJob(job model.CronJob, year int, month time.Month, loc *time.Location) []model.CalendarOccurrence {
	if loc == nil {
		loc = time.UTC
	}
	status := model.StatusScheduled
	if !job.Enabled {
		status = model.StatusDisabled
	}

	switch s := job.Schedule.(type) {
	case model.AtSchedule:
		return expandAt(job.Name, status, s, year, month, loc)
	case model.CronSchedule:
		return expandCron(job.Name, status, s, year, month, loc)
	case model.EverySchedule:
		return expandEvery(job.Name, status, s, year, month, loc)
	default:
		return nil
	}
}

// ExpandMonth expands every enabled job for the month, preserving job order.
func ExpandMonth(jobs []model.CronJob, year int, month time.Month, loc *time.Location) []model.CalendarOccurrence {
	out := make([]model.CalendarOccurrence, 0)
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		out = append(out, ExpandJob(job, year, month, loc)...)
	}
	return out
}

func expandAt(title, status string, s model.AtSchedule, year int, month time.Month, loc *time.Location) []model.CalendarOccurrence {
	if s.At.IsZero() {
		return nil
	}
	at := s.At.In(loc)
	if at.Year() != year || at.Month() != month {
		return nil
	}
	return []model.CalendarOccurrence{{
		Title:     title,
		Start:     at,
		Type:      model.OccurrenceScheduled,
		Status:    status,
		Schedule:  "",
		IsOneTime: true,
	}}
}

func expandCron(title, status string, s model.CronSchedule, year int, month time.Month, loc *time.Location) []model.CalendarOccurrence {
	f, ok := cronexpr.Fields(s.Expr)
	if !ok {
		appLog.Debug("calendar: skipping unparseable cron expression", "job", title, "expr", s.Expr)
		return nil
	}
	minuteF, hourF, domF, monF, dowF := f[0], f[1], f[2], f[3], f[4]

	// Cron months are 1-based, as is time.Month.
	if monF != "*" {
		months := cronexpr.ExpandField(monF, cronexpr.MonthMin, cronexpr.MonthMax)
		if !slices.Contains(months, int(month)) {
			return nil
		}
	}

	hour, minute := 0, 0
	if hours := cronexpr.ExpandField(hourF, cronexpr.HourMin, cronexpr.HourMax); len(hours) > 0 {
		hour = hours[0]
	}
	if mins := cronexpr.ExpandField(minuteF, cronexpr.MinuteMin, cronexpr.MinuteMax); len(mins) > 0 {
		minute = mins[0]
	}

	var doms, dows []int
	filterDom := domF != "*"
	if filterDom {
		doms = cronexpr.ExpandField(domF, cronexpr.DomMin, cronexpr.DomMax)
	}
	filterDow := dowF != "*"
	if filterDow {
		for _, d := range cronexpr.ExpandField(dowF, cronexpr.DowMin, cronexpr.DowMax) {
			if d == 7 {
				d = 0
			}
			dows = append(dows, d)
		}
	}

	isOneTime := monF != "*" && domF != "*"

	out := make([]model.CalendarOccurrence, 0)
	for day := 1; day <= daysIn(year, month, loc); day++ {
		if filterDom && !slices.Contains(doms, day) {
			continue
		}
		if filterDow {
			wd := int(time.Date(year, month, day, 0, 0, 0, 0, loc).Weekday())
			if !slices.Contains(dows, wd) {
				continue
			}
		}
		out = append(out, model.CalendarOccurrence{
			Title:     title,
			Start:     time.Date(year, month, day, hour, minute, 0, 0, loc),
			Type:      model.OccurrenceCron,
			Status:    status,
			Schedule:  s.Expr,
			IsOneTime: isOneTime,
		})
	}
	return out
}

func expandEvery(title, status string, s model.EverySchedule, year int, month time.Month, loc *time.Location) []model.CalendarOccurrence {
	if s.EveryMs < dayMs {
		return nil
	}
	intervalDays := float64(s.EveryMs) / dayMs
	label := "every " + model.FormatNumber(intervalDays) + "d"

	out := make([]model.CalendarOccurrence, 0)
	for _, day := range intervalDaysIn(year, month, intervalDays, loc) {
		out = append(out, model.CalendarOccurrence{
			Title:     title,
			Start:     time.Date(year, month, day, 0, 0, 0, 0, loc),
			Type:      model.OccurrenceCron,
			Status:    status,
			Schedule:  label,
			IsOneTime: false,
		})
	}
	return out
}

// intervalDaysIn returns the days of the month hit by stepping from day 1
// in increments of interval days. Whole-day intervals go through an RRULE
// (FREQ=DAILY;INTERVAL=n); fractional ones step and floor.
func intervalDaysIn(year int, month time.Month, interval float64, loc *time.Location) []int {
	last := daysIn(year, month, loc)

	if whole := math.Trunc(interval); whole == interval {
		r, err := rrule.NewRRule(rrule.ROption{
			Freq:     rrule.DAILY,
			Interval: int(whole),
			Dtstart:  time.Date(year, month, 1, 0, 0, 0, 0, loc),
			Until:    time.Date(year, month, last, 23, 59, 59, 0, loc),
		})
		if err == nil {
			days := make([]int, 0)
			for _, t := range r.All() {
				days = append(days, t.Day())
			}
			return days
		}
		appLog.Error("calendar: rrule construction failed; stepping manually", err, "interval_days", interval)
	}

	days := make([]int, 0)
	for d := 1.0; d <= float64(last); d += interval {
		days = append(days, int(math.Floor(d)))
	}
	return days
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
