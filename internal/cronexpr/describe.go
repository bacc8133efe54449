package cronexpr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"clawdash/internal/model"
)

// Frequency tags produced by Describe.
const (
	TagDaily       = "Daily"
	TagHourly      = "Hourly"
	TagEveryMinute = "Every minute"
	TagMonthly     = "Monthly"
	TagOneTime     = "One-time"
	TagInterval    = "Interval"
)

// Description is the human-readable form of an expression.
type Description struct {
	Time string `json:"time"`
	Tag  string `json:"tag"`
}

var dayNames = map[string]string{
	"0": "Sun",
	"1": "Mon",
	"2": "Tue",
	"3": "Wed",
	"4": "Thu",
	"5": "Fri",
	"6": "Sat",
	"7": "Sun",
}

// Describe renders expr as a time-of-day string and a frequency tag.
// Expressions with fewer than five fields come back verbatim with no tag;
// the empty expression becomes "-".
func Describe(expr string) Description {
	if expr == "" {
		return Description{Time: "-"}
	}
	f, ok := Fields(expr)
	if !ok {
		return Description{Time: expr}
	}
	minute, hour, dom, mon, dow := f[0], f[1], f[2], f[3], f[4]

	d := Description{Time: expr}
	switch {
	case hour != "*" && minute != "*":
		h, okH := parseNum(hour)
		m, okM := parseNum(minute)
		if okH && okM {
			d.Time = clock12(h, m)
		}
	case minute != "*" && hour == "*":
		if m, ok := parseNum(minute); ok {
			d.Time = fmt.Sprintf("Every hour at :%02d", m)
		}
	}

	switch {
	case dom == "*" && mon == "*" && dow == "*":
		switch {
		case hour != "*" && minute != "*":
			d.Tag = TagDaily
		case hour == "*":
			d.Tag = TagHourly
		default:
			d.Tag = TagEveryMinute
		}
	case dom == "*" && mon == "*":
		d.Tag = "Weekly (" + weekdayList(dow) + ")"
	case dom != "*" && mon == "*":
		d.Tag = TagMonthly
	case mon != "*":
		d.Tag = TagOneTime
	}
	return d
}

// IsDaily reports whether expr fires every day (day-of-month, month and
// day-of-week all wildcards).
func IsDaily(expr string) bool {
	f, ok := Fields(expr)
	if !ok {
		return false
	}
	return f[2] == "*" && f[3] == "*" && f[4] == "*"
}

// PinsDate reports whether expr names a specific calendar date (both month
// and day-of-month are concrete), which the calendar treats as one-time.
func PinsDate(expr string) bool {
	f, ok := Fields(expr)
	if !ok {
		return false
	}
	return f[3] != "*" && f[2] != "*"
}

func clock12(h, m int) string {
	ampm := "AM"
	if h >= 12 {
		ampm = "PM"
	}
	h12 := h
	switch {
	case h == 0:
		h12 = 12
	case h > 12:
		h12 = h - 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, ampm)
}

func weekdayList(dow string) string {
	parts := strings.Split(dow, ",")
	for i, p := range parts {
		if name, ok := dayNames[p]; ok {
			parts[i] = name
		}
	}
	return strings.Join(parts, ", ")
}

// ScheduleLabel is the display form of any schedule kind.
type ScheduleLabel struct {
	Time string `json:"time"`
	Tag  string `json:"tag"`
	TZ   string `json:"tz"`
}

var monthAbbrev = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// FormatSchedule renders a job schedule for tables and detail views. "at"
// instants are shown in loc.
func FormatSchedule(s model.Schedule, loc *time.Location) ScheduleLabel {
	if loc == nil {
		loc = time.UTC
	}
	switch s := s.(type) {
	case model.AtSchedule:
		if s.At.IsZero() {
			return ScheduleLabel{Time: model.KindAt, TZ: s.TZ}
		}
		return ScheduleLabel{Time: s.At.In(loc).Format("Jan 2, 2006, 03:04 PM"), Tag: TagOneTime, TZ: s.TZ}
	case model.CronSchedule:
		if s.Expr == "" {
			return ScheduleLabel{Time: model.KindCron, TZ: s.TZ}
		}
		if f, ok := Fields(s.Expr); ok && f[0] != "*" && f[1] != "*" && f[2] != "*" && f[3] != "*" {
			h, okH := parseNum(f[1])
			m, okM := parseNum(f[0])
			if okH && okM {
				month := f[3]
				if n, err := strconv.Atoi(month); err == nil && n >= 1 && n <= 12 {
					month = monthAbbrev[n]
				}
				return ScheduleLabel{Time: month + " " + f[2] + ", " + clock12(h, m), Tag: TagOneTime, TZ: s.TZ}
			}
		}
		d := Describe(s.Expr)
		return ScheduleLabel{Time: d.Time, Tag: d.Tag, TZ: s.TZ}
	case model.EverySchedule:
		if s.EveryMs <= 0 {
			return ScheduleLabel{Time: model.KindEvery, TZ: s.TZ}
		}
		return ScheduleLabel{Time: "Every " + intervalText(s.EveryMs), Tag: TagInterval, TZ: s.TZ}
	default:
		return ScheduleLabel{Time: "-"}
	}
}

func intervalText(ms int64) string {
	f := float64(ms)
	switch {
	case ms < 60_000:
		return model.FormatNumber(f/1000) + "s"
	case ms < 3_600_000:
		return model.FormatNumber(f/60_000) + "m"
	case ms < 86_400_000:
		return model.FormatNumber(f/3_600_000) + "h"
	default:
		return model.FormatNumber(f/86_400_000) + "d"
	}
}
