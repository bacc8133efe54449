package model

import (
	"encoding/json"
	"math"
	"time"
)

// Schedule kinds as they appear on the wire.
const (
	KindCron  = "cron"
	KindAt    = "at"
	KindEvery = "every"
)

// Schedule is how a job's timing is expressed. It is one of CronSchedule,
// AtSchedule or EverySchedule; an unrecognized kind decodes to nil.
type Schedule interface {
	Kind() string
	Timezone() string
	isSchedule()
}

// CronSchedule is a periodic 5-field cron expression.
type CronSchedule struct {
	Expr string
	TZ   string
}

// AtSchedule fires once at a fixed instant. At is zero when the wire value
// could not be parsed.
type AtSchedule struct {
	At time.Time
	TZ string
}

// EverySchedule fires on a fixed millisecond interval.
type EverySchedule struct {
	EveryMs int64
	TZ      string
}

func (CronSchedule) Kind() string  { return KindCron }
func (AtSchedule) Kind() string    { return KindAt }
func (EverySchedule) Kind() string { return KindEvery }

func (s CronSchedule) Timezone() string  { return s.TZ }
func (s AtSchedule) Timezone() string    { return s.TZ }
func (s EverySchedule) Timezone() string { return s.TZ }

func (CronSchedule) isSchedule()  {}
func (AtSchedule) isSchedule()    {}
func (EverySchedule) isSchedule() {}

// Interval returns the schedule period as a duration.
func (s EverySchedule) Interval() time.Duration {
	return time.Duration(s.EveryMs) * time.Millisecond
}

// CronState is the runtime state the agent keeps per job. Zero values mean
// "absent": a job that never ran has LastRunAtMs == 0.
type CronState struct {
	LastRunAtMs       int64  `json:"lastRunAtMs,omitempty"`
	LastStatus        string `json:"lastStatus,omitempty"`
	LastDurationMs    int64  `json:"lastDurationMs,omitempty"`
	NextRunAtMs       int64  `json:"nextRunAtMs,omitempty"`
	ConsecutiveErrors int    `json:"consecutiveErrors,omitempty"`
}

// CronJob is a scheduled job as reported by the agent.
type CronJob struct {
	ID       string
	Name     string
	Enabled  bool
	Schedule Schedule
	State    *CronState
}

// LastRun reports when the job last ran, if it ever did.
func (j CronJob) LastRun() (time.Time, bool) {
	if j.State == nil || j.State.LastRunAtMs == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(j.State.LastRunAtMs).UTC(), true
}

// NextRun reports the next run instant the agent has computed, if any.
func (j CronJob) NextRun() (time.Time, bool) {
	if j.State == nil || j.State.NextRunAtMs == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(j.State.NextRunAtMs).UTC(), true
}

// LastDuration reports how long the last run took, if recorded.
func (j CronJob) LastDuration() (time.Duration, bool) {
	if j.State == nil || j.State.LastDurationMs == 0 {
		return 0, false
	}
	return time.Duration(j.State.LastDurationMs) * time.Millisecond, true
}

// LastStatus returns the last run status or "unknown".
func (j CronJob) LastStatus() string {
	if j.State == nil || j.State.LastStatus == "" {
		return "unknown"
	}
	return j.State.LastStatus
}

type wireSchedule struct {
	Kind    string  `json:"kind"`
	Expr    string  `json:"expr,omitempty"`
	At      string  `json:"at,omitempty"`
	EveryMs float64 `json:"everyMs,omitempty"`
	TZ      string  `json:"tz,omitempty"`
}

type wireCronJob struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Enabled  bool          `json:"enabled"`
	Schedule *wireSchedule `json:"schedule,omitempty"`
	State    *CronState    `json:"state,omitempty"`
}

func (j *CronJob) UnmarshalJSON(data []byte) error {
	var w wireCronJob
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*j = CronJob{
		ID:       w.ID,
		Name:     w.Name,
		Enabled:  w.Enabled,
		Schedule: w.Schedule.decode(),
		State:    w.State,
	}
	return nil
}

func (j CronJob) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCronJob{
		ID:       j.ID,
		Name:     j.Name,
		Enabled:  j.Enabled,
		Schedule: encodeSchedule(j.Schedule),
		State:    j.State,
	})
}

func (w *wireSchedule) decode() Schedule {
	if w == nil {
		return nil
	}
	switch w.Kind {
	case KindCron:
		return CronSchedule{Expr: w.Expr, TZ: w.TZ}
	case KindAt:
		s := AtSchedule{TZ: w.TZ}
		if t, err := time.Parse(time.RFC3339Nano, w.At); err == nil {
			s.At = t
		}
		return s
	case KindEvery:
		return EverySchedule{EveryMs: int64(math.Round(w.EveryMs)), TZ: w.TZ}
	default:
		return nil
	}
}

func encodeSchedule(s Schedule) *wireSchedule {
	switch s := s.(type) {
	case CronSchedule:
		return &wireSchedule{Kind: KindCron, Expr: s.Expr, TZ: s.TZ}
	case AtSchedule:
		w := &wireSchedule{Kind: KindAt, TZ: s.TZ}
		if !s.At.IsZero() {
			w.At = s.At.Format(time.RFC3339Nano)
		}
		return w
	case EverySchedule:
		return &wireSchedule{Kind: KindEvery, EveryMs: float64(s.EveryMs), TZ: s.TZ}
	default:
		return nil
	}
}
