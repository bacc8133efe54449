package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// EventType classifies an ActivityEvent.
type EventType string

const (
	EventTask    EventType = "task"
	EventCron    EventType = "cron"
	EventSystem  EventType = "system"
	EventSession EventType = "session"
	EventProject EventType = "project"
	EventError   EventType = "error"
)

// Level is the severity attached to activity events and upstream log lines.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ActivityEvent is one normalized entry of the activity feed. Events are
// built fresh on every aggregation run and never mutated afterwards.
type ActivityEvent struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Project     string    `json:"project,omitempty"`
	Level       Level     `json:"level,omitempty"`
}

// RawActivityItem is a free-text line from the agent's activity log.
// Date is "YYYY-MM-DD" and Time is "H:MM" or "HH:MM"; both are optional.
type RawActivityItem struct {
	Date   string `json:"date,omitempty"`
	Time   string `json:"time,omitempty"`
	Text   string `json:"text"`
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
}

// LogEntry is one structured log line from the agent.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Module    string `json:"module,omitempty"`
}

// Quantity holds a value the agent reports either as a JSON number or as a
// preformatted string (disk sizes such as "41G").
type Quantity string

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*q = Quantity(n.String())
	return nil
}

// StatusSnapshot is the host/agent health summary.
type StatusSnapshot struct {
	Uptime          float64  `json:"uptime"`
	UptimeFormatted string   `json:"uptimeFormatted"`
	MemUsed         float64  `json:"memUsed"`
	MemTotal        float64  `json:"memTotal"`
	MemPercent      float64  `json:"memPercent"`
	DiskUsed        Quantity `json:"diskUsed"`
	DiskTotal       Quantity `json:"diskTotal"`
	DiskPercent     float64  `json:"diskPercent"`
	CPULoad1        float64  `json:"cpuLoad1"`
	CPUCores        float64  `json:"cpuCores"`
	OpenclawStatus  string   `json:"openclawStatus"`
	NodeVersion     string   `json:"nodeVersion"`
}

// DailyUsage is the usage slice for one UTC day.
type DailyUsage struct {
	Tokens int64   `json:"tokens"`
	Cost   float64 `json:"cost"`
	Runs   int     `json:"runs"`
}

// UsageData is the token/cost accounting reported by the agent. DailyUsage
// is keyed by "YYYY-MM-DD".
type UsageData struct {
	TotalTokens int64                 `json:"totalTokens"`
	TotalCost   float64               `json:"totalCost"`
	TotalRuns   int                   `json:"totalRuns"`
	DailyUsage  map[string]DailyUsage `json:"dailyUsage"`
}

type Skill struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type ProjectLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Project is an entry of the workspace projects.json file.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Status      string        `json:"status"`
	Description string        `json:"description"`
	Stack       []string      `json:"stack"`
	Links       []ProjectLink `json:"links,omitempty"`
}

// OccurrenceType distinguishes one-shot "at" jobs from expanded recurring ones.
type OccurrenceType string

const (
	OccurrenceScheduled OccurrenceType = "scheduled"
	OccurrenceCron      OccurrenceType = "cron"
)

// Occurrence status values.
const (
	StatusScheduled = "scheduled"
	StatusDisabled  = "disabled"
)

// CalendarOccurrence is one concrete calendar instant of a job.
type CalendarOccurrence struct {
	Title     string         `json:"title"`
	Start     time.Time      `json:"start"`
	Type      OccurrenceType `json:"type"`
	Status    string         `json:"status"`
	Schedule  string         `json:"schedule"`
	IsOneTime bool           `json:"isOneTime"`
}

// FeedItemType classifies entries of the combined feed.
type FeedItemType string

const (
	FeedCronRun   FeedItemType = "cron_run"
	FeedError     FeedItemType = "error"
	FeedInfo      FeedItemType = "info"
	FeedScheduled FeedItemType = "scheduled"
)

// FeedItem is one entry of the combined cron/error feed.
type FeedItem struct {
	Time   time.Time    `json:"time"`
	Type   FeedItemType `json:"type"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Status string       `json:"status,omitempty"`
}

// FormatNumber renders n the way the agent UI prints numbers: integers
// without a fraction, everything else with the shortest exact fraction.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
