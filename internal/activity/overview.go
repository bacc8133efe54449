package activity

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"clawdash/internal/cronexpr"
	"clawdash/internal/model"
)

// maxRunSummaries is the size of the recent and upcoming lists.
const maxRunSummaries = 5

// OverviewInputs is one snapshot of the overview sources; unavailable
// sources are nil.
type OverviewInputs struct {
	Status   *model.StatusSnapshot
	Usage    *model.UsageData
	Cron     []model.CronJob
	Skills   []model.Skill
	Projects []model.Project
}

// RunSummary is one row of the recent/upcoming lists.
type RunSummary struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	At       time.Time              `json:"at"`
	Label    string                 `json:"label"`
	Status   string                 `json:"status,omitempty"`
	Schedule cronexpr.ScheduleLabel `json:"schedule"`
	Errors   int                    `json:"consecutiveErrors,omitempty"`
}

// OverviewData is the dashboard summary document.
type OverviewData struct {
	Status       *model.StatusSnapshot `json:"status"`
	CPUPercent   int                   `json:"cpuPercent"`
	Today        *model.DailyUsage     `json:"today"`
	TotalTokens  int64                 `json:"totalTokens"`
	TotalCost    float64               `json:"totalCost"`
	TotalRuns    int                   `json:"totalRuns"`
	CronTotal    int                   `json:"cronTotal"`
	CronActive   int                   `json:"cronActive"`
	SkillsTotal  int                   `json:"skillsTotal"`
	SkillsActive int                   `json:"skillsActive"`
	Projects     []model.Project       `json:"projects"`
	RecentRuns   []RunSummary          `json:"recentRuns"`
	UpcomingRuns []RunSummary          `json:"upcomingRuns"`
	GeneratedAt  time.Time             `json:"generatedAt"`
	AgentRunning bool                  `json:"agentRunning"`
	AgentState   string                `json:"agentState"`
}

// Overview derives the summary view. Recent runs are the five latest last
// runs (newest first); upcoming runs are the five soonest next runs of
// enabled jobs (soonest first). Today's usage is keyed by now's UTC date.
func Overview(in OverviewInputs, now time.Time, loc *time.Location) OverviewData {
	if loc == nil {
		loc = time.UTC
	}
	out := OverviewData{
		Status:      in.Status,
		CronTotal:   len(in.Cron),
		SkillsTotal: len(in.Skills),
		Projects:    in.Projects,
		GeneratedAt: now,
		AgentState:  "unknown",
	}
	if out.Projects == nil {
		out.Projects = []model.Project{}
	}

	if s := in.Status; s != nil {
		if s.CPUCores > 0 {
			out.CPUPercent = int(math.Round(s.CPULoad1 / s.CPUCores * 100))
		}
		if s.OpenclawStatus != "" {
			out.AgentState = s.OpenclawStatus
		}
		out.AgentRunning = s.OpenclawStatus == "running"
	}

	if u := in.Usage; u != nil {
		out.TotalTokens, out.TotalCost, out.TotalRuns = u.TotalTokens, u.TotalCost, u.TotalRuns
		if today, ok := u.DailyUsage[now.UTC().Format(time.DateOnly)]; ok {
			out.Today = &today
		}
	}

	for _, j := range in.Cron {
		if j.Enabled {
			out.CronActive++
		}
	}
	for _, s := range in.Skills {
		if s.Active {
			out.SkillsActive++
		}
	}

	out.RecentRuns = RecentRuns(in.Cron, now, loc)
	out.UpcomingRuns = UpcomingRuns(in.Cron, now, loc)
	return out
}

// RecentRuns returns the jobs with the latest last runs, newest first.
func RecentRuns(jobs []model.CronJob, now time.Time, loc *time.Location) []RunSummary {
	out := make([]RunSummary, 0)
	for _, j := range jobs {
		at, ok := j.LastRun()
		if !ok {
			continue
		}
		r := summarize(j, at, loc)
		r.Label = TimeAgo(at, now)
		r.Status = j.LastStatus()
		out = append(out, r)
	}
	return sortDescCap(out, func(r RunSummary) time.Time { return r.At }, maxRunSummaries)
}

// UpcomingRuns returns enabled jobs with a known next run, soonest first.
func UpcomingRuns(jobs []model.CronJob, now time.Time, loc *time.Location) []RunSummary {
	out := make([]RunSummary, 0)
	for _, j := range jobs {
		if !j.Enabled {
			continue
		}
		at, ok := j.NextRun()
		if !ok {
			continue
		}
		r := summarize(j, at, loc)
		r.Label = TimeUntil(at, now)
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b RunSummary) int {
		return cmp.Compare(a.At.UnixMilli(), b.At.UnixMilli())
	})
	if len(out) > maxRunSummaries {
		out = out[:maxRunSummaries]
	}
	return out
}

func summarize(j model.CronJob, at time.Time, loc *time.Location) RunSummary {
	r := RunSummary{
		ID:       j.ID,
		Name:     j.Name,
		At:       at,
		Schedule: cronexpr.FormatSchedule(j.Schedule, loc),
	}
	if j.State != nil {
		r.Errors = j.State.ConsecutiveErrors
	}
	return r
}

// TimeAgo renders how long before now t was ("5 minutes ago").
func TimeAgo(t, now time.Time) string {
	if now.Sub(t) < time.Minute && !t.After(now) {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// TimeUntil renders how far after now t is, or "overdue" once it passed.
func TimeUntil(t, now time.Time) string {
	if t.Before(now) {
		return "overdue"
	}
	return humanize.RelTime(now, t, "from now", "ago")
}

// formatSeconds renders d in seconds with one decimal, e.g. "1.5s".
// Halves round up on whole milliseconds, so 250ms is "0.3s".
func formatSeconds(d time.Duration) string {
	ms := d.Milliseconds()
	var tenths int64
	if ms >= 0 {
		tenths = (ms + 50) / 100
	} else {
		tenths = -((-ms + 50) / 100)
	}
	return strconv.FormatFloat(float64(tenths)/10, 'f', 1, 64) + "s"
}
