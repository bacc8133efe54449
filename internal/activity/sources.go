package activity

import (
	"context"
	"fmt"
	"sync"

	appLog "clawdash/internal/log"
	"clawdash/internal/model"
)

// Sources is the I/O side of an aggregation run. upstream.Client
// implements it; tests supply fakes.
type Sources interface {
	Activity(ctx context.Context) ([]model.RawActivityItem, error)
	CronJobs(ctx context.Context) ([]model.CronJob, error)
	Logs(ctx context.Context) ([]model.LogEntry, error)
	Status(ctx context.Context) (*model.StatusSnapshot, error)
}

// Inputs is one snapshot of the four sources. A source that could not be
// fetched is empty (nil Status).
type Inputs struct {
	Activity []model.RawActivityItem
	Cron     []model.CronJob
	Logs     []model.LogEntry
	Status   *model.StatusSnapshot
}

// settle fetches one source on wg and stores the result in dst. An error or
// a panic inside fetch is logged under source and leaves dst untouched, so
// one bad source never takes down the others.
func settle[T any](ctx context.Context, wg *sync.WaitGroup, msg, source string, dst *T, fetch func(context.Context) (T, error)) {
	wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				appLog.Error(msg, fmt.Errorf("panic: %v", r), "source", source)
			}
		}()
		v, err := fetch(ctx)
		if err != nil {
			appLog.Error(msg, err, "source", source)
			return
		}
		*dst = v
	})
}

// Collect fetches all four sources concurrently and waits for every one of
// them to settle. A failing source is logged and contributes nothing; it
// never cancels or fails the others.
func Collect(ctx context.Context, src Sources) Inputs {
	var (
		in Inputs
		wg sync.WaitGroup
	)

	// Each goroutine writes only its own field; the merge happens after Wait.
	const msg = "activity source unavailable"
	settle(ctx, &wg, msg, "activity", &in.Activity, src.Activity)
	settle(ctx, &wg, msg, "cron", &in.Cron, src.CronJobs)
	settle(ctx, &wg, msg, "logs", &in.Logs, src.Logs)
	settle(ctx, &wg, msg, "status", &in.Status, src.Status)

	wg.Wait()
	return in
}

// FeedSources is the subset of Sources the combined feed needs.
type FeedSources interface {
	CronJobs(ctx context.Context) ([]model.CronJob, error)
	Logs(ctx context.Context) ([]model.LogEntry, error)
}

// CollectFeed fetches cron jobs and logs with the same all-settled rules.
func CollectFeed(ctx context.Context, src FeedSources) ([]model.CronJob, []model.LogEntry) {
	var (
		jobs []model.CronJob
		logs []model.LogEntry
		wg   sync.WaitGroup
	)
	const msg = "feed source unavailable"
	settle(ctx, &wg, msg, "cron", &jobs, src.CronJobs)
	settle(ctx, &wg, msg, "logs", &logs, src.Logs)
	wg.Wait()
	return jobs, logs
}

// OverviewSources is what the overview page reads from the agent.
type OverviewSources interface {
	Status(ctx context.Context) (*model.StatusSnapshot, error)
	Usage(ctx context.Context) (*model.UsageData, error)
	CronJobs(ctx context.Context) ([]model.CronJob, error)
	Skills(ctx context.Context) ([]model.Skill, error)
}

// ProjectLoader supplies workspace projects; workspace.Dir implements it.
type ProjectLoader interface {
	Projects(ctx context.Context) ([]model.Project, error)
}

// CollectOverview fetches the overview sources, all-settled. projects may
// be nil.
func CollectOverview(ctx context.Context, src OverviewSources, projects ProjectLoader) OverviewInputs {
	var (
		in OverviewInputs
		wg sync.WaitGroup
	)
	const msg = "overview source unavailable"
	settle(ctx, &wg, msg, "status", &in.Status, src.Status)
	settle(ctx, &wg, msg, "usage", &in.Usage, src.Usage)
	settle(ctx, &wg, msg, "cron", &in.Cron, src.CronJobs)
	settle(ctx, &wg, msg, "skills", &in.Skills, src.Skills)
	if projects != nil {
		settle(ctx, &wg, msg, "projects", &in.Projects, projects.Projects)
	}
	wg.Wait()
	return in
}
