package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"clawdash/internal/activity"
	"clawdash/internal/calendar"
	"clawdash/internal/config"
	"clawdash/internal/cronexpr"
	"clawdash/internal/ics"
	appLog "clawdash/internal/log"
	"clawdash/internal/model"
	"clawdash/internal/upstream"
	"clawdash/internal/web"
	"clawdash/internal/workspace"
)

const version = "0.1.0"

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "clawdash",
		Usage:   "Operational dashboard API for an OpenClaw agent.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "/etc/clawdash/config.yaml",
				Usage:   "Path to config file",
				EnvVars: []string{"CLAWDASH_CONFIG"},
			},
			&cli.StringFlag{Name: "upstream", Usage: "Agent API base URL (overrides config if set)"},
			&cli.StringFlag{Name: "timezone", Usage: "Display timezone (overrides config if set)"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			activityCommand(),
			calendarCommand(),
			describeCommand(),
			statusCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		appLog.Error("clawdash failed", err)
		os.Exit(1)
	}
}

// loadConfig resolves file, environment and flag settings, in that order of
// increasing precedence, and applies the log level.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	conf, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	conf.ApplyEnv()

	if v := c.String("upstream"); v != "" {
		conf.UpstreamURL = v
	}
	if v := c.String("timezone"); v != "" {
		conf.Timezone = v
	}
	if c.IsSet("listen") {
		conf.Listen = c.String("listen")
	}
	conf.Normalize()

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	return conf, nil
}

func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard HTTP API.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}

			appLog.Info("effective config",
				"listen", conf.Listen,
				"upstream_url", conf.UpstreamURL,
				"workspace_dir", conf.WorkspaceDir,
				"timezone", conf.Timezone,
				"refresh", conf.RefreshCron,
				"cache_ttl_seconds", conf.CacheTTLSeconds,
				"log_level", conf.LogLevel,
			)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			client := upstream.NewClient(conf.UpstreamURL, conf.UpstreamTimeout())
			srv := web.NewServer(conf, client, workspace.Dir(conf.WorkspaceDir))

			sched := cron.New(cron.WithLocation(srv.Location()))
			if _, err := sched.AddFunc(conf.RefreshCron, func() {
				warmCtx, done := context.WithTimeout(ctx, conf.UpstreamTimeout())
				defer done()
				srv.WarmActivity(warmCtx)
			}); err != nil {
				return fmt.Errorf("invalid refresh schedule %q: %w", conf.RefreshCron, err)
			}
			sched.Start()
			defer func() {
				<-sched.Stop().Done()
			}()

			httpSrv := &http.Server{
				Addr:              conf.Listen,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				appLog.Error("graceful shutdown failed", err)
			}
			appLog.Info("clawdash exiting")
			return nil
		},
	}
}

func activityCommand() *cli.Command {
	return &cli.Command{
		Name:  "activity",
		Usage: "Aggregate the activity feed once and print it as JSON.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "feed", Usage: "Print the combined cron/error feed instead"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			client := upstream.NewClient(conf.UpstreamURL, conf.UpstreamTimeout())
			now := time.Now()

			var out any
			if c.Bool("feed") {
				loc, err := loadLocation(conf.Timezone)
				if err != nil {
					return err
				}
				jobs, logs := activity.CollectFeed(c.Context, client)
				out = activity.Feed(jobs, logs, now, loc)
			} else {
				events, err := activity.Run(c.Context, client, now)
				if err != nil {
					return err
				}
				out = events
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func calendarCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendar",
		Usage: "Expand cron jobs onto a month.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "year", Usage: "Year (default: current)"},
			&cli.IntFlag{Name: "month", Usage: "Month 1-12 (default: current)"},
			&cli.BoolFlag{Name: "ics", Usage: "Print an iCalendar document instead of a listing"},
			&cli.BoolFlag{Name: "special", Usage: "Only list non-daily events"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			loc, err := loadLocation(conf.Timezone)
			if err != nil {
				return err
			}

			now := time.Now().In(loc)
			year, month := now.Year(), now.Month()
			if c.IsSet("year") {
				year = c.Int("year")
			}
			if c.IsSet("month") {
				m := c.Int("month")
				if m < 1 || m > 12 {
					return fmt.Errorf("month must be 1-12, got %d", m)
				}
				month = time.Month(m)
			}

			client := upstream.NewClient(conf.UpstreamURL, conf.UpstreamTimeout())
			jobs, err := client.CronJobs(c.Context)
			if err != nil {
				return fmt.Errorf("fetching cron jobs: %w", err)
			}
			occs := calendar.ExpandMonth(jobs, year, month, loc)

			if c.Bool("ics") {
				name := fmt.Sprintf("Agent schedule %04d-%02d", year, int(month))
				_, err := fmt.Fprint(os.Stdout, ics.Export(name, occs, time.Now()))
				return err
			}
			if c.Bool("special") {
				occs = calendar.SpecialEvents(occs)
			}
			for _, o := range occs {
				marker := ""
				if o.IsOneTime {
					marker = " (one-time)"
				}
				fmt.Printf("%s  %-8s %-9s %s%s\n",
					o.Start.In(loc).Format("2006-01-02 15:04"), o.Type, o.Status, o.Title, marker)
			}
			return nil
		},
	}
}

func describeCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "Describe a cron expression and show its next run.",
		ArgsUsage: "<expr>",
		Action: func(c *cli.Context) error {
			expr := strings.Join(c.Args().Slice(), " ")
			if expr == "" {
				return errors.New("describe: expression required")
			}
			d := cronexpr.Describe(expr)
			fmt.Printf("time:  %s\n", d.Time)
			fmt.Printf("tag:   %s\n", d.Tag)
			fmt.Printf("daily: %t\n", cronexpr.IsDaily(expr))
			if err := cronexpr.Validate(expr); err != nil {
				fmt.Printf("next:  - (%v)\n", err)
				return nil
			}
			now := time.Now()
			if next, ok := cronexpr.NextRun(model.CronSchedule{Expr: expr}, now); ok {
				fmt.Printf("next:  %s (%s)\n", next.Format(time.RFC3339), activity.TimeUntil(next, now))
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print agent host status and usage totals.",
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			client := upstream.NewClient(conf.UpstreamURL, conf.UpstreamTimeout())
			in := activity.CollectOverview(c.Context, client, workspace.Dir(conf.WorkspaceDir))
			loc, err := loadLocation(conf.Timezone)
			if err != nil {
				return err
			}
			ov := activity.Overview(in, time.Now(), loc)

			fmt.Printf("agent:    %s\n", ov.AgentState)
			if s := ov.Status; s != nil {
				const mib = 1 << 20
				fmt.Printf("uptime:   %s\n", s.UptimeFormatted)
				fmt.Printf("cpu:      %d%%\n", ov.CPUPercent)
				fmt.Printf("memory:   %s / %s\n",
					humanize.IBytes(uint64(s.MemUsed*mib)), humanize.IBytes(uint64(s.MemTotal*mib)))
				fmt.Printf("disk:     %s / %s\n", s.DiskUsed, s.DiskTotal)
			}
			fmt.Printf("tokens:   %s total\n", humanize.Comma(ov.TotalTokens))
			fmt.Printf("cost:     $%.2f over %d runs\n", ov.TotalCost, ov.TotalRuns)
			fmt.Printf("cron:     %d/%d enabled\n", ov.CronActive, ov.CronTotal)
			fmt.Printf("skills:   %d/%d active\n", ov.SkillsActive, ov.SkillsTotal)
			fmt.Printf("projects: %d\n", len(ov.Projects))
			for _, r := range ov.UpcomingRuns {
				fmt.Printf("next:     %s %s\n", r.Name, r.Label)
			}
			return nil
		},
	}
}
