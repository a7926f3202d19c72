package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gotrs-io/l10ncheck/internal/checker"
	"github.com/gotrs-io/l10ncheck/internal/config"
	"github.com/gotrs-io/l10ncheck/internal/history"
	"github.com/gotrs-io/l10ncheck/internal/locale"
	"github.com/gotrs-io/l10ncheck/internal/metrics"
	"github.com/gotrs-io/l10ncheck/internal/publish"
	"github.com/gotrs-io/l10ncheck/internal/report"
	"github.com/gotrs-io/l10ncheck/internal/runner"
	"github.com/gotrs-io/l10ncheck/internal/runner/tasks"
	"github.com/gotrs-io/l10ncheck/internal/server"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Validate locales on a schedule and serve status over HTTP",
	Long: `Run the localization check on a cron schedule (seconds field included)
and expose /healthz, /metrics and the /api/v1 status endpoints.

Every scheduled run opens its own browser session. Changes to the config
file are picked up without a restart.`,
	RunE: runWatch,
}

var (
	scheduleFlag   string
	listenFlag     string
	noRunStartFlag bool
)

func init() {
	watchCmd.Flags().StringVar(&scheduleFlag, "schedule", tasks.DefaultSchedule, "Cron schedule with seconds field")
	watchCmd.Flags().StringVar(&listenFlag, "listen", ":9464", "Status server listen address")
	watchCmd.Flags().BoolVar(&noRunStartFlag, "no-run-on-start", false, "Wait for the first scheduled tick instead of running immediately")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Watch(configFlag, func(c *config.Config) {
		log.Printf("Configuration reloaded: %d locales, engine %s", len(c.Cases()), c.Browser.Engine)
	})
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Watch.Schedule = scheduleFlag
	}
	if cmd.Flags().Changed("listen") {
		cfg.Watch.Listen = listenFlag
	}
	if noRunStartFlag {
		cfg.Watch.RunOnStart = false
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	logOut, closeLog, err := cfg.Logging.Open()
	if err != nil {
		return err
	}
	defer closeLog()
	log.SetOutput(logOut)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(ctx, cfg.History.DSN)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	gin.SetMode(gin.ReleaseMode)
	rec := metrics.NewRecorder()
	srv := server.New(cfg.Watch.Listen, func() []locale.Case { return config.Get().Cases() }, rec, store)

	checkLogger := log.New(logOut, "[L10N] ", log.LstdFlags)
	factory := func() (*checker.Runner, error) {
		// Pick up hot-reloaded settings on every tick.
		current := config.Get()
		opener, err := newOpener(current.Browser.Engine)
		if err != nil {
			return nil, err
		}
		return newChecker(current, opener, checkLogger, rec, checker.WithObserver(srv.PublishResult)), nil
	}

	onReport := srv.SetLatest
	if cfg.Publish.RedisURL != "" {
		pub, err := publish.NewRedis(ctx, publish.RedisConfig{
			URL:       cfg.Publish.RedisURL,
			KeyPrefix: cfg.Publish.KeyPrefix,
			TTL:       cfg.Publish.TTL,
		})
		if err != nil {
			return err
		}
		defer pub.Close()
		onReport = func(rep *report.Report) {
			srv.SetLatest(rep)
			pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := pub.Publish(pubCtx, rep); err != nil {
				log.Printf("⚠️  %v", err)
			}
		}
	}

	registry := runner.NewTaskRegistry()
	runTimeout := func() time.Duration { return config.Get().RunTimeout() }
	registry.Register(tasks.NewLocalizationCheckTask(cfg.Watch.Schedule, runTimeout, factory, store, onReport))
	r := runner.NewRunner(registry, log.New(logOut, "[RUNNER] ", log.LstdFlags))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if cfg.Watch.RunOnStart {
		// Failures are already logged and published; keep watching.
		_ = r.RunNow(ctx, tasks.TaskName)
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- r.Start(ctx)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-runErr
		if err != nil {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	case err := <-runErr:
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}
