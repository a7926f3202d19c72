package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gotrs-io/l10ncheck/internal/browser"
	"github.com/gotrs-io/l10ncheck/internal/checker"
	"github.com/gotrs-io/l10ncheck/internal/config"
	"github.com/gotrs-io/l10ncheck/internal/history"
	"github.com/gotrs-io/l10ncheck/internal/metrics"
	"github.com/gotrs-io/l10ncheck/internal/report"
	"github.com/gotrs-io/l10ncheck/internal/screenshot"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate every configured locale once",
	Long: `Open one browser session, visit each configured localized homepage in
order and check that its title contains the expected text. A screenshot is
kept for every page; failed pages get an "-error" suffix.

The command exits non-zero if any locale fails or the browser cannot be
started.`,
	Example: `  l10ncheck run
  l10ncheck run --only en,fr --headless=false
  l10ncheck run --engine chromedp --report out/report.xlsx`,
	RunE: runCheck,
}

var (
	engineFlag        string
	headlessFlag      bool
	onlyFlag          []string
	localesFileFlag   string
	screenshotsFlag   string
	noScreenshotsFlag bool
	reportPathFlag    string
	formatFlag        string
)

func init() {
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&engineFlag, "engine", browser.EnginePlaywright, "Browser engine: playwright or chromedp")
	cmd.Flags().BoolVar(&headlessFlag, "headless", true, "Run the browser without a window")
	cmd.Flags().StringSliceVar(&onlyFlag, "only", nil, "Validate only these locales (e.g. en,fr)")
	cmd.Flags().StringVar(&localesFileFlag, "locales", "", "YAML file with the locale table")
	cmd.Flags().StringVar(&screenshotsFlag, "screenshots", screenshot.DefaultDir, "Directory for page screenshots")
	cmd.Flags().BoolVar(&noScreenshotsFlag, "no-screenshots", false, "Do not capture screenshots")
	cmd.Flags().StringVar(&reportPathFlag, "report", "", "Also write the report to this file")
	cmd.Flags().StringVar(&formatFlag, "format", string(report.FormatText), "Report format: text, json, yaml, xlsx, markdown or html")
}

// applyRunFlags lets explicitly set flags win over file and environment.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("engine") {
		cfg.Browser.Engine = engineFlag
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = headlessFlag
	}
	if flags.Changed("only") {
		cfg.Only = onlyFlag
	}
	if flags.Changed("locales") {
		cfg.LocalesFile = localesFileFlag
		if err := cfg.ReloadLocales(); err != nil {
			return err
		}
	}
	if flags.Changed("screenshots") {
		cfg.Screenshots.Dir = screenshotsFlag
	}
	if noScreenshotsFlag {
		cfg.Screenshots.Enabled = false
	}
	if flags.Changed("report") {
		cfg.Report.Path = reportPathFlag
	}
	if flags.Changed("format") {
		cfg.Report.Format = formatFlag
	} else if cfg.Report.Path != "" && cfg.Report.Format == string(report.FormatText) {
		cfg.Report.Format = string(report.FormatFromPath(cfg.Report.Path))
	}
	return nil
}

// validateConfig prints warnings to stderr and fails on errors.
func validateConfig(cfg *config.Config) error {
	v := config.NewValidator(cfg)
	err := v.Validate()
	for _, w := range v.Warnings() {
		fmt.Fprintln(os.Stderr, w)
	}
	return err
}

// errorLogger sends failure lines to stderr when progress goes to stdout,
// and next to the progress lines otherwise.
func errorLogger(logger *log.Logger) *log.Logger {
	if logger.Writer() != os.Stdout {
		return logger
	}
	return log.New(os.Stderr, logger.Prefix(), logger.Flags())
}

// newChecker assembles a Runner for one run from cfg.
func newChecker(cfg *config.Config, opener browser.Opener, logger *log.Logger, rec *metrics.Recorder, extra ...checker.Option) *checker.Runner {
	opts := []checker.Option{
		checker.WithEngine(cfg.Browser.Engine),
		checker.WithBrowserOptions(cfg.Browser.Options()),
		checker.WithWait(cfg.Browser.WaitSelector, cfg.Browser.WaitTimeout),
		checker.WithLogger(logger),
		checker.WithErrorLogger(errorLogger(logger)),
		checker.WithMetrics(rec),
	}
	if cfg.Screenshots.Enabled {
		opts = append(opts, checker.WithScreenshots(screenshot.NewStore(cfg.Screenshots.Dir, cfg.Screenshots.Pattern)))
	} else {
		opts = append(opts, checker.WithScreenshots(nil))
	}
	return checker.New(opener, cfg.Cases(), append(opts, extra...)...)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if err := validateConfig(cfg); err != nil {
		return err
	}

	logOut, closeLog, err := cfg.Logging.Open()
	if err != nil {
		return err
	}
	defer closeLog()
	logger := log.New(logOut, "[L10N] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeRun(ctx, cfg, logger, cmd.OutOrStdout())
}

// executeRun performs one full run, prints the verdict to out and returns a
// non-nil error when the run did not pass.
func executeRun(ctx context.Context, cfg *config.Config, logger *log.Logger, out io.Writer) error {
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}
	if format == report.FormatXLSX && cfg.Report.Path == "" {
		return errors.New("xlsx reports need --report <path>")
	}

	opener, err := newOpener(cfg.Browser.Engine)
	if err != nil {
		return err
	}

	rep, err := newChecker(cfg, opener, logger, nil).Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Report.Path != "" {
		if err := report.WriteFile(cfg.Report.Path, rep, format); err != nil {
			return err
		}
		logger.Printf("📝 Report written to %s", cfg.Report.Path)
		format = report.FormatText
	}
	if err := report.Write(out, rep, format); err != nil {
		return err
	}

	if cfg.History.Enabled {
		if err := recordHistory(ctx, cfg.History.DSN, rep); err != nil {
			logger.Printf("⚠️  %v", err)
		}
	}

	if len(rep.Results) == 0 {
		return errors.New("no locales were validated")
	}
	if !rep.Passed() {
		_, failed := rep.Counts()
		return fmt.Errorf("%d of %d locales failed", failed, len(rep.Results))
	}
	return nil
}

func recordHistory(ctx context.Context, dsn string, rep *report.Report) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	store, err := history.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, rep)
}
