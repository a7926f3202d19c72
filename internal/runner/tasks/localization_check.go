package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gotrs-io/l10ncheck/internal/browser"
	"github.com/gotrs-io/l10ncheck/internal/checker"
	"github.com/gotrs-io/l10ncheck/internal/history"
	"github.com/gotrs-io/l10ncheck/internal/locale"
	"github.com/gotrs-io/l10ncheck/internal/report"
	"github.com/gotrs-io/l10ncheck/internal/runner"
)

const (
	// DefaultSchedule runs the check every 15 minutes.
	DefaultSchedule = "0 */15 * * * *"

	TaskName = "localization-check"
)

// DefaultTimeout bounds a whole run over the stock locale table.
var DefaultTimeout = checker.RunBudget(len(locale.Defaults()), browser.DefaultOptions().PageLoadTimeout, checker.DefaultWaitTimeout)

// TimeoutFunc returns the bound for the next run. It is asked on every
// tick so that reloaded settings apply.
type TimeoutFunc func() time.Duration

// RunnerFactory builds a fresh checker for one run, so that every tick gets
// its own browser session and the current configuration.
type RunnerFactory func() (*checker.Runner, error)

// LocalizationCheckTask validates the locale table on a schedule
type LocalizationCheckTask struct {
	schedule  string
	timeout   TimeoutFunc
	newRunner RunnerFactory
	history   *history.Store
	onReport  func(*report.Report)
	logger    *log.Logger
}

// NewLocalizationCheckTask creates the scheduled check. timeout, history
// and onReport may be nil.
func NewLocalizationCheckTask(schedule string, timeout TimeoutFunc, factory RunnerFactory, store *history.Store, onReport func(*report.Report)) runner.Task {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &LocalizationCheckTask{
		schedule:  schedule,
		timeout:   timeout,
		newRunner: factory,
		history:   store,
		onReport:  onReport,
		logger:    log.New(log.Writer(), "[L10N-CHECK] ", log.LstdFlags),
	}
}

// Name returns the task name
func (t *LocalizationCheckTask) Name() string {
	return TaskName
}

// Schedule returns the cron schedule
func (t *LocalizationCheckTask) Schedule() string {
	return t.schedule
}

// Timeout returns the task timeout
func (t *LocalizationCheckTask) Timeout() time.Duration {
	if t.timeout != nil {
		if d := t.timeout(); d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// Run performs one full check and records its report
func (t *LocalizationCheckTask) Run(ctx context.Context) error {
	r, err := t.newRunner()
	if err != nil {
		return fmt.Errorf("failed to build checker: %w", err)
	}

	rep, err := r.Run(ctx)
	if err != nil {
		return err
	}

	var errs []error
	if t.history != nil {
		// Record even if ctx expired; the report is already complete.
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := t.history.Record(recordCtx, rep); err != nil {
			t.logger.Printf("Failed to record run %s: %v", rep.RunID, err)
			errs = append(errs, err)
		}
	}
	if t.onReport != nil {
		t.onReport(rep)
	}

	if !rep.Passed() {
		_, failed := rep.Counts()
		errs = append(errs, fmt.Errorf("%d of %d locales failed", failed, len(rep.Results)))
	}
	return errors.Join(errs...)
}
