// Package checker validates localized homepages in a real browser.
//
// A Runner owns one browser session for the duration of a run. Cases are
// validated sequentially on that session; a failing case never stops the
// cases after it, and the session is released on every exit path.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gotrs-io/l10ncheck/internal/browser"
	"github.com/gotrs-io/l10ncheck/internal/locale"
	"github.com/gotrs-io/l10ncheck/internal/metrics"
	"github.com/gotrs-io/l10ncheck/internal/report"
	"github.com/gotrs-io/l10ncheck/internal/screenshot"
)

const (
	DefaultWaitSelector = "body"
	DefaultWaitTimeout  = 15 * time.Second

	screenshotTimeout = 10 * time.Second
)

// RunBudget is the longest a run over cases can take when every bounded
// step runs to its limit: one page load for the session, then per case a
// page load, the element wait and a screenshot.
func RunBudget(cases int, pageLoad, wait time.Duration) time.Duration {
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}
	return pageLoad + time.Duration(cases)*(pageLoad+wait+screenshotTimeout)
}

// State is the lifecycle position of a Runner.
type State int

const (
	StateUninitialized State = iota
	StateSessionOpen
	StateValidating
	StateSessionClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateSessionOpen:
		return "SESSION_OPEN"
	case StateValidating:
		return "VALIDATING"
	case StateSessionClosed:
		return "SESSION_CLOSED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MismatchError reports a page title that lacks the expected fragment.
type MismatchError struct {
	Locale   string
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("title mismatch for %s | expected: %s | found: %s", e.Locale, e.Expected, e.Actual)
}

// Runner is the localization check runner.
type Runner struct {
	opener      browser.Opener
	cases       []locale.Case
	opts        browser.Options
	shots       *screenshot.Store
	selector    string
	waitTimeout time.Duration
	engine      string
	logger      *log.Logger
	errLogger   *log.Logger
	metrics     *metrics.Recorder
	observe     func(report.Result)

	session browser.Session
	state   State
}

// Option configures a Runner.
type Option func(*Runner)

// WithBrowserOptions sets the options used to open the session.
func WithBrowserOptions(opts browser.Options) Option {
	return func(r *Runner) { r.opts = opts }
}

// WithScreenshots sets the screenshot store. A nil store disables captures.
func WithScreenshots(s *screenshot.Store) Option {
	return func(r *Runner) { r.shots = s }
}

// WithWait sets the selector that must become visible and how long to wait.
func WithWait(selector string, timeout time.Duration) Option {
	return func(r *Runner) {
		if selector != "" {
			r.selector = selector
		}
		if timeout > 0 {
			r.waitTimeout = timeout
		}
	}
}

// WithEngine names the engine in reports.
func WithEngine(name string) Option {
	return func(r *Runner) { r.engine = name }
}

// WithLogger replaces the progress logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithErrorLogger replaces the logger for failures and warnings.
func WithErrorLogger(l *log.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.errLogger = l
		}
	}
}

// WithMetrics records case and run outcomes.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithObserver calls fn with every case result as soon as it is known.
func WithObserver(fn func(report.Result)) Option {
	return func(r *Runner) { r.observe = fn }
}

// New creates a runner over cases. The cases are copied.
func New(opener browser.Opener, cases []locale.Case, options ...Option) *Runner {
	r := &Runner{
		opener:      opener,
		cases:       append([]locale.Case(nil), cases...),
		opts:        browser.DefaultOptions(),
		shots:       screenshot.NewStore("", ""),
		selector:    DefaultWaitSelector,
		waitTimeout: DefaultWaitTimeout,
		engine:      browser.EnginePlaywright,
		logger:      log.New(os.Stdout, "[L10N] ", log.LstdFlags),
		errLogger:   log.New(os.Stderr, "[L10N] ", log.LstdFlags),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// State returns the lifecycle state.
func (r *Runner) State() State {
	return r.state
}

// Locales returns the cases in validation order.
func (r *Runner) Locales() []locale.Case {
	return append([]locale.Case(nil), r.cases...)
}

// SetUp acquires the browser session. The returned error wraps
// browser.ErrSessionAcquisition.
func (r *Runner) SetUp(ctx context.Context) error {
	if r.state != StateUninitialized {
		return fmt.Errorf("runner is %s, set up needs %s", r.state, StateUninitialized)
	}
	session, err := r.opener.Open(ctx, r.opts)
	if err != nil {
		if !errors.Is(err, browser.ErrSessionAcquisition) {
			err = fmt.Errorf("%w: %w", browser.ErrSessionAcquisition, err)
		}
		return err
	}
	r.session = session
	r.state = StateSessionOpen
	r.logger.Println("🚀 Browser launched successfully.")
	return nil
}

// Validate navigates to the case URL, waits for the page body and checks the
// title. A screenshot is attempted whatever the outcome.
func (r *Runner) Validate(ctx context.Context, c locale.Case) report.Result {
	start := time.Now()
	res := report.Result{Locale: c.Locale, URL: c.URL, Expected: c.ExpectedTitle, CheckedAt: start.UTC()}

	if r.session == nil || r.state != StateSessionOpen {
		res.Error = fmt.Sprintf("no open browser session (runner is %s)", r.state)
		res.Kind = report.KindOther
		res.Duration = time.Since(start)
		r.record(res)
		return res
	}

	r.state = StateValidating
	defer func() { r.state = StateSessionOpen }()

	r.logger.Printf("🌍 Visiting locale: %s (%s) → %s", c.Label(), c.DisplayName(), c.URL)
	title, err := r.check(ctx, c)
	res.ActualTitle = title
	if err != nil {
		res.Error = err.Error()
		res.Kind = classify(err)
		r.errLogger.Printf("⚠️ Test failed for %s due to: %v", c.Locale, err)
	} else {
		res.Passed = true
	}

	res.Screenshot = r.capture(ctx, c.Locale, !res.Passed)
	res.Duration = time.Since(start)
	if res.Passed {
		r.logger.Printf("✅ %s homepage validated successfully.", c.Label())
	}
	r.record(res)
	return res
}

func (r *Runner) record(res report.Result) {
	r.metrics.ObserveCase(res)
	if r.observe != nil {
		r.observe(res)
	}
}

func (r *Runner) check(ctx context.Context, c locale.Case) (title string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("browser panicked: %v", p)
		}
	}()

	if err := r.session.Navigate(ctx, c.URL); err != nil {
		return "", err
	}
	if err := r.session.WaitVisible(ctx, r.selector, r.waitTimeout); err != nil {
		return "", err
	}
	title, err = r.session.Title(ctx)
	if err != nil {
		return "", err
	}
	r.logger.Printf("🔎 Page title: %s", title)
	if !strings.Contains(title, c.ExpectedTitle) {
		return title, &MismatchError{Locale: c.Locale, Expected: c.ExpectedTitle, Actual: title}
	}
	return title, nil
}

// capture saves a screenshot keyed by locale, with the error suffix when the
// case failed. Failures are logged and never change the case outcome.
func (r *Runner) capture(ctx context.Context, loc string, failed bool) string {
	key := screenshot.Key(loc, failed)
	if r.shots == nil {
		return ""
	}
	// The failure path may run after ctx was cancelled.
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	data, err := r.session.Screenshot(shotCtx)
	if err == nil {
		var path string
		if path, err = r.shots.Save(key, data); err == nil {
			r.logger.Printf("📸 Screenshot saved for locale: %s", key)
			return path
		}
	}
	r.errLogger.Printf("⚠️ Could not capture screenshot for %s: %v", key, err)
	r.metrics.ScreenshotFailed()
	return ""
}

// TearDown releases the session. It is a no-op when no session was acquired
// or it was already released.
func (r *Runner) TearDown() error {
	if r.session == nil {
		return nil
	}
	err := r.session.Close()
	r.session = nil
	r.state = StateSessionClosed
	r.logger.Println("🧹 Browser closed. All tests completed.")
	if err != nil {
		return fmt.Errorf("failed to close browser session: %w", err)
	}
	return nil
}

// Run sets up the session, validates every case and tears the session down.
// The error is non-nil only when no session could be acquired; case
// failures are reported in the Report.
func (r *Runner) Run(ctx context.Context) (rep *report.Report, err error) {
	if len(r.cases) == 0 {
		r.errLogger.Println("⚠️ No locales configured, nothing to validate")
	}
	if err := r.SetUp(ctx); err != nil {
		r.errLogger.Printf("❌ %v", err)
		r.metrics.ObserveRun(nil)
		return nil, err
	}

	rep = report.New(r.engine)
	defer func() {
		if cerr := r.TearDown(); cerr != nil {
			r.errLogger.Printf("⚠️ %v", cerr)
		}
		rep.Finish()
		r.metrics.ObserveRun(rep)
		passed, failed := rep.Counts()
		r.logger.Printf("Run %s finished: %d passed, %d failed", rep.RunID, passed, failed)
	}()

	for _, c := range r.cases {
		if cerr := ctx.Err(); cerr != nil {
			res := report.Result{
				Locale:    c.Locale,
				URL:       c.URL,
				Expected:  c.ExpectedTitle,
				Error:     fmt.Sprintf("run cancelled before validation: %v", cerr),
				Kind:      report.KindOther,
				CheckedAt: time.Now().UTC(),
			}
			r.record(res)
			rep.Add(res)
			continue
		}
		rep.Add(r.Validate(ctx, c))
	}
	return rep, nil
}

func classify(err error) report.Kind {
	var mismatch *MismatchError
	var timeout *browser.TimeoutError
	var nav *browser.NavigationError
	switch {
	case errors.As(err, &mismatch):
		return report.KindMismatch
	case errors.As(err, &timeout):
		return report.KindTimeout
	case errors.As(err, &nav):
		return report.KindNavigation
	}
	return report.KindOther
}
