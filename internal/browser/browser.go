// Package browser is the browser automation capability used by the checker.
// A Session is driven by exactly one caller at a time.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
)

// Size is a viewport size in CSS pixels.
type Size struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Options configure a browser session.
type Options struct {
	PageLoadTimeout time.Duration
	Maximize        bool
	Headless        bool
	Viewport        Size
	SlowMo          time.Duration
	// RemoteURL attaches to an already running browser instead of launching one.
	RemoteURL string
	// SkipInstall assumes the playwright driver and browsers are present.
	SkipInstall bool
}

// DefaultOptions mirror the stock run: 60s page loads in a maximized window.
func DefaultOptions() Options {
	return Options{
		PageLoadTimeout: 60 * time.Second,
		Maximize:        true,
		Headless:        true,
		Viewport:        Size{Width: 1920, Height: 1080},
	}
}

// Opener acquires browser sessions.
type Opener interface {
	Open(ctx context.Context, opts Options) (Session, error)
}

// Session is a live browser handle.
type Session interface {
	// Navigate loads url, failing with *NavigationError.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until selector is visible, failing with *TimeoutError.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Title(ctx context.Context) (string, error)
	// Screenshot returns PNG bytes of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, opts Options) (Session, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, opts Options) (Session, error) {
	return f(ctx, opts)
}

// NewOpener returns the opener for the named engine.
func NewOpener(engine string) (Opener, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EnginePlaywright:
		return &PlaywrightOpener{}, nil
	case EngineChromedp:
		return &ChromedpOpener{}, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q (want %s or %s)", engine, EnginePlaywright, EngineChromedp)
	}
}

// ErrSessionAcquisition marks failures to start a browser. It aborts a run.
var ErrSessionAcquisition = errors.New("could not acquire browser session")

func acquisitionError(err error) error {
	return fmt.Errorf("%w: %w", ErrSessionAcquisition, err)
}

// NavigationError reports a page that could not be loaded.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// TimeoutError reports an element that did not become visible in time.
type TimeoutError struct {
	Selector string
	Timeout  time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("element %q not visible after %v: %v", e.Selector, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}
