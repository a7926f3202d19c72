// Package browsertest provides a scriptable in-memory browser for tests.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gotrs-io/l10ncheck/internal/browser"
)

// PNG is the byte sequence returned by Screenshot unless overridden.
var PNG = []byte("\x89PNG\r\n\x1a\n")

// Page scripts what the fake browser shows for one URL.
type Page struct {
	Title         string
	NavigateErr   error
	WaitErr       error
	TitleErr      error
	ScreenshotErr error
}

// Browser is an Opener whose sessions serve scripted pages.
type Browser struct {
	mu      sync.Mutex
	pages   map[string]Page
	OpenErr error

	opens    int
	closes   int
	visited  []string
	captures []string
	lastOpts browser.Options
}

// New returns a Browser serving pages keyed by URL.
func New(pages map[string]Page) *Browser {
	if pages == nil {
		pages = map[string]Page{}
	}
	return &Browser{pages: pages}
}

// SetPage scripts or replaces the page served at url.
func (b *Browser) SetPage(url string, p Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = p
}

// Open implements browser.Opener.
func (b *Browser) Open(ctx context.Context, opts browser.Options) (browser.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.opens++
	b.lastOpts = opts
	return &session{b: b}, nil
}

// Opens reports how many sessions were opened.
func (b *Browser) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// Closes reports how many times Close was called on any session.
func (b *Browser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Visited lists navigated URLs in order.
func (b *Browser) Visited() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visited...)
}

// Captures lists the URL shown for each screenshot, in order.
func (b *Browser) Captures() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.captures...)
}

// LastOptions returns the options of the most recent Open.
func (b *Browser) LastOptions() browser.Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastOpts
}

type session struct {
	b       *Browser
	current string
	closed  bool
}

var errClosed = errors.New("session closed")

func (s *session) page() Page {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return s.b.pages[s.current]
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if s.closed {
		return errClosed
	}
	s.b.mu.Lock()
	s.b.visited = append(s.b.visited, url)
	p, ok := s.b.pages[url]
	s.b.mu.Unlock()
	s.current = url
	if !ok {
		return &browser.NavigationError{URL: url, Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	}
	if p.NavigateErr != nil {
		return &browser.NavigationError{URL: url, Err: p.NavigateErr}
	}
	return ctx.Err()
}

func (s *session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if s.closed {
		return errClosed
	}
	if p := s.page(); p.WaitErr != nil {
		return &browser.TimeoutError{Selector: selector, Timeout: timeout, Err: p.WaitErr}
	}
	return ctx.Err()
}

func (s *session) Title(ctx context.Context) (string, error) {
	if s.closed {
		return "", errClosed
	}
	p := s.page()
	if p.TitleErr != nil {
		return "", p.TitleErr
	}
	return p.Title, nil
}

func (s *session) Screenshot(ctx context.Context) ([]byte, error) {
	if s.closed {
		return nil, errClosed
	}
	s.b.mu.Lock()
	s.b.captures = append(s.b.captures, s.current)
	s.b.mu.Unlock()
	if p := s.page(); p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return PNG, nil
}

func (s *session) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.closes++
	s.closed = true
	return nil
}
