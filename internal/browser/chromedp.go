package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromedpOpener drives Chrome over CDP. With Options.RemoteURL set it
// attaches to a running browser, otherwise it launches one.
type ChromedpOpener struct{}

// Open starts the browser and its first tab.
func (o *ChromedpOpener) Open(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, acquisitionError(err)
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
		)
		if opts.Maximize {
			allocOpts = append(allocOpts, chromedp.Flag("start-maximized", true))
		}
		if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
			allocOpts = append(allocOpts, chromedp.WindowSize(opts.Viewport.Width, opts.Viewport.Height))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run launches the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, acquisitionError(fmt.Errorf("could not start chrome: %w", err))
	}
	return &chromedpSession{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		pageLoad:    opts.PageLoadTimeout,
	}, nil
}

type chromedpSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	pageLoad    time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *chromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.pageLoad, chromedp.Navigate(url)); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

func (s *chromedpSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &TimeoutError{Selector: selector, Timeout: timeout, Err: err}
	}
	return fmt.Errorf("waiting for %q: %w", selector, err)
}

func (s *chromedpSession) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, 0, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("could not read page title: %w", err)
	}
	return title, nil
}

func (s *chromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, 0, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("could not capture screenshot: %w", err)
	}
	return buf, nil
}

// Close cancels the tab then the allocator, which shuts down a launched
// browser. A remote browser is left running.
func (s *chromedpSession) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}
