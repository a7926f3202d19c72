package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightOpener launches Chromium through playwright-go.
type PlaywrightOpener struct{}

// Open installs the driver if needed, launches Chromium and opens one page.
func (o *PlaywrightOpener) Open(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, acquisitionError(err)
	}
	if !opts.SkipInstall && os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, acquisitionError(fmt.Errorf("could not install playwright browsers: %w", err))
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		// Fallback: install the driver explicitly then retry
		_ = playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
		pw, err = playwright.Run()
		if err != nil {
			return nil, acquisitionError(fmt.Errorf("could not start playwright after retry: %w", err))
		}
	}
	s := &playwrightSession{pw: pw}

	if opts.RemoteURL != "" {
		s.browser, err = pw.Chromium.ConnectOverCDP(opts.RemoteURL)
	} else {
		launch := playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
		}
		if opts.SlowMo > 0 {
			launch.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
		}
		if opts.Maximize {
			launch.Args = []string{"--start-maximized"}
		}
		s.browser, err = pw.Chromium.Launch(launch)
	}
	if err != nil {
		_ = s.Close()
		return nil, acquisitionError(fmt.Errorf("could not launch browser: %w", err))
	}

	ctxOpts := playwright.BrowserNewContextOptions{}
	switch {
	case opts.Maximize && !opts.Headless:
		// A maximized headed window sizes the page itself.
		ctxOpts.NoViewport = playwright.Bool(true)
	case opts.Viewport.Width > 0 && opts.Viewport.Height > 0:
		ctxOpts.Viewport = &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	}
	s.context, err = s.browser.NewContext(ctxOpts)
	if err != nil {
		_ = s.Close()
		return nil, acquisitionError(fmt.Errorf("could not create context: %w", err))
	}
	s.page, err = s.context.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, acquisitionError(fmt.Errorf("could not create page: %w", err))
	}
	if opts.PageLoadTimeout > 0 {
		s.pageLoad = opts.PageLoadTimeout
		s.page.SetDefaultNavigationTimeout(float64(opts.PageLoadTimeout.Milliseconds()))
	}
	return s, nil
}

type playwrightSession struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	page     playwright.Page
	pageLoad time.Duration
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	opts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}
	if s.pageLoad > 0 {
		opts.Timeout = playwright.Float(float64(s.pageLoad.Milliseconds()))
	}
	if _, err := s.page.Goto(url, opts); err != nil {
		if strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
			err = fmt.Errorf("redirect loop: %w", err)
		}
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

func (s *playwrightSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return &TimeoutError{Selector: selector, Timeout: timeout, Err: err}
	}
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return &TimeoutError{Selector: selector, Timeout: timeout, Err: err}
	}
	return fmt.Errorf("waiting for %q: %w", selector, err)
}

func (s *playwrightSession) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title, err := s.page.Title()
	if err != nil {
		return "", fmt.Errorf("could not read page title: %w", err)
	}
	return title, nil
}

func (s *playwrightSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("could not capture screenshot: %w", err)
	}
	return data, nil
}

// Close releases page, context, browser and driver in that order.
func (s *playwrightSession) Close() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close())
	}
	if s.context != nil {
		errs = append(errs, s.context.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	if s.pw != nil {
		errs = append(errs, s.pw.Stop())
	}
	return errors.Join(errs...)
}
