//go:build playwright

package e2e

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/l10ncheck/internal/browser"
	"github.com/gotrs-io/l10ncheck/internal/checker"
	"github.com/gotrs-io/l10ncheck/internal/locale"
	"github.com/gotrs-io/l10ncheck/internal/screenshot"
)

// TestWikipediaHomepages validates the stock locale table against the live
// Wikipedia sites. Set SKIP_BROWSER=true to skip, L10NCHECK_ENGINES=all to
// also try chromedp.
func TestWikipediaHomepages(t *testing.T) {
	if os.Getenv("SKIP_BROWSER") == "true" {
		t.Skip("Browser tests disabled via SKIP_BROWSER")
	}

	engines := []string{browser.EnginePlaywright}
	if os.Getenv("L10NCHECK_ENGINES") == "all" {
		engines = append(engines, browser.EngineChromedp)
	}

	for _, engine := range engines {
		t.Run(engine, func(t *testing.T) {
			opener, err := browser.NewOpener(engine)
			require.NoError(t, err)

			dir := filepath.Join(t.TempDir(), "screenshots")
			opts := browser.DefaultOptions()
			opts.Headless = os.Getenv("HEADLESS") != "false"

			r := checker.New(opener, locale.Defaults(),
				checker.WithEngine(engine),
				checker.WithBrowserOptions(opts),
				checker.WithScreenshots(screenshot.NewStore(dir, "")),
			)

			budget := checker.RunBudget(len(locale.Defaults()), opts.PageLoadTimeout, checker.DefaultWaitTimeout)
			ctx, cancel := context.WithTimeout(context.Background(), budget)
			defer cancel()

			rep, err := r.Run(ctx)
			if errors.Is(err, browser.ErrSessionAcquisition) && engine == browser.EngineChromedp {
				t.Skipf("No Chrome available for chromedp: %v", err)
			}
			require.NoError(t, err, "Failed to setup browser")
			assert.Equal(t, checker.StateSessionClosed, r.State())

			for _, res := range rep.Results {
				assert.True(t, res.Passed, "%s: %s", res.Locale, res.Error)
				assert.FileExists(t, filepath.Join(dir, "Wikipedia-"+res.Locale+"-homepage.png"))
			}
			assert.True(t, rep.Passed())
		})
	}
}

// TestWikipediaMismatchIsReported checks a deliberately wrong expectation
// fails with an error screenshot and does not stop the following locale.
func TestWikipediaMismatchIsReported(t *testing.T) {
	if os.Getenv("SKIP_BROWSER") == "true" {
		t.Skip("Browser tests disabled via SKIP_BROWSER")
	}

	cases := []locale.Case{
		{Locale: "fr", URL: "https://fr.wikipedia.org/wiki/Wikip%C3%A9dia:Accueil_principal", ExpectedTitle: "Wikipedia, the free encyclopedia"},
		{Locale: "en", URL: "https://en.wikipedia.org/wiki/Main_Page", ExpectedTitle: "Wikipedia"},
	}
	dir := filepath.Join(t.TempDir(), "screenshots")
	opener, err := browser.NewOpener(browser.EnginePlaywright)
	require.NoError(t, err)
	r := checker.New(opener, cases, checker.WithScreenshots(screenshot.NewStore(dir, "")))

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)

	assert.False(t, rep.Results[0].Passed)
	assert.Contains(t, rep.Results[0].Error, "fr")
	assert.FileExists(t, filepath.Join(dir, "Wikipedia-fr-error-homepage.png"))
	assert.True(t, rep.Results[1].Passed)
}
