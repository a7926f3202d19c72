package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/l10ncheck/internal/browser"
	"github.com/gotrs-io/l10ncheck/internal/browser/browsertest"
	"github.com/gotrs-io/l10ncheck/internal/config"
	"github.com/gotrs-io/l10ncheck/internal/history"
	"github.com/gotrs-io/l10ncheck/internal/locale"
	"github.com/gotrs-io/l10ncheck/internal/report"
)

var liveTitles = map[string]string{
	"en": "Wikipedia, the free encyclopedia",
	"fr": "Wikipédia, l'encyclopédie libre",
	"es": "Wikipedia, la enciclopedia libre",
	"hi": "विकिपीडिया, एक मुक्त ज्ञानकोष",
}

// useFakeBrowser serves the stock locales from memory, with titles
// overriding liveTitles per locale.
func useFakeBrowser(t *testing.T, titles map[string]string) *browsertest.Browser {
	t.Helper()
	pages := map[string]browsertest.Page{}
	for _, c := range locale.Defaults() {
		title := liveTitles[c.Locale]
		if override, ok := titles[c.Locale]; ok {
			title = override
		}
		pages[c.URL] = browsertest.Page{Title: title}
	}
	b := browsertest.New(pages)

	prev := newOpener
	newOpener = func(engine string) (browser.Opener, error) { return b, nil }
	t.Cleanup(func() { newOpener = prev })
	return b
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Screenshots.Dir = filepath.Join(t.TempDir(), "screenshots")
	return cfg
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestExecuteRunPasses(t *testing.T) {
	b := useFakeBrowser(t, nil)
	cfg := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, executeRun(context.Background(), cfg, discardLogger(), &out))

	assert.Contains(t, out.String(), "✅ EN")
	assert.Contains(t, out.String(), "Result: PASSED")
	assert.Equal(t, 1, b.Opens())
	assert.Equal(t, 1, b.Closes())
	for _, loc := range []string{"en", "fr", "es", "hi"} {
		assert.FileExists(t, filepath.Join(cfg.Screenshots.Dir, "Wikipedia-"+loc+"-homepage.png"))
	}
}

func TestExecuteRunFailsOnMismatch(t *testing.T) {
	useFakeBrowser(t, map[string]string{"fr": "Wikipedia"})
	cfg := testConfig(t)

	var out bytes.Buffer
	err := executeRun(context.Background(), cfg, discardLogger(), &out)
	require.Error(t, err)
	assert.Equal(t, "1 of 4 locales failed", err.Error())
	assert.Contains(t, out.String(), "❌ FR")
	assert.Contains(t, out.String(), "Result: FAILED")
	assert.FileExists(t, filepath.Join(cfg.Screenshots.Dir, "Wikipedia-fr-error-homepage.png"))
}

func TestExecuteRunSessionFailure(t *testing.T) {
	b := useFakeBrowser(t, nil)
	b.OpenErr = errors.New("chromium not installed")
	cfg := testConfig(t)

	var out bytes.Buffer
	err := executeRun(context.Background(), cfg, discardLogger(), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrSessionAcquisition)
	assert.Empty(t, out.String())
}

func TestExecuteRunNoScreenshots(t *testing.T) {
	b := useFakeBrowser(t, nil)
	cfg := testConfig(t)
	cfg.Screenshots.Enabled = false

	require.NoError(t, executeRun(context.Background(), cfg, discardLogger(), io.Discard))
	assert.Empty(t, b.Captures())
	assert.NoDirExists(t, cfg.Screenshots.Dir)
}

func TestExecuteRunWritesReportAndHistory(t *testing.T) {
	useFakeBrowser(t, nil)
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Only = []string{"en", "hi"}
	cfg.Report.Path = filepath.Join(dir, "out", "report.json")
	cfg.Report.Format = "json"
	cfg.History.Enabled = true
	cfg.History.DSN = filepath.Join(dir, "history.db")

	var out bytes.Buffer
	require.NoError(t, executeRun(context.Background(), cfg, discardLogger(), &out))
	assert.Contains(t, out.String(), "Result: PASSED", "stdout keeps the text summary")

	data, err := os.ReadFile(cfg.Report.Path)
	require.NoError(t, err)
	var rep struct {
		RunID   string `json:"run_id"`
		Results []struct {
			Locale string `json:"locale"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	require.Len(t, rep.Results, 2)
	assert.Equal(t, "hi", rep.Results[1].Locale)

	store, err := history.Open(context.Background(), cfg.History.DSN)
	require.NoError(t, err)
	defer store.Close()
	latest, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, latest.RunID)
}

func TestExecuteRunStructuredStdout(t *testing.T) {
	useFakeBrowser(t, nil)
	cfg := testConfig(t)
	cfg.Report.Format = "yaml"

	var out bytes.Buffer
	require.NoError(t, executeRun(context.Background(), cfg, discardLogger(), &out))
	assert.Contains(t, out.String(), "run_id:")

	cfg.Report.Format = "xlsx"
	err := executeRun(context.Background(), cfg, discardLogger(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--report")
}

func TestApplyRunFlags(t *testing.T) {
	dir := t.TempDir()
	localesFile := filepath.Join(dir, "locales.yaml")
	require.NoError(t, os.WriteFile(localesFile, []byte(`locales:
  - locale: de
    url: https://de.wikipedia.org/wiki/Wikipedia:Hauptseite
    expected_title: Wikipedia
`), 0o644))

	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--engine", "chromedp",
		"--headless=false",
		"--locales", localesFile,
		"--screenshots", filepath.Join(dir, "shots"),
		"--report", filepath.Join(dir, "report.xlsx"),
	}))

	cfg := testConfig(t)
	require.NoError(t, applyRunFlags(cmd, cfg))
	assert.Equal(t, "chromedp", cfg.Browser.Engine)
	assert.False(t, cfg.Browser.Headless)
	require.Len(t, cfg.Locales, 1)
	assert.Equal(t, "de", cfg.Locales[0].Locale)
	assert.Equal(t, filepath.Join(dir, "shots"), cfg.Screenshots.Dir)
	assert.Equal(t, "xlsx", cfg.Report.Format, "format follows the report extension")
	assert.True(t, cfg.Screenshots.Enabled)

	t.Run("untouched flags keep config", func(t *testing.T) {
		cmd := &cobra.Command{Use: "run"}
		addRunFlags(cmd)
		require.NoError(t, cmd.ParseFlags([]string{"--only", "en,fr", "--no-screenshots"}))

		cfg := testConfig(t)
		cfg.Browser.Engine = "chromedp"
		require.NoError(t, applyRunFlags(cmd, cfg))
		assert.Equal(t, "chromedp", cfg.Browser.Engine)
		assert.Equal(t, []string{"en", "fr"}, cfg.Only)
		assert.False(t, cfg.Screenshots.Enabled)
		assert.Equal(t, "text", cfg.Report.Format)
	})

	t.Run("missing locales file", func(t *testing.T) {
		cmd := &cobra.Command{Use: "run"}
		addRunFlags(cmd)
		require.NoError(t, cmd.ParseFlags([]string{"--locales", filepath.Join(dir, "nope.yaml")}))
		assert.Error(t, applyRunFlags(cmd, testConfig(t)))
	})
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "l10ncheck dev (unknown)")
}

func TestLocalesCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"locales"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "LOCALE")
	assert.Contains(t, out.String(), "French")
	assert.Contains(t, out.String(), "https://hi.wikipedia.org/")
}

func TestRunCommandEndToEnd(t *testing.T) {
	useFakeBrowser(t, map[string]string{"es": "Portada"})
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "l10ncheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("screenshots:\n  dir: "+filepath.Join(dir, "shots")+"\nlogging:\n  output: "+filepath.Join(dir, "run.log")+"\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"run", "--config", cfgPath, "--only", "en,es"})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetErr(nil); rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Equal(t, "1 of 2 locales failed", err.Error())
	assert.Contains(t, out.String(), "❌ ES")
	assert.FileExists(t, filepath.Join(dir, "shots", "Wikipedia-es-error-homepage.png"))
	logged, err := os.ReadFile(filepath.Join(dir, "run.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logged), "Visiting locale: ES")
	assert.Contains(t, string(logged), "Test failed for es")
}

func TestErrorLoggerFollowsProgressOutput(t *testing.T) {
	stdout := log.New(os.Stdout, "[L10N] ", log.LstdFlags)
	errs := errorLogger(stdout)
	assert.Equal(t, os.Stderr, errs.Writer())
	assert.Equal(t, "[L10N] ", errs.Prefix())
	assert.Equal(t, log.LstdFlags, errs.Flags())

	var buf bytes.Buffer
	toFile := log.New(&buf, "[L10N] ", 0)
	assert.Same(t, toFile, errorLogger(toFile))
}

func TestHistoryCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(context.Background(), dsn)
	require.NoError(t, err)

	rep := report.New("playwright")
	rep.Add(report.Result{Locale: "fr", Passed: true, ActualTitle: "Wikipédia, l'encyclopédie libre", CheckedAt: time.Now().UTC().Add(-2 * time.Hour)})
	rep.Add(report.Result{Locale: "fr", Kind: report.KindTimeout, Error: "timed out waiting for body", CheckedAt: time.Now().UTC()})
	rep.Finish()
	require.NoError(t, store.Record(context.Background(), rep))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", "fr", "--dsn", dsn, "--config="})
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "❌ timeout")
	assert.Contains(t, lines[1], "timed out waiting for body")
	assert.Contains(t, lines[2], "✅ passed")
	assert.Contains(t, lines[2], "ago")
}

func TestHistoryCommandKeepsLocaleCase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(context.Background(), dsn)
	require.NoError(t, err)

	rep := report.New("playwright")
	rep.Add(report.Result{Locale: "pt-BR", Passed: true, ActualTitle: "Wikipédia, a enciclopédia livre", CheckedAt: time.Now().UTC()})
	rep.Finish()
	require.NoError(t, store.Record(context.Background(), rep))
	require.NoError(t, store.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"history", "pt-BR", "--dsn", dsn, "--config="})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "✅ passed")
	assert.Contains(t, out.String(), "Wikipédia, a enciclopédia livre")

	out.Reset()
	rootCmd.SetArgs([]string{"history", "pt-br", "--dsn", dsn, "--config="})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "No results recorded for pt-br\n", out.String())
}
