package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/gotrs-io/l10ncheck/internal/browser"
	"github.com/gotrs-io/l10ncheck/internal/checker"
	"github.com/gotrs-io/l10ncheck/internal/locale"
	"github.com/gotrs-io/l10ncheck/internal/report"
)

// Validator checks a Config before it is used for a run.
type Validator struct {
	config   *Config
	errors   []string
	warnings []string
}

func NewValidator(cfg *Config) *Validator {
	return &Validator{
		config:   cfg,
		errors:   []string{},
		warnings: []string{},
	}
}

func (v *Validator) Validate() error {
	v.validateBrowser()
	v.validateLocales()
	v.validateReport()
	v.validateWatch()
	v.validateHistory()
	v.validatePublish()

	if len(v.errors) > 0 {
		return fmt.Errorf("config validation failed:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

// Warnings returns non-fatal findings of the last Validate call.
func (v *Validator) Warnings() []string {
	return v.warnings
}

func (v *Validator) validateBrowser() {
	b := v.config.Browser
	if _, err := browser.NewOpener(b.Engine); err != nil {
		v.errors = append(v.errors, "❌ browser.engine: "+err.Error())
	}
	if b.PageLoadTimeout <= 0 {
		v.errors = append(v.errors, "❌ browser.page_load_timeout must be positive")
	}
	if b.WaitTimeout <= 0 {
		v.errors = append(v.errors, "❌ browser.wait_timeout must be positive")
	}
	if strings.TrimSpace(b.WaitSelector) == "" {
		v.errors = append(v.errors, "❌ browser.wait_selector is empty")
	}
	if b.WaitTimeout > b.PageLoadTimeout && b.PageLoadTimeout > 0 {
		v.warnings = append(v.warnings, "⚠️  browser.wait_timeout exceeds browser.page_load_timeout")
	}
	if !b.Headless && b.RemoteURL == "" && os.Getenv("CI") != "" {
		v.warnings = append(v.warnings, "⚠️  headed browser requested on CI")
	}
}

func (v *Validator) validateLocales() {
	if err := locale.ValidateAll(v.config.Locales); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			v.errors = append(v.errors, "❌ locales: "+line)
		}
	}
	if len(v.config.Cases()) == 0 {
		v.errors = append(v.errors, fmt.Sprintf("❌ no locales selected (only=%v)", v.config.Only))
	}
	for _, o := range locale.Unmatched(v.config.Locales, v.config.Only) {
		v.warnings = append(v.warnings, fmt.Sprintf("⚠️  only: locale %q matches no configured locale", o))
	}
}

func (v *Validator) validateReport() {
	if _, err := report.ParseFormat(v.config.Report.Format); err != nil {
		v.errors = append(v.errors, "❌ report.format: "+err.Error())
	}
}

func (v *Validator) validateWatch() {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(v.config.Watch.Schedule); err != nil {
		v.errors = append(v.errors, fmt.Sprintf("❌ watch.schedule %q: %v", v.config.Watch.Schedule, err))
	}
	if v.config.Watch.Timeout < 0 {
		v.errors = append(v.errors, "❌ watch.timeout must not be negative")
	}
	if v.config.Watch.Timeout > 0 {
		budget := checker.RunBudget(len(v.config.Cases()), v.config.Browser.PageLoadTimeout, v.config.Browser.WaitTimeout)
		if v.config.Watch.Timeout < budget {
			v.warnings = append(v.warnings, fmt.Sprintf("⚠️  watch.timeout %v is shorter than a worst-case run (%v); late cases may be cancelled", v.config.Watch.Timeout, budget))
		}
	}
}

func (v *Validator) validateHistory() {
	if v.config.History.Enabled && v.config.History.DSN == "" {
		v.errors = append(v.errors, "❌ history.dsn is required when history is enabled")
	}
}

func (v *Validator) validatePublish() {
	p := v.config.Publish
	if p.RedisURL == "" {
		return
	}
	if !strings.HasPrefix(p.RedisURL, "redis://") && !strings.HasPrefix(p.RedisURL, "rediss://") && !strings.HasPrefix(p.RedisURL, "unix://") {
		v.errors = append(v.errors, "❌ publish.redis_url must start with redis://, rediss:// or unix://")
	}
	if p.TTL < 0 {
		v.errors = append(v.errors, "❌ publish.ttl must not be negative")
	}
}
