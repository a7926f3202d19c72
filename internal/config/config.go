package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/gotrs-io/l10ncheck/internal/browser"
	"github.com/gotrs-io/l10ncheck/internal/checker"
	"github.com/gotrs-io/l10ncheck/internal/locale"
)

var (
	cfg *Config
	mu  sync.RWMutex
)

// EnvPrefix prefixes environment overrides, e.g. L10NCHECK_BROWSER_ENGINE.
const EnvPrefix = "L10NCHECK"

// Config represents the application configuration
type Config struct {
	Browser     BrowserConfig     `mapstructure:"browser"`
	Screenshots ScreenshotsConfig `mapstructure:"screenshots"`
	LocalesFile string            `mapstructure:"locales_file"`
	Locales     []locale.Case     `mapstructure:"locales"`
	Only        []string          `mapstructure:"only"`
	Report      ReportConfig      `mapstructure:"report"`
	History     HistoryConfig     `mapstructure:"history"`
	Watch       WatchConfig       `mapstructure:"watch"`
	Publish     PublishConfig     `mapstructure:"publish"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type BrowserConfig struct {
	Engine          string        `mapstructure:"engine"`
	Headless        bool          `mapstructure:"headless"`
	Maximize        bool          `mapstructure:"maximize"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	WaitSelector    string        `mapstructure:"wait_selector"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout"`
	SlowMo          time.Duration `mapstructure:"slow_mo"`
	RemoteURL       string        `mapstructure:"remote_url"`
	SkipInstall     bool          `mapstructure:"skip_install"`
	Viewport        browser.Size  `mapstructure:"viewport"`
}

type ScreenshotsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
	Pattern string `mapstructure:"pattern"`
}

type ReportConfig struct {
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type WatchConfig struct {
	Schedule   string        `mapstructure:"schedule"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Listen     string        `mapstructure:"listen"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// PublishConfig pushes every watch-mode report to Redis when RedisURL is set.
type PublishConfig struct {
	RedisURL  string        `mapstructure:"redis_url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type LoggingConfig struct {
	// Output is "stdout", "stderr" or a file path.
	Output string `mapstructure:"output"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("browser.engine", browser.EnginePlaywright)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.maximize", true)
	v.SetDefault("browser.page_load_timeout", 60*time.Second)
	v.SetDefault("browser.wait_selector", "body")
	v.SetDefault("browser.wait_timeout", 15*time.Second)
	v.SetDefault("browser.slow_mo", time.Duration(0))
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.skip_install", false)
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)

	v.SetDefault("screenshots.enabled", true)
	v.SetDefault("screenshots.dir", "screenshots")
	v.SetDefault("screenshots.pattern", "Wikipedia-%s-homepage.png")

	v.SetDefault("locales_file", "")
	v.SetDefault("only", []string{})

	v.SetDefault("report.format", "text")
	v.SetDefault("report.path", "")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", "l10ncheck.db")

	v.SetDefault("watch.schedule", "0 */15 * * * *")
	v.SetDefault("watch.timeout", 0)
	v.SetDefault("watch.listen", ":9464")
	v.SetDefault("watch.run_on_start", true)

	v.SetDefault("publish.redis_url", "")
	v.SetDefault("publish.key_prefix", "l10ncheck:")
	v.SetDefault("publish.ttl", 7*24*time.Hour)

	v.SetDefault("logging.output", "stdout")
}

// newViper prepares a viper instance. With an empty configFile it looks for
// l10ncheck.yaml in . and ./config, which may be absent.
func newViper(configFile string) (*viper.Viper, error) {
	loadOnce.Do(loadDotEnv)

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("l10ncheck")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
		if err := v.ReadInConfig(); err != nil {
			// It's OK if l10ncheck.yaml doesn't exist
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if c.LocalesFile != "" || len(c.Locales) == 0 {
		if err := c.ReloadLocales(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ReloadLocales replaces Locales with the contents of LocalesFile, or with
// the stock table when no file is set.
func (c *Config) ReloadLocales() error {
	if c.LocalesFile == "" {
		c.Locales = locale.Defaults()
		return nil
	}
	cases, err := locale.LoadFile(c.LocalesFile)
	if err != nil {
		return err
	}
	c.Locales = cases
	return nil
}

// Load reads configuration from configFile (optional), the environment and
// defaults, and makes it the current configuration.
func Load(configFile string) (*Config, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	c, err := decode(v)
	if err != nil {
		return nil, err
	}
	set(c)
	return c, nil
}

// Watch loads configFile and reloads it on every change. onChange receives
// each successfully reloaded configuration; a reload that fails to decode
// or validate keeps the previous one.
func Watch(configFile string, onChange func(*Config)) (*Config, error) {
	v, err := newViper(configFile)
	if err != nil {
		return nil, err
	}
	c, err := decode(v)
	if err != nil {
		return nil, err
	}
	set(c)

	if v.ConfigFileUsed() == "" {
		return c, nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Printf("Config file changed: %s\n", e.Name)

		// Create new config instance
		newCfg, err := decode(v)
		if err == nil {
			err = NewValidator(newCfg).Validate()
		}
		if err != nil {
			fmt.Printf("Failed to reload config: %v\n", err)
			return
		}

		// Atomic swap
		set(newCfg)
		fmt.Println("Configuration reloaded successfully")
		if onChange != nil {
			onChange(newCfg)
		}
	})
	v.WatchConfig()
	return c, nil
}

func set(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
}

// Get returns the current configuration (thread-safe)
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Cases returns the configured locale cases narrowed by Only.
func (c *Config) Cases() []locale.Case {
	return locale.Filter(c.Locales, c.Only)
}

// RunTimeout bounds one watch-mode run. When watch.timeout is unset it is
// the worst case of the selected cases under the browser timeouts.
func (c *Config) RunTimeout() time.Duration {
	if c.Watch.Timeout > 0 {
		return c.Watch.Timeout
	}
	return checker.RunBudget(len(c.Cases()), c.Browser.PageLoadTimeout, c.Browser.WaitTimeout)
}

// Options converts the browser section into session options.
func (b BrowserConfig) Options() browser.Options {
	return browser.Options{
		PageLoadTimeout: b.PageLoadTimeout,
		Maximize:        b.Maximize,
		Headless:        b.Headless,
		Viewport:        b.Viewport,
		SlowMo:          b.SlowMo,
		RemoteURL:       b.RemoteURL,
		SkipInstall:     b.SkipInstall,
	}
}

// Open returns the log destination and a func that releases it.
func (l LoggingConfig) Open() (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(l.Output) {
	case "", "stdout":
		return os.Stdout, noop, nil
	case "stderr":
		return os.Stderr, noop, nil
	}
	f, err := os.OpenFile(l.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f.Close, nil
}
