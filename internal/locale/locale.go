// Package locale holds the localized homepage fixtures the checker validates.
package locale

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"
)

// Case describes one language edition to validate.
type Case struct {
	Locale        string `json:"locale" yaml:"locale" mapstructure:"locale"`
	URL           string `json:"url" yaml:"url" mapstructure:"url"`
	ExpectedTitle string `json:"expected_title" yaml:"expected_title" mapstructure:"expected_title"`
}

// fixtures is the stock Wikipedia table. Rows are kept verbatim.
var fixtures = []Case{
	{Locale: "en", URL: "https://en.wikipedia.org/wiki/Main_Page", ExpectedTitle: "Wikipedia"},
	{Locale: "fr", URL: "https://fr.wikipedia.org/wiki/Wikip%C3%A9dia:Accueil_principal", ExpectedTitle: "Wikipédia"},
	{Locale: "es", URL: "https://es.wikipedia.org/wiki/Wikipedia:Portada", ExpectedTitle: "Wikipedia"},
	{Locale: "hi", URL: "https://hi.wikipedia.org/wiki/मुखपृष्ठ", ExpectedTitle: "विकिपीडिया"},
}

// Defaults returns a fresh copy of the Wikipedia fixture table.
func Defaults() []Case {
	out := make([]Case, len(fixtures))
	copy(out, fixtures)
	return out
}

// Validate checks that the case can be driven by a browser.
func (c Case) Validate() error {
	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url for locale %s: %w", c.Locale, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url for locale %s must be an absolute http(s) url: %q", c.Locale, c.URL)
	}
	if c.ExpectedTitle == "" {
		return fmt.Errorf("expected title for locale %s is empty", c.Locale)
	}
	return nil
}

// Tag returns the BCP 47 tag of the case, or language.Und if it does not parse.
func (c Case) Tag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// Label is the upper-cased locale code used in progress lines ("FR").
func (c Case) Label() string {
	return cases.Upper(language.Und).String(c.Locale)
}

// DisplayName returns the English name of the locale, e.g. "French".
func (c Case) DisplayName() string {
	tag := c.Tag()
	if tag == language.Und {
		return c.Locale
	}
	if name := display.Languages(language.English).Name(tag); name != "" {
		return name
	}
	return c.Locale
}

// ValidateAll validates every case and rejects duplicate locales.
func ValidateAll(list []Case) error {
	var errs []error
	seen := make(map[string]struct{}, len(list))
	for _, c := range list {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[c.Locale]; dup {
			errs = append(errs, fmt.Errorf("duplicate locale %s", c.Locale))
			continue
		}
		seen[c.Locale] = struct{}{}
	}
	return errors.Join(errs...)
}

// Filter keeps the cases whose locale is listed in only, preserving table
// order. An empty only returns the list unchanged.
func Filter(list []Case, only []string) []Case {
	if len(only) == 0 {
		return list
	}
	want := make(map[string]struct{}, len(only))
	for _, o := range only {
		o = strings.TrimSpace(o)
		if o != "" {
			want[o] = struct{}{}
		}
	}
	out := make([]Case, 0, len(want))
	for _, c := range list {
		if _, ok := want[c.Locale]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Unmatched returns the entries of only that select no case in list, in the
// order given.
func Unmatched(list []Case, only []string) []string {
	have := make(map[string]struct{}, len(list))
	for _, c := range list {
		have[c.Locale] = struct{}{}
	}
	var out []string
	for _, o := range only {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, ok := have[o]; !ok {
			out = append(out, o)
		}
	}
	return out
}

type fixtureFile struct {
	Locales []Case `yaml:"locales"`
}

// Parse decodes a fixture document of the form
//
//	locales:
//	  - locale: en
//	    url: https://en.wikipedia.org/wiki/Main_Page
//	    expected_title: Wikipedia
func Parse(data []byte) ([]Case, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse locale fixtures: %w", err)
	}
	if len(f.Locales) == 0 {
		return nil, errors.New("locale fixtures contain no locales")
	}
	if err := ValidateAll(f.Locales); err != nil {
		return nil, err
	}
	return f.Locales, nil
}

// LoadFile reads fixtures from a YAML file.
func LoadFile(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale fixtures: %w", err)
	}
	return Parse(data)
}
