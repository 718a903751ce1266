// Package i18n serves the front-end translation table and the persisted
// language preference.
package i18n

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"pf-studio/internal/store"
)

//go:embed locales.yaml
var localesYAML []byte

// Default is the language used when nothing else matches. Its table is
// also the fallback for missing keys.
const Default = "en"

// Supported lists the language codes in display order.
var Supported = []string{"en", "bm", "zh"}

// ErrUnsupportedLanguage is returned when setting a language without a table.
var ErrUnsupportedLanguage = errors.New("language not supported")

var labels = map[string]string{
	"en": "EN",
	"bm": "BM",
	"zh": "Chinese",
}

// matchTags line up with Supported; "bm" is Bahasa Melayu, tagged ms.
var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Malay,
	language.Chinese,
})

// IsSupported reports whether lang has a translation table.
func IsSupported(lang string) bool {
	_, ok := labels[lang]
	return ok
}

// Label is the short name shown in the language switcher.
func Label(lang string) string {
	if l, ok := labels[lang]; ok {
		return l
	}
	return labels[Default]
}

// Match picks a supported language from preference strings, each either a
// language code or an Accept-Language header value.
func Match(prefs ...string) string {
	var tags []language.Tag
	for _, p := range prefs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if code := strings.ToLower(p); IsSupported(code) {
			return code
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	return Supported[idx]
}

// Catalog holds the translation tables.
type Catalog struct {
	tables map[string]map[string]string
}

// Load parses the embedded translation tables.
func Load() (*Catalog, error) {
	return Parse(localesYAML)
}

// Parse reads translation tables from a YAML document keyed by language.
func Parse(data []byte) (*Catalog, error) {
	var tables map[string]map[string]string
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("i18n: parse locales: %w", err)
	}
	if len(tables[Default]) == 0 {
		return nil, fmt.Errorf("i18n: missing %q table", Default)
	}
	for lang := range tables {
		if !IsSupported(lang) {
			return nil, fmt.Errorf("i18n: %w: %q", ErrUnsupportedLanguage, lang)
		}
	}
	return &Catalog{tables: tables}, nil
}

// Lookup returns the text for key in lang, falling back to the default
// language and then to the key itself.
func (c *Catalog) Lookup(lang, key string) string {
	if v := c.tables[lang][key]; v != "" {
		return v
	}
	if v := c.tables[Default][key]; v != "" {
		return v
	}
	return key
}

// Table returns every key for lang with default-language fallbacks filled in.
func (c *Catalog) Table(lang string) (map[string]string, error) {
	if !IsSupported(lang) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	out := maps.Clone(c.tables[Default])
	for k, v := range c.tables[lang] {
		if v != "" {
			out[k] = v
		}
	}
	return out, nil
}

// Preference is the persisted language choice.
type Preference struct {
	state store.Store
}

// NewPreference creates a Preference stored in st.
func NewPreference(st store.Store) *Preference {
	return &Preference{state: st}
}

// Get returns the saved language, or Default when none is saved or the
// saved value is not supported.
func (p *Preference) Get(ctx context.Context) (string, error) {
	v, ok, err := p.state.Get(ctx, store.KeyLanguage)
	if err != nil {
		return "", fmt.Errorf("read language: %w", err)
	}
	if !ok || !IsSupported(v) {
		return Default, nil
	}
	return v, nil
}

// Set saves lang. Unsupported languages are rejected and leave the saved
// value untouched.
func (p *Preference) Set(ctx context.Context, lang string) error {
	if !IsSupported(lang) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	if err := p.state.Set(ctx, store.KeyLanguage, lang); err != nil {
		return fmt.Errorf("save language: %w", err)
	}
	return nil
}
