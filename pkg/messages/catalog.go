package messages

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Message keys used by the session subsystem.
const (
	LoginMissingInputTitle         = "login.missing_input.title"
	LoginMissingInputMessage       = "login.missing_input.message"
	LoginMissingCredentialsTitle   = "login.missing_credentials.title"
	LoginMissingCredentialsMessage = "login.missing_credentials.message"
	LoginFailedTitle               = "login.failed.title"
	LoginFailedMessage             = "login.failed.message"
)

// DefaultLanguage is the language of the original client.
const DefaultLanguage = "ar"

var (
	ErrFailedToParse      = errors.New("messages: failed to parse catalog")
	ErrDefaultMissing     = errors.New("messages: default language missing from catalog")
	ErrLanguageNotInTable = errors.New("messages: no supported language")
)

//go:embed messages.yaml
var builtin []byte

// Catalog resolves message keys for one language, falling back to the
// default language and finally to the key itself.
type Catalog struct {
	lang     string
	primary  map[string]string
	fallback map[string]string
}

// New builds a catalog from the embedded translations for the language that
// best matches lang (a BCP 47 tag such as "ar-SY" or "en-US").
func New(lang string) (*Catalog, error) {
	return Parse(builtin, lang)
}

// MustNew is New for static language tags.
func MustNew(lang string) *Catalog {
	c, err := New(lang)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML shaped as {lang: {nested keys: text}}.
func Parse(data []byte, lang string) (*Catalog, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Join(ErrFailedToParse, err)
	}

	tables := make(map[string]map[string]string, len(raw))
	for code, tree := range raw {
		flat := make(map[string]string)
		flatten("", tree, flat)
		tables[code] = flat
	}

	fallback, ok := tables[DefaultLanguage]
	if !ok {
		return nil, ErrDefaultMissing
	}

	chosen, err := match(lang, tables)
	if err != nil {
		return nil, err
	}

	return &Catalog{
		lang:     chosen,
		primary:  tables[chosen],
		fallback: fallback,
	}, nil
}

// Language reports the resolved language code.
func (c *Catalog) Language() string {
	return c.lang
}

// T returns the text for key.
func (c *Catalog) T(key string) string {
	if c == nil {
		return key
	}
	if v, ok := c.primary[key]; ok {
		return v
	}
	if v, ok := c.fallback[key]; ok {
		return v
	}
	return key
}

func match(lang string, tables map[string]map[string]string) (string, error) {
	// Default language first so it wins ties and empty input.
	codes := []string{DefaultLanguage}
	for code := range tables {
		if code != DefaultLanguage {
			codes = append(codes, code)
		}
	}

	tags := make([]language.Tag, 0, len(codes))
	for _, code := range codes {
		tag, err := language.Parse(code)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrLanguageNotInTable, code)
		}
		tags = append(tags, tag)
	}

	requested, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return DefaultLanguage, nil
	}

	_, idx, _ := language.NewMatcher(tags).Match(requested)
	return codes[idx], nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
