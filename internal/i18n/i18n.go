package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Supported lists the languages shipped in locales/, default first
var Supported = []language.Tag{language.Spanish, language.English}

type ctxKey struct{}

// Catalog holds the translation bundle
type Catalog struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
	matcher     language.Matcher
}

// New loads every embedded locale file with defaultLang as the fallback language
func New(defaultLang string) (*Catalog, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
	}

	return &Catalog{
		bundle:      bundle,
		defaultLang: tag,
		matcher:     language.NewMatcher(withDefaultFirst(tag)),
	}, nil
}

// withDefaultFirst orders Supported so the matcher falls back to def
func withDefaultFirst(def language.Tag) []language.Tag {
	tags := []language.Tag{def}
	for _, t := range Supported {
		if t != def {
			tags = append(tags, t)
		}
	}
	return tags
}

// Match picks the best supported language for an Accept-Language header value
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return c.defaultLang
	}
	tag, _ := language.MatchStrings(c.matcher, acceptLanguage, c.defaultLang.String())
	base, _ := tag.Base()
	return language.Make(base.String())
}

// Localizer returns a localizer for the given language tags
func (c *Catalog) Localizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(c.bundle, append(langs, c.defaultLang.String())...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

// Default returns a context carrying the catalog's default language
func (c *Catalog) Default(ctx context.Context) context.Context {
	return WithLocalizer(ctx, c.Localizer())
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	if loc, ok := ctx.Value(ctxKey{}).(*i18n.Localizer); ok {
		return loc
	}
	return nil
}

// T translates a message by ID. Unknown IDs and contexts without a localizer
// return the ID itself.
func T(ctx context.Context, msgID string) string {
	return Td(ctx, msgID, nil)
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	loc := localizerFromCtx(ctx)
	if loc == nil {
		return msgID
	}
	s, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}
