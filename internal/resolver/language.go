package resolver

import "context"

// DefaultLanguage labels display names rendered from stored records when the
// request carries no language
const DefaultLanguage = "en"

type languageKey struct{}

// WithLanguage attaches the caller's preferred language to ctx
func WithLanguage(ctx context.Context, lang string) context.Context {
	if lang == "" {
		return ctx
	}
	return context.WithValue(ctx, languageKey{}, lang)
}

// LanguageFromContext returns the language set by WithLanguage or DefaultLanguage
func LanguageFromContext(ctx context.Context) string {
	if lang, ok := ctx.Value(languageKey{}).(string); ok && lang != "" {
		return lang
	}
	return DefaultLanguage
}
