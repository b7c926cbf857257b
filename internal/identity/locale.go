package identity

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// Supported locales. Anything else collapses to FallbackLocale.
const (
	LocaleHebrew   = "he"
	LocaleEnglish  = "en"
	FallbackLocale = LocaleEnglish
)

// detectConfidence is the minimum detector confidence for a Latin-script
// guess to win over the fallback.
const detectConfidence = 0.85

var localeAliases = map[string]string{
	"iw":      LocaleHebrew,
	"hebrew":  LocaleHebrew,
	"עברית":   LocaleHebrew,
	"english": LocaleEnglish,
}

// NormalizeLocale maps any locale-ish string ("HE", "he_IL", "en-US",
// "Hebrew") onto a supported locale code. It never fails.
func NormalizeLocale(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FallbackLocale
	}
	if loc, ok := localeAliases[s]; ok {
		return loc
	}

	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return FallbackLocale
	}
	base, _ := tag.Base()
	switch b := base.String(); b {
	case LocaleHebrew, LocaleEnglish:
		return b
	case "iw":
		return LocaleHebrew
	}
	return FallbackLocale
}

// DetectLocale guesses the locale of free text, typically the first message
// a user sends. Hebrew script wins outright; English needs a confident
// detection; everything else falls back.
func DetectLocale(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return FallbackLocale
	}

	if whatlanggo.DetectScript(sample) == unicode.Hebrew {
		return LocaleHebrew
	}

	return detectedLocale(whatlanggo.Detect(sample))
}

func detectedLocale(info whatlanggo.Info) string {
	if info.Confidence < detectConfidence {
		return FallbackLocale
	}
	return NormalizeLocale(info.Lang.Iso6391())
}
