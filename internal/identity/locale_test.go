package identity

import (
	"testing"

	"github.com/abadojack/whatlanggo"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeLocale(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HE", "he"},
		{"he", "he"},
		{"he-IL", "he"},
		{"he_IL", "he"},
		{" He-il ", "he"},
		{"iw", "he"},
		{"Hebrew", "he"},
		{"עברית", "he"},
		{"en", "en"},
		{"en-US", "en"},
		{"EN_gb", "en"},
		{"English", "en"},
		{"xx", FallbackLocale},
		{"fr-FR", FallbackLocale},
		{"hello", FallbackLocale},
		{"", FallbackLocale},
		{"   ", FallbackLocale},
		{"!!", FallbackLocale},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLocale(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeLocaleIsAlwaysSupported(t *testing.T) {
	for _, in := range []string{"zz-ZZ", "und", "12", "he-", "-", "x-private"} {
		got := NormalizeLocale(in)
		assert.Contains(t, []string{LocaleHebrew, LocaleEnglish}, got, "input %q", in)
	}
}

func TestDetectLocale(t *testing.T) {
	assert.Equal(t, "he", DetectLocale("שלום זה מבחן זיהוי שפה ואני כותב בעברית מלאה"))
	assert.Equal(t, "en", DetectLocale("Hello there this is a language detection test written in English."))
	assert.Equal(t, "en", DetectLocale("12345 :)"))
	assert.Equal(t, "en", DetectLocale("1"))
	assert.Equal(t, "en", DetectLocale(""))
}

func TestDetectedLocaleConfidenceCutoff(t *testing.T) {
	assert.Equal(t, "he", detectedLocale(whatlanggo.Info{Lang: whatlanggo.Heb, Confidence: 0.85}))
	assert.Equal(t, "he", detectedLocale(whatlanggo.Info{Lang: whatlanggo.Heb, Confidence: 0.97}))
	// Reliable by the detector's own threshold, still below the cutoff.
	assert.Equal(t, FallbackLocale, detectedLocale(whatlanggo.Info{Lang: whatlanggo.Heb, Confidence: 0.84}))
	assert.Equal(t, FallbackLocale, detectedLocale(whatlanggo.Info{Lang: whatlanggo.Heb, Confidence: 0.5}))
}
