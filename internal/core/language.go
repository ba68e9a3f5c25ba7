package core

import (
	"strings"
	"unicode"
)

// Supported summary languages.
const (
	LanguageKorean  = "ko"
	LanguageEnglish = "en"
	LanguageAuto    = "auto"
)

// NormalizeLanguage maps the spellings users actually send ("korean", "KR",
// "english", …) onto the two supported codes. Unrecognized values fall back
// to Korean, the service default.
func NormalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "ko", "kor", "kr", "korean", "한국어", "한글":
		return LanguageKorean
	case "en", "eng", "english", "영어":
		return LanguageEnglish
	case "":
		return LanguageKorean
	default:
		return LanguageKorean
	}
}

// DetectLanguage guesses ko vs en from the script of the text. Hangul
// anywhere wins; otherwise English.
func DetectLanguage(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Hangul, r) {
			return LanguageKorean
		}
	}
	return LanguageEnglish
}

// Excerpt returns the first max runes of s, trimmed, with an ellipsis when
// truncated. Rune-safe for Korean text.
func Excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
