package search

import (
	"strings"

	"github.com/kljensen/snowball"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/Xunop/bookworm/internal/log"
)

const defaultStemmerLanguage = "english"

// Stemmer reduces words to their snowball stem for one language. The zero
// value stems English.
type Stemmer struct {
	language string
}

func (s Stemmer) Language() string {
	if s.language == "" {
		return defaultStemmerLanguage
	}
	return s.language
}

// Stem lower-cases word and returns its stem, or the lower-cased word when
// snowball rejects it.
func (s Stemmer) Stem(word string) string {
	word = strings.ToLower(word)
	stemmed, err := snowball.Stem(word, s.Language(), true)
	if err != nil || stemmed == "" {
		return word
	}
	return stemmed
}

// stemmers is filled once at init and only read afterwards.
var stemmers = func() map[string]Stemmer {
	m := make(map[string]Stemmer)
	for _, lang := range []string{"english", "french", "spanish", "russian", "swedish", "norwegian", "hungarian"} {
		if _, err := snowball.Stem("test", lang, true); err == nil {
			m[lang] = Stemmer{language: lang}
		}
	}
	return m
}()

// GetStemmer returns the stemmer for a language tag. Tags are normalised
// so "en-US", "en_US", "english" and "English" all give the English
// stemmer. Unsupported or unknown values fall back to English.
func GetStemmer(tag string) Stemmer {
	name := normalizeLanguage(tag)
	if s, ok := stemmers[name]; ok {
		return s
	}
	log.Warn("No stemmer for language, using english", zap.String("language", tag))
	return Stemmer{language: defaultStemmerLanguage}
}

// normalizeLanguage maps a BCP 47 tag, a POSIX locale or an English
// language name onto a snowball language name.
func normalizeLanguage(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	if t == "" {
		return defaultStemmerLanguage
	}
	if _, ok := stemmers[t]; ok {
		return t
	}
	if i := strings.IndexAny(t, ".@"); i >= 0 {
		t = t[:i]
	}
	t = strings.ReplaceAll(t, "_", "-")

	parsed, err := language.Parse(t)
	if err != nil {
		return ""
	}
	base, confidence := parsed.Base()
	if confidence == language.No {
		return ""
	}
	name := display.English.Languages().Name(base)
	if fields := strings.Fields(name); len(fields) > 0 {
		return strings.ToLower(fields[0])
	}
	return ""
}
