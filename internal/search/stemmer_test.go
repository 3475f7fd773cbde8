package search

import (
	"testing"
)

func TestGetStemmer(t *testing.T) {
	cases := map[string]string{
		"en-US":        "english",
		"en_US":        "english",
		"en_US.UTF-8":  "english",
		"english":      "english",
		"English":      "english",
		"":             "english",
		"fr":           "french",
		"fr-CA":        "french",
		"French":       "french",
		"es":           "spanish",
		"not-a-lang!!": "english",
		"de":           "english",
	}
	for tag, want := range cases {
		if got := GetStemmer(tag).Language(); got != want {
			t.Errorf("GetStemmer(%q) = %s, want %s", tag, got, want)
		}
	}
}

func TestStemmerInflections(t *testing.T) {
	fr := GetStemmer("fr")
	base := fr.Stem("aimer")
	for _, form := range []string{"aime", "aimes", "aimez"} {
		if got := fr.Stem(form); got != base {
			t.Errorf("french: %s stems to %q, aimer to %q", form, got, base)
		}
	}

	en := GetStemmer("en")
	if en.Stem("Dogs") != "dog" {
		t.Errorf("english: Dogs stems to %q", en.Stem("Dogs"))
	}
	for _, form := range []string{"aime", "aimes", "aimez"} {
		if en.Stem(form) == en.Stem("aimer") {
			t.Errorf("english stemmer unexpectedly conflates %s with aimer", form)
		}
	}
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("L'Été, déjà 2024!")
	want := []string{"l", "été", "déjà", "2024"}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens: %+v", len(tokens), tokens)
	}
	for i, tok := range tokens {
		if tok.Text != want[i] {
			t.Errorf("token %d = %q, want %q", i, tok.Text, want[i])
		}
	}
}

func TestParseQuery(t *testing.T) {
	q := parseQuery(`dog +cat -mouse "lazy  Dog" -"big cat" l'amour - +`)
	if got := q.String(); got != `+dog +cat -mouse +"lazy dog" -"big cat" +"l amour"` {
		t.Errorf("unexpected parse: %s", got)
	}
	if len(q.positive()) != 4 || len(q.negative()) != 2 {
		t.Errorf("unexpected clause split: %d positive, %d negative", len(q.positive()), len(q.negative()))
	}

	if q := parseQuery("   "); len(q.clauses) != 0 {
		t.Errorf("blank query produced clauses")
	}
	if q := parseQuery(`"unterminated phrase`); q.String() != `+"unterminated phrase"` {
		t.Errorf("unterminated quote: %s", q.String())
	}
}
