package service

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	plainPolicy = bluemonday.StrictPolicy()
	richPolicy  = bluemonday.UGCPolicy()
)

// cleanText strips all markup from user input. Entities produced by the
// sanitiser are decoded again since the value is stored as plain text.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(s)))
}

// cleanHTML keeps safe formatting in staff-authored product descriptions.
func cleanHTML(s string) string {
	return strings.TrimSpace(richPolicy.Sanitize(s))
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// slugify lower-cases, drops accents and joins words with '-'.
func slugify(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
