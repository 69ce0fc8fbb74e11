package document

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lower-cases, strips diacritics and collapses every run of non letters/digits
// into one space. Keywords and OCR text go through the same function.
func fold(s string) []rune {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	out := make([]rune, 0, len(stripped))
	space := true
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			out = append(out, ' ')
			space = true
		}
	}
	if n := len(out); n > 0 && out[n-1] == ' ' {
		out = out[:n-1]
	}
	return out
}

func foldString(s string) string {
	return string(fold(s))
}

// textLength is the rune count of the trimmed text.
func textLength(s string) int {
	return len([]rune(strings.TrimSpace(s)))
}
