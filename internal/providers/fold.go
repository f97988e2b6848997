package providers

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// foldReplacer maps letters that carry no combining mark and so survive NFD
// untouched. The slashed o alone covers a fair share of the league.
var foldReplacer = strings.NewReplacer(
	"ø", "o", "Ø", "O",
	"æ", "ae", "Æ", "Ae",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "Th",
	"ł", "l", "Ł", "L",
	"đ", "d", "Đ", "D",
	"ß", "ss",
)

// asciiFold strips diacritics so names from both feeds compare cleanly
// (the projection feed spells accented names without marks).
func asciiFold(s string) string {
	decomposed := norm.NFD.String(foldReplacer.Replace(s))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}
