package noun

import "unicode"

// Standard gematria values. Final forms carry the value of their base letter.
var gematriaValues = map[rune]int{
	'א': 1,
	'ב': 2,
	'ג': 3,
	'ד': 4,
	'ה': 5,
	'ו': 6,
	'ז': 7,
	'ח': 8,
	'ט': 9,
	'י': 10,
	'כ': 20,
	'ך': 20,
	'ל': 30,
	'מ': 40,
	'ם': 40,
	'נ': 50,
	'ן': 50,
	'ס': 60,
	'ע': 70,
	'פ': 80,
	'ף': 80,
	'צ': 90,
	'ץ': 90,
	'ק': 100,
	'ר': 200,
	'ש': 300,
	'ת': 400,
}

// GematriaValue computes the standard gematria value of the surface text.
// Runes without a letter value (punctuation, vowel points, non-Hebrew
// characters) contribute nothing, so the result is a pure function of the
// Hebrew letters in the input.
func GematriaValue(surface string) int {
	total := 0
	for _, r := range surface {
		total += gematriaValues[r]
	}
	return total
}

// Letters decomposes the surface text into its letter units, one string per
// letter rune. Whitespace, punctuation and combining marks are dropped.
func Letters(surface string) []string {
	var letters []string
	for _, r := range surface {
		if !unicode.IsLetter(r) {
			continue
		}
		letters = append(letters, string(r))
	}
	return letters
}
