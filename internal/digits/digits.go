// Package digits formats recognized speech into grouped numeric text.
package digits

import "strings"

// Group keeps only the digit characters of text, in their original order,
// and rejoins them in runs of four separated by single spaces. Non-digit
// input yields an empty string. Lossy on purpose: the expected payload is a
// spoken digit sequence such as a card number.
func Group(text string) string {
	var b strings.Builder
	n := 0
	for _, r := range text {
		if r < '0' || r > '9' {
			continue
		}
		if n > 0 && n%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
