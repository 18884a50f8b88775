package changes

import (
	"html"
	"iter"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultMinUnitLength is the length a unit must exceed to be kept.
	DefaultMinUnitLength = 10
	bullet               = "•"
)

var (
	blockBreakRe = regexp.MustCompile(`(?i)<\s*(?:br\s*/?|/\s*(?:p|div|li|ul|ol|h[1-6]|tr|blockquote))\s*>`)
	listItemRe   = regexp.MustCompile(`(?i)<\s*li\b[^>]*>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	danglingRe   = regexp.MustCompile(`(?m)<[a-zA-Z/!][^>\n]*$`)
	bbBreakRe    = regexp.MustCompile(`(?i)\[/(?:list|olist|h[1-6]|p|quote)\]`)
	bbItemRe     = regexp.MustCompile(`\[\*\]`)
	bbTagRe      = regexp.MustCompile(`(?i)\[/?(?:b|i|u|s|h[1-6]|list|olist|url|img|quote|code|p|strike|spoiler|noparse|table|tr|td|th)(?:=[^\]]*)?\]`)
	bulletLineRe = regexp.MustCompile(`(?m)^[ \t]*[-*][ \t]+`)
	spaceRe      = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLinesRe = regexp.MustCompile(`\n{2,}`)
)

// StripMarkup flattens HTML or Steam BBCode into plain text. Block-level
// structure becomes line breaks and list items become bullet markers.
// Malformed markup is removed on a best-effort basis.
func StripMarkup(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = listItemRe.ReplaceAllString(s, "\n"+bullet+" ")
	s = blockBreakRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, " ")
	s = danglingRe.ReplaceAllString(s, " ")

	s = bbItemRe.ReplaceAllString(s, "\n"+bullet+" ")
	s = bbBreakRe.ReplaceAllString(s, "\n")
	s = bbTagRe.ReplaceAllString(s, " ")

	s = html.UnescapeString(s)
	s = norm.NFKC.String(s)
	s = bulletLineRe.ReplaceAllString(s, bullet+" ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n")

	return strings.TrimSpace(s)
}

// Units yields the sentence-like units of already flattened text. The
// sequence is lazy and may be ranged over more than once.
func Units(text string, minLength int) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		start := 0
		emit := func(end int) bool {
			unit := cleanUnit(string(runes[start:end]))
			start = end + 1
			if !keepUnit(unit, minLength) {
				return true
			}
			return yield(unit)
		}

		for i, r := range runes {
			if isUnitBoundary(runes, i, r) {
				if !emit(i) {
					return
				}
			}
		}
		if start < len(runes) {
			emit(len(runes))
		}
	}
}

// Sentences is StripMarkup followed by Units with the default minimum length.
func Sentences(raw string) iter.Seq[string] {
	return Units(StripMarkup(raw), DefaultMinUnitLength)
}

func isUnitBoundary(runes []rune, i int, r rune) bool {
	switch r {
	case '\n', '!', '?', '•':
		return true
	case '.':
		// 0.5 and 1.2.3 are numbers, not sentence ends
		if i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			return false
		}
		return true
	}
	return false
}

func cleanUnit(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), ".!?"))
}

func keepUnit(unit string, minLength int) bool {
	if len([]rune(unit)) <= minLength {
		return false
	}
	for _, r := range unit {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
