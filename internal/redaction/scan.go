/**
 * Scan Primitives
 *
 * Search and compose operations shared by every field extractor. All functions
 * are pure; MergeBoxes and CropWidth expect the caller to have confirmed a match.
 */

package redaction

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Crop fractions applied to matched boxes so identifiers are only partially masked
const (
	FractionDate         = 0.54
	FractionPAN          = 0.65
	FractionPincode      = 0.30
	FractionPassportName = 0.40
)

// Predicate tests a token's text
type Predicate func(text string) bool

// FindAnchor returns the index of the first token satisfying pred
func FindAnchor(stream TokenStream, pred Predicate) (int, bool) {
	for i, tok := range stream {
		if pred(tok.Text) {
			return i, true
		}
	}
	return -1, false
}

// FindLastAnchor returns the index of the last token satisfying pred
func FindLastAnchor(stream TokenStream, pred Predicate) (int, bool) {
	for i := len(stream) - 1; i >= 0; i-- {
		if pred(stream[i].Text) {
			return i, true
		}
	}
	return -1, false
}

// ScanForward collects tokens after start while take holds, until stop holds.
// A nil stop never stops; a nil take takes everything.
func ScanForward(stream TokenStream, start int, stop, take Predicate) []Token {
	var out []Token
	for i := start + 1; i < len(stream); i++ {
		text := stream[i].Text
		if stop != nil && stop(text) {
			break
		}
		if take != nil && !take(text) {
			break
		}
		out = append(out, stream[i])
	}
	return out
}

// ScanBackward collects tokens before start toward index 0 until stop holds.
// Tokens are returned nearest-first.
func ScanBackward(stream TokenStream, start int, stop Predicate) []Token {
	var out []Token
	if start > len(stream) {
		start = len(stream)
	}
	for i := start - 1; i >= 0; i-- {
		if stop != nil && stop(stream[i].Text) {
			break
		}
		out = append(out, stream[i])
	}
	return out
}

// MergeBoxes spans the first token's top-left to the last token's bottom-right, in call order
func MergeBoxes(tokens []Token) Rectangle {
	first, last := tokens[0], tokens[len(tokens)-1]
	return Rectangle{X1: first.X1, Y1: first.Y1, X2: last.X2, Y2: last.Y2}
}

// CropWidth keeps the leading fraction of the box width
func CropWidth(box Rectangle, fraction float64) Rectangle {
	width := box.X2 - box.X1
	return Rectangle{
		X1: box.X1,
		Y1: box.Y1,
		X2: box.X1 + int(math.Floor(fraction*float64(width))),
		Y2: box.Y2,
	}
}

// IsDate validates a dd<sep>mm<sep>yyyy calendar date
func IsDate(text, sep string) bool {
	parts := strings.Split(text, sep)
	if len(parts) != 3 {
		return false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		if p == "" || !isASCIIDigits(p) {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return false
		}
		nums[i] = n
	}

	day, month, year := nums[0], nums[1], nums[2]
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1000 || year > 9999 {
		return false
	}
	return day <= daysIn(month, year)
}

func daysIn(month, year int) int {
	switch month {
	case 2:
		if isLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// IsAllDigits reports whether text is exactly length ASCII digits
func IsAllDigits(text string, length int) bool {
	return len(text) == length && isASCIIDigits(text)
}

// IsAlnumUpper reports whether text is exactly length ASCII letters/digits
// with at least one letter and no lower-case letters
func IsAlnumUpper(text string, length int) bool {
	return len(text) == length && isASCIIAlnum(text) && IsUpperText(text)
}

// IsAlnum reports whether text is exactly length ASCII letters/digits
func IsAlnum(text string, length int) bool {
	return len(text) == length && isASCIIAlnum(text)
}

// IsUpperText reports whether text has at least one cased letter and no lower-case letters
func IsUpperText(text string) bool {
	cased := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// IsLowerText reports whether text has at least one cased letter and no upper-case letters
func IsLowerText(text string) bool {
	cased := false
	for _, r := range text {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLower(r) {
			cased = true
		}
	}
	return cased
}

// HasDigit reports whether text contains an ASCII digit
func HasDigit(text string) bool {
	return strings.IndexFunc(text, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

func isASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isASCIIAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return len(s) > 0
}

// SplitLines splits text into its non-empty lines
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// DropTrailingWord removes the last word when more than one word is present
func DropTrailingWord(words []string) []string {
	if len(words) > 1 {
		return words[:len(words)-1]
	}
	return words
}

// MatchRegexp builds a predicate from a compiled pattern
func MatchRegexp(re *regexp.Regexp) Predicate {
	return re.MatchString
}

// EqualsAnyFold builds a predicate matching any keyword, ignoring case
func EqualsAnyFold(keywords ...string) Predicate {
	return func(text string) bool {
		lower := strings.ToLower(text)
		for _, k := range keywords {
			if lower == k {
				return true
			}
		}
		return false
	}
}

// collectWordTokens returns the first tokens whose text equals one of words,
// each word consumed at most once, in stream order
func collectWordTokens(stream TokenStream, words []string) []Token {
	remaining := make(map[string]int, len(words))
	for _, w := range words {
		remaining[w]++
	}

	var out []Token
	for _, tok := range stream {
		if remaining[tok.Text] > 0 {
			remaining[tok.Text]--
			out = append(out, tok)
			if len(out) == len(words) {
				break
			}
		}
	}
	return out
}

// allWordTokens returns every token whose text equals one of words
func allWordTokens(stream TokenStream, words []string) []Token {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}

	var out []Token
	for _, tok := range stream {
		if _, ok := set[tok.Text]; ok {
			out = append(out, tok)
		}
	}
	return out
}

func boxes(tokens []Token) []Rectangle {
	rects := make([]Rectangle, 0, len(tokens))
	for _, t := range tokens {
		rects = append(rects, t.Box())
	}
	return rects
}

func croppedBoxes(tokens []Token, fraction float64) []Rectangle {
	rects := make([]Rectangle, 0, len(tokens))
	for _, t := range tokens {
		rects = append(rects, CropWidth(t.Box(), fraction))
	}
	return rects
}

func texts(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Text)
	}
	return out
}
