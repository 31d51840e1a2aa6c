package parser

import (
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// groupSeparators may appear between digit groups of a count.
var groupSeparators = map[rune]bool{
	',':      true,
	'.':      true,
	' ':      true,
	'\'':     true,
	'\u00a0': true, // no-break space
	'\u202f': true, // narrow no-break space
	'\u2019': true, // right single quotation mark
}

// ExtractCount returns the first integer in s, accepting thousands
// separators between groups of three digits and full-width digits.
// It returns nil when s contains no digits or the value overflows.
func ExtractCount(s string) *int {
	runes := []rune(width.Narrow.String(s))

	start := -1
	for i, r := range runes {
		if isDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	digits := make([]rune, 0, 8)
	i := start
	for i < len(runes) && isDigit(runes[i]) {
		digits = append(digits, runes[i])
		i++
	}
	for i < len(runes) && groupSeparators[runes[i]] && isGroup(runes, i+1) {
		digits = append(digits, runes[i+1:i+4]...)
		i += 4
	}

	n, err := strconv.Atoi(string(digits))
	if err != nil {
		return nil
	}
	return &n
}

// isGroup reports whether runes[at:] starts with exactly three digits.
func isGroup(runes []rune, at int) bool {
	if at+3 > len(runes) {
		return false
	}
	for j := at; j < at+3; j++ {
		if !isDigit(runes[j]) {
			return false
		}
	}
	return at+3 == len(runes) || !isDigit(runes[at+3])
}

// ExtractYear returns the last standalone four-digit number in s that lies
// in [1000, 2999], or nil.
func ExtractYear(s string) *int {
	narrow := width.Narrow.String(s)

	var year *int
	run := 0
	for i := 0; i <= len(narrow); {
		var r rune
		size := 1
		if i < len(narrow) {
			r, size = utf8.DecodeRuneInString(narrow[i:])
		}
		if i < len(narrow) && isDigit(r) {
			run++
			i += size
			continue
		}
		if run == 4 {
			if y, err := strconv.Atoi(narrow[i-4 : i]); err == nil && y >= 1000 && y <= 2999 {
				year = &y
			}
		}
		run = 0
		i += size
	}
	return year
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
