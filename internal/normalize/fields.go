package normalize

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// missingTokens are the textual renderings spreadsheet tooling uses for empty cells.
var missingTokens = map[string]bool{
	"nan":  true,
	"none": true,
	"nat":  true,
}

// maxExactFloatID bounds the float ids that convert to integers without precision loss.
const maxExactFloatID = 1 << 53

// urlPrefixes are stripped from the front of profile links, repeatedly.
var urlPrefixes = []string{"https://", "http://", "www."}

// Text canonicalises a free-text value: NFC composition, trimmed, lowercased and with
// internal whitespace runs collapsed to a single space. Missing values report false.
func Text(v string) (string, bool) {
	s := norm.NFC.String(v)
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	s = norm.NFC.String(s)
	if IsMissing(s) {
		return "", false
	}
	return s, true
}

// IsMissing reports whether an already lowercased and trimmed value stands for "no value".
func IsMissing(s string) bool {
	return s == "" || missingTokens[s]
}

// Phone keeps only the digits of v.
func Phone(v string) (string, bool) {
	var b strings.Builder
	for _, r := range v {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// URL canonicalises a profile link so scheme, "www." and trailing slashes do not matter.
func URL(v string) (string, bool) {
	s, ok := Text(v)
	if !ok {
		return "", false
	}

	// Strip until nothing changes; a single pass is not idempotent on
	// inputs such as "https://https://host".
	for {
		before := s
		for _, prefix := range urlPrefixes {
			s = strings.TrimPrefix(s, prefix)
		}
		s = strings.TrimRight(s, "/")
		s = strings.TrimSpace(s)
		if s == before {
			break
		}
	}

	if IsMissing(s) {
		return "", false
	}
	return s, true
}

// ID canonicalises a record identifier. Spreadsheets hand numeric ids over as floats,
// so "1234.0" and "1234" produce the same key.
func ID(v string) (string, bool) {
	s, ok := Text(v)
	if !ok {
		return "", false
	}
	if strings.ContainsAny(s, ".e") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && math.Abs(f) < maxExactFloatID && f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10), true
		}
	}
	return s, true
}

// PhoneList splits a cell holding several phone numbers and returns the sorted,
// de-duplicated digit strings.
func PhoneList(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		switch r {
		case ';', ',', '/', '|', '\n', '\r':
			return true
		}
		return false
	})

	seen := make(map[string]bool, len(parts))
	var phones []string
	for _, part := range parts {
		p, ok := Phone(part)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		phones = append(phones, p)
	}
	sort.Strings(phones)
	return phones
}
