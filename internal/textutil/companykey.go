package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var legalTokens = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "corp": true, "corporation": true,
	"co": true, "company": true, "ltd": true, "limited": true, "gmbh": true, "plc": true,
	"sa": true, "ag": true, "llp": true, "pty": true,
}

// CompanyKey is the identity key of a company name: NFKC, lower case,
// punctuation dropped, a leading "the" and trailing legal forms removed.
// "Acme Corp" and "ACME Corporation" share the key "acme".
func CompanyKey(name string) string {
	s := strings.ToLower(norm.NFKC.String(name))
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '.', r == '\'', r == '’', r == '&':
			return -1
		}
		return ' '
	}, s)

	words := strings.Fields(s)
	if len(words) > 1 && words[0] == "the" {
		words = words[1:]
	}
	for len(words) > 1 && legalTokens[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
