// Package textfmt holds small string transforms used when rendering users.
package textfmt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Capitalize upper-cases the first letter of every space separated word.
// The rest of each word is lower-cased unless preserveCase is set.
// Whitespace-only input is returned as is.
func Capitalize(value string, preserveCase bool) string {
	if value == "" {
		return ""
	}
	if strings.TrimSpace(value) == "" {
		return value
	}

	words := strings.Split(value, " ")
	for i, word := range words {
		words[i] = capitalizeWord(word, preserveCase)
	}
	return strings.Join(words, " ")
}

func capitalizeWord(word string, preserveCase bool) string {
	if word == "" {
		return word
	}

	first, size := utf8.DecodeRuneInString(word)
	rest := word[size:]
	if !preserveCase {
		rest = strings.ToLower(rest)
	}
	return string(unicode.ToUpper(first)) + rest
}
