package segmenter

import (
	"strings"
	"unicode"
)

// promptTerms 提示词按非字母数字切分，去掉单字符
func promptTerms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := words[:0]
	for _, w := range words {
		if len(w) >= 2 {
			terms = append(terms, w)
		}
	}
	return terms
}

func matchesAny(word string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(word, t) {
			return true
		}
	}
	return false
}
