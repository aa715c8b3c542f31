package search

import "strings"

// Words ignored when checking a hit for a verbatim match
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "how": true, "what": true, "i": true, "can": true,
	"should": true, "my": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation
// and markdown quoting, and removes stop words. Underscores are kept so
// resource names such as aws_s3_bucket survive as one token.
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}`*#>"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// containsAllWords reports whether every word of queryWords appears in content.
// An empty word list never matches.
func containsAllWords(content string, queryWords []string) bool {
	if len(queryWords) == 0 {
		return false
	}

	docWords := tokenizeAndFilter(content)
	docWordSet := make(map[string]bool, len(docWords))
	for _, word := range docWords {
		docWordSet[word] = true
	}

	for _, qWord := range queryWords {
		if !docWordSet[qWord] {
			return false
		}
	}

	return true
}
