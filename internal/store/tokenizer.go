package store

import (
	"regexp"
	"strings"
)

// tokenRegex matches alphanumeric sequences (underscores kept for the
// initial split so env vars and snake_case identifiers survive).
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// TokenizeText splits FAQ text into lowercase word tokens.
// Identifiers like KAFKA_BROKER_URL split on underscores so queries
// phrased in prose still match. Tokens shorter than 2 chars are dropped.
func TokenizeText(text string) []string {
	var tokens []string

	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, part := range strings.Split(word, "_") {
			lower := strings.ToLower(part)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}

	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// DefaultStopWords contains high-frequency English words that carry no
// retrieval signal in question/answer text.
var DefaultStopWords = []string{
	"the", "a", "an", "is", "are", "was", "were", "be", "been",
	"do", "does", "did", "have", "has", "had",
	"how", "what", "when", "where", "which", "who", "why",
	"can", "could", "should", "would", "will",
	"i", "you", "we", "it", "they", "my", "your", "our",
	"to", "of", "in", "on", "for", "with", "at", "by", "from",
	"this", "that", "these", "those", "and", "or", "but", "not", "so",
	"there", "here", "if", "then", "just", "also", "am", "me",
}
