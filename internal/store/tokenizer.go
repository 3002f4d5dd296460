package store

import (
	"regexp"
	"strings"

	"github.com/rlmfs/rlm/internal/embed"
)

var queryTokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// defaultStopWords filters common code keywords out of query terms so
// a search for "parse config" doesn't get diluted by noise tokens.
var defaultStopWords = BuildStopWordMap([]string{
	"func", "function", "def", "class", "return", "import",
	"const", "var", "let", "int", "string", "bool", "void",
	"true", "false", "nil", "null", "this", "self", "new",
})

// TokenizeQuery splits a search query into lowercase, code-aware
// tokens (camelCase/snake_case split), dropping single-character
// noise, for building an FTS5 MATCH expression.
func TokenizeQuery(text string) []string {
	var tokens []string
	for _, word := range queryTokenRegex.FindAllString(text, -1) {
		for _, t := range embed.SplitCodeToken(word) {
			if lower := strings.ToLower(t); len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return FilterStopWords(tokens, defaultStopWords)
}

// FilterStopWords removes tokens present in stopWords.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a stop word slice into a lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// buildMatchExpr joins tokens with OR into an FTS5 MATCH expression,
// quoting each term so punctuation left over from tokenization can't be
// misread as FTS5 query syntax.
func buildMatchExpr(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
