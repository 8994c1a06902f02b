package intent

import (
	"regexp"
	"strings"
)

var (
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	curlyQuoteRep = strings.NewReplacer("’", "'")
)

// normalize lowercases the utterance, folds curly apostrophes, strips
// punctuation and collapses whitespace so keyword matching sees a clean
// token stream. Apostrophes are deleted rather than spaced so "that's it"
// collapses to "thats it" and matches the contraction-free vocabulary.
func normalize(text string) string {
	lowered := strings.ToLower(curlyQuoteRep.Replace(text))
	lowered = strings.ReplaceAll(lowered, "'", "")
	lowered = nonAlnumRe.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(lowered, " "))
}

// editDistance computes a bounded Levenshtein distance. Once the distance
// provably exceeds limit it returns limit+1 without finishing the table,
// which keeps per-turn classification cheap.
func editDistance(a, b string, limit int) int {
	if a == b {
		return 0
	}
	if diff := len(a) - len(b); diff > limit || -diff > limit {
		return limit + 1
	}
	dp := make([]int, len(b)+1)
	for j := range dp {
		dp[j] = j
	}
	for i := 1; i <= len(a); i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= len(b); j++ {
			cur := dp[j]
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = cur
		}
	}
	return dp[len(b)]
}

// anyFuzzy reports whether the normalized text matches any keyword in vocab.
// Multi-word keywords match as substrings; single words match as exact tokens
// or within a bounded edit distance of a token, tolerating transcription
// noise like "buk" for "book". The allowed distance shrinks with keyword
// length — short words must match exactly or nearly so, otherwise function
// words collide with the vocabulary ("how" is one edit from "hour", "when"
// two from "where").
func anyFuzzy(text string, vocab []string, maxDist int) bool {
	tokens := strings.Fields(text)
	for _, raw := range vocab {
		keyword := strings.TrimSpace(strings.ToLower(curlyQuoteRep.Replace(raw)))
		if keyword == "" {
			continue
		}
		if strings.Contains(keyword, " ") {
			if strings.Contains(text, keyword) {
				return true
			}
			continue
		}
		dist := maxDist
		if scaled := (len(keyword) - 2) / 3; scaled < dist {
			dist = scaled
		}
		for _, token := range tokens {
			if token == keyword {
				return true
			}
			if dist > 0 && editDistance(token, keyword, dist) <= dist {
				return true
			}
		}
	}
	return false
}
