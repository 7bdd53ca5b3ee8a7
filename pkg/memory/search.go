package memory

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Field weights for scoring. Title hits dominate, tags sit between title
// and description.
const (
	titleWeight = 3.0
	tagWeight   = 2.0
	descWeight  = 1.0
)

var foldCaser = cases.Fold()

// tokenize splits text into case-folded word tokens.
func tokenize(s string) []string {
	s = foldCaser.String(s)

	var tokens []string
	var word strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			word.WriteRune(r)
		} else if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	if word.Len() > 0 {
		tokens = append(tokens, word.String())
	}

	return tokens
}

// tokenSet returns the distinct tokens of a string.
func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(s) {
		set[tok] = true
	}
	return set
}

// scoreItem computes a length-normalized term-frequency score of the query
// against the item's metadata. Deterministic for identical inputs.
func scoreItem(queryTokens []string, item *Item) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	titleTokens := tokenize(item.Title)
	descTokens := tokenize(item.Description)
	tagTokens := tokenize(strings.Join(item.Tags, " "))

	docLen := len(titleTokens) + len(descTokens) + len(tagTokens)
	if docLen == 0 {
		return 0
	}

	var score float64
	for _, q := range queryTokens {
		score += titleWeight * float64(countToken(titleTokens, q))
		score += descWeight * float64(countToken(descTokens, q))
		score += tagWeight * float64(countToken(tagTokens, q))
	}

	// Normalize by document length so verbose items don't dominate
	return score / math.Sqrt(float64(docLen))
}

// minStemLen guards prefix matching so short function words ("to", "via")
// never count as stems of longer words.
const minStemLen = 4

// tokensMatch reports whether two tokens share a stem: exact equality, or
// one is a prefix of the other and that prefix is long enough to carry
// meaning. This lets "linking" hit "link" and "reaction" hit "reactions"
// without a full stemmer. Scoring only; dedup similarity stays exact.
func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) >= minStemLen && strings.HasPrefix(b, a)
}

func countToken(tokens []string, target string) int {
	n := 0
	for _, tok := range tokens {
		if tokensMatch(tok, target) {
			n++
		}
	}
	return n
}

// rankItems scores items against the query and returns the top k metadata
// results. Ties break on id so identical inputs rank identically.
func rankItems(query string, items []Item, k int, sources []Source) []SearchResult {
	queryTokens := tokenize(query)

	filter := make(map[Source]bool, len(sources))
	for _, s := range sources {
		filter[s] = true
	}

	results := make([]SearchResult, 0)
	for idx := range items {
		item := &items[idx]
		if len(filter) > 0 && !filter[item.Source] {
			continue
		}
		score := scoreItem(queryTokens, item)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{
			ID:          item.ID,
			Title:       item.Title,
			Description: item.Description,
			Source:      item.Source,
			Score:       score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// titleSimilarity is the token-overlap ratio of two titles: intersection
// size over the larger set size.
func titleSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}

	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	return float64(intersection) / float64(larger)
}

// contentSimilarity is the Jaccard index over the token sets of two
// contents.
func contentSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}
