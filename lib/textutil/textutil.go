package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)
var punctuationRegex = regexp.MustCompile(`[_:\-]`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = punctuationRegex.ReplaceAllString(name, "")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// BestMatch returns the index of the candidate most similar to name by
// Jaro-Winkler similarity after normalization, or -1 if none reaches
// threshold.
func BestMatch(name string, candidates []string, threshold float64) (int, float64) {
	name = NormalizeName(name)
	if name == "" {
		return -1, 0
	}

	best := -1
	bestSimilarity := 0.0
	for i, c := range candidates {
		similarity := matchr.JaroWinkler(name, NormalizeName(c), false)
		if similarity > bestSimilarity {
			best = i
			bestSimilarity = similarity
		}
	}
	if bestSimilarity < threshold {
		return -1, bestSimilarity
	}
	return best, bestSimilarity
}
