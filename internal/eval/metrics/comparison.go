package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/shelfscanner/internal/extraction"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

// Title carries most of the overall score; authors are often absent from spines.
const (
	titleWeight  = 0.7
	authorWeight = 0.3
)

// SpineComparison is the field-level comparison of one extraction
type SpineComparison struct {
	TitleMatch   FieldMatch
	AuthorMatch  FieldMatch
	OverallScore float64
}

// FieldMatch represents the comparison result for a single field
type FieldMatch struct {
	Expected string
	Actual   string
	Score    float64 // 0.0 to 1.0
	Method   string  // exact, substring, fuzzy_high, fuzzy_medium, no_match or a *_missing case
	Notes    string
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// CompareSpine scores an extraction against the labelled title and author.
// Sentinel titles count as a missing reading.
func CompareSpine(expectedTitle, expectedAuthor string, ext models.Extraction) *SpineComparison {
	actualTitle := ext.Title
	if extraction.IsSentinel(actualTitle) {
		actualTitle = ""
	}
	actualAuthor := ""
	if ext.Author != nil {
		actualAuthor = *ext.Author
	}

	comparison := &SpineComparison{
		TitleMatch:  compareField(expectedTitle, actualTitle),
		AuthorMatch: compareField(expectedAuthor, actualAuthor),
	}

	// an unlabelled author does not count against the reading
	if strings.TrimSpace(expectedAuthor) == "" {
		comparison.OverallScore = comparison.TitleMatch.Score
	} else {
		comparison.OverallScore = comparison.TitleMatch.Score*titleWeight + comparison.AuthorMatch.Score*authorWeight
	}
	return comparison
}

// compareField performs detailed field comparison with fuzzy matching
func compareField(expected, actual string) FieldMatch {
	match := FieldMatch{
		Expected: expected,
		Actual:   actual,
	}

	expNorm := normalizeForComparison(expected)
	actNorm := normalizeForComparison(actual)

	switch {
	case expNorm == "" && actNorm == "":
		match.Score = 1.0
		match.Method = "both_missing"
		match.Notes = "Neither label nor reading has a value"
		return match
	case expNorm == "":
		match.Method = "expected_missing"
		match.Notes = "Reading has a value the label does not"
		return match
	case actNorm == "":
		match.Method = "actual_missing"
		match.Notes = "Nothing was read for this field"
		return match
	case expNorm == actNorm:
		match.Score = 1.0
		match.Method = "exact"
		match.Notes = "Exact match"
		return match
	}

	similarity := calculateSimilarity(expNorm, actNorm)

	// a reading that covers a whole word run of the label is at least a substring match
	if strings.Contains(actNorm, expNorm) || strings.Contains(expNorm, actNorm) {
		match.Score = max(0.8, similarity)
		match.Method = "substring"
		match.Notes = "Partial match (substring found)"
		return match
	}

	match.Score = similarity
	switch {
	case similarity > 0.7:
		match.Method = "fuzzy_high"
		match.Notes = fmt.Sprintf("High similarity (%.2f)", similarity)
	case similarity > 0.4:
		match.Method = "fuzzy_medium"
		match.Notes = fmt.Sprintf("Medium similarity (%.2f)", similarity)
	default:
		match.Method = "no_match"
		match.Notes = fmt.Sprintf("Low similarity (%.2f)", similarity)
	}
	return match
}

// normalizeForComparison lowercases, strips punctuation and collapses whitespace
func normalizeForComparison(text string) string {
	text = strings.ToLower(text)
	text = punctuation.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// calculateSimilarity is 1 - levenshtein/maxLen over runes
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(r1, r2)
	return 1.0 - float64(distance)/float64(max(len(r1), len(r2)))
}

// levenshteinDistance uses two rolling rows
func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
