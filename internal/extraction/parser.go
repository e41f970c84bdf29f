package extraction

import (
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

// parseStrategy tries to read an extraction out of a model response
type parseStrategy func(response string) (models.Extraction, bool)

// cascade is tried in order; the first strategy that succeeds wins
var cascade = []parseStrategy{
	parseEmpty,
	parseWholeJSON,
	parseFencedJSON,
	parseFencedAny,
	parseBareObject,
	parseFieldRegex,
	parseFirstLine,
}

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	fencedAnyPattern  = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
	bareObjectPattern = regexp.MustCompile(`\{[^{}]*\}`)
	titlePattern      = regexp.MustCompile(`"title"\s*:\s*"([^"]+)"`)
	authorPattern     = regexp.MustCompile(`"author"\s*:\s*"([^"]+)"`)
	strayPunctuation  = regexp.MustCompile(`[{}":\[\]]`)
)

// ParseResponse turns free-form model output into an extraction. It never
// fails: unreadable input yields a sentinel title. Confidence and the raw
// response are left for the caller to fill in.
func ParseResponse(response string) models.Extraction {
	for _, strategy := range cascade {
		if extraction, ok := strategy(response); ok {
			return extraction
		}
	}
	return sentinel(TitleCouldNotParse)
}

func parseEmpty(response string) (models.Extraction, bool) {
	if strings.TrimSpace(response) == "" {
		return sentinel(TitleNoText), true
	}
	return models.Extraction{}, false
}

func parseWholeJSON(response string) (models.Extraction, bool) {
	return decodeObject(response)
}

func parseFencedJSON(response string) (models.Extraction, bool) {
	m := fencedJSONPattern.FindStringSubmatch(response)
	if m == nil {
		return models.Extraction{}, false
	}
	return decodeObject(m[1])
}

func parseFencedAny(response string) (models.Extraction, bool) {
	m := fencedAnyPattern.FindStringSubmatch(response)
	if m == nil {
		return models.Extraction{}, false
	}
	return decodeObject(m[1])
}

func parseBareObject(response string) (models.Extraction, bool) {
	m := bareObjectPattern.FindString(response)
	if m == "" {
		return models.Extraction{}, false
	}
	return decodeObject(m)
}

func parseFieldRegex(response string) (models.Extraction, bool) {
	title := titlePattern.FindStringSubmatch(response)
	if title == nil {
		return models.Extraction{}, false
	}
	var author *string
	if m := authorPattern.FindStringSubmatch(response); m != nil {
		author = &m[1]
	}
	extraction, err := NewExtraction(title[1], author)
	if err != nil {
		return models.Extraction{}, false
	}
	return extraction, true
}

func parseFirstLine(response string) (models.Extraction, bool) {
	for _, line := range strings.FieldsFunc(response, isLineBreak) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		title := strings.TrimSpace(strayPunctuation.ReplaceAllString(line, ""))
		title = truncateRunes(title, MaxTitleLength)
		extraction, err := NewExtraction(title, nil)
		if err != nil {
			return models.Extraction{}, false
		}
		return extraction, true
	}
	return models.Extraction{}, false
}

// isLineBreak matches every line boundary, including a bare carriage return
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// decodeObject accepts a JSON object whose title is a string and whose
// author, if present, is a string or null.
func decodeObject(payload string) (models.Extraction, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &fields); err != nil {
		return models.Extraction{}, false
	}

	rawTitle, ok := fields["title"]
	if !ok {
		return models.Extraction{}, false
	}
	var title string
	if err := json.Unmarshal(rawTitle, &title); err != nil {
		return models.Extraction{}, false
	}

	var author *string
	if rawAuthor, ok := fields["author"]; ok {
		if err := json.Unmarshal(rawAuthor, &author); err != nil {
			return models.Extraction{}, false
		}
	}

	extraction, err := NewExtraction(title, author)
	if err != nil {
		return models.Extraction{}, false
	}
	return extraction, true
}
