package extraction

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lehigh-university-libraries/shelfscanner/internal/models"
)

const (
	MaxTitleLength  = 500
	MaxAuthorLength = 200
)

// Sentinel titles mark spines whose text could not be read. They all start
// with "[" and are never deduplicated or looked up.
const (
	TitleNoText          = "[No Text Detected]"
	TitleCouldNotParse   = "[Could Not Parse]"
	TitleExtractionError = "[Extraction Failed]"
)

var (
	ErrEmptyTitle    = errors.New("title must not be empty")
	ErrTitleTooLong  = fmt.Errorf("title exceeds %d characters", MaxTitleLength)
	ErrAuthorTooLong = fmt.Errorf("author exceeds %d characters", MaxAuthorLength)
)

// NewExtraction validates and normalizes a title/author pair. Runs of
// whitespace collapse to one space and an empty author becomes nil.
func NewExtraction(title string, author *string) (models.Extraction, error) {
	title = collapseWhitespace(title)
	if title == "" {
		return models.Extraction{}, ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return models.Extraction{}, ErrTitleTooLong
	}

	var normalized *string
	if author != nil {
		a := collapseWhitespace(*author)
		if utf8.RuneCountInString(a) > MaxAuthorLength {
			return models.Extraction{}, ErrAuthorTooLong
		}
		if a != "" {
			normalized = &a
		}
	}

	return models.Extraction{Title: title, Author: normalized}, nil
}

// IsSentinel reports whether title is one of the bracketed placeholders
func IsSentinel(title string) bool {
	return strings.HasPrefix(title, "[")
}

// NormalizeTitle is the deduplication key: lowercased, whitespace collapsed
func NormalizeTitle(title string) string {
	return strings.ToLower(collapseWhitespace(title))
}

// collapseWhitespace also drops invalid UTF-8 so titles are stable keys
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.ToValidUTF8(s, "")), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func sentinel(title string) models.Extraction {
	return models.Extraction{Title: title}
}
