package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultTitleLength = 80
	DeletedTitle       = "[deleted]"
)

// Title derives the plain-text excerpt of processed comment HTML. A deleted
// comment always yields DeletedTitle. length <= 0 selects DefaultTitleLength;
// the result never exceeds length runes, ellipsis included.
func Title(htmlStr string, deleted bool, length int) string {
	if deleted {
		return DeletedTitle
	}
	if length <= 0 {
		length = DefaultTitleLength
	}
	return Truncate(PlainText(htmlStr), length)
}

// PlainText strips tags, decodes entities and collapses whitespace.
func PlainText(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return strings.TrimSpace(htmlStr)
	}
	return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
}

// Truncate cuts s to at most n runes, ending in "..." when it had to cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= len(ellipsis) {
		return truncateRunes(s, n)
	}
	return truncateRunes(s, n-len(ellipsis)) + ellipsis
}
