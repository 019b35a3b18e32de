package utils

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTitleDefaultLength(t *testing.T) {
	html := "<p>" + strings.Repeat("word ", 60) + "</p>"
	title := Title(html, false, 0)
	if n := utf8.RuneCountInString(title); n != DefaultTitleLength {
		t.Errorf("Expected %d runes, got %d (%q)", DefaultTitleLength, n, title)
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("Expected ellipsis, got %q", title)
	}
}

func TestTitleRequestedLength(t *testing.T) {
	html := "<p>" + strings.Repeat("x", 100) + "</p>"
	for _, n := range []int{5, 10, 50} {
		if got := utf8.RuneCountInString(Title(html, false, n)); got != n {
			t.Errorf("Title(%d) length = %d", n, got)
		}
	}
	if got := Title("<p>short</p>", false, 50); got != "short" {
		t.Errorf("Expected short text untouched, got %q", got)
	}
}

func TestTitleDeleted(t *testing.T) {
	html := "<p>" + strings.Repeat("x", 100) + "</p>"
	for _, n := range []int{0, 3, 5, 200} {
		if got := Title(html, true, n); got != DeletedTitle {
			t.Errorf("Title(deleted, %d) = %q", n, got)
		}
	}
}

func TestTitleDecodesEntities(t *testing.T) {
	html, err := ProcessMarkdown("It's \"fine\" & good", EnrichOptions{})
	if err != nil {
		t.Fatalf("ProcessMarkdown failed: %v", err)
	}
	title := Title(html, false, 0)
	if title != `It's "fine" & good` {
		t.Errorf("Unexpected title %q from %s", title, html)
	}
	if strings.Contains(title, "&#39;") {
		t.Errorf("Title leaks escaped apostrophe: %q", title)
	}
}

func TestTitleCollapsesWhitespace(t *testing.T) {
	if got := Title("<p>a</p>\n<p>b   c</p>", false, 0); got != "a b c" {
		t.Errorf("Unexpected title %q", got)
	}
}

func TestTruncateTinyLengths(t *testing.T) {
	if got := Truncate("abcdef", 2); got != "ab" {
		t.Errorf("Truncate(2) = %q", got)
	}
	if got := Truncate("héllo wörld", 8); got != "héllo..." {
		t.Errorf("Truncate(8) = %q", got)
	}
}
