package utils

import (
	"strings"
	"testing"
)

func TestRenderMarkdownSanitizes(t *testing.T) {
	out, err := RenderMarkdown("<script>alert(1)</script>\n\n**hi**")
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if strings.Contains(out, "<script") {
		t.Errorf("Script survived sanitizing: %s", out)
	}
	if !strings.Contains(out, "<strong>hi</strong>") {
		t.Errorf("Expected bold text, got %s", out)
	}
}

func TestRenderMarkdownLeavesNofollowToEnricher(t *testing.T) {
	out, err := RenderMarkdown("[home](/home)")
	if err != nil {
		t.Fatalf("RenderMarkdown failed: %v", err)
	}
	if strings.Contains(out, "nofollow") {
		t.Errorf("Renderer must not add nofollow, got %s", out)
	}
}
