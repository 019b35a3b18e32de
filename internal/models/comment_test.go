package models

import (
	"testing"
)

func TestIDCode(t *testing.T) {
	if got := EncodeIDCode(1000); got != "1cc" {
		t.Errorf("EncodeIDCode(1000) = %q, want 1cc", got)
	}
	seen := make(map[string]uint)
	for id := uint(1); id <= 5000; id++ {
		code := EncodeIDCode(id)
		if prev, ok := seen[code]; ok {
			t.Fatalf("ids %d and %d share code %q", prev, id, code)
		}
		seen[code] = id
		back, err := DecodeIDCode(code)
		if err != nil || back != id {
			t.Fatalf("DecodeIDCode(%q) = %d, %v", code, back, err)
		}
	}
}

func TestCommentPath(t *testing.T) {
	c := Comment{ID: 1000, User: User{Username: "alice"}}
	if got := c.Path(); got != "/alice/comment/1cc" {
		t.Errorf("Path() = %q", got)
	}
	if got := c.IndexKey(); got != "comments-1000" {
		t.Errorf("IndexKey() = %q", got)
	}
}

func TestAncestry(t *testing.T) {
	root := Comment{ID: 1}
	child := Comment{ID: 5, Ancestry: root.ChildAncestry()}
	grandchild := Comment{ID: 9, Ancestry: child.ChildAncestry()}

	if grandchild.Ancestry != "1/5" {
		t.Fatalf("Ancestry = %q", grandchild.Ancestry)
	}
	if grandchild.Depth() != 2 || root.Depth() != 0 {
		t.Errorf("Depth mismatch: %d %d", grandchild.Depth(), root.Depth())
	}
	ids, err := grandchild.AncestorIDs()
	if err != nil {
		t.Fatalf("AncestorIDs failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 5 {
		t.Errorf("AncestorIDs = %v", ids)
	}
	if _, err := ParseAncestry("1/x"); err == nil {
		t.Error("Expected error for malformed ancestry")
	}
}

func TestNormalize(t *testing.T) {
	c := Comment{BodyMarkdown: "héllo"}
	c.Normalize()
	if c.MarkdownCharacterCount != 5 {
		t.Errorf("MarkdownCharacterCount = %d", c.MarkdownCharacterCount)
	}
	if len(c.BodyDigest) != 64 {
		t.Errorf("BodyDigest = %q", c.BodyDigest)
	}
}

func TestCommentTitle(t *testing.T) {
	c := Comment{ProcessedHTML: "<p>hello there</p>"}
	if got := c.Title(); got != "hello there" {
		t.Errorf("Title() = %q", got)
	}
	c.Deleted = true
	if got := c.Title(3); got != "[deleted]" {
		t.Errorf("Title(3) on deleted = %q", got)
	}
}

func TestCommentableCapabilities(t *testing.T) {
	var a Commentable = &Article{ID: 3, Published: true, VideoSourceURL: "https://v.example/a.m3u8"}
	if !a.HasVideo() || a.VideoSeekURL(90) != "https://v.example/a.m3u8?t=90" {
		t.Errorf("Unexpected article video: %v %q", a.HasVideo(), a.VideoSeekURL(90))
	}
	var p Commentable = &PodcastEpisode{ID: 4, VideoURL: "https://v.example/e?format=hd"}
	if got := p.VideoSeekURL(5); got != "https://v.example/e?format=hd&t=5" {
		t.Errorf("VideoSeekURL = %q", got)
	}
	if (&PodcastEpisode{}).HasVideo() {
		t.Error("Audio-only episode reported video")
	}
	if !CommentableArticle.Valid() || CommentableType("Page").Valid() {
		t.Error("CommentableType.Valid mismatch")
	}
}

func TestCommentableTypeFromSlug(t *testing.T) {
	if typ, ok := CommentableTypeFromSlug("podcast_episodes"); !ok || typ != CommentablePodcastEpisode {
		t.Errorf("podcast_episodes = %q, %v", typ, ok)
	}
	if _, ok := CommentableTypeFromSlug("Article"); ok {
		t.Error("type names are not slugs")
	}
}
