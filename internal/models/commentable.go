package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type CommentableType string

const (
	CommentableArticle        CommentableType = "Article"
	CommentablePodcastEpisode CommentableType = "PodcastEpisode"
)

// Valid reports whether t is one of the closed set of commentable types.
func (t CommentableType) Valid() bool {
	switch t {
	case CommentableArticle, CommentablePodcastEpisode:
		return true
	}
	return false
}

// CommentableTypeFromSlug maps the plural path segment ("articles",
// "podcast_episodes") onto a type.
func CommentableTypeFromSlug(slug string) (CommentableType, bool) {
	switch slug {
	case "articles":
		return CommentableArticle, true
	case "podcast_episodes":
		return CommentablePodcastEpisode, true
	}
	return "", false
}

// CommentableRef is the stored (type, id) pair pointing at a commentable.
type CommentableRef struct {
	Type CommentableType `json:"type"`
	ID   uint            `json:"id"`
}

func (r CommentableRef) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.ID)
}

// Commentable is the capability set every content type a thread hangs off exposes.
type Commentable interface {
	Ref() CommentableRef
	CommentableTitle() string
	IsPublished() bool
	HasVideo() bool
	VideoSeekURL(offsetSeconds int) string
}

type Article struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Title          string    `gorm:"not null" json:"title"`
	Slug           string    `gorm:"size:128;index" json:"slug"`
	Published      bool      `gorm:"default:false;index" json:"published"`
	VideoSourceURL string    `json:"video_source_url"` // empty when the article has no video
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (a *Article) Ref() CommentableRef {
	return CommentableRef{Type: CommentableArticle, ID: a.ID}
}

func (a *Article) CommentableTitle() string { return a.Title }
func (a *Article) IsPublished() bool         { return a.Published }
func (a *Article) HasVideo() bool            { return a.VideoSourceURL != "" }

func (a *Article) VideoSeekURL(offsetSeconds int) string {
	return seekURL(a.VideoSourceURL, offsetSeconds)
}

type PodcastEpisode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Slug      string    `gorm:"size:128;index" json:"slug"`
	Published bool      `gorm:"default:false;index" json:"published"`
	MediaURL  string    `json:"media_url"`
	VideoURL  string    `json:"video_url"` // set for video podcasts
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PodcastEpisode) Ref() CommentableRef {
	return CommentableRef{Type: CommentablePodcastEpisode, ID: p.ID}
}

func (p *PodcastEpisode) CommentableTitle() string { return p.Title }
func (p *PodcastEpisode) IsPublished() bool         { return p.Published }
func (p *PodcastEpisode) HasVideo() bool            { return p.VideoURL != "" }

func (p *PodcastEpisode) VideoSeekURL(offsetSeconds int) string {
	return seekURL(p.VideoURL, offsetSeconds)
}

func seekURL(base string, offsetSeconds int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "t=" + strconv.Itoa(offsetSeconds)
}
