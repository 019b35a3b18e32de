package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"threadline/internal/utils"

	"gorm.io/gorm"
)

const (
	MinBodyLength = 1
	MaxBodyLength = 25000
)

type Comment struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	BodyMarkdown           string    `gorm:"type:text;not null" json:"body_markdown"`
	BodyDigest             string    `gorm:"size:64;not null;uniqueIndex:idx_comments_dedupe,priority:1" json:"-"` // sha256 of BodyMarkdown
	ProcessedHTML          string    `gorm:"type:text" json:"processed_html"`
	UserID                 uint      `gorm:"not null;index;uniqueIndex:idx_comments_dedupe,priority:2" json:"user_id"`
	User                   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	CommentableType        string    `gorm:"size:32;not null;index:idx_comments_commentable,priority:1;uniqueIndex:idx_comments_dedupe,priority:5" json:"commentable_type"`
	CommentableID          uint      `gorm:"not null;index:idx_comments_commentable,priority:2;uniqueIndex:idx_comments_dedupe,priority:4" json:"commentable_id"`
	ParentID               *uint     `gorm:"index" json:"parent_id"` // nil for root comments
	Ancestry               string    `gorm:"size:1024;not null;default:'';index;uniqueIndex:idx_comments_dedupe,priority:3" json:"ancestry"`
	Score                  int       `gorm:"default:0;index" json:"score"`
	Deleted                bool      `gorm:"default:false" json:"deleted"`
	MarkdownCharacterCount int       `gorm:"default:0" json:"markdown_character_count"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// BeforeSave keeps the derived body columns in step with the body on every write.
func (c *Comment) BeforeSave(_ *gorm.DB) error {
	c.Normalize()
	return nil
}

// Normalize recomputes MarkdownCharacterCount and BodyDigest.
func (c *Comment) Normalize() {
	c.MarkdownCharacterCount = utf8.RuneCountInString(c.BodyMarkdown)
	c.BodyDigest = BodyDigest(c.BodyMarkdown)
}

func BodyDigest(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Ref returns the tagged reference to the comment's commentable.
func (c *Comment) Ref() CommentableRef {
	return CommentableRef{Type: CommentableType(c.CommentableType), ID: c.CommentableID}
}

// IDCode is the compact base-26 form of the id used in comment paths.
func (c *Comment) IDCode() string {
	return EncodeIDCode(c.ID)
}

// Path is the canonical display path, /{username}/comment/{id_code}.
func (c *Comment) Path() string {
	return fmt.Sprintf("/%s/comment/%s", c.User.Username, c.IDCode())
}

// IndexKey identifies the comment in the search index.
func (c *Comment) IndexKey() string {
	return fmt.Sprintf("comments-%d", c.ID)
}

// Title returns the plain-text excerpt shown in lists and notifications.
// The optional argument overrides the default length.
func (c *Comment) Title(length ...int) string {
	n := 0
	if len(length) > 0 {
		n = length[0]
	}
	return utils.Title(c.ProcessedHTML, c.Deleted, n)
}

// AncestorIDs parses the lineage path, root first.
func (c *Comment) AncestorIDs() ([]uint, error) {
	return ParseAncestry(c.Ancestry)
}

func (c *Comment) Depth() int {
	if c.Ancestry == "" {
		return 0
	}
	return strings.Count(c.Ancestry, "/") + 1
}

// ChildAncestry is the lineage a direct reply to c carries.
func (c *Comment) ChildAncestry() string {
	id := strconv.FormatUint(uint64(c.ID), 10)
	if c.Ancestry == "" {
		return id
	}
	return c.Ancestry + "/" + id
}

// EncodeIDCode renders id in base 26 with the digits 0-9a-p.
func EncodeIDCode(id uint) string {
	return strconv.FormatUint(uint64(id), 26)
}

// DecodeIDCode is the inverse of EncodeIDCode.
func DecodeIDCode(code string) (uint, error) {
	v, err := strconv.ParseUint(code, 26, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id code %q: %w", code, err)
	}
	return uint(v), nil
}

func ParseAncestry(ancestry string) ([]uint, error) {
	if ancestry == "" {
		return nil, nil
	}
	parts := strings.Split(ancestry, "/")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ancestry %q: %w", ancestry, err)
		}
		ids = append(ids, uint(v))
	}
	return ids, nil
}

// Reaction is owned by a comment and destroyed with it.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;index" json:"comment_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Category  string    `gorm:"size:20;not null;default:'like'" json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// Mention records a resolved @username in a comment body.
type Mention struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_mentions_comment_user" json:"comment_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_mentions_comment_user" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"not null;index" json:"comment_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Config    string    `gorm:"size:20;default:'all_comments'" json:"config"`
	CreatedAt time.Time `json:"created_at"`
}
