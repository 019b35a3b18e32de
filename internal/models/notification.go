package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationAction string

const (
	NotificationActionReply   NotificationAction = "reply"
	NotificationActionMention NotificationAction = "mention"
)

const NotifiableComment = "Comment"

type Notification struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	UserID         uint               `gorm:"not null;index" json:"user_id"` // Receiver
	NotifiableID   uint               `gorm:"not null;index:idx_notifications_notifiable,priority:2" json:"notifiable_id"`
	NotifiableType string             `gorm:"size:32;not null;index:idx_notifications_notifiable,priority:1" json:"notifiable_type"`
	Action         NotificationAction `gorm:"type:varchar(20);not null" json:"action"`
	JSONData       datatypes.JSON     `gorm:"type:jsonb" json:"json_data"`
	IsRead         bool               `gorm:"default:false;index" json:"is_read"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// NotificationPayload is the denormalized snapshot stored in JSONData.
type NotificationPayload struct {
	Comment     PayloadComment     `json:"comment"`
	User        PayloadUser        `json:"user"`
	Commentable PayloadCommentable `json:"commentable"`
}

type PayloadComment struct {
	ID        uint              `json:"id"`
	Path      string            `json:"path"`
	Title     string            `json:"title"`
	Depth     int               `json:"depth"`
	Ancestors []PayloadAncestor `json:"ancestors"`
}

type PayloadAncestor struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
	Depth int    `json:"depth"`
}

type PayloadUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type PayloadCommentable struct {
	Type  CommentableType `json:"type"`
	ID    uint            `json:"id"`
	Title string          `json:"title"`
}

// PayloadMutator rewrites a notification payload. It reports whether the
// payload changed so stores can skip no-op writes.
type PayloadMutator func(payload datatypes.JSON) (next datatypes.JSON, changed bool, err error)
