package services

import (
	"context"

	"threadline/internal/models"
)

// CommentStore is the persistence the comment service needs. Lookups
// return db.ErrNotFound (wrapped) for missing rows.
type CommentStore interface {
	DescendantLister
	FindComment(ctx context.Context, id uint) (models.Comment, error)
	CommentsFor(ctx context.Context, ref models.CommentableRef) ([]models.Comment, error)
	DuplicateExists(ctx context.Context, c models.Comment) (bool, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	SaveComment(ctx context.Context, c *models.Comment) error
	UpdateScore(ctx context.Context, id uint, score int) error
	ReplaceMentions(ctx context.Context, commentID uint, userIDs []uint) error
	DestroyComment(ctx context.Context, id uint) error
}

// NotificationStore must serialize UpdatePayload calls for the same record.
type NotificationStore interface {
	NotificationsFor(ctx context.Context, commentID uint) ([]models.Notification, error)
	UpdatePayload(ctx context.Context, id uint, mutate models.PayloadMutator) error
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type UserDirectory interface {
	FindUser(ctx context.Context, id uint) (models.User, error)
	FindUserByUsername(ctx context.Context, username string) (models.User, error)
}

type CommentableLookup interface {
	FindCommentable(ctx context.Context, ref models.CommentableRef) (models.Commentable, error)
}
