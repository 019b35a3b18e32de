package db

import (
	"context"
	"fmt"
	"strings"

	"threadline/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements the comment, notification, user and commentable
// collaborators on top of gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) FindComment(ctx context.Context, id uint) (models.Comment, error) {
	const op = "db.FindComment"

	var c models.Comment
	if err := s.db.WithContext(ctx).Preload("User").First(&c, id).Error; err != nil {
		return models.Comment{}, notFound(op, err)
	}
	return c, nil
}

func (s *Store) CommentsFor(ctx context.Context, ref models.CommentableRef) ([]models.Comment, error) {
	const op = "db.CommentsFor"

	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("User").
		Where("commentable_type = ? AND commentable_id = ?", string(ref.Type), ref.ID).
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return comments, nil
}

// Descendants returns every comment whose lineage passes through c.
func (s *Store) Descendants(ctx context.Context, c models.Comment) ([]models.Comment, error) {
	const op = "db.Descendants"

	prefix := c.ChildAncestry()
	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("User").
		Where("commentable_type = ? AND commentable_id = ?", c.CommentableType, c.CommentableID).
		Where("ancestry = ? OR ancestry LIKE ?", prefix, escapeLike(prefix)+"/%").
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return comments, nil
}

func (s *Store) DuplicateExists(ctx context.Context, c models.Comment) (bool, error) {
	const op = "db.DuplicateExists"

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("body_digest = ? AND user_id = ? AND ancestry = ? AND commentable_id = ? AND commentable_type = ?",
			models.BodyDigest(c.BodyMarkdown), c.UserID, c.Ancestry, c.CommentableID, c.CommentableType).
		Where("id <> ?", c.ID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return count > 0, nil
}

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	const op = "db.CreateComment"

	if err := s.db.WithContext(ctx).Omit("User").Create(c).Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) SaveComment(ctx context.Context, c *models.Comment) error {
	const op = "db.SaveComment"

	if err := s.db.WithContext(ctx).Omit("User").Save(c).Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) UpdateScore(ctx context.Context, id uint, score int) error {
	const op = "db.UpdateScore"

	res := s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).UpdateColumn("score", score)
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (s *Store) ReplaceMentions(ctx context.Context, commentID uint, userIDs []uint) error {
	const op = "db.ReplaceMentions"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.Mention{}).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		mentions := make([]models.Mention, 0, len(userIDs))
		for _, id := range userIDs {
			mentions = append(mentions, models.Mention{CommentID: commentID, UserID: id})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&mentions).Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DestroyComment removes the comment row with its reactions, mentions and
// subscriptions. Notifications are bulk deleted without hooks.
func (s *Store) DestroyComment(ctx context.Context, id uint) error {
	const op = "db.DestroyComment"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := []any{&models.Reaction{}, &models.Mention{}, &models.NotificationSubscription{}}
		for _, m := range owned {
			if err := tx.Where("comment_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("notifiable_type = ? AND notifiable_id = ?", models.NotifiableComment, id).
			Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Comment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return notFound(op, err)
	}
	return nil
}

func (s *Store) NotificationsFor(ctx context.Context, commentID uint) ([]models.Notification, error) {
	const op = "db.NotificationsFor"

	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("notifiable_type = ? AND notifiable_id = ?", models.NotifiableComment, commentID).
		Order("id ASC").
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return notifications, nil
}

// UpdatePayload rewrites one notification's json_data under a row lock, so
// concurrent cascades touching the same record are serialized.
func (s *Store) UpdatePayload(ctx context.Context, id uint, mutate models.PayloadMutator) error {
	const op = "db.UpdatePayload"

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n models.Notification
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&n, id).Error; err != nil {
			return err
		}
		next, changed, err := mutate(n.JSONData)
		if err != nil || !changed {
			return err
		}
		// UpdateColumn keeps updated_at untouched: this is a silent fix-up.
		return tx.Model(&n).UpdateColumn("json_data", next).Error
	})
	if err != nil {
		return notFound(op, err)
	}
	return nil
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	const op = "db.CreateNotification"

	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Store) FindUser(ctx context.Context, id uint) (models.User, error) {
	const op = "db.FindUser"

	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return models.User{}, notFound(op, err)
	}
	return u, nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	const op = "db.FindUserByUsername"

	var u models.User
	if err := s.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&u).Error; err != nil {
		return models.User{}, notFound(op, err)
	}
	return u, nil
}

func (s *Store) FindCommentable(ctx context.Context, ref models.CommentableRef) (models.Commentable, error) {
	const op = "db.FindCommentable"

	switch ref.Type {
	case models.CommentableArticle:
		var a models.Article
		if err := s.db.WithContext(ctx).First(&a, ref.ID).Error; err != nil {
			return nil, notFound(op, err)
		}
		return &a, nil
	case models.CommentablePodcastEpisode:
		var p models.PodcastEpisode
		if err := s.db.WithContext(ctx).First(&p, ref.ID).Error; err != nil {
			return nil, notFound(op, err)
		}
		return &p, nil
	}
	return nil, fmt.Errorf("%s: unknown commentable type %q: %w", op, ref.Type, ErrNotFound)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
