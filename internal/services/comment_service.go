package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"threadline/internal/db"
	"threadline/internal/logger"
	"threadline/internal/models"
	"threadline/internal/utils"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type CreateCommentInput struct {
	UserID          uint   `json:"user_id" validate:"required"`
	CommentableType string `json:"commentable_type" validate:"required,oneof=Article PodcastEpisode"`
	CommentableID   uint   `json:"commentable_id" validate:"required"`
	ParentID        *uint  `json:"parent_id"`
	BodyMarkdown    string `json:"body_markdown" validate:"required,max=25000"`
}

type UpdateCommentInput struct {
	BodyMarkdown string `json:"body_markdown" validate:"required,max=25000"`
}

type Deps struct {
	Comments      CommentStore
	Notifications NotificationStore
	Users         UserDirectory
	Commentables  CommentableLookup
	Index         IndexSignaler
}

type Options struct {
	AppDomain      string
	TreeMaxDepth   int
	CascadeWorkers int
	MentionCache   MentionCache // nil disables caching
}

// CommentService is the mutation and read path for comments: it validates,
// processes markdown, persists, cascades deletes and emits index signals.
type CommentService struct {
	comments      CommentStore
	notifications NotificationStore
	users         UserDirectory
	commentables  CommentableLookup
	index         IndexSignaler
	propagator    *Propagator
	mentionCache  MentionCache
	validate      *validator.Validate
	appDomain     string
	maxDepth      int
}

func NewCommentService(deps Deps, opts Options) *CommentService {
	maxDepth := opts.TreeMaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &CommentService{
		comments:      deps.Comments,
		notifications: deps.Notifications,
		users:         deps.Users,
		commentables:  deps.Commentables,
		index:         deps.Index,
		propagator: &Propagator{
			Comments:      deps.Comments,
			Notifications: deps.Notifications,
			Workers:       opts.CascadeWorkers,
			MaxDepth:      maxDepth,
		},
		mentionCache: opts.MentionCache,
		validate:     v,
		appDomain:    opts.AppDomain,
		maxDepth:     maxDepth,
	}
}

func (s *CommentService) Find(ctx context.Context, id uint) (models.Comment, error) {
	c, err := s.comments.FindComment(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return models.Comment{}, fmt.Errorf("%w: %d", ErrCommentNotFound, id)
	}
	return c, err
}

// Create validates and stores a new comment.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (models.Comment, error) {
	if err := s.check(in); err != nil {
		return models.Comment{}, err
	}
	if strings.TrimSpace(in.BodyMarkdown) == "" {
		return models.Comment{}, invalid("body_markdown", "can't be blank")
	}

	ref := models.CommentableRef{Type: models.CommentableType(in.CommentableType), ID: in.CommentableID}
	commentable, err := s.publishedCommentable(ctx, ref)
	if err != nil {
		return models.Comment{}, err
	}

	author, err := s.users.FindUser(ctx, in.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return models.Comment{}, invalid("user_id", "must exist")
	}
	if err != nil {
		return models.Comment{}, err
	}

	c := models.Comment{
		BodyMarkdown:    in.BodyMarkdown,
		UserID:          author.ID,
		User:            author,
		CommentableType: string(ref.Type),
		CommentableID:   ref.ID,
	}

	var parent *models.Comment
	if in.ParentID != nil {
		p, err := s.comments.FindComment(ctx, *in.ParentID)
		if errors.Is(err, db.ErrNotFound) {
			return models.Comment{}, invalid("parent_id", "must exist")
		}
		if err != nil {
			return models.Comment{}, err
		}
		if p.Ref() != ref {
			return models.Comment{}, invalid("parent_id", "must belong to the same commentable")
		}
		if ids, err := p.AncestorIDs(); err != nil {
			return models.Comment{}, &IntegrityError{CommentID: p.ID, Reason: err.Error()}
		} else if slices.Contains(ids, p.ID) {
			return models.Comment{}, &IntegrityError{CommentID: p.ID, Reason: "comment is its own ancestor"}
		}
		c.ParentID = &p.ID
		c.Ancestry = p.ChildAncestry()
		if c.Depth() > s.maxDepth {
			return models.Comment{}, invalid("parent_id", "thread is nested too deeply")
		}
		parent = &p
	}

	if err := s.checkDuplicate(ctx, c); err != nil {
		return models.Comment{}, err
	}
	mentioned, err := s.process(ctx, &c, commentable)
	if err != nil {
		return models.Comment{}, err
	}
	c.Normalize()

	if err := s.comments.CreateComment(ctx, &c); err != nil {
		return models.Comment{}, err
	}
	logger.Info("Comment created", zap.Uint("comment_id", c.ID), zap.String("commentable", ref.String()))

	s.replaceMentions(ctx, c, mentioned)
	s.notifyThread(ctx, c, parent, commentable, mentioned)
	s.signal(IndexActionIndex, c)
	return c, nil
}

// Update replaces the body of a live comment and reprocesses it.
func (s *CommentService) Update(ctx context.Context, id uint, in UpdateCommentInput) (models.Comment, error) {
	if err := s.check(in); err != nil {
		return models.Comment{}, err
	}
	if strings.TrimSpace(in.BodyMarkdown) == "" {
		return models.Comment{}, invalid("body_markdown", "can't be blank")
	}

	c, err := s.Find(ctx, id)
	if err != nil {
		return models.Comment{}, err
	}
	if c.Deleted {
		return models.Comment{}, invalid("deleted", "comment has been deleted and can't be edited")
	}
	if c.BodyMarkdown == in.BodyMarkdown {
		return c, nil
	}

	commentable, err := s.publishedCommentable(ctx, c.Ref())
	if err != nil {
		return models.Comment{}, err
	}

	c.BodyMarkdown = in.BodyMarkdown
	if err := s.checkDuplicate(ctx, c); err != nil {
		return models.Comment{}, err
	}
	mentioned, err := s.process(ctx, &c, commentable)
	if err != nil {
		return models.Comment{}, err
	}
	c.Normalize()

	if err := s.comments.SaveComment(ctx, &c); err != nil {
		return models.Comment{}, err
	}

	s.replaceMentions(ctx, c, mentioned)
	s.signal(IndexActionIndex, c)
	return c, nil
}

// SoftDelete marks the comment deleted and fixes the ancestor title cached
// on every descendant notification. Repeating it re-runs the cascade but
// emits no second remove signal.
func (s *CommentService) SoftDelete(ctx context.Context, id uint) (models.Comment, CascadeResult, error) {
	c, err := s.Find(ctx, id)
	if err != nil {
		return models.Comment{}, CascadeResult{}, err
	}

	plan, err := s.propagator.Plan(ctx, c)
	if err != nil {
		return models.Comment{}, CascadeResult{}, err
	}

	wasDeleted := c.Deleted
	if !wasDeleted {
		c.Deleted = true
		if err := s.comments.SaveComment(ctx, &c); err != nil {
			return models.Comment{}, CascadeResult{}, err
		}
		s.signal(IndexActionRemove, c)
	}

	// Cascade write failures are healed by the next run; the delete stands.
	res, _ := s.propagator.Apply(ctx, plan, utils.DeletedTitle)
	logger.Info("Comment soft deleted",
		zap.Uint("comment_id", c.ID),
		zap.Bool("already_deleted", wasDeleted),
		zap.Int("descendants", res.Descendants),
		zap.Int("notifications_updated", res.Updated))
	return c, res, nil
}

// Destroy removes the comment and its owned records. Descendants stay in
// place and their notifications show the deleted placeholder.
func (s *CommentService) Destroy(ctx context.Context, id uint) (CascadeResult, error) {
	c, err := s.Find(ctx, id)
	if err != nil {
		return CascadeResult{}, err
	}
	plan, err := s.propagator.Plan(ctx, c)
	if err != nil {
		return CascadeResult{}, err
	}

	if err := s.comments.DestroyComment(ctx, c.ID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return CascadeResult{}, fmt.Errorf("%w: %d", ErrCommentNotFound, id)
		}
		return CascadeResult{}, err
	}
	if !c.Deleted {
		s.signal(IndexActionRemove, c)
	}

	res, _ := s.propagator.Apply(ctx, plan, utils.DeletedTitle)
	logger.Info("Comment destroyed",
		zap.Uint("comment_id", c.ID),
		zap.Int("descendants", res.Descendants),
		zap.Int("notifications_updated", res.Updated))
	return res, nil
}

// RefreshSnapshots re-applies c's current title to every descendant
// notification. It heals a cascade that stopped part way.
func (s *CommentService) RefreshSnapshots(ctx context.Context, id uint) (CascadeResult, error) {
	c, err := s.Find(ctx, id)
	if err != nil {
		return CascadeResult{}, err
	}
	return s.propagator.Propagate(ctx, c, c.Title())
}

func (s *CommentService) SetScore(ctx context.Context, id uint, score int) error {
	err := s.comments.UpdateScore(ctx, id, score)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrCommentNotFound, id)
	}
	return err
}

// TreeFor builds the thread of ref from one snapshot of its comments.
func (s *CommentService) TreeFor(ctx context.Context, ref models.CommentableRef, minScore *int) ([]*TreeNode, error) {
	if _, err := s.findCommentable(ctx, ref); err != nil {
		return nil, err
	}
	comments, err := s.comments.CommentsFor(ctx, ref)
	if err != nil {
		return nil, err
	}
	return BuildTree(comments, TreeOptions{MinScore: minScore, MaxDepth: s.maxDepth})
}

// Title returns the plain-text title of a comment. A length below one
// falls back to the default.
func (s *CommentService) Title(ctx context.Context, id uint, length int) (string, error) {
	c, err := s.Find(ctx, id)
	if err != nil {
		return "", err
	}
	return c.Title(length), nil
}

func (s *CommentService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "can't be blank")
	case "max":
		return invalid(fe.Field(), fmt.Sprintf("is too long (maximum is %s characters)", fe.Param()))
	case "oneof":
		return invalid(fe.Field(), "is not included in the list")
	}
	return invalid(fe.Field(), "is invalid")
}

func (s *CommentService) findCommentable(ctx context.Context, ref models.CommentableRef) (models.Commentable, error) {
	if !ref.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrCommentableNotFound, ref)
	}
	c, err := s.commentables.FindCommentable(ctx, ref)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCommentableNotFound, ref)
	}
	return c, err
}

func (s *CommentService) publishedCommentable(ctx context.Context, ref models.CommentableRef) (models.Commentable, error) {
	c, err := s.findCommentable(ctx, ref)
	if errors.Is(err, db.ErrNotFound) {
		return nil, invalid("commentable_id", "must exist")
	}
	if err != nil {
		return nil, err
	}
	if !c.IsPublished() {
		return nil, invalid("commentable_id", "is not published")
	}
	return c, nil
}

func (s *CommentService) checkDuplicate(ctx context.Context, c models.Comment) error {
	dup, err := s.comments.DuplicateExists(ctx, c)
	if err != nil {
		return err
	}
	if dup {
		return invalid("body_markdown", "has already been posted in this thread")
	}
	return nil
}

// process renders and enriches the body, returning the mentioned user ids.
func (s *CommentService) process(ctx context.Context, c *models.Comment, commentable models.Commentable) ([]uint, error) {
	resolver := newMentionResolver(ctx, s.users, s.mentionCache)
	out, err := utils.ProcessMarkdown(c.BodyMarkdown, utils.EnrichOptions{
		Mentions:  resolver,
		Video:     commentable,
		AppDomain: s.appDomain,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, invalid("body_markdown", "has no displayable content")
	}
	c.ProcessedHTML = out
	return resolver.UserIDs(), nil
}

func (s *CommentService) replaceMentions(ctx context.Context, c models.Comment, userIDs []uint) {
	ids := slices.DeleteFunc(slices.Clone(userIDs), func(id uint) bool { return id == c.UserID })
	if err := s.comments.ReplaceMentions(ctx, c.ID, ids); err != nil {
		logger.Error("Failed to store mentions", zap.Uint("comment_id", c.ID), zap.Error(err))
	}
}

// notifyThread records a reply notification for the parent's author and a
// mention notification for each mentioned user. Delivery is not our job.
func (s *CommentService) notifyThread(ctx context.Context, c models.Comment, parent *models.Comment, commentable models.Commentable, mentioned []uint) {
	ancestors := s.ancestorsOf(ctx, c)
	payload, err := BuildPayload(c, ancestors, commentable)
	if err != nil {
		logger.Error("Failed to build notification payload", zap.Uint("comment_id", c.ID), zap.Error(err))
		return
	}

	notified := map[uint]bool{c.UserID: true}
	create := func(receiver uint, action models.NotificationAction) {
		if notified[receiver] {
			return
		}
		notified[receiver] = true
		n := &models.Notification{
			UserID:         receiver,
			NotifiableID:   c.ID,
			NotifiableType: models.NotifiableComment,
			Action:         action,
			JSONData:       payload,
		}
		if err := s.notifications.CreateNotification(ctx, n); err != nil {
			logger.Error("Failed to create notification",
				zap.Uint("comment_id", c.ID),
				zap.Uint("receiver_id", receiver),
				zap.Error(err))
		}
	}

	if parent != nil {
		create(parent.UserID, models.NotificationActionReply)
	}
	for _, id := range mentioned {
		create(id, models.NotificationActionMention)
	}
}

func (s *CommentService) ancestorsOf(ctx context.Context, c models.Comment) []models.Comment {
	ids, err := c.AncestorIDs()
	if err != nil {
		return nil
	}
	out := make([]models.Comment, 0, len(ids))
	for _, id := range ids {
		a, err := s.comments.FindComment(ctx, id)
		if err != nil {
			logger.Warn("Ancestor missing from payload", zap.Uint("comment_id", c.ID), zap.Uint("ancestor_id", id), zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out
}

func (s *CommentService) signal(action IndexAction, c models.Comment) {
	if s.index == nil {
		return
	}
	s.index.Signal(NewIndexEvent(action, c))
}
