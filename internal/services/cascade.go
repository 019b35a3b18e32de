package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"threadline/internal/logger"
	"threadline/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

type DescendantLister interface {
	Descendants(ctx context.Context, c models.Comment) ([]models.Comment, error)
}

// Propagator rewrites the cached ancestor titles on the notifications of a
// comment's descendants.
type Propagator struct {
	Comments      DescendantLister
	Notifications NotificationStore
	Workers       int
	MaxDepth      int
}

type CascadeResult struct {
	Descendants   int
	Notifications int
	Updated       int
}

// CascadePlan is a validated descendant walk, ready to be applied.
type CascadePlan struct {
	Ancestor    models.Comment
	Descendants []models.Comment
}

// Propagate plans and applies the cascade in one step.
func (p *Propagator) Propagate(ctx context.Context, ancestor models.Comment, title string) (CascadeResult, error) {
	plan, err := p.Plan(ctx, ancestor)
	if err != nil {
		return CascadeResult{}, err
	}
	return p.Apply(ctx, plan, title)
}

// Plan loads the subtree under ancestor once and walks it breadth first.
// A comment reached twice, or the ancestor reached again, is an
// IntegrityError, as is a walk deeper than MaxDepth.
func (p *Propagator) Plan(ctx context.Context, ancestor models.Comment) (*CascadePlan, error) {
	listed, err := p.Comments.Descendants(ctx, ancestor)
	if err != nil {
		return nil, fmt.Errorf("load descendants of %d: %w", ancestor.ID, err)
	}
	maxDepth := p.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	children := make(map[uint][]int, len(listed))
	for i, d := range listed {
		if d.ID == ancestor.ID {
			return nil, &IntegrityError{CommentID: d.ID, Reason: "comment is its own ancestor"}
		}
		if ids, err := d.AncestorIDs(); err == nil && slices.Contains(ids, d.ID) {
			return nil, &IntegrityError{CommentID: d.ID, Reason: "comment is its own ancestor"}
		}
		if d.ParentID != nil {
			children[*d.ParentID] = append(children[*d.ParentID], i)
		}
	}

	visited := make(map[uint]bool, len(listed)+1)
	visited[ancestor.ID] = true
	ordered := make([]models.Comment, 0, len(listed))
	level := []uint{ancestor.ID}
	for depth := 1; len(level) > 0; depth++ {
		var next []uint
		for _, id := range level {
			for _, i := range children[id] {
				d := listed[i]
				if visited[d.ID] {
					return nil, &IntegrityError{CommentID: d.ID, Reason: "comment is its own ancestor"}
				}
				if depth > maxDepth {
					return nil, &IntegrityError{CommentID: d.ID, Reason: "thread exceeds maximum depth"}
				}
				visited[d.ID] = true
				ordered = append(ordered, d)
				next = append(next, d.ID)
			}
		}
		level = next
	}
	// The lineage path says these are descendants even if a parent pointer
	// disagrees; they still need their snapshots fixed.
	for _, d := range listed {
		if !visited[d.ID] {
			visited[d.ID] = true
			ordered = append(ordered, d)
		}
	}

	return &CascadePlan{Ancestor: ancestor, Descendants: ordered}, nil
}

// Apply retitles the ancestor on every descendant notification. Descendants
// are processed concurrently; a failure on one does not stop the rest and
// every error is returned joined.
func (p *Propagator) Apply(ctx context.Context, plan *CascadePlan, title string) (CascadeResult, error) {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		notifications atomic.Int64
		updated       atomic.Int64
		mu            sync.Mutex
		errs          []error
	)
	mutate := RetitleAncestor(plan.Ancestor.ID, title)

	var g errgroup.Group
	g.SetLimit(workers)
	for _, d := range plan.Descendants {
		g.Go(func() error {
			list, err := p.Notifications.NotificationsFor(ctx, d.ID)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("notifications for %d: %w", d.ID, err))
				mu.Unlock()
				return nil
			}
			for _, n := range list {
				notifications.Add(1)
				var changed bool
				err := p.Notifications.UpdatePayload(ctx, n.ID, func(payload datatypes.JSON) (datatypes.JSON, bool, error) {
					next, ok, err := mutate(payload)
					changed = ok && err == nil
					return next, ok, err
				})
				if err == nil && changed {
					updated.Add(1)
				}
				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("notification %d: %w", n.ID, err))
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	res := CascadeResult{
		Descendants:   len(plan.Descendants),
		Notifications: int(notifications.Load()),
		Updated:       int(updated.Load()),
	}
	err := errors.Join(errs...)
	if err != nil {
		logger.Warn("Cascade finished with errors",
			zap.Uint("comment_id", plan.Ancestor.ID),
			zap.Int("descendants", res.Descendants),
			zap.Int("updated", res.Updated),
			zap.Error(err))
	}
	return res, err
}
