package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"threadline/internal/db"
	"threadline/internal/logger"
	"threadline/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// MentionTarget is a cached username lookup. Only entries with Found set are
// ever stored.
type MentionTarget struct {
	UserID uint
	Path   string
	Found  bool
}

// MentionCache remembers found users across processing calls. Misses are
// never stored, so a name registered a moment ago links on the next call.
// Implementations must be safe for concurrent use.
type MentionCache interface {
	Get(key string) (MentionTarget, bool)
	Set(key string, target MentionTarget)
}

// NewMentionCache returns an in-process lru cache with per-entry expiry.
func NewMentionCache(size int, ttl time.Duration) (*utils.Cache[MentionTarget], error) {
	return utils.NewCache[MentionTarget](size, ttl)
}

// mentionResolver resolves names for one processing call and remembers
// which users were hit so Mention rows can be rebuilt afterwards.
type mentionResolver struct {
	ctx   context.Context
	users UserDirectory
	cache MentionCache

	mu     sync.Mutex
	hits   []uint
	seen   map[uint]bool
	misses map[string]bool
}

func newMentionResolver(ctx context.Context, users UserDirectory, cache MentionCache) *mentionResolver {
	return &mentionResolver{ctx: ctx, users: users, cache: cache, seen: make(map[uint]bool), misses: make(map[string]bool)}
}

func (r *mentionResolver) ResolveMention(username string) (string, bool) {
	key := cases.Fold().String(username)

	r.mu.Lock()
	missed := r.misses[key]
	r.mu.Unlock()
	if missed {
		return "", false
	}

	target, ok := r.lookupCache(key)
	if !ok || !target.Found {
		u, err := r.users.FindUserByUsername(r.ctx, username)
		switch {
		case errors.Is(err, db.ErrNotFound):
			r.mu.Lock()
			r.misses[key] = true
			r.mu.Unlock()
			return "", false
		case err != nil:
			logger.Warn("Mention lookup failed", zap.String("username", username), zap.Error(err))
			return "", false
		}
		target = MentionTarget{UserID: u.ID, Path: u.ProfilePath(), Found: true}
		if r.cache != nil {
			r.cache.Set(key, target)
		}
	}

	r.mu.Lock()
	if !r.seen[target.UserID] {
		r.seen[target.UserID] = true
		r.hits = append(r.hits, target.UserID)
	}
	r.mu.Unlock()
	return target.Path, true
}

func (r *mentionResolver) lookupCache(key string) (MentionTarget, bool) {
	if r.cache == nil {
		return MentionTarget{}, false
	}
	return r.cache.Get(key)
}

// UserIDs lists mentioned users in first-mention order.
func (r *mentionResolver) UserIDs() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.hits...)
}
