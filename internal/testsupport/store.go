// Package testsupport provides in-memory stand-ins for the gorm store and
// the index publisher, for use in tests.
package testsupport

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"threadline/internal/db"
	"threadline/internal/models"
	"threadline/internal/services"
)

// MemoryStore implements every store interface the services need. Writes to
// one notification payload are serialized per record.
type MemoryStore struct {
	mu            sync.Mutex
	nextID        uint
	clock         time.Time
	comments      map[uint]models.Comment
	users         map[uint]models.User
	commentables  map[models.CommentableRef]models.Commentable
	notifications map[uint]models.Notification
	mentions      map[uint][]uint
	reactions     map[uint]int
	subscriptions map[uint]int

	locks sync.Map // notification id -> *sync.Mutex

	// FailPayload makes UpdatePayload fail for the listed notification ids.
	FailPayload map[uint]error
	// PayloadWrites counts UpdatePayload calls that actually wrote.
	PayloadWrites int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		comments:      make(map[uint]models.Comment),
		users:         make(map[uint]models.User),
		commentables:  make(map[models.CommentableRef]models.Commentable),
		notifications: make(map[uint]models.Notification),
		mentions:      make(map[uint][]uint),
		reactions:     make(map[uint]int),
		subscriptions: make(map[uint]int),
		FailPayload:   make(map[uint]error),
	}
}

// tick must be called with mu held.
func (s *MemoryStore) tick() (uint, time.Time) {
	s.nextID++
	s.clock = s.clock.Add(time.Second)
	return s.nextID, s.clock
}

func (s *MemoryStore) AddUser(username string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, now := s.tick()
	u := models.User{ID: id, Username: username, CreatedAt: now, UpdatedAt: now}
	s.users[id] = u
	return u
}

func (s *MemoryStore) AddArticle(title string, published bool, videoURL string) *models.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, now := s.tick()
	a := &models.Article{ID: id, Title: title, Published: published, VideoSourceURL: videoURL, CreatedAt: now, UpdatedAt: now}
	s.commentables[a.Ref()] = a
	return a
}

func (s *MemoryStore) AddPodcastEpisode(title string, published bool, videoURL string) *models.PodcastEpisode {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, now := s.tick()
	p := &models.PodcastEpisode{ID: id, Title: title, Published: published, VideoURL: videoURL, CreatedAt: now, UpdatedAt: now}
	s.commentables[p.Ref()] = p
	return p
}

// PutComment stores c as is, assigning an id and timestamps when missing.
// Tests use it to seed trees, including corrupt ones.
func (s *MemoryStore) PutComment(c models.Comment) models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, now := s.tick()
	if c.ID == 0 {
		c.ID = id
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Normalize()
	s.comments[c.ID] = c
	return c
}

// AddReaction and AddSubscription seed records owned by a comment.
func (s *MemoryStore) AddReaction(commentID uint) {
	s.mu.Lock()
	s.reactions[commentID]++
	s.mu.Unlock()
}

func (s *MemoryStore) AddSubscription(commentID uint) {
	s.mu.Lock()
	s.subscriptions[commentID]++
	s.mu.Unlock()
}

// OwnedRecords reports the reactions, mentions and subscriptions left for a comment.
func (s *MemoryStore) OwnedRecords(commentID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reactions[commentID] + len(s.mentions[commentID]) + s.subscriptions[commentID]
}

func (s *MemoryStore) Mentions(commentID uint) []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.mentions[commentID])
}

func (s *MemoryStore) Notification(id uint) (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	return n, ok
}

// Notifications lists every stored notification in id order.
func (s *MemoryStore) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b models.Notification) int { return int(a.ID) - int(b.ID) })
	return out
}

func (s *MemoryStore) withUser(c models.Comment) models.Comment {
	c.User = s.users[c.UserID]
	return c
}

func (s *MemoryStore) FindComment(_ context.Context, id uint) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return models.Comment{}, fmt.Errorf("memory.FindComment: %w", db.ErrNotFound)
	}
	return s.withUser(c), nil
}

func (s *MemoryStore) CommentsFor(_ context.Context, ref models.CommentableRef) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Comment
	for _, c := range s.comments {
		if c.Ref() == ref {
			out = append(out, s.withUser(c))
		}
	}
	slices.SortFunc(out, func(a, b models.Comment) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (s *MemoryStore) Descendants(_ context.Context, c models.Comment) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := c.ChildAncestry()
	var out []models.Comment
	for _, d := range s.comments {
		if d.Ref() != c.Ref() {
			continue
		}
		if d.Ancestry == prefix || strings.HasPrefix(d.Ancestry, prefix+"/") {
			out = append(out, s.withUser(d))
		}
	}
	slices.SortFunc(out, func(a, b models.Comment) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (s *MemoryStore) DuplicateExists(_ context.Context, c models.Comment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.comments {
		if o.ID != c.ID && o.BodyMarkdown == c.BodyMarkdown && o.UserID == c.UserID &&
			o.Ancestry == c.Ancestry && o.Ref() == c.Ref() {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) CreateComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, now := s.tick()
	c.ID = id
	c.CreatedAt, c.UpdatedAt = now, now
	c.Normalize()
	stored := *c
	stored.User = models.User{}
	s.comments[id] = stored
	return nil
}

func (s *MemoryStore) SaveComment(_ context.Context, c *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[c.ID]; !ok {
		return fmt.Errorf("memory.SaveComment: %w", db.ErrNotFound)
	}
	_, now := s.tick()
	c.UpdatedAt = now
	c.Normalize()
	stored := *c
	stored.User = models.User{}
	s.comments[c.ID] = stored
	return nil
}

func (s *MemoryStore) UpdateScore(_ context.Context, id uint, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return fmt.Errorf("memory.UpdateScore: %w", db.ErrNotFound)
	}
	c.Score = score
	s.comments[id] = c
	return nil
}

func (s *MemoryStore) ReplaceMentions(_ context.Context, commentID uint, userIDs []uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(userIDs) == 0 {
		delete(s.mentions, commentID)
		return nil
	}
	s.mentions[commentID] = slices.Clone(userIDs)
	return nil
}

func (s *MemoryStore) DestroyComment(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return fmt.Errorf("memory.DestroyComment: %w", db.ErrNotFound)
	}
	delete(s.comments, id)
	delete(s.mentions, id)
	delete(s.reactions, id)
	delete(s.subscriptions, id)
	for nid, n := range s.notifications {
		if n.NotifiableType == models.NotifiableComment && n.NotifiableID == id {
			delete(s.notifications, nid)
		}
	}
	return nil
}

func (s *MemoryStore) NotificationsFor(_ context.Context, commentID uint) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.NotifiableType == models.NotifiableComment && n.NotifiableID == commentID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b models.Notification) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (s *MemoryStore) UpdatePayload(_ context.Context, id uint, mutate models.PayloadMutator) error {
	lock, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
	defer lock.(*sync.Mutex).Unlock()

	s.mu.Lock()
	n, ok := s.notifications[id]
	failure := s.FailPayload[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("memory.UpdatePayload: %w", db.ErrNotFound)
	}
	if failure != nil {
		return failure
	}

	next, changed, err := mutate(n.JSONData)
	if err != nil || !changed {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n.JSONData = next
	s.notifications[id] = n
	s.PayloadWrites++
	return nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, now := s.tick()
	n.ID = id
	n.CreatedAt, n.UpdatedAt = now, now
	s.notifications[id] = *n
	return nil
}

func (s *MemoryStore) FindUser(_ context.Context, id uint) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("memory.FindUser: %w", db.ErrNotFound)
	}
	return u, nil
}

func (s *MemoryStore) FindUserByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("memory.FindUserByUsername: %w", db.ErrNotFound)
}

func (s *MemoryStore) FindCommentable(_ context.Context, ref models.CommentableRef) (models.Commentable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commentables[ref]
	if !ok {
		return nil, fmt.Errorf("memory.FindCommentable: %w", db.ErrNotFound)
	}
	return c, nil
}

// RecordingIndex captures index signals synchronously.
type RecordingIndex struct {
	mu     sync.Mutex
	events []services.IndexEvent
}

func (r *RecordingIndex) Signal(evt services.IndexEvent) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *RecordingIndex) Events() []services.IndexEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// RecordingPublisher collects published events; Err, when set, fails every publish.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []services.IndexEvent
	Err    error
}

func (p *RecordingPublisher) Publish(ctx context.Context, evt services.IndexEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *RecordingPublisher) Events() []services.IndexEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

var (
	_ services.CommentStore      = (*MemoryStore)(nil)
	_ services.NotificationStore = (*MemoryStore)(nil)
	_ services.UserDirectory     = (*MemoryStore)(nil)
	_ services.CommentableLookup = (*MemoryStore)(nil)
	_ services.IndexSignaler     = (*RecordingIndex)(nil)
	_ services.IndexPublisher    = (*RecordingPublisher)(nil)
)
