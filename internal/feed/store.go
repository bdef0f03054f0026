// Package feed implements the feed synchronization and optimistic mutation
// engine behind the civic post list.
//
// A Store owns the merged post list. A Coordinator applies likes and bookmarks
// to it ahead of server confirmation, and a Projector derives what the screen
// shows. All three share the Store's mutex; network I/O always happens outside
// it, and every completion re-checks the session and list generation before
// touching state.
package feed

import (
	"context"
	"sync"

	"civicfeed/internal/models"
	"civicfeed/internal/observability"
	"civicfeed/internal/session"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultPageSize is the number of posts requested per page.
const DefaultPageSize = 10

// API is the slice of the feed HTTP contract the engine consumes.
type API interface {
	FetchPosts(ctx context.Context, limit, offset int) ([]models.Post, error)
	Engage(ctx context.Context, kind models.MutationKind, postID int64) (models.EngagementAck, error)
}

var storeLog = observability.NewComponentLogger("feed.store")

// Store is the paginated post list.
type Store struct {
	api      API
	guard    *session.Guard
	pageSize int
	events   *hub

	mu           sync.Mutex
	posts        []models.Post
	index        map[int64]int
	cursor       int
	hasMore      bool
	loadingFirst bool
	loadingNext  bool
	// refreshSeq increments when a first-page load starts; a next-page
	// load that sees it change discards its result.
	refreshSeq uint64
	// generation increments whenever the list is replaced.
	generation uint64
}

// NewStore returns an empty store with cursor 1 and hasMore true.
func NewStore(api API, guard *session.Guard, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		api:      api,
		guard:    guard,
		pageSize: pageSize,
		events:   newHub(),
		index:    make(map[int64]int),
		cursor:   1,
		hasMore:  true,
	}
}

// LoadFirstPage fetches page one and replaces the list. A call made while
// another first-page load is in flight returns immediately.
func (s *Store) LoadFirstPage(ctx context.Context) error {
	s.mu.Lock()
	if s.guard.Expired() {
		s.mu.Unlock()
		return models.ErrSessionExpired
	}
	if s.loadingFirst {
		s.mu.Unlock()
		return nil
	}
	s.loadingFirst = true
	s.refreshSeq++
	s.mu.Unlock()
	s.events.publish(Event{Type: EventLoadingChanged})

	span, ctx := observability.StartSpan(ctx, "feed.LoadFirstPage", attribute.Int("limit", s.pageSize))
	defer span.End()

	posts, err := s.api.FetchPosts(ctx, s.pageSize, 0)

	s.mu.Lock()
	s.loadingFirst = false
	if s.guard.Expired() {
		s.mu.Unlock()
		s.events.publish(Event{Type: EventLoadingChanged})
		observability.PageLoads.WithLabelValues("first", "expired").Inc()
		return models.NewSessionExpiredError(err)
	}
	if err != nil {
		s.mu.Unlock()
		s.events.publish(Event{Type: EventLoadingChanged})
		err = s.guard.Classify(err)
		span.SetError(err)
		observability.PageLoads.WithLabelValues("first", "error").Inc()
		storeLog.Warn(ctx, "load_first_page", err, nil)
		return err
	}

	s.posts = make([]models.Post, 0, len(posts))
	s.index = make(map[int64]int, len(posts))
	s.appendUnseen(posts)
	s.cursor = 2
	s.hasMore = len(posts) == s.pageSize
	s.generation++
	size := len(s.posts)
	s.mu.Unlock()

	s.events.publish(Event{Type: EventLoadingChanged})
	s.events.publish(Event{Type: EventListReplaced})
	observability.PageLoads.WithLabelValues("first", "ok").Inc()
	storeLog.Info(ctx, "load_first_page", map[string]any{"posts": size})
	return nil
}

// LoadNextPage appends the next page. It is a no-op while any load is in
// flight or once the server has signalled the end of the collection.
func (s *Store) LoadNextPage(ctx context.Context) error {
	s.mu.Lock()
	if s.guard.Expired() {
		s.mu.Unlock()
		return models.ErrSessionExpired
	}
	if s.loadingFirst || s.loadingNext || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	s.loadingNext = true
	seq := s.refreshSeq
	offset := (s.cursor - 1) * s.pageSize
	s.mu.Unlock()
	s.events.publish(Event{Type: EventLoadingChanged})

	span, ctx := observability.StartSpan(ctx, "feed.LoadNextPage",
		attribute.Int("limit", s.pageSize), attribute.Int("offset", offset))
	defer span.End()

	posts, err := s.api.FetchPosts(ctx, s.pageSize, offset)

	s.mu.Lock()
	s.loadingNext = false
	switch {
	case s.guard.Expired():
		s.mu.Unlock()
		s.events.publish(Event{Type: EventLoadingChanged})
		observability.PageLoads.WithLabelValues("next", "expired").Inc()
		return models.NewSessionExpiredError(err)
	case seq != s.refreshSeq:
		s.mu.Unlock()
		s.events.publish(Event{Type: EventLoadingChanged})
		observability.PageLoads.WithLabelValues("next", "superseded").Inc()
		return nil
	case err != nil:
		s.mu.Unlock()
		s.events.publish(Event{Type: EventLoadingChanged})
		err = s.guard.Classify(err)
		span.SetError(err)
		observability.PageLoads.WithLabelValues("next", "error").Inc()
		storeLog.Warn(ctx, "load_next_page", err, map[string]any{"offset": offset})
		return err
	}

	added := s.appendUnseen(posts)
	s.cursor++
	s.hasMore = len(posts) == s.pageSize
	s.mu.Unlock()

	s.events.publish(Event{Type: EventLoadingChanged})
	s.events.publish(Event{Type: EventPageAppended})
	observability.PageLoads.WithLabelValues("next", "ok").Inc()
	storeLog.Info(ctx, "load_next_page", map[string]any{"offset": offset, "added": added})
	return nil
}

// appendUnseen appends posts whose id is not yet in the list, keeping the
// first occurrence. Callers hold s.mu.
func (s *Store) appendUnseen(posts []models.Post) int {
	added := 0
	for _, p := range posts {
		if _, seen := s.index[p.ID]; seen {
			continue
		}
		s.index[p.ID] = len(s.posts)
		s.posts = append(s.posts, p.Clone())
		added++
	}
	return added
}

// Posts returns a copy of the list in display order.
func (s *Store) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []models.Post {
	out := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = p.Clone()
	}
	return out
}

// Post returns a copy of one post.
func (s *Store) Post(id int64) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.lookupLocked(id)
	if p == nil {
		return models.Post{}, false
	}
	return p.Clone(), true
}

func (s *Store) lookupLocked(id int64) *models.Post {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return &s.posts[i]
}

// HasMore reports whether another page may exist.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// IsLoading reports whether a first-page or next-page load is in flight.
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingFirst || s.loadingNext
}

// Cursor is the 1-based page number the next LoadNextPage will fetch.
func (s *Store) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Subscribe returns a channel of change events and a func that closes it.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}
