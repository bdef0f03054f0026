package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"civicfeed/internal/models"
	"civicfeed/internal/session"
)

// stubAPI is a stub implementation of API.
type stubAPI struct {
	fetchFn  func(ctx context.Context, limit, offset int) ([]models.Post, error)
	engageFn func(ctx context.Context, kind models.MutationKind, postID int64) (models.EngagementAck, error)

	fetches atomic.Int32
	engages atomic.Int32

	mu      sync.Mutex
	offsets []int
}

func (s *stubAPI) FetchPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	s.fetches.Add(1)
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	s.mu.Unlock()
	if s.fetchFn != nil {
		return s.fetchFn(ctx, limit, offset)
	}
	return nil, nil
}

func (s *stubAPI) Engage(ctx context.Context, kind models.MutationKind, postID int64) (models.EngagementAck, error) {
	s.engages.Add(1)
	if s.engageFn != nil {
		return s.engageFn(ctx, kind, postID)
	}
	return models.EngagementAck{Success: true}, nil
}

func (s *stubAPI) fetchOffsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.offsets...)
}

var errServer = errors.New("status 500")

func newGuard() *session.Guard {
	tokens := session.NewMemoryTokenStore()
	tokens.Set("token", "1", "citizen")
	return session.NewGuard(tokens)
}

func post(id int64, typ models.Category) models.Post {
	return models.Post{ID: id, PostType: typ, Title: "post", Content: "body"}
}

// page returns n News posts with ids from, from+1, ...
func page(from int64, n int) []models.Post {
	out := make([]models.Post, n)
	for i := range out {
		out[i] = post(from+int64(i), models.CategoryNews)
	}
	return out
}

func ids(posts []models.Post) []int64 {
	out := make([]int64, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

// pagesByOffset serves fixed pages keyed by offset.
func pagesByOffset(pages map[int][]models.Post) func(context.Context, int, int) ([]models.Post, error) {
	return func(_ context.Context, _, offset int) ([]models.Post, error) {
		return pages[offset], nil
	}
}

// fakeEngagement keeps server-side like/bookmark state for one user.
type fakeEngagement struct {
	mu     sync.Mutex
	active map[models.MutationKind]map[int64]bool
	counts map[models.MutationKind]map[int64]models.Count
}

func newFakeEngagement() *fakeEngagement {
	return &fakeEngagement{
		active: map[models.MutationKind]map[int64]bool{models.MutationLike: {}, models.MutationBookmark: {}},
		counts: map[models.MutationKind]map[int64]models.Count{models.MutationLike: {}, models.MutationBookmark: {}},
	}
}

func (f *fakeEngagement) set(kind models.MutationKind, id int64, active bool, count models.Count) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[kind][id] = active
	f.counts[kind][id] = count
}

func (f *fakeEngagement) toggle(kind models.MutationKind, id int64) models.EngagementAck {
	f.mu.Lock()
	defer f.mu.Unlock()
	on := !f.active[kind][id]
	f.active[kind][id] = on
	if on {
		f.counts[kind][id] = f.counts[kind][id].Inc()
	} else {
		f.counts[kind][id] = f.counts[kind][id].Dec()
	}
	n := f.counts[kind][id]
	ack := models.EngagementAck{Success: true}
	if kind == models.MutationBookmark {
		ack.Bookmarked, ack.BookmarkCount = &on, &n
	} else {
		ack.Liked, ack.LikeCount = &on, &n
	}
	return ack
}

func (f *fakeEngagement) state(kind models.MutationKind, id int64) (bool, models.Count) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[kind][id], f.counts[kind][id]
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for request")
	}
}
