package feed

import (
	"context"

	"civicfeed/internal/models"
	"civicfeed/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

var mutationLog = observability.NewComponentLogger("feed.mutation")

type pendingKey struct {
	postID int64
	kind   models.MutationKind
}

// PendingMutation is the server-confirmed state of one (post, kind) pair
// while a request for it is in flight.
type PendingMutation struct {
	PostID int64
	Kind   models.MutationKind
	Active bool
	Count  models.Count

	// generation is the list generation the last local toggle was made on.
	// restoreActive and restoreCount are what a failure rolls back to in it.
	generation    uint64
	restoreActive bool
	restoreCount  models.Count
}

// Coordinator applies likes and bookmarks optimistically.
//
// At most one request per (post, kind) is in flight, across list refreshes
// too. Toggles made while it is outstanding only flip local state; when it
// succeeds and local state no longer matches the server, one follow-up
// request is sent.
type Coordinator struct {
	store   *Store
	pending map[pendingKey]*PendingMutation
}

// NewCoordinator returns a coordinator mutating store.
func NewCoordinator(store *Store) *Coordinator {
	return &Coordinator{store: store, pending: make(map[pendingKey]*PendingMutation)}
}

// ToggleLike flips the like on postID.
func (c *Coordinator) ToggleLike(ctx context.Context, postID int64) error {
	return c.Toggle(ctx, models.MutationLike, postID)
}

// ToggleBookmark flips the bookmark on postID.
func (c *Coordinator) ToggleBookmark(ctx context.Context, postID int64) error {
	return c.Toggle(ctx, models.MutationBookmark, postID)
}

// Toggle flips kind on postID, then confirms it with the server. A post not
// in the list is ignored. On a non-session failure the post is restored to
// its last confirmed state and a NetworkFailure is returned. On session
// expiry the optimistic state is left alone and ErrSessionExpired returned.
func (c *Coordinator) Toggle(ctx context.Context, kind models.MutationKind, postID int64) error {
	s := c.store
	key := pendingKey{postID: postID, kind: kind}

	s.mu.Lock()
	if s.guard.Expired() {
		s.mu.Unlock()
		return models.ErrSessionExpired
	}
	post := s.lookupLocked(postID)
	if post == nil {
		s.mu.Unlock()
		return nil
	}
	if p, inFlight := c.pending[key]; inFlight {
		if p.generation != s.generation {
			// First tap on a refreshed list: roll back to what the refresh delivered.
			p.generation = s.generation
			p.restoreActive, p.restoreCount = post.Engagement(kind)
		}
		post.Toggle(kind)
		s.mu.Unlock()
		s.events.publish(Event{Type: EventPostUpdated, PostID: postID})
		observability.Mutations.WithLabelValues(string(kind), "coalesced").Inc()
		return nil
	}
	active, count := post.Engagement(kind)
	p := &PendingMutation{
		PostID:        postID,
		Kind:          kind,
		Active:        active,
		Count:         count,
		generation:    s.generation,
		restoreActive: active,
		restoreCount:  count,
	}
	c.pending[key] = p
	post.Toggle(kind)
	s.mu.Unlock()
	s.events.publish(Event{Type: EventPostUpdated, PostID: postID})

	return c.run(ctx, key, p)
}

// run sends requests for key until local and confirmed state agree or a
// request fails.
func (c *Coordinator) run(ctx context.Context, key pendingKey, p *PendingMutation) error {
	s := c.store
	kind := string(key.kind)

	for {
		span, reqCtx := observability.StartSpan(ctx, "feed.Toggle",
			attribute.String("kind", kind), attribute.Int64("post_id", key.postID))
		ack, err := s.api.Engage(reqCtx, key.kind, key.postID)
		span.SetError(err)
		span.End()

		s.mu.Lock()
		if s.guard.Expired() {
			c.release(key, p)
			s.mu.Unlock()
			observability.Mutations.WithLabelValues(kind, "expired").Inc()
			return models.NewSessionExpiredError(err)
		}

		post := s.lookupLocked(key.postID)
		if post == nil {
			c.release(key, p)
			s.mu.Unlock()
			observability.Mutations.WithLabelValues(kind, "superseded").Inc()
			return nil
		}
		// replaced is set when a refresh swapped the list in and nobody has
		// toggled this post on it since.
		replaced := p.generation != s.generation

		if err != nil {
			if replaced {
				c.release(key, p)
				s.mu.Unlock()
				observability.Mutations.WithLabelValues(kind, "superseded").Inc()
				return nil
			}
			post.SetEngagement(key.kind, p.restoreActive, p.restoreCount)
			c.release(key, p)
			s.mu.Unlock()
			s.events.publish(Event{Type: EventPostUpdated, PostID: key.postID})
			err = s.guard.Classify(err)
			observability.Mutations.WithLabelValues(kind, "rolled_back").Inc()
			mutationLog.Warn(ctx, "toggle", err, map[string]any{"post_id": key.postID, "kind": kind})
			return err
		}

		confirmedActive, confirmedCount := confirmed(p, ack)
		localActive, _ := post.Engagement(key.kind)
		if replaced || localActive == confirmedActive {
			// The request carried the user's last tap; settle the post on it.
			settle(post, key.kind, confirmedActive, ack)
			c.release(key, p)
			s.mu.Unlock()
			s.events.publish(Event{Type: EventPostUpdated, PostID: key.postID})
			observability.Mutations.WithLabelValues(kind, "ok").Inc()
			return nil
		}

		// Local state moved on while the request was in flight.
		p.Active, p.Count = confirmedActive, confirmedCount
		p.restoreActive, p.restoreCount = confirmedActive, confirmedCount
		s.mu.Unlock()
		observability.Mutations.WithLabelValues(kind, "follow_up").Inc()
	}
}

// release drops p if it is still the pending entry for key. Callers hold
// the store mutex.
func (c *Coordinator) release(key pendingKey, p *PendingMutation) {
	if c.pending[key] == p {
		delete(c.pending, key)
	}
}

// settle moves post to active, taking the counter from the ack when it
// carries one.
func settle(post *models.Post, kind models.MutationKind, active bool, ack models.EngagementAck) {
	if n, ok := ack.CountFor(kind); ok {
		post.SetEngagement(kind, active, n)
		return
	}
	if cur, _ := post.Engagement(kind); cur != active {
		post.Toggle(kind)
	}
}

// confirmed derives the server state after a successful toggle of p.
func confirmed(p *PendingMutation, ack models.EngagementAck) (bool, models.Count) {
	active := !p.Active
	flag := ack.Liked
	if p.Kind == models.MutationBookmark {
		flag = ack.Bookmarked
	}
	if flag != nil {
		active = *flag
	}

	if n, ok := ack.CountFor(p.Kind); ok {
		return active, n
	}
	switch {
	case active && !p.Active:
		return active, p.Count.Inc()
	case !active && p.Active:
		return active, p.Count.Dec()
	}
	return active, p.Count
}

// Pending returns the in-flight mutations, for diagnostics.
func (c *Coordinator) Pending() []PendingMutation {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	out := make([]PendingMutation, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, *p)
	}
	return out
}
