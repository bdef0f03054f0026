package feed

import (
	"context"

	"civicfeed/internal/models"
	"civicfeed/internal/session"
)

// Options tunes a Feed. Zero values select the defaults.
type Options struct {
	PageSize          int
	ReadMoreThreshold int
}

// Feed composes the session guard, store, coordinator and projector into the
// surface a screen drives.
type Feed struct {
	guard       *session.Guard
	store       *Store
	coordinator *Coordinator
	projector   *Projector
}

// New wires a Feed. The session_expired event fires from the guard's
// expiry hook.
func New(api API, guard *session.Guard, opts Options) *Feed {
	store := NewStore(api, guard, opts.PageSize)
	f := &Feed{
		guard:       guard,
		store:       store,
		coordinator: NewCoordinator(store),
		projector:   NewProjector(store, opts.ReadMoreThreshold),
	}
	guard.OnExpired(func() {
		store.events.publish(Event{Type: EventSessionExpired})
	})
	return f
}

func (f *Feed) LoadFirstPage(ctx context.Context) error { return f.store.LoadFirstPage(ctx) }

func (f *Feed) LoadNextPage(ctx context.Context) error { return f.store.LoadNextPage(ctx) }

func (f *Feed) ToggleLike(ctx context.Context, postID int64) error {
	return f.coordinator.ToggleLike(ctx, postID)
}

func (f *Feed) ToggleBookmark(ctx context.Context, postID int64) error {
	return f.coordinator.ToggleBookmark(ctx, postID)
}

// ApplyCategoryFilter is an alias of SetCategory kept for list-oriented callers.
func (f *Feed) ApplyCategoryFilter(c models.Category) error { return f.projector.SetCategory(c) }

func (f *Feed) SetCategory(c models.Category) error { return f.projector.SetCategory(c) }

func (f *Feed) Category() models.Category { return f.projector.Category() }

func (f *Feed) ToggleExpand(postID int64) { f.projector.ToggleExpand(postID) }

func (f *Feed) View() []PostView { return f.projector.View() }

func (f *Feed) Posts() []models.Post { return f.store.Posts() }

func (f *Feed) Post(id int64) (models.Post, bool) { return f.store.Post(id) }

func (f *Feed) IsLoading() bool { return f.store.IsLoading() }

func (f *Feed) HasMore() bool { return f.store.HasMore() }

func (f *Feed) SessionExpired() bool { return f.guard.Expired() }

// Subscribe returns a channel of change events and its unsubscribe func.
// Slow subscribers miss events rather than block the engine.
func (f *Feed) Subscribe() (<-chan Event, func()) { return f.store.Subscribe() }
