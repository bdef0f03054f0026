package feed

import "sync"

// EventType names a change subscribers can react to.
type EventType string

const (
	EventListReplaced   EventType = "list_replaced"
	EventPageAppended   EventType = "page_appended"
	EventPostUpdated    EventType = "post_updated"
	EventLoadingChanged EventType = "loading_changed"
	EventViewChanged    EventType = "view_changed"
	EventSessionExpired EventType = "session_expired"
)

// Event is a change notification. PostID is set for post_updated.
type Event struct {
	Type   EventType
	PostID int64
}

const subscriberBuffer = 32

// hub fans events out to subscribers. A full subscriber drops the event.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *hub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
