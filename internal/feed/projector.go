package feed

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"civicfeed/internal/models"
)

// DefaultReadMoreThreshold is the body length, in runes, above which a
// collapsed post is truncated.
const DefaultReadMoreThreshold = 120

const (
	ellipsis   = "..."
	dateLayout = "Jan 2, 2006"
)

// PostView is one row of the projected list.
type PostView struct {
	Post         models.Post
	Body         string
	Expanded     bool
	ShowReadMore bool
	// Long is set when the body exceeds the read-more threshold, expanded or not.
	Long         bool
	TypeLabel    string
	AuthorLabel  string
	LocationText string
	DateText     string
}

// ViewState is the presentation state a projection depends on.
type ViewState struct {
	Category models.Category
	Expanded map[int64]bool
}

// Project derives the visible list. It never modifies posts.
func Project(posts []models.Post, state ViewState, threshold int) []PostView {
	if threshold <= 0 {
		threshold = DefaultReadMoreThreshold
	}
	out := make([]PostView, 0, len(posts))
	for _, p := range posts {
		if state.Category != models.CategoryAll && state.Category != "" && p.PostType != state.Category {
			continue
		}
		expanded := state.Expanded[p.ID]
		long := utf8.RuneCountInString(p.Content) > threshold

		body := p.Content
		if long && !expanded {
			body = truncate(p.Content, threshold)
		}
		out = append(out, PostView{
			Post:         p,
			Body:         body,
			Expanded:     expanded,
			ShowReadMore: long && !expanded,
			Long:         long,
			TypeLabel:    p.PostType.Label(),
			AuthorLabel:  AuthorLabel(p.PostType),
			LocationText: LocationText(p),
			DateText:     p.CreatedAt.Format(dateLayout),
		})
	}
	return out
}

func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + ellipsis
		}
		i++
	}
	return s
}

// AuthorLabel is the byline shown for a post of category c.
func AuthorLabel(c models.Category) string {
	switch c {
	case models.CategoryGovernment:
		return "Government"
	case models.CategoryCommunity:
		return "Community User"
	case models.CategoryNews:
		return "News"
	}
	return "Local Issue"
}

// TabLabel is the label of the category filter tab.
func TabLabel(c models.Category) string {
	if c == models.CategoryLocalIssue {
		return "Local Issues"
	}
	return c.Label()
}

// Tabs lists the filter tabs in display order.
func Tabs() []models.Category {
	return append([]models.Category{models.CategoryAll}, models.PostCategories...)
}

// DistanceText renders distance_km: metres below one kilometre.
func DistanceText(km *float64) string {
	if km == nil {
		return ""
	}
	if *km < 1 {
		return fmt.Sprintf("%dm away", int(math.Round(*km*1000)))
	}
	return fmt.Sprintf("%.1fkm away", *km)
}

// LocationText is the location line, falling back to the author's district.
func LocationText(p models.Post) string {
	loc := p.Location
	if loc == "" {
		loc = p.District
	}
	if loc == "" {
		return ""
	}
	if d := DistanceText(p.DistanceKM); d != "" {
		return strings.Join([]string{loc, d}, " • ")
	}
	return loc
}

// Projector holds the active category and expanded set. It shares the
// store's mutex and only ever reads the list.
type Projector struct {
	store     *Store
	threshold int

	category models.Category
	expanded map[int64]bool
}

// NewProjector returns a projector over store showing every category.
func NewProjector(store *Store, threshold int) *Projector {
	if threshold <= 0 {
		threshold = DefaultReadMoreThreshold
	}
	return &Projector{
		store:     store,
		threshold: threshold,
		category:  models.CategoryAll,
		expanded:  make(map[int64]bool),
	}
}

// SetCategory changes the active filter. The list is untouched.
func (p *Projector) SetCategory(c models.Category) error {
	if c != models.CategoryAll && !c.Valid() {
		return models.NewValidationError(fmt.Sprintf("unknown category %q", c))
	}
	p.store.mu.Lock()
	changed := p.category != c
	p.category = c
	p.store.mu.Unlock()
	if changed {
		p.store.events.publish(Event{Type: EventViewChanged})
	}
	return nil
}

// Category returns the active filter.
func (p *Projector) Category() models.Category {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	return p.category
}

// ToggleExpand flips whether postID shows its full body.
func (p *Projector) ToggleExpand(postID int64) {
	p.store.mu.Lock()
	if p.expanded[postID] {
		delete(p.expanded, postID)
	} else {
		p.expanded[postID] = true
	}
	p.store.mu.Unlock()
	p.store.events.publish(Event{Type: EventViewChanged, PostID: postID})
}

// View projects the current list.
func (p *Projector) View() []PostView {
	p.store.mu.Lock()
	posts := p.store.snapshotLocked()
	state := ViewState{Category: p.category, Expanded: make(map[int64]bool, len(p.expanded))}
	for id := range p.expanded {
		state.Expanded[id] = true
	}
	p.store.mu.Unlock()
	return Project(posts, state, p.threshold)
}
