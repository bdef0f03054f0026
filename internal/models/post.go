// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Category is the author category a post is filed under.
type Category string

const (
	CategoryAll        Category = "All"
	CategoryGovernment Category = "Government"
	CategoryCommunity  Category = "Community"
	CategoryNews       Category = "News"
	CategoryLocalIssue Category = "LocalIssue"
)

// PostCategories lists the categories a post can carry, in tab order.
var PostCategories = []Category{CategoryGovernment, CategoryCommunity, CategoryNews, CategoryLocalIssue}

// Valid reports whether c is a category a post can carry. All is a
// projection-only value and is not valid on a post.
func (c Category) Valid() bool {
	switch c {
	case CategoryGovernment, CategoryCommunity, CategoryNews, CategoryLocalIssue:
		return true
	}
	return false
}

// Label is the human readable tab label.
func (c Category) Label() string {
	switch c {
	case CategoryAll:
		return "All Posts"
	case CategoryLocalIssue:
		return "Local Issue"
	}
	return string(c)
}

// ParseCategory accepts tab ids and labels in any case ("localissue",
// "Local Issue", "all").
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch key {
	case "all", "allposts":
		return CategoryAll, true
	case "government":
		return CategoryGovernment, true
	case "community":
		return CategoryCommunity, true
	case "news":
		return CategoryNews, true
	case "localissue", "localissues":
		return CategoryLocalIssue, true
	}
	return "", false
}

// MediaKind distinguishes image and video attachments.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media is an attachment on a post. ObjectKey is set when the asset lives in
// object storage and MediaURL has to be signed before it is served.
type Media struct {
	MediaID   int64     `gorm:"primaryKey" json:"media_id"`
	PostID    int64     `gorm:"not null;index" json:"-"`
	Kind      MediaKind `gorm:"type:varchar(16);not null" json:"media_type"`
	MediaURL  string    `json:"media_url"`
	ObjectKey string    `json:"object_key,omitempty"`
	Position  int       `gorm:"not null;default:0" json:"-"`
}

// Post represents a post in the civic feed.
type Post struct {
	ID           int64    `gorm:"primaryKey" json:"post_id"`
	UserID       uint     `gorm:"not null;index" json:"user_id"`
	Title        string   `gorm:"not null" json:"title"`
	Content      string   `gorm:"type:text;not null" json:"content"`
	Category     string   `json:"category"`
	PostType     Category `gorm:"type:varchar(32);not null;index" json:"post_type"`
	Location     string   `json:"location"`
	District     string   `json:"user_district,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	DistanceKM   *float64 `gorm:"-" json:"distance_km"`
	Media        []Media  `gorm:"foreignKey:PostID" json:"media"`
	LikeCount    Count    `gorm:"->;-:migration" json:"like_count"`
	CommentCount Count    `gorm:"->;-:migration" json:"comment_count"`
	// BookmarkCount, Liked and Bookmarked are computed per request
	BookmarkCount Count          `gorm:"->;-:migration" json:"bookmark_count"`
	Liked         bool           `gorm:"->;-:migration" json:"liked"`
	Bookmarked    bool           `gorm:"->;-:migration" json:"bookmarked"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"-"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// set when Toggle clears an active flag whose counter was already 0
	likeFloored, bookmarkFloored bool
}

// Clone returns a deep copy safe to hand to readers outside the owning store.
func (p Post) Clone() Post {
	out := p
	if p.Media != nil {
		out.Media = append([]Media(nil), p.Media...)
	}
	if p.DistanceKM != nil {
		d := *p.DistanceKM
		out.DistanceKM = &d
	}
	if p.Latitude != nil {
		v := *p.Latitude
		out.Latitude = &v
	}
	if p.Longitude != nil {
		v := *p.Longitude
		out.Longitude = &v
	}
	return out
}

// Engagement returns the boolean/counter pair for a mutation kind.
func (p *Post) Engagement(kind MutationKind) (bool, Count) {
	if kind == MutationBookmark {
		return p.Bookmarked, p.BookmarkCount
	}
	return p.Liked, p.LikeCount
}

// SetEngagement overwrites the boolean/counter pair for a mutation kind.
func (p *Post) SetEngagement(kind MutationKind, active bool, count Count) {
	if kind == MutationBookmark {
		p.Bookmarked, p.BookmarkCount, p.bookmarkFloored = active, count, false
		return
	}
	p.Liked, p.LikeCount, p.likeFloored = active, count, false
}

func (p *Post) floored(kind MutationKind) *bool {
	if kind == MutationBookmark {
		return &p.bookmarkFloored
	}
	return &p.likeFloored
}

// Toggle flips the boolean for kind and moves its counter one step in the
// direction of the new value. An active flag with a zero counter is
// inconsistent server data; clearing it leaves the counter at 0 and the next
// toggle restores it to 0 instead of 1.
func (p *Post) Toggle(kind MutationKind) {
	active, count := p.Engagement(kind)
	wasFloored := *p.floored(kind)
	switch {
	case active:
		p.SetEngagement(kind, false, count.Dec())
		*p.floored(kind) = count == 0
	case wasFloored:
		p.SetEngagement(kind, true, count)
	default:
		p.SetEngagement(kind, true, count.Inc())
	}
}

// FeedPage is one window of the server collection.
type FeedPage struct {
	Posts  []Post `json:"posts"`
	Offset int    `json:"-"`
}

// MutationKind names the engagement a toggle targets.
type MutationKind string

const (
	MutationLike     MutationKind = "like"
	MutationBookmark MutationKind = "bookmark"
)

// EngagementAck is the body of a like/bookmark response. The count fields
// are optional and authoritative when present.
type EngagementAck struct {
	Success       bool   `json:"success"`
	Liked         *bool  `json:"liked,omitempty"`
	Bookmarked    *bool  `json:"bookmarked,omitempty"`
	LikeCount     *Count `json:"like_count,omitempty"`
	BookmarkCount *Count `json:"bookmark_count,omitempty"`
}

// CountFor returns the authoritative counter for kind, if the server sent one.
func (a EngagementAck) CountFor(kind MutationKind) (Count, bool) {
	c := a.LikeCount
	if kind == MutationBookmark {
		c = a.BookmarkCount
	}
	if c == nil {
		return 0, false
	}
	return *c, true
}

// User is an account that can read and engage with the feed.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Password  string         `gorm:"not null" json:"-"`
	District  string         `json:"district,omitempty"`
	Role      string         `gorm:"not null;default:citizen" json:"role"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Like records that a user liked a post.
type Like struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post"`
	PostID    int64     `gorm:"not null;uniqueIndex:idx_likes_user_post;index"`
	CreatedAt time.Time
}

// Bookmark records that a user saved a post.
type Bookmark struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_bookmarks_user_post"`
	PostID    int64     `gorm:"not null;uniqueIndex:idx_bookmarks_user_post;index"`
	CreatedAt time.Time
}

// Comment only exists server side so comment_count can be computed.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    int64          `gorm:"not null;index" json:"post_id"`
	UserID    uint           `gorm:"not null" json:"user_id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
