// Package repository provides data access for the feed API.
package repository

import (
	"context"
	"errors"

	"civicfeed/internal/cache"
	"civicfeed/internal/models"
	"civicfeed/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id int64, currentUserID uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int, currentUserID uint) ([]models.Post, error)
	Toggle(ctx context.Context, kind models.MutationKind, userID uint, postID int64) (bool, models.Count, error)
	GetEngagedPostIDs(ctx context.Context, kind models.MutationKind, userID uint, postIDs []int64) ([]int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, metrics: observability.NewDatabaseMetrics(db)}
}

func (r *postRepository) dbSystem() string {
	return r.db.Dialector.Name()
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer r.metrics.TrackQuery("create", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return err
	}
	cache.InvalidateFeed(ctx)
	return nil
}

// GetByID returns one post. The shared part is cached per post; the
// caller's flags are overlaid afterwards.
func (r *postRepository) GetByID(ctx context.Context, id int64, currentUserID uint) (*models.Post, error) {
	defer r.metrics.TrackQuery("get", "posts")()
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		return r.withMedia(r.applyPostDetails(r.db.WithContext(ctx), 0)).
			First(&post, "posts.id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Post", id)
	}
	if err != nil {
		return nil, err
	}
	if currentUserID == 0 {
		return &post, nil
	}
	posts := []models.Post{post}
	if err := r.overlayEngagement(ctx, currentUserID, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// List returns one window of the feed, newest first. The first page is
// served cache-aside without per-user flags, which are then overlaid.
func (r *postRepository) List(ctx context.Context, limit, offset int, currentUserID uint) ([]models.Post, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, r.dbSystem(), "List", "posts")
	defer span.End()
	defer r.metrics.TrackQuery("list", "posts")()

	var posts []models.Post
	if offset != 0 {
		err := r.listQuery(ctx, currentUserID).Limit(limit).Offset(offset).Find(&posts).Error
		if err != nil {
			span.RecordError(err)
		}
		return posts, err
	}

	err := cache.Aside(ctx, cache.FeedPageKey(limit), &posts, cache.FeedPageTTL, func() error {
		return r.listQuery(ctx, 0).Limit(limit).Find(&posts).Error
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if currentUserID == 0 || len(posts) == 0 {
		return posts, nil
	}
	return posts, r.overlayEngagement(ctx, currentUserID, posts)
}

func (r *postRepository) listQuery(ctx context.Context, currentUserID uint) *gorm.DB {
	return r.withMedia(r.applyPostDetails(r.db.WithContext(ctx), currentUserID)).
		Order("posts.created_at DESC").
		Order("posts.id DESC")
}

func (r *postRepository) overlayEngagement(ctx context.Context, userID uint, posts []models.Post) error {
	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	liked, err := r.GetEngagedPostIDs(ctx, models.MutationLike, userID, ids)
	if err != nil {
		return err
	}
	saved, err := r.GetEngagedPostIDs(ctx, models.MutationBookmark, userID, ids)
	if err != nil {
		return err
	}
	likedSet := toSet(liked)
	savedSet := toSet(saved)
	for i := range posts {
		posts[i].Liked = likedSet[posts[i].ID]
		posts[i].Bookmarked = savedSet[posts[i].ID]
	}
	return nil
}

func toSet(ids []int64) map[int64]bool {
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func (r *postRepository) withMedia(db *gorm.DB) *gorm.DB {
	return db.Preload("Media", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// applyPostDetails adds subqueries to fetch counts and engagement flags in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL) AS comment_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS like_count, " +
		"(SELECT COUNT(*) FROM bookmarks WHERE bookmarks.post_id = posts.id) AS bookmark_count"

	if currentUserID != 0 {
		return db.Model(&models.Post{}).Select(selectQuery+", "+
			"EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked, "+
			"EXISTS(SELECT 1 FROM bookmarks WHERE bookmarks.post_id = posts.id AND bookmarks.user_id = ?) AS bookmarked",
			currentUserID, currentUserID)
	}
	return db.Model(&models.Post{}).Select(selectQuery + ", false AS liked, false AS bookmarked")
}

// Toggle flips a like or bookmark for userID and returns the new state with
// the post's updated counter.
func (r *postRepository) Toggle(ctx context.Context, kind models.MutationKind, userID uint, postID int64) (bool, models.Count, error) {
	defer r.metrics.TrackQuery("toggle_"+string(kind), engagementTable(kind))()

	var (
		active bool
		count  int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("Post", postID)
		}

		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(engagementRecord(kind, 0, 0))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(engagementRecord(kind, userID, postID)).Error; err != nil {
				return err
			}
			active = true
		}
		return tx.Model(engagementRecord(kind, 0, 0)).Where("post_id = ?", postID).Count(&count).Error
	})
	if err != nil {
		return false, 0, err
	}
	cache.InvalidatePost(ctx, postID)
	return active, models.Count(count), nil
}

func (r *postRepository) GetEngagedPostIDs(ctx context.Context, kind models.MutationKind, userID uint, postIDs []int64) ([]int64, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	var out []int64
	err := r.db.WithContext(ctx).
		Model(engagementRecord(kind, 0, 0)).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &out).Error
	return out, err
}

func engagementRecord(kind models.MutationKind, userID uint, postID int64) any {
	if kind == models.MutationBookmark {
		return &models.Bookmark{UserID: userID, PostID: postID}
	}
	return &models.Like{UserID: userID, PostID: postID}
}

func engagementTable(kind models.MutationKind) string {
	if kind == models.MutationBookmark {
		return "bookmarks"
	}
	return "likes"
}
