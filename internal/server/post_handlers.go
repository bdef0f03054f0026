package server

import (
	"errors"
	"log/slog"
	"time"

	"civicfeed/internal/events"
	"civicfeed/internal/feed"
	"civicfeed/internal/media"
	"civicfeed/internal/middleware"
	"civicfeed/internal/models"
	"civicfeed/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /posts?limit=&offset=[&lat=&lng=]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	defaultLimit := s.config.FeedPageSize
	if defaultLimit <= 0 {
		defaultLimit = feed.DefaultPageSize
	}
	page := parsePagination(c, defaultLimit)
	userID := middleware.UserID(c)

	posts, err := s.postRepo.List(ctx, page.Limit, page.Offset, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	if err := s.decorate(c, posts); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// GetPost handles GET /posts/:id[?lat=&lng=]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	post, err := s.postRepo.GetByID(c.UserContext(), int64(id), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound, err)
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	posts := []models.Post{*post}
	if err := s.decorate(c, posts); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"post": posts[0]})
}

// decorate fills in distances for the request location and signs media.
func (s *Server) decorate(c *fiber.Ctx, posts []models.Post) error {
	if lat, lng, ok := parseLocation(c); ok {
		for i := range posts {
			p := &posts[i]
			if p.Latitude == nil || p.Longitude == nil {
				continue
			}
			d := distanceKM(lat, lng, *p.Latitude, *p.Longitude)
			p.DistanceKM = &d
		}
	}
	return media.SignPosts(c.UserContext(), s.signer, posts)
}

// LikePost handles POST /like. It toggles the caller's like on the post.
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.toggleEngagement(c, models.MutationLike)
}

// BookmarkPost handles POST /bookmark.
func (s *Server) BookmarkPost(c *fiber.Ctx) error {
	return s.toggleEngagement(c, models.MutationBookmark)
}

func (s *Server) toggleEngagement(c *fiber.Ctx, kind models.MutationKind) error {
	ctx := c.UserContext()
	userID := middleware.UserID(c)

	var req struct {
		PostID int64 `json:"post_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PostID <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid post ID"))
	}

	active, count, err := s.postRepo.Toggle(ctx, kind, userID, req.PostID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound, err)
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}

	if perr := s.publisher.PublishEngagement(ctx, events.EngagementEvent{
		Kind:       kind,
		PostID:     req.PostID,
		UserID:     userID,
		Active:     active,
		Count:      count,
		OccurredAt: time.Now().UTC(),
	}); perr != nil {
		observability.Logger.WarnContext(ctx, "engagement event not published",
			slog.String("kind", string(kind)),
			slog.Int64("post_id", req.PostID),
			slog.String("error", perr.Error()))
	}

	ack := models.EngagementAck{Success: true}
	if kind == models.MutationBookmark {
		ack.Bookmarked, ack.BookmarkCount = &active, &count
	} else {
		ack.Liked, ack.LikeCount = &active, &count
	}
	return c.JSON(ack)
}
