package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"civicfeed/internal/config"
	"civicfeed/internal/database"
	"civicfeed/internal/events"
	"civicfeed/internal/middleware"
	"civicfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEngagement(ctx context.Context, e events.EngagementEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

type testEnv struct {
	server *Server
	app    *fiber.App
	user   models.User
	posts  []models.Post
	pub    *MockPublisher
}

func setupTestServer(t *testing.T, nPosts int) *testEnv {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{Username: "ana", Email: "ana@example.com", Password: string(hash), Role: "citizen"}
	require.NoError(t, db.Create(&user).Error)

	lat, lng := 40.0, -74.0
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	posts := make([]models.Post, nPosts)
	for i := range posts {
		posts[i] = models.Post{
			UserID:    user.ID,
			Title:     fmt.Sprintf("post %d", i),
			Content:   "body",
			PostType:  models.CategoryCommunity,
			Latitude:  &lat,
			Longitude: &lng,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&posts[i]).Error)
	}

	cfg := &config.Config{JWTSecret: "test-secret", JWTTTLMinutes: 60, FeedPageSize: 10, Port: "0"}
	pub := new(MockPublisher)
	s, err := NewServerWithDeps(cfg, db, nil, pub, nil)
	require.NoError(t, err)

	return &testEnv{server: s, app: s.App(), user: user, posts: posts, pub: pub}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	tok, err := e.server.generateToken(&e.user)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestLogin(t *testing.T) {
	env := setupTestServer(t, 0)

	tests := []struct {
		name     string
		body     any
		wantCode int
	}{
		{"valid credentials", fiber.Map{"email": "ANA@example.com", "password": "hunter22"}, fiber.StatusOK},
		{"wrong password", fiber.Map{"email": "ana@example.com", "password": "nope"}, fiber.StatusUnauthorized},
		{"unknown user", fiber.Map{"email": "zed@example.com", "password": "hunter22"}, fiber.StatusUnauthorized},
		{"missing fields", fiber.Map{"email": "ana@example.com"}, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/auth/login", "", tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode, string(body))
			if tt.wantCode != fiber.StatusOK {
				return
			}
			var out struct {
				Token string      `json:"token"`
				User  models.User `json:"user"`
			}
			require.NoError(t, json.Unmarshal(body, &out))
			assert.Equal(t, env.user.ID, out.User.ID)
			uid, err := middleware.ParseUserID("test-secret", out.Token)
			require.NoError(t, err)
			assert.Equal(t, env.user.ID, uid)
			assert.NotContains(t, string(body), "hunter22")
		})
	}
}

func TestGetPosts_RequiresValidToken(t *testing.T) {
	env := setupTestServer(t, 1)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(env.user.ID), 10),
		"iss": middleware.TokenIssuer,
		"aud": middleware.TokenAudience,
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	expiredToken, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
		"expired": expiredToken,
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, "/posts?limit=10&offset=0", token, nil)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Contains(t, string(body), models.CodeUnauthorized)
		})
	}
}

func TestGetPosts_Paging(t *testing.T) {
	env := setupTestServer(t, 12)
	tok := env.token(t)

	var first, second struct {
		Posts []models.Post `json:"posts"`
	}
	resp, body := env.do(t, http.MethodGet, "/posts?limit=10&offset=0", tok, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &first))
	require.Len(t, first.Posts, 10)
	assert.Equal(t, env.posts[11].ID, first.Posts[0].ID)
	assert.Nil(t, first.Posts[0].DistanceKM)

	resp, body = env.do(t, http.MethodGet, "/posts?limit=10&offset=10", tok, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &second))
	assert.Len(t, second.Posts, 2)

	// counts travel as decimal strings
	assert.Contains(t, string(body), `"like_count":"0"`)
}

func TestGetPosts_Distance(t *testing.T) {
	env := setupTestServer(t, 1)

	resp, body := env.do(t, http.MethodGet, "/posts?limit=10&offset=0&lat=40.01&lng=-74.0", env.token(t), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out struct {
		Posts []models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Posts, 1)
	require.NotNil(t, out.Posts[0].DistanceKM)
	assert.InDelta(t, 1.11, *out.Posts[0].DistanceKM, 0.01)
}

func TestLikeAndBookmark_Toggle(t *testing.T) {
	env := setupTestServer(t, 1)
	tok := env.token(t)
	postID := env.posts[0].ID
	env.pub.On("PublishEngagement", mock.Anything, mock.MatchedBy(func(e events.EngagementEvent) bool {
		return e.PostID == postID && e.UserID == env.user.ID
	})).Return(nil)

	resp, body := env.do(t, http.MethodPost, "/like", tok, fiber.Map{"post_id": postID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"success":true,"liked":true,"like_count":"1"}`, string(body))

	resp, body = env.do(t, http.MethodPost, "/like", tok, fiber.Map{"post_id": postID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"liked":false,"like_count":"0"}`, string(body))

	resp, body = env.do(t, http.MethodPost, "/bookmark", tok, fiber.Map{"post_id": postID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"bookmarked":true,"bookmark_count":"1"}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/posts?limit=10&offset=0", tok, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out struct {
		Posts []models.Post `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Posts, 1)
	assert.True(t, out.Posts[0].Bookmarked)
	assert.False(t, out.Posts[0].Liked)

	env.pub.AssertNumberOfCalls(t, "PublishEngagement", 3)
}

func TestLike_Errors(t *testing.T) {
	env := setupTestServer(t, 0)
	tok := env.token(t)

	resp, _ := env.do(t, http.MethodPost, "/like", tok, fiber.Map{"post_id": 0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/like", tok, fiber.Map{"post_id": 999})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), models.CodeNotFound)
	env.pub.AssertNotCalled(t, "PublishEngagement", mock.Anything, mock.Anything)
}

func TestGetPost(t *testing.T) {
	env := setupTestServer(t, 2)
	tok := env.token(t)
	target := env.posts[1].ID
	env.pub.On("PublishEngagement", mock.Anything, mock.Anything).Return(nil)

	resp, _ := env.do(t, http.MethodPost, "/like", tok, fiber.Map{"post_id": target})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, fmt.Sprintf("/posts/%d?lat=40.01&lng=-74.0", target), tok, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, target, out.Post.ID)
	assert.True(t, out.Post.Liked)
	assert.Equal(t, models.Count(1), out.Post.LikeCount)
	require.NotNil(t, out.Post.DistanceKM)

	resp, body = env.do(t, http.MethodGet, "/posts/999", tok, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), models.CodeNotFound)

	resp, _ = env.do(t, http.MethodGet, "/posts/abc", tok, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, fmt.Sprintf("/posts/%d", target), "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMe(t *testing.T) {
	env := setupTestServer(t, 0)

	resp, body := env.do(t, http.MethodGet, "/auth/me", env.token(t), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var out struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, env.user.ID, out.User.ID)
	assert.Equal(t, "ana", out.User.Username)
	assert.NotContains(t, string(body), "hunter22")

	ghost := models.User{ID: 4242, Role: "citizen"}
	tok, err := env.server.generateToken(&ghost)
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodGet, "/auth/me", tok, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	env := setupTestServer(t, 0)
	resp, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"redis":"disabled"`)
}

func TestShutdownClosesPublisher(t *testing.T) {
	env := setupTestServer(t, 0)
	env.pub.On("Close").Return(nil)
	_ = env.server.Shutdown(context.Background())
	env.pub.AssertCalled(t, "Close")
}

func TestDistanceKM(t *testing.T) {
	assert.InDelta(t, 0, distanceKM(10, 10, 10, 10), 1e-9)
	// one degree of latitude
	assert.InDelta(t, 111.19, distanceKM(0, 0, 1, 0), 0.01)
}
