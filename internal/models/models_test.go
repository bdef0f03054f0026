package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Count
		wantErr bool
	}{
		{"string", `"3"`, 3, false},
		{"number", `12`, 12, false},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"padded string", `" 7 "`, 7, false},
		{"negative clamps", `"-2"`, 0, false},
		{"garbage", `"three"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Count
			err := json.Unmarshal([]byte(tt.in), &c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestCount_MarshalsAsString(t *testing.T) {
	b, err := json.Marshal(struct {
		LikeCount Count `json:"like_count"`
	}{LikeCount: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"like_count":"4"}`, string(b))
}

func TestCount_DecNeverNegative(t *testing.T) {
	assert.Equal(t, Count(0), Count(0).Dec())
	assert.Equal(t, Count(2), Count(3).Dec())
	assert.Equal(t, Count(4), Count(3).Inc())
}

func TestCount_Scan(t *testing.T) {
	var c Count
	require.NoError(t, c.Scan(int64(9)))
	assert.Equal(t, Count(9), c)
	require.NoError(t, c.Scan([]byte("11")))
	assert.Equal(t, Count(11), c)
	require.NoError(t, c.Scan(nil))
	assert.Equal(t, Count(0), c)
	assert.Error(t, c.Scan(struct{}{}))
}

func TestPost_ToggleMovesCounterWithBoolean(t *testing.T) {
	p := Post{ID: 1, LikeCount: 3}

	p.Toggle(MutationLike)
	assert.True(t, p.Liked)
	assert.Equal(t, Count(4), p.LikeCount)

	p.Toggle(MutationLike)
	assert.False(t, p.Liked)
	assert.Equal(t, Count(3), p.LikeCount)

	p.Toggle(MutationBookmark)
	assert.True(t, p.Bookmarked)
	assert.Equal(t, Count(1), p.BookmarkCount)
	assert.False(t, p.Liked, "bookmark toggle must not touch like state")
}

func TestPost_ToggleRestoresZeroCounterOnActiveFlag(t *testing.T) {
	p := Post{ID: 1, Liked: true}

	p.Toggle(MutationLike)
	assert.False(t, p.Liked)
	assert.Equal(t, Count(0), p.LikeCount)

	p.Toggle(MutationLike)
	assert.True(t, p.Liked)
	assert.Equal(t, Count(0), p.LikeCount)

	p.Toggle(MutationLike)
	p.SetEngagement(MutationLike, false, 0)
	p.Toggle(MutationLike)
	assert.Equal(t, Count(1), p.LikeCount, "an authoritative write clears the floor")
}

func TestPost_CloneIsDeep(t *testing.T) {
	d := 1.5
	p := Post{ID: 1, Media: []Media{{MediaID: 1, Kind: MediaImage}}, DistanceKM: &d}
	c := p.Clone()
	c.Media[0].MediaURL = "changed"
	*c.DistanceKM = 9
	assert.Empty(t, p.Media[0].MediaURL)
	assert.Equal(t, 1.5, *p.DistanceKM)
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"All", CategoryAll, true},
		{"government", CategoryGovernment, true},
		{"Local Issue", CategoryLocalIssue, true},
		{"LocalIssue", CategoryLocalIssue, true},
		{"news", CategoryNews, true},
		{"sports", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.False(t, CategoryAll.Valid())
	assert.Equal(t, "Local Issue", CategoryLocalIssue.Label())
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("load page: %w", NewNetworkFailure("boom", errors.New("dial tcp")))
	assert.True(t, errors.Is(wrapped, ErrNetworkFailure))
	assert.True(t, IsNetworkFailure(wrapped))
	assert.False(t, IsSessionExpired(wrapped))

	expired := NewSessionExpiredError(errors.New("401"))
	assert.True(t, IsSessionExpired(expired))
	assert.Contains(t, expired.Error(), "session has expired")
}

func TestNewSessionExpiredError_DropsOtherCodes(t *testing.T) {
	cause := errors.New("status 401")
	for _, in := range []error{
		NewNetworkFailure("boom", cause),
		fmt.Errorf("fetch: %w", NewNetworkFailure("boom", cause)),
		NewNotFoundError("Post", 1),
	} {
		err := NewSessionExpiredError(in)
		assert.True(t, IsSessionExpired(err), "%v", in)
		assert.False(t, IsNetworkFailure(err), "%v", in)
		assert.False(t, errors.Is(err, ErrNotFound), "%v", in)
	}
	assert.ErrorIs(t, NewSessionExpiredError(NewNetworkFailure("boom", cause)), cause)
}
