package repository

import (
	"context"
	"testing"

	"civicfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()

	user := &models.User{Username: "ana", Email: "  Ana@Example.com ", Password: "hash", District: "Ward 5"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"exact", "ana@example.com", false},
		{"case insensitive", "ANA@example.com", false},
		{"missing", "bob@example.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.GetByEmail(ctx, tt.email)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
			assert.Equal(t, "citizen", got.Role)
		})
	}

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ward 5", got.District)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.Error(t, repo.Create(ctx, &models.User{Username: "ana2", Email: "ana@example.com", Password: "x"}), "email is unique")
}
