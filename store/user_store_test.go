package store

import (
	"context"
	"testing"
	"time"

	"certhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStoreCreateAndFind(t *testing.T) {
	s := NewUserStore(setupTestDB(t))
	ctx := context.Background()

	user := &models.User{FullName: "Jane Doe", Email: "  Jane@Example.com ", Password: "hash"}
	require.NoError(t, s.Create(ctx, user))
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)

	got, err := s.FindByEmail(ctx, "JANE@example.com", models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.FindByEmail(ctx, "jane@example.com", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStoreDuplicateIsPerRole(t *testing.T) {
	s := NewUserStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.User{FullName: "Jane", Email: "jane@example.com", Password: "h"}))
	err := s.Create(ctx, &models.User{FullName: "Jane Again", Email: "JANE@example.com", Password: "h"})
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	// The same address may hold an admin account.
	require.NoError(t, s.Create(ctx, &models.User{FullName: "Jane", Email: "jane@example.com", Password: "h", Role: models.RoleAdmin}))

	users, err := s.List(ctx, models.RoleUser)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserStoreUpdateProfile(t *testing.T) {
	s := NewUserStore(setupTestDB(t))
	ctx := context.Background()

	user := &models.User{FullName: "Jane", Email: "jane@example.com", Password: "h"}
	require.NoError(t, s.Create(ctx, user))

	name := "Jane Doe"
	phone := "+61 400 000 000"
	updated, err := s.UpdateProfile(ctx, user.ID, ProfileUpdate{FullName: &name, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.FullName)
	assert.Equal(t, "+61 400 000 000", updated.Phone)
	assert.Empty(t, updated.Address)

	_, err = s.UpdateProfile(ctx, 999, ProfileUpdate{FullName: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStoreTouchLogin(t *testing.T) {
	s := NewUserStore(setupTestDB(t))
	ctx := context.Background()

	user := &models.User{FullName: "Jane", Email: "jane@example.com", Password: "h"}
	require.NoError(t, s.Create(ctx, user))

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.TouchLogin(ctx, user.ID, at))

	got, err := s.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))
}
