package auth

import (
	"bytes"
	"context"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/inkdex/inkdex/internal/common"
	"github.com/inkdex/inkdex/internal/images"
	"github.com/inkdex/inkdex/internal/storage"
	"github.com/inkdex/inkdex/pkg/config"
	"github.com/inkdex/inkdex/pkg/types"
	"github.com/inkdex/inkdex/pkg/utils"
)

func setupAuth(t *testing.T, allowRegistration bool) (*Service, *common.Database) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	db := common.FromGorm(gdb)
	require.NoError(t, db.Migrate())

	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	media := storage.NewMediaStore(blobs, t.TempDir())

	cfg := &config.AuthConfig{
		JWTSecret:         "test-secret",
		JWTExpiration:     time.Hour,
		BCryptCost:        bcrypt.MinCost,
		AllowRegistration: allowRegistration,
	}
	return NewService(db, nil, media, images.NewNormalizer(media), cfg), db
}

func mustUser(t *testing.T, db *common.Database, username string, role types.Role) *types.User {
	t.Helper()
	hashed, err := utils.HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	user := &types.User{Username: username, Email: username + "@example.com", Password: hashed, Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestRegister(t *testing.T) {
	svc, _ := setupAuth(t, true)
	ctx := context.Background()

	user, err := svc.Register(ctx, nil, &types.RegisterRequest{
		Username: "newuser",
		Email:    "new@example.com",
		Password: "password123",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, types.RoleUser, user.Role)
	assert.Empty(t, user.Password)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.Register(ctx, nil, &types.RegisterRequest{
			Username: "newuser",
			Password: "password123",
		}, "")
		require.ErrorIs(t, err, types.ErrBadInput)
		assert.Contains(t, err.Error(), "username is already taken")
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.Register(ctx, nil, &types.RegisterRequest{
			Username: "otheruser",
			Email:    "new@example.com",
			Password: "password123",
		}, "")
		assert.ErrorIs(t, err, types.ErrBadInput)
	})
}

func TestRegisterDisabled(t *testing.T) {
	svc, db := setupAuth(t, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, nil, &types.RegisterRequest{
		Username: "newuser",
		Password: "password123",
	}, "")
	assert.ErrorIs(t, err, types.ErrForbidden)

	// Admins can create accounts even with self-registration off
	admin := mustUser(t, db, "admin", types.RoleAdmin)
	user, err := svc.Register(ctx, admin, &types.RegisterRequest{
		Username: "invited",
		Password: "password123",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "invited", user.Username)
}

func TestLogin(t *testing.T) {
	svc, db := setupAuth(t, true)
	ctx := context.Background()
	mustUser(t, db, "alice", types.RoleUser)

	token, err := svc.Login(ctx, &types.LoginRequest{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", token.TokenType)
	assert.NotEmpty(t, token.Token)

	// The issued token round-trips through validation
	user, err := svc.ValidateToken(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, &types.LoginRequest{Username: "alice", Password: "wrong"})
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, &types.LoginRequest{Username: "nobody", Password: "password123"})
		assert.ErrorIs(t, err, types.ErrForbidden)
	})
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := setupAuth(t, true)

	_, err := svc.ValidateToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestGetUserAccess(t *testing.T) {
	svc, db := setupAuth(t, true)
	ctx := context.Background()

	alice := mustUser(t, db, "alice", types.RoleUser)
	bob := mustUser(t, db, "bob", types.RoleUser)
	admin := mustUser(t, db, "admin", types.RoleAdmin)

	// Self and admin can view; another plain user cannot
	got, err := svc.GetUser(ctx, alice, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Password)

	_, err = svc.GetUser(ctx, bob, alice.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	_, err = svc.GetUser(ctx, admin, alice.ID)
	assert.NoError(t, err)

	_, err = svc.GetUser(ctx, admin, uuid.New())
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListUsersAdminOnly(t *testing.T) {
	svc, db := setupAuth(t, true)
	ctx := context.Background()

	alice := mustUser(t, db, "alice", types.RoleUser)
	admin := mustUser(t, db, "admin", types.RoleAdmin)

	_, _, err := svc.ListUsers(ctx, alice, 0, 0)
	assert.ErrorIs(t, err, types.ErrForbidden)

	users, total, err := svc.ListUsers(ctx, admin, 0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.EqualValues(t, 2, total)

	t.Run("pagination", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			mustUser(t, db, "extra"+string(rune('a'+i)), types.RoleUser)
		}

		page, total, err := svc.ListUsers(ctx, admin, 2, 0)
		require.NoError(t, err)
		assert.Len(t, page, 2)
		assert.EqualValues(t, 5, total)

		rest, total, err := svc.ListUsers(ctx, admin, 10, 4)
		require.NoError(t, err)
		assert.Len(t, rest, 1)
		assert.EqualValues(t, 5, total)
	})
}

func TestUpdateUser(t *testing.T) {
	svc, db := setupAuth(t, true)
	ctx := context.Background()

	alice := mustUser(t, db, "alice", types.RoleUser)
	bob := mustUser(t, db, "bob", types.RoleUser)
	admin := mustUser(t, db, "admin", types.RoleAdmin)

	t.Run("self update", func(t *testing.T) {
		updated, err := svc.UpdateUser(ctx, alice, alice.ID, &types.UpdateUserRequest{Email: "alice@new.example.com"})
		require.NoError(t, err)
		assert.Equal(t, "alice@new.example.com", updated.Email)
	})

	t.Run("password change rehashes", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, alice, alice.ID, &types.UpdateUserRequest{Password: "newpassword"})
		require.NoError(t, err)
		_, err = svc.Login(ctx, &types.LoginRequest{Username: "alice", Password: "newpassword"})
		assert.NoError(t, err)
	})

	t.Run("cannot edit someone else", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, bob, alice.ID, &types.UpdateUserRequest{Email: "x@example.com"})
		assert.ErrorIs(t, err, types.ErrForbidden)
	})

	t.Run("role change needs admin", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, alice, alice.ID, &types.UpdateUserRequest{Role: types.RoleUploader})
		assert.ErrorIs(t, err, types.ErrForbidden)

		updated, err := svc.UpdateUser(ctx, admin, alice.ID, &types.UpdateUserRequest{Role: types.RoleUploader})
		require.NoError(t, err)
		assert.Equal(t, types.RoleUploader, updated.Role)
	})

	t.Run("taken username", func(t *testing.T) {
		_, err := svc.UpdateUser(ctx, alice, alice.ID, &types.UpdateUserRequest{Username: "bob"})
		assert.ErrorIs(t, err, types.ErrBadInput)
	})
}

func TestDeleteUser(t *testing.T) {
	svc, db := setupAuth(t, true)
	ctx := context.Background()

	alice := mustUser(t, db, "alice", types.RoleUser)
	admin := mustUser(t, db, "admin", types.RoleAdmin)

	err := svc.DeleteUser(ctx, alice, admin.ID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	require.NoError(t, svc.DeleteUser(ctx, admin, alice.ID))
	err = svc.DeleteUser(ctx, admin, alice.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSetAvatar(t *testing.T) {
	svc, db := setupAuth(t, true)
	ctx := context.Background()

	alice := mustUser(t, db, "alice", types.RoleUser)
	bob := mustUser(t, db, "bob", types.RoleUser)
	admin := mustUser(t, db, "admin", types.RoleAdmin)

	avatar := func() *bytes.Buffer {
		var buf bytes.Buffer
		require.NoError(t, imaging.Encode(&buf, imaging.New(32, 32, color.NRGBA{G: 180, A: 255}), imaging.PNG))
		return &buf
	}

	require.NoError(t, svc.SetAvatar(ctx, alice, alice.ID, avatar(), "me.png"))

	exists, err := svc.media.Storage().Exists(ctx, svc.media.AvatarKey(alice.ID))
	require.NoError(t, err)
	assert.True(t, exists)

	err = svc.SetAvatar(ctx, bob, alice.ID, avatar(), "me.png")
	assert.ErrorIs(t, err, types.ErrForbidden)

	require.NoError(t, svc.SetAvatar(ctx, admin, bob.ID, avatar(), "bob.png"))

	err = svc.SetAvatar(ctx, admin, uuid.New(), avatar(), "ghost.png")
	assert.ErrorIs(t, err, types.ErrNotFound)

	t.Run("non-image rejected", func(t *testing.T) {
		err := svc.SetAvatar(ctx, alice, alice.ID, bytes.NewReader([]byte("nope")), "me.txt")
		require.ErrorIs(t, err, types.ErrBadInput)
		assert.Contains(t, err.Error(), "'me.txt' is not an image")
	})
}

func TestCreateAdmin(t *testing.T) {
	svc, _ := setupAuth(t, false)
	ctx := context.Background()

	user, err := svc.CreateAdmin(ctx, "root", "password123")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, user.Role)

	_, err = svc.CreateAdmin(ctx, "root", "password123")
	assert.ErrorIs(t, err, types.ErrBadInput)

	// The bootstrap account can log in normally
	_, err = svc.Login(ctx, &types.LoginRequest{Username: "root", Password: "password123"})
	assert.NoError(t, err)
}
