// Package auth handles registration, login and token validation, plus
// the admin-facing user management operations.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/inkdex/inkdex/internal/common"
	"github.com/inkdex/inkdex/internal/images"
	"github.com/inkdex/inkdex/internal/storage"
	"github.com/inkdex/inkdex/pkg/acl"
	"github.com/inkdex/inkdex/pkg/config"
	"github.com/inkdex/inkdex/pkg/types"
	"github.com/inkdex/inkdex/pkg/utils"
)

// registrationWindow bounds how many sign-ups a single address can make
const (
	registrationWindow = time.Hour
	registrationLimit  = 3

	defaultUserPageLimit = 20
	maxUserPageLimit     = 50
)

// Service handles authentication and user management operations
type Service struct {
	db         *common.Database
	cache      *common.Cache
	media      *storage.MediaStore
	normalizer *images.Normalizer
	config     *config.AuthConfig
}

// NewService creates a new authentication service. cache may be nil, in
// which case token caching and registration rate limiting are skipped;
// media and normalizer may be nil when avatar uploads are not served
// (the bootstrap CLI).
func NewService(db *common.Database, cache *common.Cache, media *storage.MediaStore, normalizer *images.Normalizer, config *config.AuthConfig) *Service {
	return &Service{
		db:         db,
		cache:      cache,
		media:      media,
		normalizer: normalizer,
		config:     config,
	}
}

// Register creates a new user account. Self-registration must be enabled
// in the configuration; admins can always create accounts. remoteAddr is
// used for rate limiting and may be empty.
func (s *Service) Register(ctx context.Context, actor *types.User, req *types.RegisterRequest, remoteAddr string) (*types.User, error) {
	admin := actor != nil && acl.Allows(actor.Principals(), acl.ActionCreate, types.UserACL())
	if !admin {
		if !s.config.AllowRegistration {
			return nil, types.Forbidden("Registration is disabled")
		}
		if err := s.checkRegistrationRate(ctx, remoteAddr); err != nil {
			return nil, err
		}
	}

	var existing types.User
	if err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return nil, types.BadInput("The username is already taken")
	}
	if req.Email != "" {
		if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error; err == nil {
			return nil, types.BadInput("The email is already in use")
		}
	}

	hashed, err := utils.HashPassword(req.Password, s.config.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hashed,
		Role:     types.RoleUser,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().Str("username", user.Username).Msg("user registered")
	user.Password = ""
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, req *types.LoginRequest) (*types.AuthToken, error) {
	var user types.User
	if err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.Forbidden("Invalid credentials")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, types.Forbidden("Invalid credentials")
	}

	token, err := utils.GenerateJWT(user.ID, s.config.JWTSecret, s.config.JWTExpiration)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	authToken := &types.AuthToken{
		Token:     token,
		TokenType: "bearer",
		ExpiresAt: time.Now().Add(s.config.JWTExpiration),
		UserID:    user.ID,
	}

	if s.cache != nil {
		cacheKey := fmt.Sprintf("user:%s", user.ID.String())
		if err := s.cache.Set(ctx, cacheKey, &user, 10*time.Minute); err != nil {
			log.Warn().Err(err).Msg("failed to cache user on login")
		}
	}

	return authToken, nil
}

// ValidateToken validates a JWT token and returns the user
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*types.User, error) {
	userID, err := utils.ValidateJWT(tokenString, s.config.JWTSecret)
	if err != nil {
		return nil, types.Forbidden("Invalid token")
	}

	var user types.User
	if s.cache != nil {
		cacheKey := fmt.Sprintf("user:%s", userID.String())
		if err := s.cache.Get(ctx, cacheKey, &user); err == nil {
			return &user, nil
		}
	}

	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.Forbidden("Invalid token")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if s.cache != nil {
		cacheKey := fmt.Sprintf("user:%s", userID.String())
		if err := s.cache.Set(ctx, cacheKey, &user, 10*time.Minute); err != nil {
			log.Warn().Err(err).Msg("failed to cache user")
		}
	}

	user.Password = ""
	return &user, nil
}

// GetUser retrieves a user by ID. Users can view themselves; admins can
// view anyone.
func (s *Service) GetUser(ctx context.Context, actor *types.User, userID uuid.UUID) (*types.User, error) {
	var user types.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !acl.HasPermission(actor.Principals(), acl.ActionView, &user) {
		return nil, types.Forbidden("you are not allowed to view this user")
	}

	user.Password = ""
	return &user, nil
}

// ListUsers returns a page of users plus the total count, admin only
func (s *Service) ListUsers(ctx context.Context, actor *types.User, limit, offset int) ([]types.User, int64, error) {
	if !acl.Allows(actor.Principals(), acl.ActionView, types.UserACL()) {
		return nil, 0, types.Forbidden("you are not allowed to list users")
	}

	if limit <= 0 {
		limit = defaultUserPageLimit
	}
	if limit > maxUserPageLimit {
		limit = maxUserPageLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&types.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []types.User
	if err := s.db.WithContext(ctx).Order("created_at").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, total, nil
}

// UpdateUser applies the non-empty fields of req to a user. Role changes
// require admin; the other fields are open to the user themselves.
func (s *Service) UpdateUser(ctx context.Context, actor *types.User, userID uuid.UUID, req *types.UpdateUserRequest) (*types.User, error) {
	var user types.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !acl.HasPermission(actor.Principals(), acl.ActionEdit, &user) {
		return nil, types.Forbidden("you are not allowed to edit this user")
	}

	updates := map[string]interface{}{}
	if req.Username != "" && req.Username != user.Username {
		var existing types.User
		if err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&existing).Error; err == nil {
			return nil, types.BadInput("The username is already taken")
		}
		updates["username"] = req.Username
	}
	if req.Email != "" && req.Email != user.Email {
		var existing types.User
		if err := s.db.WithContext(ctx).Where("email = ?", req.Email).First(&existing).Error; err == nil {
			return nil, types.BadInput("The email is already in use")
		}
		updates["email"] = req.Email
	}
	if req.Password != "" {
		hashed, err := utils.HashPassword(req.Password, s.config.BCryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		updates["password"] = hashed
	}
	if req.Role != "" && req.Role != user.Role {
		if !acl.Allows(actor.Principals(), acl.ActionCreate, types.UserACL()) {
			return nil, types.Forbidden("you are not allowed to change roles")
		}
		updates["role"] = req.Role
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	s.invalidateUser(ctx, user.ID)
	user.Password = ""
	return &user, nil
}

// DeleteUser removes a user account, admin only
func (s *Service) DeleteUser(ctx context.Context, actor *types.User, userID uuid.UUID) error {
	if !acl.Allows(actor.Principals(), acl.ActionCreate, types.UserACL()) {
		return types.Forbidden("you are not allowed to delete users")
	}

	result := s.db.WithContext(ctx).Delete(&types.User{}, "id = ?", userID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.NotFound("User not found")
	}

	s.invalidateUser(ctx, userID)
	log.Info().Str("user_id", userID.String()).Msg("user deleted")
	return nil
}

// SetAvatar replaces a user's avatar with an uploaded image. Users can
// change their own avatar; admins can change anyone's. name is the
// client filename, surfaced in the rejection message.
func (s *Service) SetAvatar(ctx context.Context, actor *types.User, userID uuid.UUID, r io.Reader, name string) error {
	var user types.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFound("User not found")
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !acl.HasPermission(actor.Principals(), acl.ActionEdit, &user) {
		return types.Forbidden("you are not allowed to edit this user")
	}

	if err := s.normalizer.NormalizeTo(ctx, r, s.media.AvatarKey(userID), name); err != nil {
		return err
	}

	log.Info().Str("user_id", userID.String()).Msg("avatar updated")
	return nil
}

// CreateAdmin creates an account with the admin role, bypassing the
// registration gate. Used by the bootstrap CLI.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*types.User, error) {
	var existing types.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, types.BadInput("The username is already taken")
	}

	hashed, err := utils.HashPassword(password, s.config.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		Username: username,
		Password: hashed,
		Role:     types.RoleAdmin,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	user.Password = ""
	return user, nil
}

func (s *Service) checkRegistrationRate(ctx context.Context, remoteAddr string) error {
	if s.cache == nil || remoteAddr == "" {
		return nil
	}
	key := fmt.Sprintf("register:%s", remoteAddr)
	count, err := s.cache.Increment(ctx, key, registrationWindow)
	if err != nil {
		// Redis being down shouldn't lock people out
		log.Warn().Err(err).Msg("registration rate check failed")
		return nil
	}
	if count > registrationLimit {
		return types.BadInput("Too many registrations, try again later")
	}
	return nil
}

func (s *Service) invalidateUser(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, fmt.Sprintf("user:%s", userID.String())); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate cached user")
	}
}
