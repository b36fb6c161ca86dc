// Package accounts manages the users who author posts: credential checks
// for login, profile reads and partial profile updates, and provisioning.
package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"quill/apperr"
	"quill/auth"
	"quill/models"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Patch holds the profile fields to change. Nil fields are left as they are.
type Patch struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Motto       *string `json:"motto"`
}

// Authenticate returns the user when password matches. An unknown username
// and a wrong password fail the same way.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.ErrUnauthorized
	}
	return &user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update applies p to the user's profile.
func (s *Service) Update(ctx context.Context, id string, p Patch) error {
	updates := map[string]any{}
	if p.DisplayName != nil {
		updates["display_name"] = *p.DisplayName
	}
	if p.AvatarURL != nil {
		updates["avatar_url"] = *p.AvatarURL
	}
	if p.Motto != nil {
		updates["motto"] = *p.Motto
	}

	if len(updates) == 0 {
		_, err := s.Get(ctx, id)
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Create provisions a user with a bcrypt hash of password.
func (s *Service) Create(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.BadRequestf("username is required")
	}
	if password == "" {
		return nil, apperr.BadRequestf("password is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Wrap(apperr.Conflict, "username already taken", err)
		}
		return nil, err
	}
	return user, nil
}
