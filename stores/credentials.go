// Package stores holds the GORM-backed persistence used by the HTTP layer and the
// deployment worker.
package stores

import (
	"context"
	"errors"
	"fmt"

	"pages-deployer/apperrors"
	"pages-deployer/models"

	"gorm.io/gorm"
)

// CredentialStore persists users and checks their passwords.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Register stores a new user with a bcrypt hash of secret.
func (s *CredentialStore) Register(ctx context.Context, identity, secret string) error {
	if secret == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "Password required")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", identity).Count(&count).Error; err != nil {
		return fmt.Errorf("lookup user %s: %w", identity, err)
	}
	if count > 0 {
		return apperrors.New(apperrors.ErrConflict, "User already exists")
	}

	user := models.User{Email: identity}
	if err := user.SetPassword(secret); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.New(apperrors.ErrConflict, "User already exists")
		}
		return fmt.Errorf("create user %s: %w", identity, err)
	}
	return nil
}

// Verify returns identity when secret matches the stored hash.
func (s *CredentialStore) Verify(ctx context.Context, identity, secret string) (string, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", identity).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.New(apperrors.ErrUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return "", fmt.Errorf("lookup user %s: %w", identity, err)
	}
	if err := user.ComparePassword(secret); err != nil {
		return "", apperrors.New(apperrors.ErrUnauthorized, "Invalid credentials")
	}
	return user.Email, nil
}
