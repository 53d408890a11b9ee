package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"certhub/models"

	"gorm.io/gorm"
)

// UserStore provides database operations for user and admin accounts.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// ProfileUpdate carries the editable profile fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	FullName   *string
	CourseName *string
	Phone      *string
	Address    *string
}

// Create inserts a new account. Emails are stored lower-cased and are unique per role.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	db := s.db.WithContext(ctx)
	if _, err := s.FindByEmail(ctx, user.Email, user.Role); err == nil {
		return ErrDuplicateAccount
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := db.Create(user).Error; err != nil {
		if _, lookupErr := s.FindByEmail(ctx, user.Email, user.Role); lookupErr == nil {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email, role string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND role = ?", strings.ToLower(strings.TrimSpace(email)), role).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// List returns accounts with the given role, newest first.
func (s *UserStore) List(ctx context.Context, role string) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Where("role = ?", role).Order("created_at DESC").Order("id DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserStore) UpdateProfile(ctx context.Context, id uint, update ProfileUpdate) (*models.User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if update.FullName != nil {
		changes["full_name"] = strings.TrimSpace(*update.FullName)
	}
	if update.CourseName != nil {
		changes["course_name"] = *update.CourseName
	}
	if update.Phone != nil {
		changes["phone"] = *update.Phone
	}
	if update.Address != nil {
		changes["address"] = *update.Address
	}
	if len(changes) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.FindByID(ctx, id)
}

func (s *UserStore) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login", at.UTC()).Error; err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}
