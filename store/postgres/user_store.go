package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yoma-api/models"
	"yoma-api/store"
)

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", mapError(err))
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (r *userRepository) Search(ctx context.Context, filter store.UserFilter) ([]models.User, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.User{})
		if v := strings.TrimSpace(filter.ValueContains); v != "" {
			p := likePattern(v)
			q = q.Where("email ILIKE ? OR first_name ILIKE ? OR surname ILIKE ? OR display_name ILIKE ?", p, p, p, p)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", mapError(err))
	}

	var users []models.User
	if err := paginate(base().Order("email ASC"), filter.Page).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", mapError(err))
	}
	return users, total, nil
}
