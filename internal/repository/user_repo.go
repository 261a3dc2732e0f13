package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// UserRepository exposes identity lookups and presence writes.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (models.User, error)
	UpdatePresence(ctx context.Context, id uint, status models.PresenceStatus, online bool, seenAt time.Time) error
	ListOnline(ctx context.Context) ([]models.User, error)
	UpsertBatch(ctx context.Context, users []models.User) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// UpdatePresence writes every presence column in a single statement.
func (r *userRepository) UpdatePresence(ctx context.Context, id uint, status models.PresenceStatus, online bool, seenAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"is_online_now": online,
			"last_seen_at":  seenAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) ListOnline(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("is_online_now = ?", true).
		Order("last_seen_at DESC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpsertBatch(ctx context.Context, users []models.User) (int64, error) {
	if len(users) == 0 {
		return 0, nil
	}

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "role", "updated_at"}),
	})

	result := tx.Create(&users)
	return result.RowsAffected, result.Error
}
