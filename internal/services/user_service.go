package services

import (
	"context"

	"gorm.io/gorm"

	"p2p-market/internal/models"
)

// UserService handles user-related business logic
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateNickname changes a user's display name.
func (s *UserService) UpdateNickname(userID uint, nickname string) error {
	if len(nickname) < 3 || len(nickname) > 32 {
		return newValidation("nickname", "must be between 3 and 32 characters")
	}

	var existing models.User
	err := s.db.Where("nickname = ? AND id != ?", nickname, userID).First(&existing).Error
	if err == nil {
		return newConflict("nickname already taken")
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	return s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("nickname", nickname).Error
}

// GetBalanceHistory returns a user's balance ledger, newest first.
func (s *UserService) GetBalanceHistory(ctx context.Context, userID uint, limit int) ([]models.BalanceEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.BalanceEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// GetLeaderboard returns the top users by token balance.
func (s *UserService) GetLeaderboard(limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var users []models.User
	err := s.db.
		Order("token_balance DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
