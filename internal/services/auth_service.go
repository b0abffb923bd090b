package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"p2p-market/internal/models"
	"p2p-market/internal/utils"
)

// AuthService handles authentication business logic
type AuthService struct {
	db       *gorm.DB
	referral *ReferralService
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB, referral *ReferralService) *AuthService {
	return &AuthService{db: db, referral: referral}
}

// ProcessWalletLogin finds or creates a user by wallet address. A referral
// code on first login links the new user to their referrer.
func (s *AuthService) ProcessWalletLogin(walletAddress string, referralCode string) (*models.User, error) {
	var user models.User

	result := s.db.Where("wallet_address = ?", walletAddress).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		nickname, err := utils.GenerateNickname()
		if err != nil {
			return nil, fmt.Errorf("failed to generate nickname: %w", err)
		}

		user = models.User{
			WalletAddress: walletAddress,
			Nickname:      nickname,
		}

		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		if referralCode != "" {
			if err := s.referral.ValidateAndApplyReferralCode(user.ID, referralCode); err != nil {
				log.Printf("Warning: failed to apply referral code for user %d: %v", user.ID, err)
			}
		}

		log.Printf("New user created: wallet=%s (ID: %d)", walletAddress, user.ID)
	} else if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	} else {
		log.Printf("User logged in: wallet=%s (ID: %d)", walletAddress, user.ID)
	}

	return &user, nil
}

// GetUserByID retrieves a user by their ID
func (s *AuthService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
