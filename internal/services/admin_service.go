package services

import (
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"p2p-market/internal/models"
)

type AdminService struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{
		db: db,
	}
}

// IsAdmin checks if a user is an admin
func (s *AdminService) IsAdmin(userID uint) bool {
	var admin models.AdminUser
	result := s.db.Where("user_id = ?", userID).First(&admin)
	return result.Error == nil
}

// GetAdminByUserID gets admin by user ID
func (s *AdminService) GetAdminByUserID(userID uint) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := s.db.Where("user_id = ?", userID).First(&admin).Error; err != nil {
		return nil, err
	}
	return &admin, nil
}

// PromoteUserToAdmin promotes a user to admin
func (s *AdminService) PromoteUserToAdmin(userID uint, role string, promotedByAdminID uint) (*models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	var existing models.AdminUser
	if err := s.db.Where("user_id = ?", userID).First(&existing).Error; err == nil {
		return nil, newPrecondition("user is already an admin")
	}

	adminUser := models.AdminUser{
		UserID: userID,
		Role:   role,
	}

	if err := s.db.Create(&adminUser).Error; err != nil {
		return nil, fmt.Errorf("failed to promote user: %w", err)
	}

	s.LogAdminAction(promotedByAdminID, "PROMOTE_USER", "USER", fmt.Sprint(userID), map[string]interface{}{
		"role": role,
	})

	log.Printf("User %d promoted to %s", userID, role)
	return &adminUser, nil
}

// DemoteAdmin removes admin privileges
func (s *AdminService) DemoteAdmin(userID uint, demotedByAdminID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Where("user_id = ?", userID).Delete(&models.AdminUser{})
	if result.Error != nil {
		return fmt.Errorf("failed to demote admin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return newPrecondition("user is not an admin")
	}

	s.LogAdminAction(demotedByAdminID, "DEMOTE_ADMIN", "USER", fmt.Sprint(userID), nil)
	return nil
}

// LogAdminAction logs an admin action
func (s *AdminService) LogAdminAction(adminID uint, action string, resourceType string,
	resourceID string, details map[string]interface{}) error {

	adminLog := models.AdminLog{
		AdminID:      adminID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      models.JSONB(details),
	}

	return s.db.Create(&adminLog).Error
}

// GetAdminLogs returns admin activity logs
func (s *AdminService) GetAdminLogs(limit int, offset int) ([]models.AdminLog, error) {
	var logs []models.AdminLog
	if err := s.db.Preload("Admin").Preload("Admin.User").
		Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// DashboardStats is a point-in-time snapshot of platform activity.
type DashboardStats struct {
	TotalUsers       int64           `json:"total_users"`
	VerifiedUsers    int64           `json:"verified_users"`
	ActiveTrades     int64           `json:"active_trades"`
	ProcessingTrades int64           `json:"processing_trades"`
	CompletedTrades  int64           `json:"completed_trades"`
	DisputedTrades   int64           `json:"disputed_trades"`
	OpenDisputes     int64           `json:"open_disputes"`
	PendingKYC       int64           `json:"pending_kyc"`
	CompletedVolume  decimal.Decimal `json:"completed_volume"`
}

// GetDashboardStats computes current platform statistics
func (s *AdminService) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{CompletedVolume: decimal.Zero}

	s.db.Model(&models.User{}).Count(&stats.TotalUsers)
	s.db.Model(&models.User{}).Where("kyc_verified = ?", true).Count(&stats.VerifiedUsers)
	s.db.Model(&models.Trade{}).Where("status = ?", models.TradeStatusActive).Count(&stats.ActiveTrades)
	s.db.Model(&models.Trade{}).Where("status = ?", models.TradeStatusProcessing).Count(&stats.ProcessingTrades)
	s.db.Model(&models.Trade{}).Where("status = ?", models.TradeStatusCompleted).Count(&stats.CompletedTrades)
	s.db.Model(&models.Trade{}).Where("status = ?", models.TradeStatusDisputed).Count(&stats.DisputedTrades)
	s.db.Model(&models.Dispute{}).Where("status = ?", models.DisputeStatusOpen).Count(&stats.OpenDisputes)
	s.db.Model(&models.KYCSubmission{}).Where("status = ?", models.KYCStatusPending).Count(&stats.PendingKYC)

	row := s.db.Model(&models.Trade{}).Where("status = ?", models.TradeStatusCompleted).
		Select("COALESCE(SUM(total), 0)").Row()
	if err := row.Scan(&stats.CompletedVolume); err != nil {
		stats.CompletedVolume = decimal.Zero
	}

	return stats, nil
}

// GetAllUsers returns all users with optional nickname or wallet search
func (s *AdminService) GetAllUsers(limit int, offset int, search string) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	query := s.db.Model(&models.User{})
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("nickname LIKE ? OR wallet_address LIKE ?", pattern, pattern)
	}

	query.Count(&total)
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
