package services

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"p2p-market/internal/models"
)

// TaskService pays token rewards for platform tasks. Each task can be
// completed once per user; the reward is snapshotted on the completion row
// so later task edits never change past payouts.
type TaskService struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

// ListActive returns the tasks currently open for completion.
func (s *TaskService) ListActive() ([]models.Task, error) {
	var tasks []models.Task
	if err := s.db.Where("is_active = ?", true).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListCompletions returns a user's completed tasks, newest first.
func (s *TaskService) ListCompletions(userID uint) ([]models.TaskCompletion, error) {
	var completions []models.TaskCompletion
	err := s.db.Where("user_id = ?", userID).
		Preload("Task").
		Order("completed_at DESC").
		Find(&completions).Error
	if err != nil {
		return nil, err
	}
	return completions, nil
}

// Complete marks a task done for a user and credits the reward.
func (s *TaskService) Complete(taskID, userID uint) (*models.TaskCompletion, error) {
	var completion *models.TaskCompletion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, taskID).Error; err != nil {
			return err
		}
		if !task.IsActive {
			return newPrecondition("task is no longer active")
		}

		completion = &models.TaskCompletion{
			TaskID: task.ID,
			UserID: userID,
			Reward: task.Reward,
		}
		if err := tx.Create(completion).Error; err != nil {
			// The composite unique index turns a repeat completion into a
			// constraint violation.
			if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate") {
				return newPrecondition("task already completed")
			}
			return fmt.Errorf("failed to record completion: %w", err)
		}

		if err := creditBalance(tx, userID, task.Reward); err != nil {
			return err
		}

		entry := models.BalanceEntry{
			ID:        uuid.New(),
			UserID:    userID,
			EntryType: models.BalanceEntryTypeReward,
			Amount:    task.Reward,
			Note:      fmt.Sprintf("task reward: %s", task.Title),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Task %d completed by user %d, reward %s", taskID, userID, completion.Reward)
	return completion, nil
}

// CreateTask adds a new task; admin only.
func (s *TaskService) CreateTask(title, description string, reward decimal.Decimal) (*models.Task, error) {
	if title == "" {
		return nil, newValidation("title", "is required")
	}
	if reward.IsNegative() {
		return nil, newValidation("reward", "cannot be negative")
	}

	task := &models.Task{
		Title:       title,
		Description: description,
		Reward:      reward,
		IsActive:    true,
	}
	if err := s.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// SetTaskActive enables or disables a task.
func (s *TaskService) SetTaskActive(taskID uint, active bool) error {
	res := s.db.Model(&models.Task{}).Where("id = ?", taskID).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
