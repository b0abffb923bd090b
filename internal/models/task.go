package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Task is a platform task (social follow, daily mining claim, etc.) that
// pays a token reward on completion.
type Task struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Reward      decimal.Decimal `gorm:"type:decimal(18,8);not null" json:"reward"`
	IsActive    bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// TaskCompletion records that a user completed a task. One completion per
// user per task.
type TaskCompletion struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	TaskID      uint            `gorm:"not null;index:idx_task_user,unique" json:"task_id"`
	Task        *Task           `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	UserID      uint            `gorm:"not null;index:idx_task_user,unique" json:"user_id"`
	User        *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reward      decimal.Decimal `gorm:"type:decimal(18,8);not null" json:"reward"`
	CompletedAt time.Time       `gorm:"autoCreateTime" json:"completed_at"`
}

func (TaskCompletion) TableName() string {
	return "task_completions"
}
