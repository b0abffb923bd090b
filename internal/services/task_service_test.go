package services

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"p2p-market/internal/models"
)

func setupTaskDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.TaskCompletion{},
		&models.BalanceEntry{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func TestCompleteTaskPaysOnce(t *testing.T) {
	db := setupTaskDB(t)
	service := NewTaskService(db)

	user := models.User{WalletAddress: "worker", Nickname: "worker"}
	db.Create(&user)

	task, err := service.CreateTask("Follow on X", "Follow the project account", decimal.NewFromInt(25))
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	completion, err := service.Complete(task.ID, user.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !completion.Reward.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected reward 25, got %s", completion.Reward)
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if !reloaded.TokenBalance.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected balance 25, got %s", reloaded.TokenBalance)
	}

	// Completing again must fail and must not pay again.
	if _, err := service.Complete(task.ID, user.ID); !IsPrecondition(err) {
		t.Fatalf("expected precondition error on repeat, got %v", err)
	}
	db.First(&reloaded, user.ID)
	if !reloaded.TokenBalance.Equal(decimal.NewFromInt(25)) {
		t.Errorf("double payout detected: %s", reloaded.TokenBalance)
	}

	var entries int64
	db.Model(&models.BalanceEntry{}).
		Where("user_id = ? AND entry_type = ?", user.ID, models.BalanceEntryTypeReward).
		Count(&entries)
	if entries != 1 {
		t.Errorf("expected 1 reward entry, got %d", entries)
	}
}

func TestInactiveTaskNotCompletable(t *testing.T) {
	db := setupTaskDB(t)
	service := NewTaskService(db)

	user := models.User{WalletAddress: "worker", Nickname: "worker"}
	db.Create(&user)

	task, err := service.CreateTask("Old promo", "", decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := service.SetTaskActive(task.ID, false); err != nil {
		t.Fatalf("SetTaskActive failed: %v", err)
	}

	if _, err := service.Complete(task.ID, user.ID); !IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}

	tasks, err := service.ListActive()
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected no active tasks, got %d", len(tasks))
	}
}
