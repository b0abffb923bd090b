package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"p2p-market/internal/auth"
	"p2p-market/internal/services"
)

// TaskHandler handles task reward endpoints
type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns the active tasks
// GET /api/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	tasks, err := h.taskService.ListActive()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load tasks")
		return
	}

	respondOK(c, tasks)
}

// ListMyCompletions returns the caller's completed tasks
// GET /api/tasks/completions
func (h *TaskHandler) ListMyCompletions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	completions, err := h.taskService.ListCompletions(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load completions")
		return
	}

	respondOK(c, completions)
}

// CompleteTask marks a task done and credits the reward
// POST /api/tasks/:id/complete
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	taskID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid task id")
		return
	}

	completion, err := h.taskService.Complete(uint(taskID), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondCreated(c, completion)
}
