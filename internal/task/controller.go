package task

import (
	"errors"
	"net/http"
	"strconv"

	"task_api/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type TaskController struct {
	service TaskServiceInterface
}

func NewTaskController(service TaskServiceInterface) *TaskController {
	return &TaskController{
		service: service,
	}
}

type createTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type updateTaskRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Done        *bool  `json:"done" binding:"required"`
}

// ListTasks returns every task owned by the caller, newest first
func (tc *TaskController) ListTasks(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	tasks, err := tc.service.ListTasks(c.Request.Context(), userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list tasks")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get tasks"})
		return
	}

	if tasks == nil {
		tasks = []*Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

// CreateTask handles task creation
func (tc *TaskController) CreateTask(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	task, err := tc.service.CreateTask(c.Request.Context(), userID, req.Title, req.Description)
	if err != nil {
		if errors.Is(err, ErrInvalidTask) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
			return
		}
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to create task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

// UpdateTask replaces title, description and done of one of the caller's tasks
func (tc *TaskController) UpdateTask(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title and done are required"})
		return
	}

	task, err := tc.service.UpdateTask(c.Request.Context(), taskID, userID, req.Title, req.Description, *req.Done)
	if err != nil {
		switch {
		case errors.Is(err, ErrTaskNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		case errors.Is(err, ErrInvalidTask):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		default:
			logrus.WithError(err).WithField("task_id", taskID).Error("Failed to update task")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		}
		return
	}

	c.JSON(http.StatusOK, task)
}

// DeleteTask removes one of the caller's tasks; unknown ids still succeed
func (tc *TaskController) DeleteTask(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	if err := tc.service.DeleteTask(c.Request.Context(), taskID, userID); err != nil {
		logrus.WithError(err).WithField("task_id", taskID).Error("Failed to delete task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

func requireUserID(c *gin.Context) (int, bool) {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return userID, true
}

// taskIDParam accepts positive ids within the SERIAL (int4) range of tasks.id.
func taskIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return 0, false
	}
	return int(id), true
}
