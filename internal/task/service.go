package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"task_api/internal/cache"
	"task_api/internal/observability"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidTask  = errors.New("title is required")
	ErrTaskNotFound = errors.New("task not found")
)

const (
	cacheTimeout   = 2 * time.Second
	publishTimeout = 5 * time.Second
)

// Cache is the subset of cache.TaskCache used by the service. List entries
// are keyed by a per-user generation that every write bumps.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data interface{}) error
	Generation(ctx context.Context, key string) (int64, error)
	Bump(ctx context.Context, key string) (int64, error)
}

// EventPublisher delivers task events to the event queue.
type EventPublisher interface {
	PublishJSON(ctx context.Context, v interface{}) error
}

type TaskServiceInterface interface {
	ListTasks(ctx context.Context, userID int) ([]*Task, error)
	CreateTask(ctx context.Context, userID int, title, description string) (*Task, error)
	UpdateTask(ctx context.Context, taskID, userID int, title, description string, done bool) (*Task, error)
	DeleteTask(ctx context.Context, taskID, userID int) error
}

type TaskService struct {
	repo      TaskRepositoryInterface
	cache     Cache
	publisher EventPublisher
	metrics   *observability.Metrics
	now       func() time.Time
}

// Option configures optional collaborators of TaskService.
type Option func(*TaskService)

func WithCache(c Cache) Option {
	return func(s *TaskService) { s.cache = c }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *TaskService) { s.publisher = p }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *TaskService) { s.metrics = m }
}

func NewTaskService(repo TaskRepositoryInterface, opts ...Option) *TaskService {
	s := &TaskService{
		repo: repo,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) ListTasks(ctx context.Context, userID int) ([]*Task, error) {
	// The generation is read before the store so a list that races a write
	// stores its snapshot under a key the write has already retired.
	cacheKey, cacheable := s.listCacheKey(ctx, userID)
	if cacheable {
		if tasks, ok := s.cachedTasks(ctx, cacheKey); ok {
			s.metrics.TaskOperation("list", "success")
			return tasks, nil
		}
	}

	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.metrics.TaskOperation("list", "error")
		return nil, err
	}

	if cacheable {
		cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
		defer cancel()
		if err := s.cache.Set(cacheCtx, cacheKey, tasks); err != nil {
			logrus.WithError(err).Warn("Failed to set cache for user tasks")
		}
	}

	s.metrics.TaskOperation("list", "success")
	return tasks, nil
}

func (s *TaskService) CreateTask(ctx context.Context, userID int, title, description string) (*Task, error) {
	if strings.TrimSpace(title) == "" {
		s.metrics.TaskOperation("create", "invalid")
		return nil, ErrInvalidTask
	}

	task, err := s.repo.Create(ctx, userID, title, description)
	if err != nil {
		s.metrics.TaskOperation("create", "error")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"task_id": task.ID,
		"user_id": userID,
	}).Info("Task created")

	s.afterWrite(ctx, EventCreated, task.ID, userID)
	s.metrics.TaskOperation("create", "success")
	return task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, taskID, userID int, title, description string, done bool) (*Task, error) {
	if strings.TrimSpace(title) == "" {
		s.metrics.TaskOperation("update", "invalid")
		return nil, ErrInvalidTask
	}

	task, err := s.repo.Update(ctx, taskID, userID, title, description, done)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			s.metrics.TaskOperation("update", "not_found")
			return nil, ErrTaskNotFound
		}
		s.metrics.TaskOperation("update", "error")
		return nil, err
	}

	s.afterWrite(ctx, EventUpdated, task.ID, userID)
	s.metrics.TaskOperation("update", "success")
	return task, nil
}

// DeleteTask is idempotent: deleting a missing or foreign task is not an error.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, userID int) error {
	deleted, err := s.repo.Delete(ctx, taskID, userID)
	if err != nil {
		s.metrics.TaskOperation("delete", "error")
		return err
	}

	if !deleted {
		s.metrics.TaskOperation("delete", "not_found")
		return nil
	}

	s.afterWrite(ctx, EventDeleted, taskID, userID)
	s.metrics.TaskOperation("delete", "success")
	return nil
}

func (s *TaskService) listCacheKey(ctx context.Context, userID int) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	gen, err := s.cache.Generation(cacheCtx, cache.UserTasksGenerationKey(userID))
	if err != nil {
		logrus.WithError(err).Warn("Failed to read task cache generation")
		s.metrics.CacheMiss("user_tasks")
		return "", false
	}
	return cache.UserTasksKey(userID, gen), true
}

func (s *TaskService) cachedTasks(ctx context.Context, key string) ([]*Task, bool) {
	cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()

	data, err := s.cache.Get(cacheCtx, key)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read task cache")
	}
	if err == nil && data != nil {
		var tasks []*Task
		if json.Unmarshal(data, &tasks) == nil {
			s.metrics.CacheHit("user_tasks")
			return tasks, true
		}
	}

	s.metrics.CacheMiss("user_tasks")
	return nil, false
}

// afterWrite retires the owner's cached list and publishes the event.
// Neither step can fail the write that already happened.
func (s *TaskService) afterWrite(ctx context.Context, eventType EventType, taskID, userID int) {
	if s.cache != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, cacheTimeout)
		if _, err := s.cache.Bump(cacheCtx, cache.UserTasksGenerationKey(userID)); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate task cache")
		}
		cancel()
	}

	if s.publisher == nil {
		return
	}

	event := TaskEvent{
		Type:       eventType,
		TaskID:     taskID,
		UserID:     userID,
		OccurredAt: s.now().UTC(),
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.PublishJSON(pubCtx, event); err != nil {
		s.metrics.EventFailed("publish_error")
		logrus.WithError(err).WithFields(logrus.Fields{
			"task_id": taskID,
			"event":   eventType,
		}).Warn("Failed to publish task event")
	}
}
