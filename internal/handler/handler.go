package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"task_api/internal/auth"
	"task_api/internal/cache"
	"task_api/internal/config"
	"task_api/internal/middleware"
	"task_api/internal/observability"
	"task_api/internal/task"
	"task_api/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the shared clients the router is built from.
// Redis, Publisher, Metrics and Gatherer are optional.
type Dependencies struct {
	Config    *config.Config
	DB        *sql.DB
	Redis     *redis.Client
	Publisher task.EventPublisher
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
}

// SetupHandler initializes all dependencies and routes
func SetupHandler(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.PrometheusMiddleware(deps.Metrics))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}))

	tokens := auth.NewTokenManager(&cfg.JWT)

	// Initialize repositories
	userRepo := user.NewUserRepository(deps.DB)
	taskRepo := task.NewTaskRepository(deps.DB)

	// Initialize services
	userService, err := user.NewUserService(userRepo, tokens, cfg.Auth.BcryptCost, deps.Metrics)
	if err != nil {
		return nil, fmt.Errorf("init user service: %w", err)
	}

	opts := []task.Option{task.WithMetrics(deps.Metrics)}
	if deps.Redis != nil {
		opts = append(opts, task.WithCache(cache.NewTaskCache(deps.Redis, cfg.Redis.CacheTTL)))
	}
	if deps.Publisher != nil {
		opts = append(opts, task.WithPublisher(deps.Publisher))
	}
	taskService := task.NewTaskService(taskRepo, opts...)

	// Initialize controllers
	userController := user.NewUserController(userService, tokens.TTL())
	taskController := task.NewTaskController(taskService)

	setupRoutes(r, deps, tokens, userController, taskController)

	return r, nil
}

// setupRoutes configures all application routes
func setupRoutes(r *gin.Engine, deps Dependencies, tokens *auth.TokenManager, userCtrl *user.UserController, taskCtrl *task.TaskController) {
	limits := deps.Config.RateLimit

	r.GET("/health", healthHandler(deps.DB))
	r.GET("/metrics", metricsHandler(deps.Gatherer))

	// Public routes - Authentication
	r.POST("/register", userCtrl.Register)
	if deps.Redis != nil {
		r.POST("/login",
			middleware.ClientIPRateLimiterMiddleware(deps.Redis, "login", &middleware.RateLimiterConfig{
				Capacity:   limits.LoginCapacity,
				RefillRate: limits.LoginRefillRate,
			}),
			userCtrl.Login,
		)
	} else {
		r.POST("/login", userCtrl.Login)
	}

	// Protected routes - owner-scoped tasks
	tasks := r.Group("/tasks")
	tasks.Use(middleware.AuthMiddleware(tokens))
	if deps.Redis != nil {
		tasks.Use(middleware.RateLimiterMiddleware(deps.Redis, &middleware.RateLimiterConfig{
			Capacity:   limits.APICapacity,
			RefillRate: limits.APIRefillRate,
		}))
	}
	{
		tasks.GET("", taskCtrl.ListTasks)
		tasks.POST("", taskCtrl.CreateTask)
		tasks.PUT("/:id", taskCtrl.UpdateTask)
		tasks.DELETE("/:id", taskCtrl.DeleteTask)
	}
}

func healthHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func metricsHandler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	h := promhttp.Handler()
	if gatherer != nil {
		h = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return gin.WrapH(h)
}
