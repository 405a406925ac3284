package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"todoapp/docs" // swagger docs
	"todoapp/internal/auth"
	"todoapp/internal/cache"
	"todoapp/internal/config"
	"todoapp/internal/handler"
	"todoapp/internal/logging"
	"todoapp/internal/router"
	"todoapp/internal/service"
	"todoapp/internal/store"
	"todoapp/internal/timefmt"
)

// @title Todo API
// @version 1.0
// @description Personal to-do lists with subtasks, categories, tags and recurring tasks.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	zone, err := timefmt.Load(cfg.Timezone)
	if err != nil {
		logger.Fatalf("timezone: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("storage init: %v", err)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("close storage")
		}
	}()
	logger.WithField("driver", cfg.StorageDriver).Info("storage ready")

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		logger.WithError(err).Warn("redis unavailable, running without cache and refresh tokens")
	}

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	userService := service.NewUserService(st.Users, cacheClient, zone, logger, cfg.BcryptCost)
	taskService := service.NewTaskService(st.Tasks, zone, logger)
	authService := service.NewAuthService(userService, jwtService, tokenStore, logger)
	recurrenceService := service.NewRecurrenceService(st.Tasks, logger)

	scheduler := service.NewSchedulerService(zone.Location(), logger)
	if _, err := scheduler.ScheduleDaily(cfg.RolloverAt, func() {
		created, err := recurrenceService.RollOver(context.Background())
		if err != nil {
			logger.WithError(err).Error("recurring task rollover failed")
			return
		}
		logger.WithField("created", created).Info("recurring task rollover finished")
	}); err != nil {
		logger.Fatalf("schedule rollover: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	e := echo.New()
	e.HideBanner = true

	router.Register(e, logger, jwtService.Secret(), router.Handlers{
		Auth: handler.NewAuthHandler(authService, zone),
		User: handler.NewUserHandler(userService, zone),
		Task: handler.NewTaskHandler(taskService, zone),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}
	logger.Infof("Swagger documentation available at: http://%s/swagger/index.html", docs.SwaggerInfo.Host)

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
}
