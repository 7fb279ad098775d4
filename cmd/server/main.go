package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdg-garage/eventra-api/internal/attendance"
	"github.com/gdg-garage/eventra-api/internal/auth"
	"github.com/gdg-garage/eventra-api/internal/config"
	"github.com/gdg-garage/eventra-api/internal/database"
	"github.com/gdg-garage/eventra-api/internal/events"
	"github.com/gdg-garage/eventra-api/internal/handlers"
	"github.com/gdg-garage/eventra-api/internal/idgen"
	"github.com/gdg-garage/eventra-api/internal/logging"
	"github.com/gdg-garage/eventra-api/internal/notifier"
	"github.com/gdg-garage/eventra-api/internal/registrations"
	"github.com/gdg-garage/eventra-api/internal/teams"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Connect to Database
	db := database.Connect(cfg, logger)
	ids := idgen.New(db, idgen.WithMaxAttempts(cfg.IDMaxAttempts))

	var notify notifier.Notifier
	discordNotifier, err := notifier.NewDiscordNotifier(cfg)
	if err != nil {
		logger.Info("Discord notifier not initialized, logging notifications instead", zap.Error(err))
		notify = notifier.NewLogNotifier(logger)
	} else {
		notify = discordNotifier
	}

	// Initialize Services
	eventService := events.NewService(db, ids, logger)
	registrationService := registrations.NewService(db, ids, logger)
	teamService := teams.NewService(db, ids, registrationService, notify, logger)
	attendanceService := attendance.NewService(db, ids, logger)

	// Initialize Handlers
	authHandler := auth.NewAuthHandler(cfg, db, ids, notify, logger)
	if err := authHandler.EnsureAdmin(context.Background()); err != nil {
		logger.Fatal("Failed to ensure admin account", zap.Error(err))
	}
	h := handlers.Handlers{
		Auth:          authHandler,
		Events:        handlers.NewEventHandler(eventService, authHandler),
		Teams:         handlers.NewTeamHandler(teamService, authHandler),
		Registrations: handlers.NewRegistrationHandler(registrationService, authHandler),
		Attendance:    handlers.NewAttendanceHandler(attendanceService, authHandler),
		APIKeys:       handlers.NewAPIKeyHandler(db, authHandler, logger),
	}

	// Initialize Router
	r := chi.NewRouter()
	handlers.RegisterRoutes(r, cfg, logger, h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
