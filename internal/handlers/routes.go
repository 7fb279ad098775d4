package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/gdg-garage/eventra-api/internal/auth"
	"github.com/gdg-garage/eventra-api/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Auth          *auth.AuthHandler
	Events        *EventHandler
	Teams         *TeamHandler
	Registrations *RegistrationHandler
	Attendance    *AttendanceHandler
	APIKeys       *APIKeyHandler
}

var securedBy = []map[string][]string{
	{"cookieAuth": {}},
	{"bearerAuth": {}},
	{"apiKeyAuth": {}},
}

func secured(o *huma.Operation) {
	o.Security = securedBy
}

func created(o *huma.Operation) {
	o.DefaultStatus = http.StatusCreated
}

func RegisterRoutes(r *chi.Mux, cfg *config.Config, logger *zap.Logger, h Handlers) huma.API {
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-API-KEY", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}
	r.Use(h.Auth.AuthMiddleware)

	// Initialize Huma API
	humaConfig := huma.DefaultConfig("Eventra API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
		"apiKeyAuth": {
			Type: "apiKey",
			In:   "header",
			Name: "X-API-KEY",
		},
	}
	api := humachi.New(r, humaConfig)

	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limited := func(o *huma.Operation) {
		o.Middlewares = append(o.Middlewares, limiter.Middleware(api))
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Auth routes
	if cfg.DiscordLoginEnabled() {
		r.Get("/auth/discord/login", h.Auth.HandleDiscordLogin)
		r.Get("/auth/discord/callback", h.Auth.HandleDiscordCallback)
	} else {
		logger.Info("discord login disabled")
	}
	huma.Post(api, "/auth/register", h.Auth.HandleSignUp, created, limited)
	huma.Post(api, "/auth/login", h.Auth.HandleLogin, limited)
	huma.Get(api, "/me", h.Auth.HandleMe, secured)

	// Accounts
	huma.Post(api, "/admin/coordinators", h.Auth.HandleCreateCoordinator, secured, created)
	huma.Get(api, "/admin/users", h.Auth.HandleListUsers, secured)

	huma.Post(api, "/api-keys", h.APIKeys.HandleCreate, secured, created)
	huma.Get(api, "/api-keys", h.APIKeys.HandleList, secured)
	huma.Delete(api, "/api-keys/{id}", h.APIKeys.HandleDelete, secured)

	// Event directory
	huma.Get(api, "/events", h.Events.HandleList)
	huma.Get(api, "/events/{id}", h.Events.HandleGet)
	huma.Post(api, "/events", h.Events.HandleCreate, secured, created)
	huma.Put(api, "/events/{id}", h.Events.HandleUpdate, secured)
	huma.Delete(api, "/events/{id}", h.Events.HandleDelete, secured)
	huma.Post(api, "/events/{id}/coordinators", h.Events.HandleAssignCoordinators, secured)
	huma.Put(api, "/events/{id}/coordinators", h.Events.HandleReassignCoordinators, secured)
	huma.Delete(api, "/events/{id}/coordinators/{coordinatorId}", h.Events.HandleRemoveCoordinator, secured)

	// Teams
	huma.Post(api, "/teams", h.Teams.HandleCreate, secured, created, limited)
	huma.Post(api, "/teams/join", h.Teams.HandleJoin, secured, limited)
	huma.Get(api, "/teams/my-team/{eventId}", h.Teams.HandleMyTeam, secured)
	huma.Get(api, "/teams/available/{eventId}", h.Teams.HandleAvailable, secured)
	huma.Post(api, "/teams/{teamId}/register", h.Teams.HandleRegister, secured, limited)
	huma.Delete(api, "/teams/{teamId}/leave", h.Teams.HandleLeave, secured, limited)
	huma.Delete(api, "/teams/{teamId}", h.Teams.HandleDelete, secured, limited)

	// Registrations
	huma.Post(api, "/registrations", h.Registrations.HandleRegister, secured, created)
	huma.Get(api, "/registrations/my-registrations", h.Registrations.HandleMine, secured)
	huma.Get(api, "/registrations/event/{eventId}/participants", h.Registrations.HandleEventParticipants, secured)
	huma.Get(api, "/registrations/all", h.Registrations.HandleAll, secured)

	// Attendance
	huma.Post(api, "/attendance/mark", h.Attendance.HandleMark, secured)
	huma.Get(api, "/attendance/event/{eventId}", h.Attendance.HandleEvent, secured)

	return api
}
