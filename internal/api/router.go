package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/vigil-dev/vigil/internal/config"
	"github.com/vigil-dev/vigil/internal/history"
	"github.com/vigil-dev/vigil/internal/incident"
	"github.com/vigil-dev/vigil/internal/maintenance"
	"github.com/vigil-dev/vigil/internal/notification"
	"github.com/vigil-dev/vigil/internal/probe"
	"github.com/vigil-dev/vigil/internal/stats"
	"github.com/vigil-dev/vigil/internal/websocket"
)

// RouterDeps bundles everything the HTTP layer needs
type RouterDeps struct {
	Config      *config.Config
	DB          *gorm.DB
	Store       *history.Store
	Executor    *probe.Executor
	Aggregator  *stats.Aggregator
	Incidents   *incident.Manager
	Maintenance *maintenance.Evaluator
	Dispatcher  *notification.Dispatcher
	Hub         *websocket.Hub
}

// NewRouter creates the HTTP router
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(SecurityHeadersMiddleware(d.Config))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authLimiter := NewRateLimiter(rate.Every(time.Second), 5)
	authLimiter.StartCleanup()

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(authLimiter))
			r.Post("/auth/login", HandleLogin(d.DB, d.Config))
			r.Post("/auth/setup", HandleSetup(d.DB, d.Config))
		})
		r.Post("/auth/logout", HandleLogout())
		r.Get("/auth/status", HandleGetSetupStatus(d.DB))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Config.JWTSecret, d.DB))

			r.Get("/user/me", HandleGetCurrentUser(d.DB))

			r.Get("/monitors", HandleGetMonitors(d.DB))
			r.Post("/monitors", HandleCreateMonitor(d.DB, d.Store, d.Executor))
			r.Get("/monitors/{id}", HandleGetMonitor(d.DB))
			r.Put("/monitors/{id}", HandleUpdateMonitor(d.DB, d.Executor))
			r.Delete("/monitors/{id}", HandleDeleteMonitor(d.DB, d.Store, d.Executor))

			r.Get("/monitors/{id}/history", HandleGetHistory(d.Store))
			r.Get("/monitors/{id}/history/latest", HandleGetLatestCheck(d.Store))
			r.Get("/monitors/{id}/stats", HandleGetMonitorStats(d.DB, d.Aggregator))
			r.Get("/monitors/{id}/incidents", HandleGetIncidents(d.Incidents))
			r.Get("/monitors/{id}/incidents/open", HandleGetOpenIncident(d.Incidents))

			r.Get("/monitors/{id}/maintenance", HandleGetMaintenanceWindows(d.DB))
			r.Post("/monitors/{id}/maintenance", HandleCreateMaintenanceWindow(d.DB, d.Maintenance))

			r.Put("/monitors/{id}/notifications/{notificationId}", HandleLinkMonitorNotification(d.DB))
			r.Delete("/monitors/{id}/notifications/{notificationId}", HandleUnlinkMonitorNotification(d.DB))

			r.Get("/stats", HandleGetAllStats(d.DB))

			r.Delete("/maintenance/{id}", HandleDeleteMaintenanceWindow(d.DB, d.Maintenance))

			r.Get("/notifications", HandleGetNotifications(d.DB))
			r.Post("/notifications", HandleCreateNotification(d.DB))
			r.Get("/notifications/providers", HandleGetAvailableProviders())
			r.Put("/notifications/{id}", HandleUpdateNotification(d.DB))
			r.Delete("/notifications/{id}", HandleDeleteNotification(d.DB))
			r.Post("/notifications/{id}/test", HandleTestNotification(d.DB, d.Dispatcher))
		})
	})

	r.Get("/ws", d.Hub.HandleWebSocket)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
