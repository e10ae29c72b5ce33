package router

import (
	"net/http"
	"time"

	"hms-notification-service/internal/auth"
	hrest "hms-notification-service/internal/handler/http"
	wshandler "hms-notification-service/internal/handler/ws"
	"hms-notification-service/internal/middleware"
	"hms-notification-service/internal/response"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Notifications *hrest.NotificationHandler
	WS            *wshandler.WSHandler
	Gate          *auth.Gate
	// Redis enables rate limiting on the REST group when set.
	Redis           redis.Cmdable
	RateLimitPerMin int
	Metrics         http.Handler
	Logger          *zap.Logger
}

// SetupRoutes configures the HTTP routes for the notification service
func SetupRoutes(r chi.Router, d Deps) chi.Router {
	// ---- Global Middleware ----
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// Connection upgrade authenticates itself so it can answer 401 before upgrading.
	r.Get("/ws", d.WS.HandleNotifications)

	// ============================================================
	// Notification API (all require auth)
	// ============================================================
	r.Route("/api/v1/notifications", func(r chi.Router) {
		r.Use(d.Gate.Middleware)
		if d.Redis != nil {
			r.Use(middleware.RateLimiter(d.Redis, middleware.RateLimitOptions{
				Limit:         d.RateLimitPerMin,
				Window:        time.Minute,
				BlockDuration: 10 * time.Minute,
				KeyPrefix:     "notifications",
			}, d.Logger))
		}

		h := d.Notifications
		r.Post("/", h.Send)
		r.Post("/broadcast", h.Broadcast)
		r.Post("/alerts/emergency", h.EmergencyAlert)
		r.Post("/alerts/critical-result", h.CriticalResultAlert)
		r.Post("/alerts/vital-sign", h.VitalSignAlert)
		r.Post("/reminders/appointment", h.AppointmentReminder)

		r.Get("/stats", h.Stats)
		r.Get("/clients/count", h.ClientsCount)
		r.Get("/clients/users", h.ConnectedUsers)
	})
	return r
}
