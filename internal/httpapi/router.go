package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fitplay.app/gametime/internal/common"
	"fitplay.app/gametime/internal/features/activity"
	"fitplay.app/gametime/internal/features/challenge"
	"fitplay.app/gametime/internal/features/ledger"
	"fitplay.app/gametime/internal/features/members"
	"fitplay.app/gametime/internal/features/notifications"
	"fitplay.app/gametime/internal/features/streak"
	"fitplay.app/gametime/internal/metrics"
	"fitplay.app/gametime/internal/realtime"
)

// Deps are the handlers and options the router mounts. Nil handlers are skipped.
type Deps struct {
	Ledger        *ledger.Handler
	Streak        *streak.Handler
	Members       *members.Handler
	Activity      *activity.Handler
	Challenges    *challenge.Handler
	Notifications *notifications.Handler
	Realtime      *realtime.Handler // nil when websockets are disabled

	AllowedOrigins []string
	RateLimiter    *RateLimiter // nil disables rate limiting
	Metrics        bool
	Ping           func(ctx context.Context) error // readiness of the store, may be nil
}

// NewRouter builds the full HTTP handler.
func NewRouter(d Deps) http.Handler {
	router := chi.NewRouter()

	// Middleware order matters: the request id must exist before the access log
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(AccessLog)
	router.Use(Recover)
	if d.Metrics {
		router.Use(metrics.Middleware)
	}
	// Browser clients (the parent dashboard) call the API cross-origin
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Service routes, never rate limited
	router.Get("/health", health(d.Ping))
	if d.Metrics {
		router.Handle("/metrics", metrics.Handler())
	}
	if d.Realtime != nil {
		router.Get("/ws/children/{childID}/balance", d.Realtime.ServeBalance)
	}

	router.Route("/api", func(r chi.Router) {
		// Per-client sliding window
		if d.RateLimiter != nil {
			r.Use(RateLimit(d.RateLimiter))
		}
		if d.Members != nil {
			r.Post("/parents", d.Members.CreateParent)
			r.Get("/leaderboard", d.Members.Leaderboard)
		}

		// Parent side: children, settings, streak overrides, challenge approvals
		r.Route("/parents/{parentID}", func(r chi.Router) {
			if d.Members != nil {
				d.Members.ParentRoutes(r)
			}
			if d.Streak != nil {
				d.Streak.ParentRoutes(r)
			}
			if d.Challenges != nil {
				d.Challenges.ParentRoutes(r)
			}
		})

		// Child side: balance, timer, streak, activities, challenges, inbox
		r.Route("/children/{childID}", func(r chi.Router) {
			if d.Ledger != nil {
				d.Ledger.Routes(r)
			}
			if d.Streak != nil {
				d.Streak.ChildRoutes(r)
			}
			if d.Activity != nil {
				d.Activity.Routes(r)
			}
			if d.Challenges != nil {
				d.Challenges.ChildRoutes(r)
			}
			if d.Notifications != nil {
				d.Notifications.Routes(r)
			}
		})
	})

	return router
}

// health answers 200 when the store is reachable and 503 otherwise.
// The process keeps serving stale balances while degraded.
func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			// Short timeout: health checks call this often
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unavailable"})
				return
			}
		}
		common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
