package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"guild-overlay/internal/config"
	"guild-overlay/internal/handler"
	"guild-overlay/internal/metrics"
	"guild-overlay/internal/middleware"
	"guild-overlay/internal/policy"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Crafting *handler.CraftingHandler
	Events   *handler.EventHandler
	Overlay  *handler.OverlayHandler
	Health   *handler.HealthHandler
	Stream   http.Handler
	Metrics  http.Handler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, recorder metrics.Recorder) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, cfg.APIBasePath+"/auth")

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(recorder))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/healthz", h.Health.Health)
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics)
	}

	base := cfg.APIBasePath
	if base == "" {
		base = "/"
	}

	r.Route(base, func(api chi.Router) {
		if h.Stream != nil {
			api.With(authMiddleware.RequireStreamAuth).Get("/stream", h.Stream.ServeHTTP)
		}

		api.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(cfg.RequestTimeout))

			api.Route("/auth", func(auth chi.Router) {
				auth.Get("/login", h.Auth.Login)
				auth.Get("/callback", h.Auth.Callback)
				auth.Post("/callback", h.Auth.Callback)
				auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
				auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			})

			api.Route("/crafting", func(crafting chi.Router) {
				crafting.Use(authMiddleware.RequireAuth, authMiddleware.RequirePermission(policy.PermissionUseCrafting))
				crafting.Get("/requests", h.Crafting.List)
				crafting.Post("/requests", h.Crafting.Create)
				crafting.Get("/requests/mine", h.Crafting.ListMine)
				crafting.Get("/requests/{request_id}", h.Crafting.Get)
				crafting.Post("/requests/{request_id}/accept", h.Crafting.Accept)
				crafting.Post("/requests/{request_id}/complete", h.Crafting.Complete)
				crafting.Post("/requests/{request_id}/cancel", h.Crafting.Cancel)
			})

			api.Route("/events", func(events chi.Router) {
				events.Use(authMiddleware.RequireAuth)
				events.With(authMiddleware.RequirePermission(policy.PermissionViewOverlay)).Get("/", h.Events.List)
				events.With(authMiddleware.RequirePermission(policy.PermissionCreateEvents)).Post("/", h.Events.Create)
				events.With(authMiddleware.RequirePermission(policy.PermissionViewOverlay)).Get("/{event_id}", h.Events.Get)
				events.With(authMiddleware.RequirePermission(policy.PermissionJoinEvents)).Post("/{event_id}/join", h.Events.Join)
				events.With(authMiddleware.RequirePermission(policy.PermissionJoinEvents)).Post("/{event_id}/leave", h.Events.Leave)
				events.With(authMiddleware.RequirePermission(policy.PermissionViewOverlay)).Get("/{event_id}/attendees", h.Events.Attendees)
			})

			api.With(authMiddleware.RequireAuth, authMiddleware.RequirePermission(policy.PermissionViewOverlay)).Get("/alerts", h.Events.Alerts)

			api.Route("/overlay", func(overlay chi.Router) {
				overlay.Use(authMiddleware.RequireAuth, authMiddleware.RequirePermission(policy.PermissionViewOverlay))
				overlay.Get("/events", h.Overlay.Events)
				overlay.Get("/roster", h.Overlay.Roster)
				overlay.Get("/attendance", h.Overlay.Attendance)
			})
		})
	})

	return r
}
