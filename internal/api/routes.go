package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lapublica/platform/internal/auth"
	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/metrics"
	"github.com/lapublica/platform/internal/pkg/logger"
)

// SetupRoutes configures all routes. Authorization beyond the role gates
// below is enforced by the services against the request actor.
func SetupRoutes(deps Deps) *chi.Mux {
	return setupRoutes(deps, context.Background())
}

func setupRoutes(deps Deps, streams context.Context) *chi.Mux {
	h := NewHandlers(deps.Services, deps.Events, deps.MaxUploadBytes)
	h.streams = streams
	health := deps.Health
	if health == nil {
		health = NewHealthChecker(nil, nil, nil, "")
	}

	r := chi.NewRouter()

	proxies, err := deps.Server.ProxyNets()
	if err != nil {
		logger.Warn("api: ignoring trusted proxies", "error", err)
		proxies = nil
	}

	r.Use(middleware.RequestID)
	r.Use(realIP(proxies))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	origins := deps.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics (no auth required)
	r.Get("/health", health.HandleHealth)
	r.Get("/health/live", health.HandleLiveness)
	r.Get("/health/ready", health.HandleReadiness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	am := deps.Auth
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", am.HandleLogin)
		r.Post("/logout", am.HandleLogout)
		r.Get("/me", am.HandleMe)
		r.Get("/google/login", am.HandleGoogleLogin)
		r.Get("/google/callback", am.HandleGoogleCallback)
	})

	admin := auth.RequireRole(domain.RoleAdmin)
	staff := auth.RequireRole(domain.RoleAdmin, domain.RoleGestor)

	r.Route("/api", func(r chi.Router) {
		r.Use(am.RequireSession)

		r.Get("/events", h.Events)

		// Users and profiles
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateUser)
			r.Post("/{id}/active", h.SetUserActive)
		})
		r.Get("/profiles/{id}", h.GetProfile)
		r.Put("/me/password", h.ChangePassword)
		r.Put("/me/profile", h.UpdateMyProfile)
		r.Put("/me/privacy", h.UpdateMyPrivacy)

		// Companies and billing
		r.Route("/companies", func(r chi.Router) {
			r.Get("/", h.ListCompanies)
			r.With(staff).Post("/", h.CreateCompany)
			r.Get("/{id}", h.GetCompany)
			r.Put("/{id}", h.UpdateCompany)
			r.With(admin).Post("/{id}/gestor", h.AssignCompanyGestor)
			r.With(staff).Post("/{id}/status", h.SetCompanyStatus)
			r.Post("/{id}/logo", h.UploadCompanyLogo)
			r.Get("/{id}/billing/preview", h.PreviewPlanChange)
			r.Post("/{id}/billing/change", h.ApplyPlanChange)
			r.Get("/{id}/billing/events", h.ListBillingEvents)
			r.Get("/{id}/coupons", h.ListCompanyCoupons)
		})
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.ListPlans)
			r.With(admin).Post("/", h.CreatePlan)
			r.With(admin).Put("/{id}", h.UpdatePlan)
		})

		// Offers and coupons
		r.Route("/offers", func(r chi.Router) {
			r.Get("/", h.ListOffers)
			r.Post("/", h.CreateOffer)
			r.Get("/{id}", h.GetOffer)
			r.Put("/{id}", h.UpdateOffer)
			r.Post("/{id}/deactivate", h.DeactivateOffer)
			r.Post("/{id}/coupons", h.GenerateCoupon)
		})
		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", h.ListMyCoupons)
			r.Post("/redeem", h.RedeemCoupon)
			r.Get("/{id}", h.GetCoupon)
			r.Get("/{id}/qr", h.CouponQR)
			r.Post("/{id}/cancel", h.CancelCoupon)
		})

		// Messaging and notifications
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", h.ListConversations)
			r.Post("/", h.StartConversation)
			r.Get("/unread", h.UnreadMessages)
			r.Get("/{id}", h.GetConversation)
			r.Get("/{id}/messages", h.ListMessages)
			r.Post("/{id}/messages", h.SendMessage)
			r.Post("/{id}/read", h.MarkConversationRead)
			r.Post("/{id}/archive", h.ArchiveConversation)
		})
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.UnreadNotificationCount)
			r.Post("/read-all", h.MarkAllNotificationsRead)
			r.Post("/{id}/read", h.MarkNotificationRead)
			r.Delete("/{id}", h.DeleteNotification)
		})

		// Group offers
		r.Route("/group-offers", func(r chi.Router) {
			r.Get("/", h.ListGroupOffers)
			r.Post("/", h.SubmitGroupOffer)
			r.Get("/{id}", h.GetGroupOffer)
			r.With(staff).Post("/{id}/review", h.ReviewGroupOffer)
			r.With(staff).Post("/{id}/decision", h.DecideGroupOffer)
			r.Post("/{id}/cancel", h.CancelGroupOffer)
			r.With(admin).Post("/{id}/reassign", h.ReassignGroupOffer)
		})

		// CRM
		r.Group(func(r chi.Router) {
			r.Use(staff)
			r.Route("/leads", func(r chi.Router) {
				r.Get("/", h.ListLeads)
				r.Post("/", h.CreateLead)
				r.Get("/pipeline", h.LeadPipeline)
				r.Get("/{id}", h.GetLead)
				r.Put("/{id}", h.UpdateLead)
				r.Delete("/{id}", h.DeleteLead)
				r.Post("/{id}/stage", h.ChangeLeadStage)
				r.With(admin).Post("/{id}/assign", h.AssignLead)
				r.Post("/{id}/convert", h.ConvertLead)
				r.Get("/{id}/tasks", h.ListLeadTasks)
				r.Post("/{id}/tasks", h.CreateLeadTask)
			})
			r.Get("/tasks/mine", h.MyTasks)
			r.Post("/tasks/{id}/complete", h.CompleteTask)
			r.Delete("/tasks/{id}", h.DeleteTask)
		})

		// Content
		r.Route("/content", func(r chi.Router) {
			r.Get("/", h.ListPublishedContent)
			r.Post("/", h.CreateContent)
			r.With(admin).Get("/pending", h.ListPendingContent)
			r.Get("/mine", h.ListMyContent)
			r.Post("/images", h.UploadContentImage)
			r.Get("/{id}", h.GetContent)
			r.Put("/{id}", h.UpdateContent)
			r.Post("/{id}/submit", h.SubmitContent)
			r.With(admin).Post("/{id}/moderate", h.ModerateContent)
			r.Post("/{id}/archive", h.ArchiveContent)
		})

		// Dashboards and audit
		r.With(admin).Get("/dashboard/admin", h.AdminDashboard)
		r.With(staff).Get("/dashboard/gestor", h.GestorDashboard)
		r.Get("/dashboard/company", h.CompanyDashboard)
		r.With(admin).Get("/audit/{entity}/{id}", h.AuditTrail)
	})

	return r
}
