package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/hvtracker-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса HV-трекера.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/api/shop/items", h.GetShopItems)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/profile", h.GetProfile)
			r.Get("/inventory", h.GetInventory)
			r.Post("/inventory/use", h.UseItem)

			r.Get("/achievements", h.GetAchievements)
			r.Post("/achievements/study/claim", h.ClaimStudyAchievement)
			r.Post("/achievements/streak/claim", h.ClaimStreakAchievement)

			r.Post("/shop/purchase", h.Purchase)

			r.Post("/activity", h.RecordActivity)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
