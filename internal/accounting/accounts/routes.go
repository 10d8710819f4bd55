package accounts

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/hierarchy", h.Hierarchy)
	r.Post("/groups", h.CreateGroup)
	r.Post("/parents", h.CreateParent)
	r.Post("/accounts", h.CreateAccount)
	r.Post("/{kind}/{id}/deactivate", h.Deactivate)
}

func chiParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
