package journals

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/voucher-types", h.VoucherTypes)
	r.Post("/voucher-types", h.CreateVoucherType)
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.Post)
		r.Post("/drafts", h.SaveDraft)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.DeleteDraft)
		r.Post("/{id}/post", h.PostDraft)
		r.Post("/{id}/void", h.Void)
	})
	r.Get("/accounts/{id}/entries", h.Entries)
	r.Post("/periods/close", h.Close)
	r.Get("/periods/closings", h.Closings)
}
