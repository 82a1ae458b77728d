// Package notifications: handlers.go exposes a child's notification list.
package notifications

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fitplay.app/gametime/internal/common"
)

// Handler serves the notification routes.
type Handler struct {
	service *Service
}

// NewHandler creates a notifications HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers routes under /api/children/{childID}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/notifications", h.List)
	r.Post("/notifications/{notificationID}/read", h.MarkRead)
}

// List handles GET /notifications?limit=N.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			common.RespondError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
	}
	list, err := h.service.List(r.Context(), childID, limit)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

// MarkRead handles POST /notifications/{notificationID}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	id, err := common.PathUUID(r, "notificationID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	if err := h.service.MarkRead(r.Context(), childID, id); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
