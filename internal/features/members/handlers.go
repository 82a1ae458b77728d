// Package members: handlers.go exposes account management over HTTP.
package members

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fitplay.app/gametime/internal/common"
)

// Handler serves the account routes.
type Handler struct {
	service *Service
}

// NewHandler creates a members HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ParentRoutes registers routes under /api/parents/{parentID}.
func (h *Handler) ParentRoutes(r chi.Router) {
	r.Get("/children", h.ListChildren)
	r.Post("/children", h.AddChild)
	r.Delete("/children/{childID}", h.DeleteChild)
	r.Put("/telegram", h.SetTelegramChat)
}

type accountRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
}

type telegramRequest struct {
	ChatID *int64 `json:"chat_id"`
}

// CreateParent handles POST /api/parents.
func (h *Handler) CreateParent(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	m, err := h.service.CreateParent(r.Context(), req.Name, req.Email)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, m)
}

// ListChildren handles GET /children.
func (h *Handler) ListChildren(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	list, err := h.service.ListChildren(r.Context(), parentID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

// AddChild handles POST /children.
func (h *Handler) AddChild(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req accountRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	child, err := h.service.AddChild(r.Context(), parentID, req.Name, req.Email)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, child)
}

// DeleteChild handles DELETE /children/{childID}.
func (h *Handler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	if err := h.service.DeleteChild(r.Context(), parentID, childID); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTelegramChat handles PUT /telegram. {"chat_id": null} unlinks.
func (h *Handler) SetTelegramChat(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req telegramRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	if err := h.service.SetTelegramChat(r.Context(), parentID, req.ChatID); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leaderboard handles GET /api/leaderboard.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context(), 10)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, entries)
}
