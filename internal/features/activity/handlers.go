// Package activity: handlers.go exposes activity logging over HTTP.
package activity

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fitplay.app/gametime/internal/common"
)

// Handler serves the activity routes.
type Handler struct {
	service *Service
}

// NewHandler creates an activity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers routes under /api/children/{childID}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/activities", h.List)
	r.Post("/activities", h.Log)
	r.Post("/activities/simulate", h.Simulate)
}

type simulateRequest struct {
	Count *int `json:"count" validate:"omitempty,min=1,max=100"`
}

// Log handles POST /activities.
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	res, err := h.service.Log(r.Context(), childID, in)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	status := http.StatusCreated
	if !res.Applied {
		status = http.StatusOK
	}
	common.RespondJSON(w, status, res)
}

// List handles GET /activities?limit=N.
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

// Simulate handles POST /activities/simulate. count defaults to 5.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req simulateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	count := 5
	if req.Count != nil {
		count = *req.Count
	}
	res, err := h.service.Simulate(r.Context(), childID, count)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, res)
}
