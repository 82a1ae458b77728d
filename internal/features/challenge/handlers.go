// Package challenge: handlers.go exposes the challenge flow over HTTP.
package challenge

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fitplay.app/gametime/internal/common"
)

// Handler serves the challenge routes.
type Handler struct {
	service *Service
}

// NewHandler creates a challenge HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ParentRoutes registers routes under /api/parents/{parentID}.
func (h *Handler) ParentRoutes(r chi.Router) {
	r.Get("/challenges", h.List)
	r.Post("/challenges", h.Create)
	r.Get("/challenge-requests", h.Pending)
	r.Post("/challenge-requests/{requestID}", h.Respond)
}

// ChildRoutes registers routes under /api/children/{childID}.
func (h *Handler) ChildRoutes(r chi.Router) {
	r.Get("/challenges", h.ListForChild)
	r.Post("/challenges/{challengeID}/unlock-request", h.RequestUnlock)
	r.Post("/challenges/{challengeID}/complete", h.Complete)
}

type respondRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// Create handles POST /challenges on the parent side.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var in NewChallenge
	if err := common.DecodeJSON(r, &in); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	c, err := h.service.Create(r.Context(), parentID, in)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, c)
}

// List handles GET /challenges on the parent side.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := common.PathUUID(r, "parentID"); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	list, err := h.service.List(r.Context())
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

// Pending handles GET /challenge-requests.
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	list, err := h.service.Pending(r.Context(), parentID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

// Respond handles POST /challenge-requests/{requestID} with {"action": "approve"|"reject"}.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	requestID, err := common.PathUUID(r, "requestID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req respondRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	out, err := h.service.Respond(r.Context(), parentID, requestID, req.Action)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, out)
}

// ListForChild handles GET /challenges on the child side.
func (h *Handler) ListForChild(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	list, err := h.service.ListForChild(r.Context(), childID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, list)
}

// RequestUnlock handles POST /challenges/{challengeID}/unlock-request.
func (h *Handler) RequestUnlock(w http.ResponseWriter, r *http.Request) {
	childID, challengeID, err := childAndChallenge(r)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	req, err := h.service.RequestUnlock(r.Context(), childID, challengeID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, req)
}

// Complete handles POST /challenges/{challengeID}/complete.
// A repeated completion answers 200 with applied=false.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	childID, challengeID, err := childAndChallenge(r)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	res, err := h.service.Complete(r.Context(), childID, challengeID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, res)
}

func childAndChallenge(r *http.Request) (string, string, error) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		return "", "", err
	}
	challengeID, err := common.PathUUID(r, "challengeID")
	if err != nil {
		return "", "", err
	}
	return childID, challengeID, nil
}
