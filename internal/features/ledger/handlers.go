// Package ledger: handlers.go exposes the ledger over HTTP.
// All routes live under /api/children/{childID}.
package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fitplay.app/gametime/internal/common"
)

// Handler serves the ledger routes.
type Handler struct {
	service *Service
}

// NewHandler creates a ledger HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the child-scoped ledger routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/balance", h.GetBalance)
	r.Post("/timer/start", h.StartTimer)
	r.Post("/timer/stop", h.StopTimer)
	r.Post("/bonus", h.GrantBonus)
	r.Post("/use", h.UseGameTime)
	r.Put("/daily-limit", h.SetDailyLimit)
	r.Put("/weekly-limit", h.SetWeeklyLimit)
	r.Post("/reset", h.ResetIfNeeded)
}

type bonusRequest struct {
	Minutes    *int64 `json:"minutes" validate:"required,gte=0"`
	Persistent bool   `json:"persistent"`
	From       string `json:"from" validate:"max=64"`
	Message    string `json:"message" validate:"max=500"`
}

type useRequest struct {
	Minutes *decimal.Decimal `json:"minutes" validate:"required"`
}

type dailyLimitRequest struct {
	Minutes *int64 `json:"minutes" validate:"required,gte=0,lte=1440"`
}

type weeklyLimitRequest struct {
	Minutes *int64 `json:"minutes" validate:"required,gte=0,lte=10080"` // 7 * 1440
}

// GetBalance handles GET /balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	b, err := h.service.GetBalance(r.Context(), childID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, b)
}

// StartTimer handles POST /timer/start.
func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	b, err := h.service.StartTimer(r.Context(), childID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, b)
}

// StopTimer handles POST /timer/stop.
func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	res, err := h.service.StopTimer(r.Context(), childID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, res)
}

// GrantBonus handles POST /bonus.
func (h *Handler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req bonusRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	b, err := h.service.GrantBonus(r.Context(), childID, Bonus{
		Minutes:    *req.Minutes,
		Persistent: req.Persistent,
		From:       req.From,
		Message:    req.Message,
	})
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, b)
}

// UseGameTime handles POST /use.
func (h *Handler) UseGameTime(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req useRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	b, err := h.service.UseGameTime(r.Context(), childID, *req.Minutes)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, b)
}

// SetDailyLimit handles PUT /daily-limit.
func (h *Handler) SetDailyLimit(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req dailyLimitRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	b, err := h.service.SetDailyLimit(r.Context(), childID, *req.Minutes)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, b)
}

// SetWeeklyLimit handles PUT /weekly-limit.
func (h *Handler) SetWeeklyLimit(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req weeklyLimitRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	b, err := h.service.SetWeeklyLimit(r.Context(), childID, *req.Minutes)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, b)
}

// ResetIfNeeded handles POST /reset.
func (h *Handler) ResetIfNeeded(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	report, err := h.service.ResetIfNeeded(r.Context(), childID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, report)
}
