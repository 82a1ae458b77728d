// Package streak: handlers.go exposes streak progress and parent settings over HTTP.
package streak

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fitplay.app/gametime/internal/common"
)

// Handler serves the streak routes.
type Handler struct {
	service *Service
}

// NewHandler creates a streak HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ChildRoutes registers routes under /api/children/{childID}.
func (h *Handler) ChildRoutes(r chi.Router) {
	r.Get("/streak", h.GetProgress)
	r.Post("/streak", h.RecordActivity)
}

// ParentRoutes registers routes under /api/parents/{parentID}.
func (h *Handler) ParentRoutes(r chi.Router) {
	r.Get("/streak-settings", h.GetSettings)
	r.Put("/streak-settings", h.PutSettings)
	r.Put("/children/{childID}/streak", h.OverrideStreak)
}

type recordRequest struct {
	Date   string `json:"date" validate:"max=64"`
	Source Source `json:"source" validate:"omitempty,oneof=manual simulated tracker test parent"`
}

type overrideRequest struct {
	StreakCount        int   `json:"streak_count" validate:"gte=0,lte=3650"`
	StreakBonusMinutes int64 `json:"streak_bonus_minutes" validate:"gte=0,lte=1440"`
}

// Progress is the streak card of a child.
//
//	streak 8, longest 12, today not logged yet, next reward 19
type Progress struct {
	StreakCount        int    `json:"streak_count"`
	LongestStreak      int    `json:"longest_streak"`
	LastActivityDate   string `json:"last_activity_date,omitempty"`
	RecordedToday      bool   `json:"recorded_today"`
	TodayRewardMinutes int64  `json:"today_reward_minutes,omitempty"`
	NextRewardMinutes  int64  `json:"next_reward_minutes"`
}

// GetProgress handles GET /streak.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	p, err := h.service.Progress(r.Context(), childID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, p)
}

// RecordActivity handles POST /streak. An empty body records today.
func (h *Handler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	childID, err := common.PathUUID(r, "childID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req recordRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.RespondErr(w, r, err)
			return
		}
	}
	res, err := h.service.RecordDailyActivity(r.Context(), childID, req.Date, req.Source)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, res)
}

// GetSettings handles GET /streak-settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	s, err := h.service.GetStreakSettings(r.Context(), &parentID)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, s)
}

// PutSettings handles PUT /streak-settings.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	parentID, err := common.PathUUID(r, "parentID")
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	var req Settings
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	if err := h.service.SetStreakSettings(r.Context(), parentID, req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, req)
}

// OverrideStreak handles PUT /children/{childID}/streak on the parent side.
func (h *Handler) OverrideStreak(w http.ResponseWriter, r *http.Request) {
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
	var req overrideRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondErr(w, r, err)
		return
	}
	p, err := h.service.OverrideStreak(r.Context(), parentID, childID, req.StreakCount, req.StreakBonusMinutes)
	if err != nil {
		common.RespondErr(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, p)
}
