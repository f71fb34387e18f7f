package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/service"
)

// SettingsHandler edits the finance settings. Removing a year or disabling a
// month goes through the finance service so the change lands in the recycle bin.
type SettingsHandler struct {
	config  *service.ConfigService
	finance *service.FinanceService
}

func NewSettingsHandler(config *service.ConfigService, finance *service.FinanceService) *SettingsHandler {
	return &SettingsHandler{config: config, finance: finance}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, cfg, nil)
}

func (h *SettingsHandler) SetMonthlyDue(w http.ResponseWriter, r *http.Request) {
	var payload model.SetMonthlyDueRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.config.SetMonthlyDue(r.Context(), payload.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, cfg, nil)
}

func (h *SettingsHandler) AddYear(w http.ResponseWriter, r *http.Request) {
	var payload model.AddYearRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.config.AddYear(r.Context(), payload.Year); err != nil {
		writeError(w, err)
		return
	}

	cfg, err := h.config.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, cfg, nil)
}

func (h *SettingsHandler) RemoveYear(w http.ResponseWriter, r *http.Request) {
	year, err := parseIntParam(chi.URLParam(r, "year"), "year")
	if err != nil {
		writeError(w, err)
		return
	}

	held, err := h.finance.RemoveYear(r.Context(), year, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, held, nil)
}

func (h *SettingsHandler) DisableMonth(w http.ResponseWriter, r *http.Request) {
	year, err := parseIntParam(chi.URLParam(r, "year"), "year")
	if err != nil {
		writeError(w, err)
		return
	}
	month, err := parseIntParam(chi.URLParam(r, "month"), "month")
	if err != nil {
		writeError(w, err)
		return
	}

	held, err := h.finance.DisableMonth(r.Context(), year, month, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, held, nil)
}
