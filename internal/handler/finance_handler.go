package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/service"
)

type FinanceHandler struct {
	service *service.FinanceService
}

func NewFinanceHandler(service *service.FinanceService) *FinanceHandler {
	return &FinanceHandler{service: service}
}

func (h *FinanceHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListPayments(r.Context(), parseIntOrDefault(r.URL.Query().Get("year"), 0))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"items": payments}, nil)
}

func (h *FinanceHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var payload model.CreatePaymentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, payment, nil)
}

func (h *FinanceHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	held, err := h.service.DeletePayment(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, held, nil)
}

func (h *FinanceHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.service.ListExpenses(r.Context(), parseIntOrDefault(r.URL.Query().Get("year"), 0))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"items": expenses}, nil)
}

func (h *FinanceHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateExpenseRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	expense, err := h.service.CreateExpense(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, expense, nil)
}

func (h *FinanceHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	held, err := h.service.DeleteExpense(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, held, nil)
}

func (h *FinanceHandler) Dues(w http.ResponseWriter, r *http.Request) {
	year := parseIntOrDefault(r.URL.Query().Get("year"), time.Now().Year())

	dues, err := h.service.MemberDues(r.Context(), year)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"year": year, "items": dues}, nil)
}

func (h *FinanceHandler) TopContributors(w http.ResponseWriter, r *http.Request) {
	contributors, err := h.service.TopContributors(r.Context(), parseIntOrDefault(r.URL.Query().Get("limit"), 0))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"items": contributors}, nil)
}

func (h *FinanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	year := parseIntOrDefault(r.URL.Query().Get("year"), time.Now().Year())

	stats, err := h.service.MonthlyStats(r.Context(), year)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"year": year, "months": stats}, nil)
}
