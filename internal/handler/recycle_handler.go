package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/service"
	"go-charity-backoffice/internal/websocket"
)

type RecycleHandler struct {
	service *service.RecycleService
	hub     *websocket.Hub
}

func NewRecycleHandler(service *service.RecycleService, hub *websocket.Hub) *RecycleHandler {
	return &RecycleHandler{service: service, hub: hub}
}

type recycleListData struct {
	Items         []model.HeldItemView `json:"items"`
	RetentionDays int                  `json:"retentionDays"`
}

func (h *RecycleHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, recycleListData{Items: items, RetentionDays: h.service.RetentionDays()}, nil)
}

func (h *RecycleHandler) Restore(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Restore(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r))
	if err != nil {
		if result.Applied() {
			writePartialRestore(w, result, err)
			return
		}
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

// writePartialRestore reports a restore that stopped partway, with what was
// already put back, so operators can finish by hand.
func writePartialRestore(w http.ResponseWriter, result model.RestoreResult, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Data:    result,
		Error: &model.APIError{
			Code:    "RESTORE_PARTIAL",
			Message: "Restore stopped partway; applied steps were kept",
			Details: err.Error(),
		},
	})
}

func (h *RecycleHandler) PermanentDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.PermanentDelete(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

func (h *RecycleHandler) Empty(w http.ResponseWriter, r *http.Request) {
	purged, err := h.service.EmptyBin(r.Context(), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.EmptyBinResponse{Purged: purged}, nil)
}

func (h *RecycleHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.CleanupOldItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.CleanupResponse{Removed: removed}, nil)
}

// Watch streams the bin over a websocket, one full list per change.
func (h *RecycleHandler) Watch(w http.ResponseWriter, r *http.Request) {
	websocket.Stream(h.hub, w, r, h.service.Watch)
}
