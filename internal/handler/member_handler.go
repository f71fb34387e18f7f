package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/service"
)

type MemberHandler struct {
	service *service.MemberService
}

func NewMemberHandler(service *service.MemberService) *MemberHandler {
	return &MemberHandler{service: service}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"items": members}, nil)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateMemberRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	member, err := h.service.Create(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, member, nil)
}

// Delete moves the member and their payments to the recycle bin.
// ?keepAggregate=true leaves a stand-in payment with the member's total.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	keepAggregate := false
	if raw := r.URL.Query().Get("keepAggregate"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, badRequest("keepAggregate must be a boolean", raw))
			return
		}
		keepAggregate = parsed
	}

	result, err := h.service.DeleteMember(r.Context(), chi.URLParam(r, "id"), keepAggregate, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}
