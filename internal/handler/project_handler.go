package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/service"
)

type ProjectHandler struct {
	service *service.ProjectService
}

func NewProjectHandler(service *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"items": projects}, nil)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateProjectRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	project, err := h.service.Create(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, project, nil)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	held, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, held, nil)
}
