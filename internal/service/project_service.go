package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/event"
	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/repository"
	"go-charity-backoffice/internal/util"
)

var projectStatuses = map[string]bool{"planned": true, "active": true, "completed": true}

type ProjectService struct {
	projects *repository.ProjectRepository
	recycle  *RecycleService
	activity *ActivityService
	bus      event.Bus
	now      func() time.Time
}

func NewProjectService(store docstore.Store, recycle *RecycleService, activity *ActivityService, bus event.Bus) *ProjectService {
	return &ProjectService{
		projects: repository.NewProjectRepository(store),
		recycle:  recycle,
		activity: activity,
		bus:      bus,
		now:      time.Now,
	}
}

func (s *ProjectService) Create(ctx context.Context, req model.CreateProjectRequest, actor model.AuditActor) (model.Project, error) {
	title := util.CleanText(req.Title, util.MaxTitleLength)
	if title == "" {
		return model.Project{}, fmt.Errorf("%w: title is required", model.ErrInvalidInput)
	}

	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = "planned"
	}
	if !projectStatuses[status] {
		return model.Project{}, fmt.Errorf("%w: unknown project status %q", model.ErrInvalidInput, req.Status)
	}

	project, err := s.projects.Create(ctx, model.Project{
		Title:     title,
		Summary:   util.CleanText(req.Summary, util.MaxNoteLength),
		Status:    status,
		Goal:      util.CleanText(req.Goal, util.MaxTitleLength),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return model.Project{}, err
	}

	s.activity.Log(ctx, "project.create", actor, ActivityStatusSuccess, repository.ProjectsCollection+"/"+project.ID, project, "")
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeProjectCreated, actor.UserID, project))
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context) ([]model.Project, error) {
	return s.projects.All(ctx)
}

func (s *ProjectService) Delete(ctx context.Context, id string, actor model.AuditActor) (model.HeldRecord, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return model.HeldRecord{}, err
	}

	return s.recycle.SoftDelete(ctx, model.SoftDeleteRequest{
		Collection:  repository.ProjectsCollection,
		ID:          project.ID,
		Kind:        model.KindProject,
		DisplayName: project.Title,
		DeletedBy:   actor.Name(),
	})
}
