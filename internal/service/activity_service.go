package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/repository"
	"go-charity-backoffice/pkg/apierror"
)

const (
	ActivityStatusSuccess = "success"
	ActivityStatusFailure = "failure"
)

type ActivityQuery struct {
	Action  string
	ActorID string
	From    string
	Page    int
	Limit   int
}

type ActivityService struct {
	repo *repository.ActivityRepository
}

func NewActivityService(repo *repository.ActivityRepository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Log records an activity entry. Failures are logged and never returned so
// that the primary operation is not blocked by its audit trail.
func (s *ActivityService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, details any, errText string) {
	if s == nil || s.repo == nil {
		return
	}

	entry := model.ActivityEntry{
		Action:     action,
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Details:    details,
		Error:      errText,
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		slog.Warn("activity log write failed", "action", action, "resource", resource, "error", err)
	}
}

func (s *ActivityService) Query(ctx context.Context, query ActivityQuery) ([]model.ActivityEntry, model.Meta, error) {
	since, err := parseOptionalActivityTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'from' datetime format", query.From, http.StatusBadRequest)
	}

	filter := model.ActivityFilter{
		Action: strings.TrimSpace(query.Action),
		UserID: strings.TrimSpace(query.ActorID),
		Since:  since,
	}

	return s.repo.Query(ctx, filter, query.Page, query.Limit)
}

func parseOptionalActivityTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	if value, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}
