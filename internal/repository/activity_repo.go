package repository

import (
	"context"
	"fmt"
	"strings"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/model"
)

const ActivityCollection = "activity_logs"

type ActivityRepository struct {
	store docstore.Store
}

func NewActivityRepository(store docstore.Store) *ActivityRepository {
	return &ActivityRepository{store: store}
}

func (r *ActivityRepository) Log(ctx context.Context, entry model.ActivityEntry) error {
	data, err := docstore.Encode(entry)
	if err != nil {
		return fmt.Errorf("encode activity entry: %w", err)
	}
	if entry.OccurredAt.IsZero() {
		data["occurredAt"] = docstore.ServerTimestamp
	} else {
		data["occurredAt"] = entry.OccurredAt.UTC()
	}
	data["actorId"] = entry.Actor.UserID

	if _, err := r.store.Create(ctx, ActivityCollection, data); err != nil {
		return fmt.Errorf("log activity entry: %w", err)
	}
	return nil
}

// Query pages through entries newest first.
func (r *ActivityRepository) Query(ctx context.Context, filter model.ActivityFilter, page, limit int) ([]model.ActivityEntry, model.Meta, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	q := docstore.Collection(ActivityCollection).Order("occurredAt", docstore.Desc)
	if action := strings.TrimSpace(filter.Action); action != "" {
		q = q.Where("action", docstore.OpEq, action)
	}
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		q = q.Where("actorId", docstore.OpEq, userID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("occurredAt", docstore.OpGte, filter.Since.UTC())
	}

	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query activity entries: %w", err)
	}

	total := len(docs)
	meta := model.NewPageMeta(page, limit, total)

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := min(start+limit, total)

	entries := make([]model.ActivityEntry, 0, end-start)
	for _, doc := range docs[start:end] {
		var e model.ActivityEntry
		if err := docstore.Decode(doc, &e); err != nil {
			return nil, model.Meta{}, err
		}
		entries = append(entries, e)
	}

	return entries, meta, nil
}
