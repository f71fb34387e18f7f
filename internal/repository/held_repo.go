package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/model"
)

const HoldingCollection = "recycle_bin"

type HeldRepository struct {
	store docstore.Store
}

func NewHeldRepository(store docstore.Store) *HeldRepository {
	return &HeldRepository{store: store}
}

// Create writes rec with a store-assigned deletedAt and returns the stored record.
func (r *HeldRepository) Create(ctx context.Context, rec model.HeldRecord) (model.HeldRecord, error) {
	data := map[string]any{
		"originalId":         rec.OriginalID,
		"originalCollection": rec.OriginalCollection,
		"snapshot":           rec.Snapshot,
		"deletedAt":          docstore.ServerTimestamp,
		"deletedBy":          rec.DeletedBy,
		"kind":               string(rec.Kind),
		"displayName":        rec.DisplayName,
	}
	if rec.BatchID != "" {
		data["batchId"] = rec.BatchID
	}

	doc, err := r.store.Create(ctx, HoldingCollection, data)
	if err != nil {
		return model.HeldRecord{}, fmt.Errorf("create held record: %w", err)
	}

	return heldFromDocument(doc)
}

func (r *HeldRepository) FindByID(ctx context.Context, id string) (model.HeldRecord, error) {
	doc, err := r.store.Get(ctx, HoldingCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return model.HeldRecord{}, fmt.Errorf("%s: %w", id, model.ErrHeldItemNotFound)
	}
	if err != nil {
		return model.HeldRecord{}, fmt.Errorf("find held record: %w", err)
	}
	return heldFromDocument(doc)
}

// FindByBatch returns every held record tagged with batchID, in store order.
func (r *HeldRepository) FindByBatch(ctx context.Context, batchID string) ([]model.HeldRecord, error) {
	return r.find(ctx, docstore.Collection(HoldingCollection).Where("batchId", docstore.OpEq, batchID))
}

// FindIDsOlderThan returns the ids of records deleted at or before cutoff.
// Records are not decoded, so ones this build cannot read still expire.
func (r *HeldRepository) FindIDsOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	return r.ids(ctx, docstore.Collection(HoldingCollection).Where("deletedAt", docstore.OpLte, cutoff))
}

// List returns the readable records newest first. Undecodable records are
// logged and left out.
func (r *HeldRepository) List(ctx context.Context) ([]model.HeldRecord, error) {
	return r.find(ctx, listQuery())
}

// ListIDs returns the id of every record in the holding collection.
func (r *HeldRepository) ListIDs(ctx context.Context) ([]string, error) {
	return r.ids(ctx, docstore.Collection(HoldingCollection))
}

func (r *HeldRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, HoldingCollection, id); err != nil {
		return fmt.Errorf("delete held record %s: %w", id, err)
	}
	return nil
}

// Claim deletes the record and returns ErrHeldItemNotFound when it was
// already gone, so only one of several concurrent restores can release it.
func (r *HeldRepository) Claim(ctx context.Context, id string) error {
	err := r.store.Remove(ctx, HoldingCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%s: %w", id, model.ErrHeldItemNotFound)
	}
	if err != nil {
		return fmt.Errorf("claim held record %s: %w", id, err)
	}
	return nil
}

// DeleteMany removes the given records in one atomic batch.
func (r *HeldRepository) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	refs := make([]docstore.Ref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, docstore.Ref{Collection: HoldingCollection, ID: id})
	}

	if err := r.store.DeleteBatch(ctx, refs); err != nil {
		return fmt.Errorf("delete %d held records: %w", len(ids), err)
	}
	return nil
}

// Watch emits the whole holding collection, newest first, after every change.
func (r *HeldRepository) Watch(ctx context.Context) (<-chan []model.HeldRecord, error) {
	docs, err := r.store.Subscribe(ctx, listQuery())
	if err != nil {
		return nil, fmt.Errorf("subscribe to holding collection: %w", err)
	}

	out := make(chan []model.HeldRecord)
	go func() {
		defer close(out)
		for snapshot := range docs {
			select {
			case out <- heldFromDocuments(snapshot):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (r *HeldRepository) find(ctx context.Context, q docstore.Query) ([]model.HeldRecord, error) {
	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query held records: %w", err)
	}
	return heldFromDocuments(docs), nil
}

func (r *HeldRepository) ids(ctx context.Context, q docstore.Query) ([]string, error) {
	docs, err := r.store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query held records: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func listQuery() docstore.Query {
	return docstore.Collection(HoldingCollection).Order("deletedAt", docstore.Desc)
}

func heldFromDocuments(docs []docstore.Document) []model.HeldRecord {
	records := make([]model.HeldRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := heldFromDocument(doc)
		if err != nil {
			slog.Warn("skipping undecodable held record", "id", doc.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// heldFromDocument reads the snapshot map as stored so replayed field values
// keep the types the store gave them.
func heldFromDocument(doc docstore.Document) (model.HeldRecord, error) {
	kind, err := model.ParseHeldKind(docstore.String(doc.Data, "kind"))
	if err != nil {
		return model.HeldRecord{}, fmt.Errorf("held record %s: %w", doc.ID, err)
	}

	snapshot, _ := doc.Data["snapshot"].(map[string]any)
	if snapshot == nil {
		snapshot = map[string]any{}
	}

	deletedAt, _ := docstore.Time(doc.Data, "deletedAt")

	return model.HeldRecord{
		ID:                 doc.ID,
		OriginalID:         docstore.String(doc.Data, "originalId"),
		OriginalCollection: docstore.String(doc.Data, "originalCollection"),
		Snapshot:           snapshot,
		DeletedAt:          deletedAt,
		DeletedBy:          docstore.String(doc.Data, "deletedBy"),
		Kind:               kind,
		DisplayName:        docstore.String(doc.Data, "displayName"),
		BatchID:            docstore.String(doc.Data, "batchId"),
	}, nil
}
