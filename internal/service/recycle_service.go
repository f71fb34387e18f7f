package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/event"
	"go-charity-backoffice/internal/metrics"
	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/repository"
	"go-charity-backoffice/internal/util"
)

const (
	SystemLogsCollection = "system_logs"

	DefaultRetentionDays = 7
	DefaultActor         = "admin"
)

// ConfigRestorer re-applies finance configuration entries when a
// configuration removal is restored from the recycle bin.
type ConfigRestorer interface {
	AddYear(ctx context.Context, year int) error
	EnableMonth(ctx context.Context, year int, month int) error
}

type RecycleOptions struct {
	RetentionDays int
	DefaultActor  string
}

type RecycleService struct {
	store    docstore.Store
	held     *repository.HeldRepository
	payments *repository.PaymentRepository
	config   ConfigRestorer
	activity *ActivityService
	bus      event.Bus
	metrics  *metrics.Recorder

	retentionDays int
	defaultActor  string
	now           func() time.Time

	restoringMu sync.Mutex
	restoring   map[string]struct{}
}

func NewRecycleService(store docstore.Store, config ConfigRestorer, activity *ActivityService, bus event.Bus, opts RecycleOptions) *RecycleService {
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = DefaultRetentionDays
	}
	if strings.TrimSpace(opts.DefaultActor) == "" {
		opts.DefaultActor = DefaultActor
	}

	return &RecycleService{
		store:         store,
		held:          repository.NewHeldRepository(store),
		payments:      repository.NewPaymentRepository(store),
		config:        config,
		activity:      activity,
		bus:           bus,
		retentionDays: opts.RetentionDays,
		defaultActor:  opts.DefaultActor,
		now:           time.Now,
		restoring:     make(map[string]struct{}),
	}
}

func (s *RecycleService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *RecycleService) SetMetrics(m *metrics.Recorder) {
	s.metrics = m
}

func (s *RecycleService) RetentionDays() int {
	return s.retentionDays
}

// SoftDelete moves a live record into the recycle bin. The hold is written
// before the original is deleted; if the hold cannot be written the original
// is left untouched.
func (s *RecycleService) SoftDelete(ctx context.Context, req model.SoftDeleteRequest) (model.HeldRecord, error) {
	if strings.TrimSpace(req.Collection) == "" || strings.TrimSpace(req.ID) == "" {
		return model.HeldRecord{}, fmt.Errorf("%w: collection and id are required", model.ErrInvalidInput)
	}
	if !req.Kind.Valid() {
		return model.HeldRecord{}, fmt.Errorf("%w: unknown held kind %q", model.ErrInvalidInput, req.Kind)
	}

	deletedBy := s.actorName(req.DeletedBy)

	var held model.HeldRecord
	_, err := runInTx(ctx, s.store, func(ctx context.Context) error {
		doc, err := s.store.Get(ctx, req.Collection, req.ID)
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("%s/%s: %w", req.Collection, req.ID, model.ErrRecordNotFound)
		}
		if err != nil {
			return fmt.Errorf("read %s/%s: %w", req.Collection, req.ID, err)
		}

		held, err = s.held.Create(ctx, model.HeldRecord{
			OriginalID:         req.ID,
			OriginalCollection: req.Collection,
			Snapshot:           doc.Data,
			DeletedBy:          deletedBy,
			Kind:               req.Kind,
			DisplayName:        util.CleanText(req.DisplayName, util.MaxTitleLength),
			BatchID:            req.BatchID,
		})
		if err != nil {
			return err
		}

		if err := s.store.Delete(ctx, req.Collection, req.ID); err != nil {
			slog.Warn("original record not deleted after hold was written",
				"collection", req.Collection, "id", req.ID, "held_id", held.ID, "error", err)
			return fmt.Errorf("delete original %s/%s: %w", req.Collection, req.ID, err)
		}
		return nil
	})
	if err != nil {
		return model.HeldRecord{}, err
	}

	s.metrics.SoftDeleted(string(held.Kind))
	s.activity.Log(ctx, "recycle.soft_delete", model.AuditActor{Username: deletedBy}, ActivityStatusSuccess,
		req.Collection+"/"+req.ID, map[string]any{"heldId": held.ID, "kind": held.Kind, "batchId": held.BatchID}, "")
	s.publish(event.TypeItemHeld, deletedBy, held)

	slog.Info("record moved to recycle bin", "collection", req.Collection, "id", req.ID, "held_id", held.ID, "kind", held.Kind)
	return held, nil
}

// LogSystemAction records a bin entry for an action with no restorable source
// document. A "batchId" string in additionalData becomes the entry's batch.
func (s *RecycleService) LogSystemAction(ctx context.Context, actor string, displayName string, description string, kind model.HeldKind, additionalData map[string]any) (model.HeldRecord, error) {
	if !kind.Valid() {
		return model.HeldRecord{}, fmt.Errorf("%w: unknown held kind %q", model.ErrInvalidInput, kind)
	}

	snapshot := make(map[string]any, len(additionalData)+1)
	for k, v := range additionalData {
		snapshot[k] = v
	}
	snapshot["description"] = description

	batchID, _ := additionalData["batchId"].(string)
	deletedBy := s.actorName(actor)

	held, err := s.held.Create(ctx, model.HeldRecord{
		OriginalID:         "system_" + uuid.NewString(),
		OriginalCollection: SystemLogsCollection,
		Snapshot:           snapshot,
		DeletedBy:          deletedBy,
		Kind:               kind,
		DisplayName:        util.CleanText(displayName, util.MaxTitleLength),
		BatchID:            batchID,
	})
	if err != nil {
		return model.HeldRecord{}, err
	}

	s.publish(event.TypeItemHeld, deletedBy, held)
	return held, nil
}

// Restore replays a held record to where it came from, cascading to its batch
// as the record's kind requires.
//
// Of two restores of the same record only one succeeds; the other gets
// ErrHeldItemNotFound.
func (s *RecycleService) Restore(ctx context.Context, heldID string, actor model.AuditActor) (model.RestoreResult, error) {
	if !s.beginRestore(heldID) {
		return model.RestoreResult{}, fmt.Errorf("%s: restore in progress: %w", heldID, model.ErrHeldItemNotFound)
	}
	defer s.endRestore(heldID)

	rec, err := s.held.FindByID(ctx, heldID)
	if err != nil {
		return model.RestoreResult{}, err
	}

	policy, err := restorePolicyFor(rec.Kind)
	if err != nil {
		return model.RestoreResult{}, err
	}

	var result model.RestoreResult
	transactional, err := runInTx(ctx, s.store, func(ctx context.Context) error {
		// Transactional stores lock the record here; a restore racing in
		// another process waits and then finds it gone.
		if _, err := s.held.FindByID(ctx, rec.ID); err != nil {
			return err
		}
		result = model.RestoreResult{HeldID: rec.ID, Kind: rec.Kind}
		return policy.restore(ctx, s, rec, &result)
	})
	if errors.Is(err, model.ErrHeldItemNotFound) {
		slog.Info("restore lost to a concurrent restore", "held_id", rec.ID)
		return model.RestoreResult{}, fmt.Errorf("restore %s: %w", rec.ID, err)
	}
	if err != nil {
		s.metrics.Restored(string(rec.Kind), false)
		if transactional || !result.Applied() {
			s.activity.Log(ctx, "recycle.restore", actor, ActivityStatusFailure, rec.ID, nil, err.Error())
			return model.RestoreResult{}, fmt.Errorf("restore %s: %w", rec.ID, err)
		}
		return result, s.partialRestore(ctx, rec, result, actor, err)
	}

	s.metrics.Restored(string(rec.Kind), true)
	s.activity.Log(ctx, "recycle.restore", actor, ActivityStatusSuccess, rec.OriginalCollection+"/"+rec.OriginalID, result, "")
	s.publish(event.TypeItemRestored, actor.UserID, result)

	slog.Info("held record restored", "held_id", rec.ID, "kind", rec.Kind, "batch_id", rec.BatchID, "restored", len(result.Restored))
	return result, nil
}

func (s *RecycleService) beginRestore(heldID string) bool {
	s.restoringMu.Lock()
	defer s.restoringMu.Unlock()

	if _, busy := s.restoring[heldID]; busy {
		return false
	}
	s.restoring[heldID] = struct{}{}
	return true
}

func (s *RecycleService) endRestore(heldID string) {
	s.restoringMu.Lock()
	delete(s.restoring, heldID)
	s.restoringMu.Unlock()
}

// partialRestore reports a restore that failed after some steps were applied
// without a transaction to undo them.
func (s *RecycleService) partialRestore(ctx context.Context, rec model.HeldRecord, result model.RestoreResult, actor model.AuditActor, cause error) error {
	slog.Warn("restore stopped partway; applied steps were kept",
		"held_id", rec.ID, "batch_id", rec.BatchID, "restored", result.Restored,
		"purged_payments", result.PurgedPayments, "error", cause)

	s.metrics.PartialRestore()
	s.activity.Log(ctx, "restore.partial", actor, ActivityStatusFailure, rec.OriginalCollection+"/"+rec.OriginalID, map[string]any{
		"heldId":         rec.ID,
		"batchId":        rec.BatchID,
		"restored":       result.Restored,
		"purgedPayments": result.PurgedPayments,
		"reapplied":      result.Reapplied,
	}, cause.Error())

	if rec.BatchID != "" {
		return fmt.Errorf("restore %s partially applied (batch %s): %w", rec.ID, rec.BatchID, cause)
	}
	return fmt.Errorf("restore %s partially applied: %w", rec.ID, cause)
}

// PermanentDelete discards one held record. Batch siblings are left alone.
func (s *RecycleService) PermanentDelete(ctx context.Context, heldID string, actor model.AuditActor) error {
	rec, err := s.held.FindByID(ctx, heldID)
	if err != nil {
		return err
	}

	if err := s.held.Delete(ctx, rec.ID); err != nil {
		return err
	}

	s.metrics.Purged(1)
	s.activity.Log(ctx, "recycle.purge", actor, ActivityStatusSuccess, rec.OriginalCollection+"/"+rec.OriginalID,
		map[string]any{"heldId": rec.ID, "displayName": rec.DisplayName}, "")
	s.publish(event.TypeItemPurged, actor.UserID, rec)
	return nil
}

// EmptyBin purges every held record one by one and returns how many went.
func (s *RecycleService) EmptyBin(ctx context.Context, actor model.AuditActor) (int, error) {
	ids, err := s.held.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		if err := s.held.Delete(ctx, id); err != nil {
			s.metrics.Purged(count)
			return count, err
		}
		count++
	}

	s.metrics.Purged(count)
	s.activity.Log(ctx, "recycle.empty", actor, ActivityStatusSuccess, repository.HoldingCollection, map[string]any{"purged": count}, "")
	s.publish(event.TypeBinEmptied, actor.UserID, map[string]int{"purged": count})
	return count, nil
}

// CleanupOldItems removes every held record deleted at or before
// now minus the retention window, in one atomic batch.
func (s *RecycleService) CleanupOldItems(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)

	ids, err := s.held.FindIDsOlderThan(ctx, cutoff)
	if err != nil {
		s.metrics.SweepFinished(0, err)
		return 0, err
	}
	if len(ids) == 0 {
		s.metrics.SweepFinished(0, nil)
		return 0, nil
	}

	if err := s.held.DeleteMany(ctx, ids); err != nil {
		s.metrics.SweepFinished(0, err)
		return 0, err
	}

	s.metrics.SweepFinished(len(ids), nil)
	s.publish(event.TypeBinSwept, "", map[string]any{"removed": len(ids), "cutoff": cutoff})

	slog.Info("retention sweep removed held records", "count", len(ids), "cutoff", cutoff)
	return len(ids), nil
}

// List sweeps expired records, then returns the bin newest first.
func (s *RecycleService) List(ctx context.Context) ([]model.HeldItemView, error) {
	s.sweepQuietly(ctx)

	records, err := s.held.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(records), nil
}

// Watch streams the bin, newest first, until ctx is cancelled.
func (s *RecycleService) Watch(ctx context.Context) (<-chan []model.HeldItemView, error) {
	s.sweepQuietly(ctx)

	updates, err := s.held.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan []model.HeldItemView)
	go func() {
		defer close(out)
		for records := range updates {
			select {
			case out <- s.views(records):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *RecycleService) sweepQuietly(ctx context.Context) {
	if _, err := s.CleanupOldItems(ctx); err != nil {
		slog.Warn("opportunistic retention sweep failed", "error", err)
	}
}

func (s *RecycleService) views(records []model.HeldRecord) []model.HeldItemView {
	now := s.now().UTC()
	views := make([]model.HeldItemView, 0, len(records))
	for _, rec := range records {
		views = append(views, model.NewHeldItemView(rec, now, s.retentionDays))
	}
	return views
}

// replay upserts the snapshot at its original location. System log entries
// have no source document and are skipped.
func (s *RecycleService) replay(ctx context.Context, rec model.HeldRecord, res *model.RestoreResult) error {
	if rec.OriginalCollection == SystemLogsCollection {
		return nil
	}

	if err := s.store.Set(ctx, rec.OriginalCollection, rec.OriginalID, rec.Snapshot); err != nil {
		return fmt.Errorf("replay %s/%s: %w", rec.OriginalCollection, rec.OriginalID, err)
	}
	res.Restored = append(res.Restored, rec.OriginalCollection+"/"+rec.OriginalID)
	return nil
}

// release removes rec from the bin once it has been replayed. It fails with
// ErrHeldItemNotFound if another restore already released it.
func (s *RecycleService) release(ctx context.Context, rec model.HeldRecord) error {
	return s.held.Claim(ctx, rec.ID)
}

// cascade replays and releases every other held record in rec's batch.
func (s *RecycleService) cascade(ctx context.Context, rec model.HeldRecord, res *model.RestoreResult) error {
	if rec.BatchID == "" {
		return nil
	}

	siblings, err := s.held.FindByBatch(ctx, rec.BatchID)
	if err != nil {
		return err
	}

	for _, sibling := range siblings {
		if sibling.ID == rec.ID {
			continue
		}
		if err := s.replay(ctx, sibling, res); err != nil {
			return err
		}
		if err := s.held.Delete(ctx, sibling.ID); err != nil {
			return err
		}
	}
	return nil
}

// purgeAggregates deletes the stand-in payments created for a departed
// member's batch; the real payments are coming back.
func (s *RecycleService) purgeAggregates(ctx context.Context, batchID string, res *model.RestoreResult) error {
	aggregates, err := s.payments.FindByLinkedBatch(ctx, batchID)
	if err != nil {
		return err
	}

	for _, p := range aggregates {
		if err := s.payments.Delete(ctx, p.ID); err != nil {
			return err
		}
		res.PurgedPayments = append(res.PurgedPayments, p.ID)
	}
	return nil
}

func (s *RecycleService) actorName(actor string) string {
	if trimmed := strings.TrimSpace(actor); trimmed != "" {
		return trimmed
	}
	return s.defaultActor
}

func (s *RecycleService) publish(t event.Type, actorID string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.New(t, actorID, payload))
}
