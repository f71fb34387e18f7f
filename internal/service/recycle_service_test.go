package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/event"
	"go-charity-backoffice/internal/model"
	"go-charity-backoffice/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyStore injects failures into selected writes.
// Keys are "collection" for Create/Delete and "collection/id" for Set.
type faultyStore struct {
	docstore.Store
	createErr map[string]error
	setErr    map[string]error
	deleteErr map[string]error
}

func (f *faultyStore) Create(ctx context.Context, collection string, data map[string]any) (docstore.Document, error) {
	if err := f.createErr[collection]; err != nil {
		return docstore.Document{}, err
	}
	return f.Store.Create(ctx, collection, data)
}

func (f *faultyStore) Set(ctx context.Context, collection string, id string, data map[string]any) error {
	if err := f.setErr[collection+"/"+id]; err != nil {
		return err
	}
	return f.Store.Set(ctx, collection, id, data)
}

func (f *faultyStore) Delete(ctx context.Context, collection string, id string) error {
	if err := f.deleteErr[collection]; err != nil {
		return err
	}
	return f.Store.Delete(ctx, collection, id)
}

// gatedStore parks the first Set to gatedKey ("collection/id") until release
// is closed, running onEnter first while the restore is parked.
type gatedStore struct {
	docstore.Store
	gatedKey string
	onEnter  func()
	entered  chan struct{}
	release  chan struct{}
	once     sync.Once
}

func newGatedStore(key string, onEnter func()) *gatedStore {
	return &gatedStore{gatedKey: key, onEnter: onEnter, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) Set(ctx context.Context, collection string, id string, data map[string]any) error {
	if collection+"/"+id == g.gatedKey {
		g.once.Do(func() {
			if g.onEnter != nil {
				g.onEnter()
			}
			close(g.entered)
			<-g.release
		})
	}
	return g.Store.Set(ctx, collection, id, data)
}

type mockConfigRestorer struct {
	mock.Mock
}

func (m *mockConfigRestorer) AddYear(ctx context.Context, year int) error {
	args := m.Called(ctx, year)
	return args.Error(0)
}

func (m *mockConfigRestorer) EnableMonth(ctx context.Context, year int, month int) error {
	args := m.Called(ctx, year, month)
	return args.Error(0)
}

type recycleFixture struct {
	svc   *RecycleService
	mem   *docstore.Memory
	store docstore.Store
	clock *testClock
}

func newRecycleFixture(t *testing.T, wrap func(docstore.Store) docstore.Store, config ConfigRestorer) recycleFixture {
	t.Helper()

	clock := newTestClock()
	mem := docstore.NewMemory(docstore.WithClock(clock.Now))

	var store docstore.Store = mem
	if wrap != nil {
		store = wrap(mem)
	}
	if config == nil {
		config = NewConfigService(store, nil)
	}

	activity := NewActivityService(repository.NewActivityRepository(mem))
	svc := NewRecycleService(store, config, activity, event.NewBus(), RecycleOptions{})
	svc.SetClock(clock.Now)

	return recycleFixture{svc: svc, mem: mem, store: store, clock: clock}
}

func (f recycleFixture) seed(t *testing.T, collection, id string, data map[string]any) {
	t.Helper()
	require.NoError(t, f.mem.Set(context.Background(), collection, id, data))
}

func (f recycleFixture) heldInBatch(t *testing.T, batchID string) []model.HeldRecord {
	t.Helper()
	records, err := repository.NewHeldRepository(f.mem).FindByBatch(context.Background(), batchID)
	require.NoError(t, err)
	return records
}

func paymentData(name string, amount string) map[string]any {
	return map[string]any{
		"memberId":   "U1",
		"memberName": name,
		"amount":     amount,
		"year":       2024,
		"month":      1,
		"date":       "2024-01-10T00:00:00Z",
	}
}

func TestRecycleService_SoftDeleteRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	original := paymentData("Rahim", "500")
	original["tags"] = []any{"dues", "cash"}
	f.seed(t, "payments", "p1", original)

	held, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{
		Collection:  "payments",
		ID:          "p1",
		Kind:        model.KindPayment,
		DisplayName: "Jan Dues — Rahim",
		DeletedBy:   "treasurer",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", held.OriginalID)
	assert.Equal(t, "payments", held.OriginalCollection)
	assert.Equal(t, "treasurer", held.DeletedBy)
	assert.Equal(t, f.clock.Now(), held.DeletedAt)

	_, err = f.mem.Get(ctx, "payments", "p1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	items, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.KindPayment, items[0].Kind)
	assert.Equal(t, "Jan Dues — Rahim", items[0].DisplayName)
	assert.Equal(t, "500", items[0].Snapshot["amount"])
	assert.Equal(t, 7, items[0].DaysRemaining)

	result, err := f.svc.Restore(ctx, held.ID, model.AuditActor{Username: "treasurer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"payments/p1"}, result.Restored)

	restored, err := f.mem.Get(ctx, "payments", "p1")
	require.NoError(t, err)
	assert.Equal(t, original, restored.Data)
	assert.Equal(t, 0, f.mem.Len(repository.HoldingCollection))
}

func TestRecycleService_SoftDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("missing source writes nothing", func(t *testing.T) {
		f := newRecycleFixture(t, nil, nil)

		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "ghost", Kind: model.KindPayment})
		assert.ErrorIs(t, err, model.ErrRecordNotFound)
		assert.Equal(t, 0, f.mem.Len(repository.HoldingCollection))
		assert.Equal(t, 0, f.mem.Len(repository.ActivityCollection))
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		f := newRecycleFixture(t, nil, nil)
		f.seed(t, "payments", "p1", paymentData("Rahim", "500"))

		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: "invoice"})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		assert.Equal(t, 1, f.mem.Len("payments"))
	})

	t.Run("deletedBy defaults to admin", func(t *testing.T) {
		f := newRecycleFixture(t, nil, nil)
		f.seed(t, "projects", "pr1", map[string]any{"title": "Winter Relief"})

		held, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "projects", ID: "pr1", Kind: model.KindProject})
		require.NoError(t, err)
		assert.Equal(t, "admin", held.DeletedBy)
	})

	t.Run("holding write failure leaves original", func(t *testing.T) {
		injected := errors.New("quota exceeded")
		f := newRecycleFixture(t, func(s docstore.Store) docstore.Store {
			return &faultyStore{Store: s, createErr: map[string]error{repository.HoldingCollection: injected}}
		}, nil)
		f.seed(t, "payments", "p1", paymentData("Rahim", "500"))

		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment})
		assert.ErrorIs(t, err, injected)
		assert.Equal(t, 1, f.mem.Len("payments"))
		assert.Equal(t, 0, f.mem.Len(repository.HoldingCollection))
	})

	t.Run("original delete failure keeps both copies", func(t *testing.T) {
		injected := errors.New("permission denied")
		f := newRecycleFixture(t, func(s docstore.Store) docstore.Store {
			return &faultyStore{Store: s, deleteErr: map[string]error{"payments": injected}}
		}, nil)
		f.seed(t, "payments", "p1", paymentData("Rahim", "500"))

		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment})
		assert.ErrorIs(t, err, injected)
		assert.Equal(t, 1, f.mem.Len("payments"))
		assert.Equal(t, 1, f.mem.Len(repository.HoldingCollection))
	})
}

func TestRecycleService_RestoreUserCascade(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	user := map[string]any{"name": "U1", "role": "member"}
	f.seed(t, "users", "U1", user)
	for _, id := range []string{"p1", "p2", "p3"} {
		f.seed(t, "payments", id, paymentData("U1", "100"))
	}

	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: id, Kind: model.KindPayment, BatchID: "B1"})
		require.NoError(t, err)
	}
	userHold, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "users", ID: "U1", Kind: model.KindUser, DisplayName: "U1", BatchID: "B1"})
	require.NoError(t, err)
	require.Len(t, f.heldInBatch(t, "B1"), 4)

	result, err := f.svc.Restore(ctx, userHold.ID, model.AuditActor{Username: "admin"})
	require.NoError(t, err)
	assert.Len(t, result.Restored, 4)
	assert.Empty(t, result.PurgedPayments)

	got, err := f.mem.Get(ctx, "users", "U1")
	require.NoError(t, err)
	assert.Equal(t, user, got.Data)
	assert.Equal(t, 3, f.mem.Len("payments"))
	assert.Empty(t, f.heldInBatch(t, "B1"))
}

func TestRecycleService_RestoreUserPurgesAggregate(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	f.seed(t, "users", "U1", map[string]any{"name": "U1"})
	f.seed(t, "payments", "p1", paymentData("U1", "300"))
	f.seed(t, "payments", "p2", paymentData("U1", "200"))

	for _, id := range []string{"p1", "p2"} {
		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: id, Kind: model.KindPayment, BatchID: "B1"})
		require.NoError(t, err)
	}
	userHold, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "users", ID: "U1", Kind: model.KindUser, BatchID: "B1"})
	require.NoError(t, err)

	f.seed(t, "payments", "agg", map[string]any{
		"memberId":      "U1",
		"memberName":    "U1",
		"amount":        "500",
		"isAggregate":   true,
		"linkedBatchId": "B1",
	})

	result, err := f.svc.Restore(ctx, userHold.ID, model.AuditActor{})
	require.NoError(t, err)
	assert.Equal(t, []string{"agg"}, result.PurgedPayments)

	_, err = f.mem.Get(ctx, "users", "U1")
	assert.NoError(t, err)
	_, err = f.mem.Get(ctx, "payments", "p1")
	assert.NoError(t, err)
	_, err = f.mem.Get(ctx, "payments", "p2")
	assert.NoError(t, err)
	_, err = f.mem.Get(ctx, "payments", "agg")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.Empty(t, f.heldInBatch(t, "B1"))
}

func TestRecycleService_StandardRestoreDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	f.seed(t, "payments", "p1", paymentData("Rahim", "100"))
	f.seed(t, "payments", "p2", paymentData("Rahim", "200"))

	first, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment, BatchID: "B9"})
	require.NoError(t, err)
	_, err = f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p2", Kind: model.KindPayment, BatchID: "B9"})
	require.NoError(t, err)

	_, err = f.svc.Restore(ctx, first.ID, model.AuditActor{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.mem.Len("payments"))
	assert.Len(t, f.heldInBatch(t, "B9"), 1)
}

func TestRecycleService_PermanentDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("purging one batch member leaves the other restorable", func(t *testing.T) {
		f := newRecycleFixture(t, nil, nil)
		f.seed(t, "payments", "p1", paymentData("A", "100"))
		f.seed(t, "payments", "p2", paymentData("B", "200"))

		first, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment, BatchID: "B1"})
		require.NoError(t, err)
		second, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p2", Kind: model.KindPayment, BatchID: "B1"})
		require.NoError(t, err)

		require.NoError(t, f.svc.PermanentDelete(ctx, first.ID, model.AuditActor{}))

		remaining := f.heldInBatch(t, "B1")
		require.Len(t, remaining, 1)
		assert.Equal(t, second.ID, remaining[0].ID)

		_, err = f.svc.Restore(ctx, second.ID, model.AuditActor{})
		require.NoError(t, err)
		got, err := f.mem.Get(ctx, "payments", "p2")
		require.NoError(t, err)
		assert.Equal(t, "200", got.Data["amount"])

		_, err = f.mem.Get(ctx, "payments", "p1")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("missing hold", func(t *testing.T) {
		f := newRecycleFixture(t, nil, nil)
		err := f.svc.PermanentDelete(ctx, "ghost", model.AuditActor{})
		assert.ErrorIs(t, err, model.ErrHeldItemNotFound)
	})
}

func TestRecycleService_RestoreMissingAndTwice(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	_, err := f.svc.Restore(ctx, "ghost", model.AuditActor{})
	assert.ErrorIs(t, err, model.ErrHeldItemNotFound)

	f.seed(t, "payments", "p1", paymentData("Rahim", "500"))
	held, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment})
	require.NoError(t, err)

	_, err = f.svc.Restore(ctx, held.ID, model.AuditActor{})
	require.NoError(t, err)

	_, err = f.svc.Restore(ctx, held.ID, model.AuditActor{})
	assert.ErrorIs(t, err, model.ErrHeldItemNotFound)
}

func TestRecycleService_PartialCascade(t *testing.T) {
	ctx := context.Background()
	injected := errors.New("network unreachable")

	f := newRecycleFixture(t, func(s docstore.Store) docstore.Store {
		return &faultyStore{Store: s, setErr: map[string]error{"payments/p2": injected}}
	}, nil)

	f.seed(t, "users", "U1", map[string]any{"name": "U1"})
	f.seed(t, "payments", "p1", paymentData("U1", "100"))
	f.seed(t, "payments", "p2", paymentData("U1", "100"))

	for _, id := range []string{"p1", "p2"} {
		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: id, Kind: model.KindPayment, BatchID: "B1"})
		require.NoError(t, err)
	}
	userHold, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "users", ID: "U1", Kind: model.KindUser, BatchID: "B1"})
	require.NoError(t, err)

	result, err := f.svc.Restore(ctx, userHold.ID, model.AuditActor{Username: "admin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, injected)
	assert.Contains(t, err.Error(), "B1")
	assert.Contains(t, result.Restored, "users/U1")

	// the user came back; the failed sibling and the user's own hold stay in the bin
	_, err = f.mem.Get(ctx, "users", "U1")
	assert.NoError(t, err)
	_, err = f.mem.Get(ctx, "payments", "p2")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	var ids []string
	for _, rec := range f.heldInBatch(t, "B1") {
		ids = append(ids, rec.ID)
	}
	assert.Contains(t, ids, userHold.ID)

	entries, meta, err := repository.NewActivityRepository(f.mem).Query(ctx, model.ActivityFilter{Action: "restore.partial"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Total)
	assert.Equal(t, ActivityStatusFailure, entries[0].Status)
	assert.Contains(t, entries[0].Error, "network unreachable")
}

func TestRecycleService_FirstStepFailureIsNotPartial(t *testing.T) {
	ctx := context.Background()
	injected := errors.New("network unreachable")

	f := newRecycleFixture(t, func(s docstore.Store) docstore.Store {
		return &faultyStore{Store: s, setErr: map[string]error{"payments/p1": injected}}
	}, nil)
	f.seed(t, "payments", "p1", paymentData("Rahim", "500"))

	held, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment})
	require.NoError(t, err)

	_, err = f.svc.Restore(ctx, held.ID, model.AuditActor{})
	assert.ErrorIs(t, err, injected)
	assert.NotContains(t, err.Error(), "partially")

	_, meta, err := repository.NewActivityRepository(f.mem).Query(ctx, model.ActivityFilter{Action: "restore.partial"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Total)
	assert.Equal(t, 1, f.mem.Len(repository.HoldingCollection))
}

func TestRecycleService_ConfigRestores(t *testing.T) {
	ctx := context.Background()

	t.Run("year removal re-adds year and payments", func(t *testing.T) {
		config := new(mockConfigRestorer)
		config.On("AddYear", mock.Anything, 2024).Return(nil).Once()

		f := newRecycleFixture(t, nil, config)
		f.seed(t, "payments", "p1", paymentData("Rahim", "500"))
		f.seed(t, "payments", "agg", map[string]any{"amount": "50", "linkedBatchId": "Y1"})

		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment, BatchID: "Y1"})
		require.NoError(t, err)
		held, err := f.svc.LogSystemAction(ctx, "", "Year 2024", "Removed year 2024", model.KindYearConfigRemoved,
			map[string]any{"year": 2024, "batchId": "Y1"})
		require.NoError(t, err)
		assert.Equal(t, "Y1", held.BatchID)
		assert.Equal(t, SystemLogsCollection, held.OriginalCollection)
		assert.Contains(t, held.OriginalID, "system_")
		assert.Equal(t, "Removed year 2024", held.Snapshot["description"])

		result, err := f.svc.Restore(ctx, held.ID, model.AuditActor{})
		require.NoError(t, err)
		assert.Equal(t, "year 2024", result.Reapplied)
		assert.Equal(t, []string{"payments/p1"}, result.Restored)

		_, err = f.mem.Get(ctx, "payments", "p1")
		assert.NoError(t, err)
		_, err = f.mem.Get(ctx, "payments", "agg")
		assert.NoError(t, err, "config restores do not purge linked payments")
		assert.Empty(t, f.heldInBatch(t, "Y1"))
		_, err = f.mem.Get(ctx, SystemLogsCollection, held.OriginalID)
		assert.ErrorIs(t, err, docstore.ErrNotFound)

		config.AssertExpectations(t)
	})

	t.Run("month removal re-enables month", func(t *testing.T) {
		config := new(mockConfigRestorer)
		config.On("EnableMonth", mock.Anything, 2024, 3).Return(nil).Once()

		f := newRecycleFixture(t, nil, config)
		held, err := f.svc.LogSystemAction(ctx, "admin", "March 2024", "Disabled March 2024", model.KindMonthConfigRemoved,
			map[string]any{"year": 2024, "month": 3, "batchId": "M1"})
		require.NoError(t, err)

		_, err = f.svc.Restore(ctx, held.ID, model.AuditActor{})
		require.NoError(t, err)
		assert.Equal(t, 0, f.mem.Len(repository.HoldingCollection))

		config.AssertExpectations(t)
	})

	t.Run("config failure aborts before anything is applied", func(t *testing.T) {
		injected := errors.New("settings unavailable")
		config := new(mockConfigRestorer)
		config.On("AddYear", mock.Anything, 2023).Return(injected).Once()

		f := newRecycleFixture(t, nil, config)
		f.seed(t, "payments", "p1", paymentData("Rahim", "500"))
		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment, BatchID: "Y0"})
		require.NoError(t, err)
		held, err := f.svc.LogSystemAction(ctx, "", "Year 2023", "Removed year 2023", model.KindYearConfigRemoved,
			map[string]any{"year": 2023, "batchId": "Y0"})
		require.NoError(t, err)

		_, err = f.svc.Restore(ctx, held.ID, model.AuditActor{})
		assert.ErrorIs(t, err, injected)
		assert.Len(t, f.heldInBatch(t, "Y0"), 2)

		config.AssertExpectations(t)
	})
}

func TestRecycleService_CleanupOldItems(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	f.seed(t, "payments", "old", paymentData("A", "100"))
	f.seed(t, "payments", "young", paymentData("B", "100"))

	_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "old", Kind: model.KindPayment})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	young, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "young", Kind: model.KindPayment})
	require.NoError(t, err)

	// "old" is now exactly seven days old, "young" six
	f.clock.Advance(6 * 24 * time.Hour)

	removed, err := f.svc.CleanupOldItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	removed, err = f.svc.CleanupOldItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	items, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, young.ID, items[0].ID)
	assert.Equal(t, 1, items[0].DaysRemaining)

	// List sweeps on access
	f.clock.Advance(24 * time.Hour)
	items, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecycleService_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	for _, id := range []string{"a", "b", "c"} {
		f.seed(t, "projects", id, map[string]any{"title": id})
		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "projects", ID: id, Kind: model.KindProject, DisplayName: id})
		require.NoError(t, err)
		f.clock.Advance(time.Hour)
	}

	items, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{items[0].DisplayName, items[1].DisplayName, items[2].DisplayName})
}

func TestRecycleService_EmptyBin(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	for _, id := range []string{"p1", "p2", "p3"} {
		f.seed(t, "payments", id, paymentData("A", "10"))
		_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: id, Kind: model.KindPayment, BatchID: "B1"})
		require.NoError(t, err)
	}

	purged, err := f.svc.EmptyBin(ctx, model.AuditActor{Username: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 3, purged)
	assert.Equal(t, 0, f.mem.Len(repository.HoldingCollection))
	assert.Equal(t, 0, f.mem.Len("payments"))
}

func TestRecycleService_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newRecycleFixture(t, nil, nil)

	updates, err := f.svc.Watch(ctx)
	require.NoError(t, err)

	select {
	case items := <-updates:
		assert.Empty(t, items)
	case <-time.After(time.Second):
		t.Fatal("no initial view")
	}

	f.seed(t, "payments", "p1", paymentData("Rahim", "500"))
	_, err = f.svc.SoftDelete(context.Background(), model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		select {
		case items := <-updates:
			return len(items) == 1 && items[0].DaysRemaining == 7
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestRecycleService_ConcurrentRestore(t *testing.T) {
	ctx := context.Background()

	gate := newGatedStore("payments/p1", nil)
	f := newRecycleFixture(t, func(s docstore.Store) docstore.Store {
		gate.Store = s
		return gate
	}, nil)
	f.seed(t, "payments", "p1", paymentData("Rahim", "500"))

	held, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment})
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.Restore(ctx, held.ID, model.AuditActor{Username: "first"})
		first <- err
	}()

	select {
	case <-gate.entered:
	case <-time.After(time.Second):
		t.Fatal("first restore never reached the replay")
	}

	_, err = f.svc.Restore(ctx, held.ID, model.AuditActor{Username: "second"})
	assert.ErrorIs(t, err, model.ErrHeldItemNotFound)

	close(gate.release)
	select {
	case err := <-first:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first restore did not finish")
	}

	_, err = f.mem.Get(ctx, "payments", "p1")
	assert.NoError(t, err)
	assert.Equal(t, 0, f.mem.Len(repository.HoldingCollection))

	entries, meta, err := repository.NewActivityRepository(f.mem).Query(ctx, model.ActivityFilter{Action: "recycle.restore"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, meta.Total)
	assert.Equal(t, ActivityStatusSuccess, entries[0].Status)
}

func TestRecycleService_RestoreReleasedElsewhere(t *testing.T) {
	ctx := context.Background()

	var f recycleFixture
	var heldID string
	// another instance sharing the store releases the record mid-restore
	gate := newGatedStore("payments/p1", func() {
		require.NoError(t, f.mem.Delete(ctx, repository.HoldingCollection, heldID))
	})
	close(gate.release)
	f = newRecycleFixture(t, func(s docstore.Store) docstore.Store {
		gate.Store = s
		return gate
	}, nil)
	f.seed(t, "payments", "p1", paymentData("Rahim", "500"))

	held, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment})
	require.NoError(t, err)
	heldID = held.ID

	_, err = f.svc.Restore(ctx, held.ID, model.AuditActor{Username: "admin"})
	require.ErrorIs(t, err, model.ErrHeldItemNotFound)
	assert.NotContains(t, err.Error(), "partially")

	for _, action := range []string{"recycle.restore", "restore.partial"} {
		_, meta, err := repository.NewActivityRepository(f.mem).Query(ctx, model.ActivityFilter{Action: action}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, meta.Total, action)
	}
}

func TestRecycleService_UndecodableHeldRecords(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	f.seed(t, "payments", "p1", paymentData("Rahim", "500"))
	_, err := f.svc.SoftDelete(ctx, model.SoftDeleteRequest{Collection: "payments", ID: "p1", Kind: model.KindPayment})
	require.NoError(t, err)

	_, err = f.mem.Create(ctx, repository.HoldingCollection, map[string]any{
		"originalId":         "inv-1",
		"originalCollection": "invoices",
		"snapshot":           map[string]any{"total": "20"},
		"deletedAt":          docstore.ServerTimestamp,
		"deletedBy":          "admin",
		"kind":               "invoice",
		"displayName":        "Invoice 1",
	})
	require.NoError(t, err)

	items, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.KindPayment, items[0].Kind)

	f.clock.Advance(8 * 24 * time.Hour)

	removed, err := f.svc.CleanupOldItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, f.mem.Len(repository.HoldingCollection))
}

func TestRecycleService_EmptyBinIncludesUndecodable(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	_, err := f.mem.Create(ctx, repository.HoldingCollection, map[string]any{
		"deletedAt": docstore.ServerTimestamp,
		"kind":      "invoice",
	})
	require.NoError(t, err)

	purged, err := f.svc.EmptyBin(ctx, model.AuditActor{Username: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	assert.Equal(t, 0, f.mem.Len(repository.HoldingCollection))
}

func TestRecycleService_LogSystemActionCleansDisplayName(t *testing.T) {
	ctx := context.Background()
	f := newRecycleFixture(t, nil, nil)

	held, err := f.svc.LogSystemAction(ctx, "", "  Year\u200B 2023\n", "Removed year 2023", model.KindYearConfigRemoved,
		map[string]any{"year": 2023})
	require.NoError(t, err)
	assert.Equal(t, "Year 2023", held.DisplayName)

	stored, err := repository.NewHeldRepository(f.mem).FindByID(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, "Year 2023", stored.DisplayName)
}
