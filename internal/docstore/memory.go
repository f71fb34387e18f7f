package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-charity-backoffice/internal/event"
)

// Change is the payload of the document.changed events Memory publishes.
type Change struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Memory keeps every collection in process. It does not implement Transactor.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any

	now   func() time.Time
	newID func() string
	bus   *event.InMemoryBus
}

type MemoryOption func(*Memory)

// WithClock sets the clock used to resolve ServerTimestamp.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func WithIDGenerator(newID func() string) MemoryOption {
	return func(m *Memory) { m.newID = newID }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		collections: make(map[string]map[string]map[string]any),
		now:         time.Now,
		newID:       uuid.NewString,
		bus:         event.NewBus(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, collection string, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}

	return Document{ID: id, Data: cloneMap(data)}, nil
}

func (m *Memory) Create(ctx context.Context, collection string, data map[string]any) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	id := m.newID()
	stored := m.prepare(data)

	m.mu.Lock()
	m.collection(collection)[id] = stored
	m.mu.Unlock()

	m.notify(collection, id)
	return Document{ID: id, Data: cloneMap(stored)}, nil
}

func (m *Memory) Set(ctx context.Context, collection string, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("set %s: empty document id", collection)
	}

	stored := m.prepare(data)

	m.mu.Lock()
	m.collection(collection)[id] = stored
	m.mu.Unlock()

	m.notify(collection, id)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection string, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resolved := m.prepare(patch)

	m.mu.Lock()
	existing, ok := m.collections[collection][id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range resolved {
		existing[k] = v
	}
	m.mu.Unlock()

	m.notify(collection, id)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	_, existed := m.collections[collection][id]
	delete(m.collections[collection], id)
	m.mu.Unlock()

	if existed {
		m.notify(collection, id)
	}
	return nil
}

func (m *Memory) Remove(ctx context.Context, collection string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	_, existed := m.collections[collection][id]
	delete(m.collections[collection], id)
	m.mu.Unlock()

	if !existed {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	m.notify(collection, id)
	return nil
}

func (m *Memory) DeleteBatch(ctx context.Context, refs []Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, ref := range refs {
		if ref.Collection == "" || ref.ID == "" {
			return fmt.Errorf("delete batch: incomplete ref %+v", ref)
		}
	}

	var removed []Ref

	m.mu.Lock()
	for _, ref := range refs {
		if _, ok := m.collections[ref.Collection][ref.ID]; ok {
			delete(m.collections[ref.Collection], ref.ID)
			removed = append(removed, ref)
		}
	}
	m.mu.Unlock()

	for _, ref := range removed {
		m.notify(ref.Collection, ref.ID)
	}
	return nil
}

func (m *Memory) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	m.mu.RLock()
	docs := make([]Document, 0, len(m.collections[q.Collection]))
	for id, data := range m.collections[q.Collection] {
		if matches(data, q.Filters) {
			docs = append(docs, Document{ID: id, Data: cloneMap(data)})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy == "" {
			return docs[i].ID < docs[j].ID
		}
		a, b := docs[i].Data, docs[j].Data
		if q.Direction == Desc {
			a, b = b, a
		}
		if orderLess(a, b, q.OrderBy) {
			return true
		}
		if orderLess(b, a, q.OrderBy) {
			return false
		}
		return docs[i].ID < docs[j].ID
	})

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	return docs, nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query) (<-chan []Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	changes, unsubscribe := m.bus.Subscribe()

	initial, err := m.Find(ctx, q)
	if err != nil {
		unsubscribe()
		return nil, err
	}

	out := make(chan []Document, 1)
	out <- initial

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-changes:
				if !ok {
					return
				}
				change, _ := e.Payload.(Change)
				if change.Collection != q.Collection {
					continue
				}

				docs, err := m.Find(ctx, q)
				if err != nil {
					return
				}

				select {
				case out <- docs:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Len reports how many documents a collection holds.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func (m *Memory) prepare(data map[string]any) map[string]any {
	stored := cloneMap(data)
	if stored == nil {
		stored = make(map[string]any)
	}
	delete(stored, "id")
	resolveServerTimestamps(stored, m.now().UTC())
	return stored
}

// collection must be called with mu held for writing.
func (m *Memory) collection(name string) map[string]map[string]any {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string]map[string]any)
		m.collections[name] = c
	}
	return c
}

func (m *Memory) notify(collection, id string) {
	m.bus.Publish(event.New(event.TypeDocumentChanged, "", Change{Collection: collection, ID: id}))
}
