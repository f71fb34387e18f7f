// Package docstore is the document-database client every service talks to.
// Documents are schemaless field maps grouped in named collections; the
// package offers a Postgres-backed implementation for production and an
// in-memory one for tests and local runs.
package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidQuery = errors.New("invalid query")
)

// Document is one stored record. Data never contains the id.
type Document struct {
	ID   string
	Data map[string]any
}

// Ref addresses a single document.
type Ref struct {
	Collection string
	ID         string
}

type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Query selects documents of one collection. Filters are ANDed.
// An empty OrderBy leaves the result order to the store.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int
}

func Collection(name string) Query {
	return Query{Collection: name}
}

func (q Query) Where(field string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Where(field, op, value))
	return q
}

func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}

// Store is the capability set of the hosted document database.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection string, id string) (Document, error)

	// Create stores data under a store-assigned id. Fields holding
	// ServerTimestamp are replaced with the store's clock at write time.
	Create(ctx context.Context, collection string, data map[string]any) (Document, error)

	// Set creates or fully overwrites the document.
	Set(ctx context.Context, collection string, id string, data map[string]any) error

	// Update merges patch into an existing document.
	Update(ctx context.Context, collection string, id string, patch map[string]any) error

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection string, id string) error

	// Remove deletes the document like Delete but returns ErrNotFound when
	// there was nothing to delete, so exactly one of several racing callers
	// succeeds.
	Remove(ctx context.Context, collection string, id string) error

	// DeleteBatch removes every referenced document or none of them.
	DeleteBatch(ctx context.Context, refs []Ref) error

	Find(ctx context.Context, q Query) ([]Document, error)

	// Subscribe emits the full result of q once, then again after every
	// change to q.Collection. The channel closes when ctx is done.
	Subscribe(ctx context.Context, q Query) (<-chan []Document, error)
}

// Transactor is implemented by stores that can run several writes atomically.
// Store calls made with the ctx passed to fn join the transaction, and Get
// inside it locks the row until the transaction ends.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type serverTimestamp struct{}

// ServerTimestamp is a field value placeholder resolved by the store on write.
var ServerTimestamp = serverTimestamp{}
