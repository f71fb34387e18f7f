package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-charity-backoffice/internal/database"
)

const (
	documentsTable = "documents"
	changeChannel  = "docstore_changes"

	// timeLayout is fixed width so stored timestamps also sort correctly as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres stores every collection as rows of the documents table.
type Postgres struct {
	pool *pgxpool.Pool
	tx   *database.TxManager
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, tx: database.NewTxManager(pool)}
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.tx.RunInTx(ctx, fn)
}

func (p *Postgres) Get(ctx context.Context, collection string, id string) (Document, error) {
	builder := psql.Select("data").
		From(documentsTable).
		Where(sq.Eq{"collection": collection, "id": id})
	if database.InTx(ctx) {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return Document{}, fmt.Errorf("build get query: %w", err)
	}

	var raw []byte
	err = database.QuerierFromCtx(ctx, p.pool).QueryRow(ctx, query, args...).Scan(&raw)
	if err != nil {
		return Document{}, mapError(err, collection, id)
	}

	data, err := unmarshalData(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, err)
	}

	return Document{ID: id, Data: data}, nil
}

func (p *Postgres) Create(ctx context.Context, collection string, data map[string]any) (Document, error) {
	id := uuid.NewString()

	stored, err := p.prepare(ctx, data)
	if err != nil {
		return Document{}, err
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return Document{}, fmt.Errorf("marshal %s document: %w", collection, err)
	}

	query, args, err := psql.Insert(documentsTable).
		Columns("collection", "id", "data").
		Values(collection, id, sq.Expr("?::text::jsonb", string(raw))).
		ToSql()
	if err != nil {
		return Document{}, fmt.Errorf("build insert query: %w", err)
	}

	if _, err := database.QuerierFromCtx(ctx, p.pool).Exec(ctx, query, args...); err != nil {
		return Document{}, mapError(err, collection, id)
	}

	out, err := unmarshalData(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: out}, nil
}

func (p *Postgres) Set(ctx context.Context, collection string, id string, data map[string]any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("set %s: empty document id", collection)
	}

	stored, err := p.prepare(ctx, data)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}

	query, args, err := psql.Insert(documentsTable).
		Columns("collection", "id", "data").
		Values(collection, id, sq.Expr("?::text::jsonb", string(raw))).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert query: %w", err)
	}

	if _, err := database.QuerierFromCtx(ctx, p.pool).Exec(ctx, query, args...); err != nil {
		return mapError(err, collection, id)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection string, id string, patch map[string]any) error {
	stored, err := p.prepare(ctx, patch)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal %s/%s patch: %w", collection, id, err)
	}

	query, args, err := psql.Update(documentsTable).
		Set("data", sq.Expr("data || ?::text::jsonb", string(raw))).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	tag, err := database.QuerierFromCtx(ctx, p.pool).Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, collection, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection string, id string) error {
	query, args, err := psql.Delete(documentsTable).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	if _, err := database.QuerierFromCtx(ctx, p.pool).Exec(ctx, query, args...); err != nil {
		return mapError(err, collection, id)
	}
	return nil
}

func (p *Postgres) Remove(ctx context.Context, collection string, id string) error {
	query, args, err := psql.Delete(documentsTable).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	tag, err := database.QuerierFromCtx(ctx, p.pool).Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, collection, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) DeleteBatch(ctx context.Context, refs []Ref) error {
	if len(refs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ref := range refs {
		if ref.Collection == "" || ref.ID == "" {
			return fmt.Errorf("delete batch: incomplete ref %+v", ref)
		}
		query, args, err := psql.Delete(documentsTable).
			Where(sq.Eq{"collection": ref.Collection, "id": ref.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build batch delete query: %w", err)
		}
		batch.Queue(query, args...)
	}

	return p.RunInTx(ctx, func(ctx context.Context) error {
		results := database.QuerierFromCtx(ctx, p.pool).SendBatch(ctx, batch)
		for _, ref := range refs {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return mapError(err, ref.Collection, ref.ID)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close delete batch: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Find(ctx context.Context, q Query) ([]Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	builder := psql.Select("id", "data").
		From(documentsTable).
		Where(sq.Eq{"collection": q.Collection})

	for _, f := range q.Filters {
		expr, err := filterExpr(f)
		if err != nil {
			return nil, err
		}
		builder = builder.Where(expr)
	}

	dir := "ASC NULLS FIRST"
	if q.Direction == Desc {
		dir = "DESC NULLS LAST"
	}
	if q.OrderBy != "" {
		builder = builder.OrderBy(fmt.Sprintf("data->'%s' %s", q.OrderBy, dir), "id ASC")
	} else {
		builder = builder.OrderBy("id ASC")
	}
	if q.Limit > 0 {
		builder = builder.Limit(uint64(q.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find query: %w", err)
	}

	rows, err := database.QuerierFromCtx(ctx, p.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", q.Collection, err)
		}
		data, err := unmarshalData(raw)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", q.Collection, id, err)
		}
		docs = append(docs, Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s documents: %w", q.Collection, err)
	}

	return docs, nil
}

// Subscribe holds one pooled connection for LISTEN until ctx is done.
func (p *Postgres) Subscribe(ctx context.Context, q Query) (<-chan []Document, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", changeChannel, err)
	}

	initial, err := p.Find(ctx, q)
	if err != nil {
		p.releaseListener(conn)
		return nil, err
	}

	out := make(chan []Document, 1)
	out <- initial

	go func() {
		defer close(out)
		defer p.releaseListener(conn)

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("document subscription stopped", "collection", q.Collection, "error", err)
				}
				return
			}

			var change Change
			if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
				slog.Warn("malformed change notification", "payload", n.Payload, "error", err)
				continue
			}
			if change.Collection != q.Collection {
				continue
			}

			docs, err := p.Find(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("document subscription query failed", "collection", q.Collection, "error", err)
				}
				return
			}

			select {
			case out <- docs:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (p *Postgres) releaseListener(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		// a connection left listening must not return to the pool
		_ = conn.Conn().Close(ctx)
	}
	conn.Release()
}

// prepare resolves ServerTimestamp against the database clock and
// normalizes time values to the fixed-width text layout.
func (p *Postgres) prepare(ctx context.Context, data map[string]any) (map[string]any, error) {
	stored := cloneMap(data)
	if stored == nil {
		stored = make(map[string]any)
	}
	delete(stored, "id")

	if hasServerTimestamp(stored) {
		var now time.Time
		if err := database.QuerierFromCtx(ctx, p.pool).QueryRow(ctx, "SELECT now()").Scan(&now); err != nil {
			return nil, fmt.Errorf("read server clock: %w", err)
		}
		resolveServerTimestamps(stored, now.UTC())
	}

	normalizeTimes(stored)
	return stored, nil
}

func filterExpr(f Filter) (sq.Sqlizer, error) {
	field := fmt.Sprintf("data->'%s'", f.Field)

	if t, ok := f.Value.(time.Time); ok {
		return sq.Expr(fmt.Sprintf("(data->>'%s')::timestamptz %s ?", f.Field, sqlOp(f.Op)), t.UTC()), nil
	}

	raw, err := json.Marshal(f.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: value for %q: %v", ErrInvalidQuery, f.Field, err)
	}

	return sq.Expr(fmt.Sprintf("%s %s ?::text::jsonb", field, sqlOp(f.Op)), string(raw)), nil
}

func sqlOp(op Op) string {
	if op == OpEq {
		return "="
	}
	return string(op)
}

func hasServerTimestamp(data map[string]any) bool {
	for _, v := range data {
		switch t := v.(type) {
		case serverTimestamp:
			return true
		case map[string]any:
			if hasServerTimestamp(t) {
				return true
			}
		}
	}
	return false
}

func normalizeTimes(data map[string]any) {
	for k, v := range data {
		switch t := v.(type) {
		case time.Time:
			data[k] = t.UTC().Format(timeLayout)
		case map[string]any:
			normalizeTimes(t)
		}
	}
}

func unmarshalData(raw []byte) (map[string]any, error) {
	data := make(map[string]any)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal document data: %w", err)
	}
	return data, nil
}

func mapError(err error, collection, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %w", collection, id, err)
}
