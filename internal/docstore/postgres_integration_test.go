//go:build integration

package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"go-charity-backoffice/internal/database"
)

var (
	containerOnce sync.Once
	sharedDSN     string
	containerErr  error
)

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()

	containerOnce.Do(func() {
		sharedDSN, containerErr = startContainerAndMigrate()
	})
	if containerErr != nil {
		t.Fatalf("setup test database: %v", containerErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, sharedDSN)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "TRUNCATE documents")
	require.NoError(t, err)

	return NewPostgres(pool)
}

func startContainerAndMigrate() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("get mapped port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return "", fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, database.Migrations())
	if err != nil {
		return "", fmt.Errorf("goose new provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return "", fmt.Errorf("goose up: %w", err)
	}

	return dsn, nil
}

func TestPostgres_CRUD(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	doc, err := store.Create(ctx, "recycle_bin", map[string]any{
		"kind":      "payment",
		"deletedAt": ServerTimestamp,
		"snapshot":  map[string]any{"amount": "500"},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "recycle_bin", doc.ID)
	require.NoError(t, err)
	deletedAt, ok := Time(got.Data, "deletedAt")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), deletedAt, time.Minute)

	require.NoError(t, store.Update(ctx, "recycle_bin", doc.ID, map[string]any{"displayName": "x"}))
	got, err = store.Get(ctx, "recycle_bin", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Data["displayName"])
	assert.Equal(t, "payment", got.Data["kind"])

	require.NoError(t, store.Set(ctx, "recycle_bin", doc.ID, map[string]any{"kind": "user"}))
	got, err = store.Get(ctx, "recycle_bin", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"kind": "user"}, got.Data)

	require.NoError(t, store.Delete(ctx, "recycle_bin", doc.ID))
	require.NoError(t, store.Delete(ctx, "recycle_bin", doc.ID))
	assert.ErrorIs(t, store.Remove(ctx, "recycle_bin", doc.ID), ErrNotFound)

	_, err = store.Get(ctx, "recycle_bin", doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Update(ctx, "recycle_bin", doc.ID, map[string]any{"a": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_FindAndDeleteBatch(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set(ctx, "recycle_bin", fmt.Sprintf("h%d", i), map[string]any{
			"deletedAt": now.AddDate(0, 0, -i*3),
			"batchId":   "B1",
		}))
	}

	cutoff := now.AddDate(0, 0, -7)
	old, err := store.Find(ctx, Collection("recycle_bin").Where("deletedAt", OpLte, cutoff))
	require.NoError(t, err)
	require.Len(t, old, 2)

	ordered, err := store.Find(ctx, Collection("recycle_bin").Order("deletedAt", Desc))
	require.NoError(t, err)
	require.Len(t, ordered, 5)
	assert.Equal(t, "h0", ordered[0].ID)
	assert.Equal(t, "h4", ordered[4].ID)

	refs := make([]Ref, 0, len(old))
	for _, d := range old {
		refs = append(refs, Ref{Collection: "recycle_bin", ID: d.ID})
	}
	require.NoError(t, store.DeleteBatch(ctx, refs))

	rest, err := store.Find(ctx, Collection("recycle_bin").Where("batchId", OpEq, "B1"))
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestPostgres_RunInTxRollsBack(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	err := store.RunInTx(ctx, func(ctx context.Context) error {
		if err := store.Set(ctx, "users", "u1", map[string]any{"name": "A"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	_, err = store.Get(ctx, "users", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_Subscribe(t *testing.T) {
	store := setupPostgres(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := store.Subscribe(ctx, Collection("recycle_bin"))
	require.NoError(t, err)

	select {
	case docs := <-updates:
		assert.Empty(t, docs)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial snapshot")
	}

	require.NoError(t, store.Set(context.Background(), "recycle_bin", "h1", map[string]any{"kind": "payment"}))

	select {
	case docs := <-updates:
		require.Len(t, docs, 1)
		assert.Equal(t, "h1", docs[0].ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no change snapshot")
	}
}
