package service

import (
	"context"

	"go-charity-backoffice/internal/docstore"
)

// runInTx runs fn in a store transaction when the store supports one.
// transactional reports whether it did.
func runInTx(ctx context.Context, store docstore.Store, fn func(ctx context.Context) error) (transactional bool, err error) {
	if tx, ok := store.(docstore.Transactor); ok {
		return true, tx.RunInTx(ctx, fn)
	}
	return false, fn(ctx)
}
