package repository

import (
	"context"
	"errors"
	"fmt"

	"go-charity-backoffice/internal/docstore"
	"go-charity-backoffice/internal/model"
)

func getAs[T any](ctx context.Context, store docstore.Store, collection, id string) (T, error) {
	var out T

	doc, err := store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return out, fmt.Errorf("%s/%s: %w", collection, id, model.ErrRecordNotFound)
	}
	if err != nil {
		return out, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	if err := docstore.Decode(doc, &out); err != nil {
		return out, err
	}
	return out, nil
}

func findAs[T any](ctx context.Context, store docstore.Store, q docstore.Query) ([]T, error) {
	docs, err := store.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := docstore.Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// create stores v and returns the assigned id.
func create(ctx context.Context, store docstore.Store, collection string, v any) (string, error) {
	data, err := docstore.Encode(v)
	if err != nil {
		return "", err
	}

	doc, err := store.Create(ctx, collection, data)
	if err != nil {
		return "", fmt.Errorf("create %s document: %w", collection, err)
	}
	return doc.ID, nil
}
