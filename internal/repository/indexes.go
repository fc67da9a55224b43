package repository

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes of every repo concurrently.
func EnsureIndexes(ctx context.Context, repos ...indexer) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			return repo.EnsureIndexes(ctx)
		})
	}
	return g.Wait()
}
