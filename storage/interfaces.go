package storage

import (
	"context"

	"krisha-pipeline/models"
)

// ListingStore is the interface any durable listing backend must satisfy.
type ListingStore interface {
	Migrate(ctx context.Context) error
	Upsert(ctx context.Context, listings []*models.CleanListing) (int, error)
	Verify(ctx context.Context, sampleSize int) (*models.Verification, error)
	FetchAll(ctx context.Context) ([]*models.StoredListing, error)
	Close() error
}

// Locker serializes stages that must not overlap across processes.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}
