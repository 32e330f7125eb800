package domain

import (
	"context"
	"time"
)

// RemoteSource is the upstream feedback API (read-only).
type RemoteSource interface {
	Fetch(ctx context.Context) ([]ExternalRecord, error)
	BaseURL() string
}

type HotelRef struct {
	ID   string
	Name string
}

// HotelDirectory is the hotel id -> name collection owned by another subsystem.
type HotelDirectory interface {
	ListHotels(ctx context.Context) ([]HotelRef, error)
}

// Ledger is the processing ledger. Mark is an idempotent merge-upsert keyed
// by LedgerEntry.Key().
type Ledger interface {
	Entries(ctx context.Context) ([]LedgerEntry, error)
	Mark(ctx context.Context, e LedgerEntry) error
}

// BatchStore persists analysis batches. SaveBatch upserts by (hotelId, importId).
type BatchStore interface {
	SaveBatch(ctx context.Context, b AnalysisBatch) error
	UnappliedBatches(ctx context.Context) ([]AnalysisBatch, error)
	MarkBatchApplied(ctx context.Context, hotelID, importID string) error
}

// Store is what a storage backend provides.
type Store interface {
	HotelDirectory
	Ledger
	BatchStore
}

// Classifier is the AI analysis endpoint.
type Classifier interface {
	Analyze(ctx context.Context, text, apiKey string) (Classification, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker serializes ingestion runs. TryLock returns ErrRunInProgress when the
// key is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}

type EventPublisher interface {
	PublishImport(ctx context.Context, ev ImportEvent) error
}
