package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"feedback_ingest/internal/domain"
)

// Clock is injected so runs and tests control time.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// importSeq hands out importIds for one run: "<hotelId>-<unix millis>",
// strictly increasing in time so two batches never share an id.
type importSeq struct {
	clock Clock
	last  int64
}

func newImportSeq(c Clock) *importSeq { return &importSeq{clock: c} }

func (s *importSeq) next(hotelID string) (string, time.Time) {
	at := s.clock()
	ms := at.UnixMilli()
	if ms <= s.last {
		ms = s.last + 1
		at = time.UnixMilli(ms).UTC()
	}
	s.last = ms
	return hotelID + "-" + strconv.FormatInt(ms, 10), at
}

// LocalLocker serializes runs inside one process when no Redis is configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker { return &LocalLocker{held: map[string]bool{}} }

func (l *LocalLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrRunInProgress
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}, nil
}

// NoopPublisher drops import events (no broker configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishImport(context.Context, domain.ImportEvent) error { return nil }
