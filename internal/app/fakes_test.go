package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"feedback_ingest/internal/domain"
)

// ---- fakes ----

type fakeSource struct {
	records []domain.ExternalRecord
	err     error
	calls   int
}

func (f *fakeSource) Fetch(ctx context.Context) ([]domain.ExternalRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.ExternalRecord(nil), f.records...), nil
}
func (f *fakeSource) BaseURL() string { return "https://feedback.example.test/api" }

// memStore is an in-memory domain.Store with the same merge semantics as the
// real backends.
type memStore struct {
	mu      sync.Mutex
	hotels  []domain.HotelRef
	ledger  map[string]domain.LedgerEntry
	batches []domain.AnalysisBatch

	failMarkAfter int // fail the Nth Mark call when > 0
	marks         int
}

func newMemStore(hotels ...domain.HotelRef) *memStore {
	return &memStore{hotels: hotels, ledger: map[string]domain.LedgerEntry{}}
}

func (m *memStore) ListHotels(ctx context.Context) ([]domain.HotelRef, error) {
	return m.hotels, nil
}

func (m *memStore) Entries(ctx context.Context) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LedgerEntry, 0, len(m.ledger))
	for _, e := range m.ledger {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (m *memStore) Mark(ctx context.Context, e domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks++
	if m.failMarkAfter > 0 && m.marks >= m.failMarkAfter {
		return errors.New("disk full")
	}
	if e.Provider == "" {
		e.Provider = domain.Provider
	}
	cur, ok := m.ledger[e.Key()]
	if !ok {
		m.ledger[e.Key()] = e
		return nil
	}
	if e.HotelID != "" {
		cur.HotelID = e.HotelID
	}
	if e.HotelName != "" {
		cur.HotelName = e.HotelName
	}
	if e.Status != "" {
		cur.Status = e.Status
	}
	if !e.ProcessedAt.IsZero() {
		cur.ProcessedAt = e.ProcessedAt
	}
	if e.Error != nil {
		cur.Error = e.Error
	}
	if e.ImportID != nil {
		cur.ImportID = e.ImportID
	}
	m.ledger[e.Key()] = cur
	return nil
}

func (m *memStore) SaveBatch(ctx context.Context, b domain.AnalysisBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.batches {
		if m.batches[i].HotelID == b.HotelID && m.batches[i].ImportID == b.ImportID {
			m.batches[i] = b
			return nil
		}
	}
	m.batches = append(m.batches, b)
	return nil
}

func (m *memStore) UnappliedBatches(ctx context.Context) ([]domain.AnalysisBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AnalysisBatch
	for _, b := range m.batches {
		if !b.LedgerApplied {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) MarkBatchApplied(ctx context.Context, hotelID, importID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.batches {
		if m.batches[i].HotelID == hotelID && m.batches[i].ImportID == importID {
			m.batches[i].LedgerApplied = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) entry(externalID string) (domain.LedgerEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ledger[domain.LedgerKey("", externalID)]
	return e, ok
}

// fakeClassifier answers by message text; unknown texts get a neutral result.
type fakeClassifier struct {
	mu      sync.Mutex
	answers map[string]domain.Classification
	fail    map[string]error
	seen    []string
}

func (f *fakeClassifier) Analyze(ctx context.Context, text, apiKey string) (domain.Classification, error) {
	f.mu.Lock()
	f.seen = append(f.seen, text)
	f.mu.Unlock()
	if err, ok := f.fail[text]; ok {
		return domain.Classification{}, err
	}
	if c, ok := f.answers[text]; ok {
		return c, nil
	}
	return domain.Classification{Keyword: "Geral", Sector: "Geral", Problem: "EMPTY"}, nil
}

func (f *fakeClassifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// fakeCache round-trips through JSON like the Redis cache does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

type recordingPublisher struct {
	events []domain.ImportEvent
	err    error
}

func (p *recordingPublisher) PublishImport(ctx context.Context, ev domain.ImportEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

// stepClock advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Second)
		return cur
	}
}

// ---- helpers ----

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(id, hotel, msg string, rating int) domain.ExternalRecord {
	return domain.ExternalRecord{
		ExternalID: id,
		HotelID:    hotel,
		GuestName:  "Guest " + id,
		Rating:     rating,
		Message:    msg,
		CreatedAt:  t0,
		Source:     domain.DefaultSourceName,
	}
}

func ptr[T any](v T) *T { return &v }
