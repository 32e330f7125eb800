package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"feedback_ingest/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// valNonEmpty maps "" to NULL so the merge upsert keeps the stored value.
func valNonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func ptrNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Store implements domain.Store on MySQL (hotels, external_feedback_queue, analyses).
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) ListHotels(ctx context.Context) ([]domain.HotelRef, error) {
	rows, err := s.db.QueryContext(ctx, listHotelsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.HotelRef
	for rows.Next() {
		var h domain.HotelRef
		if err := rows.Scan(&h.ID, &h.Name); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) Entries(ctx context.Context) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, listEntriesSQL, domain.Provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e                  domain.LedgerEntry
			status             string
			hotelID, hotelName sql.NullString
			processedAt        sql.NullTime
			errText, importID  sql.NullString
		)
		if err := rows.Scan(&e.Provider, &e.ExternalID, &hotelID, &hotelName, &status, &processedAt, &errText, &importID); err != nil {
			return nil, err
		}
		e.HotelID = hotelID.String
		e.HotelName = hotelName.String
		e.Status = domain.LedgerStatus(status)
		if processedAt.Valid {
			e.ProcessedAt = processedAt.Time.UTC()
		}
		e.Error = ptrNull(errText)
		e.ImportID = ptrNull(importID)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Mark(ctx context.Context, e domain.LedgerEntry) error {
	if e.ExternalID == "" {
		return errors.New("ledger mark without external id")
	}
	provider := e.Provider
	if provider == "" {
		provider = domain.Provider
	}
	status := valNonEmpty(string(e.Status))
	_, err := s.db.ExecContext(ctx, markEntrySQL,
		domain.LedgerKey(provider, e.ExternalID),
		provider,
		e.ExternalID,
		valNonEmpty(e.HotelID),
		valNonEmpty(e.HotelName),
		status,
		valTime(e.ProcessedAt),
		valStr(e.Error),
		valStr(e.ImportID),
		status,
	)
	return err
}

func (s *Store) SaveBatch(ctx context.Context, b domain.AnalysisBatch) error {
	data, err := json.Marshal(b.Data)
	if err != nil {
		return fmt.Errorf("encode batch data: %w", err)
	}
	analysis, err := json.Marshal(b.Analysis)
	if err != nil {
		return fmt.Errorf("encode batch summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, saveBatchSQL,
		b.HotelID,
		b.ImportID,
		valNonEmpty(b.HotelName),
		b.ImportDate.UTC(),
		string(data),
		string(analysis),
		b.LedgerApplied,
	)
	return err
}

func (s *Store) UnappliedBatches(ctx context.Context) ([]domain.AnalysisBatch, error) {
	rows, err := s.db.QueryContext(ctx, unappliedBatchesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AnalysisBatch
	for rows.Next() {
		var (
			b              domain.AnalysisBatch
			data, analysis []byte
		)
		if err := rows.Scan(&b.HotelID, &b.ImportID, &b.HotelName, &b.ImportDate, &data, &analysis); err != nil {
			return nil, err
		}
		if err := decodeBatch(&b, data, analysis); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkBatchApplied flags a batch whose ledger marks are all written. A batch
// that does not exist gives domain.ErrNotFound; an already flagged one is a no-op.
func (s *Store) MarkBatchApplied(ctx context.Context, hotelID, importID string) error {
	res, err := s.db.ExecContext(ctx, markBatchAppliedSQL, hotelID, importID)
	if err != nil {
		return fmt.Errorf("flag batch %s: %w", importID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// MySQL reports 0 affected rows when the flag was already set.
	var one int
	if err := s.db.QueryRowContext(ctx, batchExistsSQL, hotelID, importID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func decodeBatch(b *domain.AnalysisBatch, data, analysis []byte) error {
	b.ImportDate = b.ImportDate.UTC()
	if err := json.Unmarshal(data, &b.Data); err != nil {
		return fmt.Errorf("decode batch %s data: %w", b.ImportID, err)
	}
	if err := json.Unmarshal(analysis, &b.Analysis); err != nil {
		return fmt.Errorf("decode batch %s summary: %w", b.ImportID, err)
	}
	return nil
}
