package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"feedback_ingest/internal/adapters/observability"
	"feedback_ingest/internal/domain"
)

// Writer persists batches for one run. The batch document is written first
// with LedgerApplied=false, then the ledger marks, then the applied flag, so
// an interrupted commit can be replayed from the batch alone.
type Writer struct {
	batches domain.BatchStore
	ledger  domain.Ledger
	seq     *importSeq
}

// NewWriter returns a writer whose importIds come from clock. Use one writer
// per run.
func NewWriter(batches domain.BatchStore, ledger domain.Ledger, clock Clock) *Writer {
	if clock == nil {
		clock = systemClock
	}
	return &Writer{batches: batches, ledger: ledger, seq: newImportSeq(clock)}
}

// Commit writes one hotel's batch and marks every member processed.
func (w *Writer) Commit(ctx context.Context, hotelID, hotelName string, items []domain.Feedback) (string, error) {
	importID, at := w.seq.next(hotelID)
	ctx, span := observability.StartSpan(ctx, "ingest.commit",
		attribute.String("hotel_id", hotelID),
		attribute.String("import_id", importID),
		attribute.Int("items", len(items)),
	)
	defer span.End()

	data := make([]domain.Feedback, len(items))
	for i, f := range items {
		f.ImportID = importID
		data[i] = f
	}
	batch := domain.AnalysisBatch{
		HotelID:    hotelID,
		HotelName:  hotelName,
		ImportID:   importID,
		ImportDate: at,
		Data:       data,
		Analysis:   Aggregate(data),
	}
	if err := w.batches.SaveBatch(ctx, batch); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("save batch %s: %w", importID, err)
	}
	if err := applyBatch(ctx, w.batches, w.ledger, batch); err != nil {
		span.RecordError(err)
		return "", err
	}
	observability.ObserveBatchCommitted()
	log.Info().
		Str("hotel_id", hotelID).
		Str("import_id", importID).
		Int("count", len(data)).
		Msg("batch committed")
	return importID, nil
}

// MarkFailed records a classification failure without importing the item.
// The entry stays pending and is picked up again by the next run.
func (w *Writer) MarkFailed(ctx context.Context, rec domain.ExternalRecord, hotelName, reason string) error {
	errText := reason
	return w.ledger.Mark(ctx, domain.LedgerEntry{
		Provider:    domain.Provider,
		ExternalID:  rec.ExternalID,
		HotelID:     rec.HotelID,
		HotelName:   hotelName,
		Status:      domain.StatusFailed,
		ProcessedAt: w.seq.clock(),
		Error:       &errText,
	})
}

// applyBatch writes the ledger marks for a saved batch and flags it applied.
// Marks are merge upserts, so replaying is harmless.
func applyBatch(ctx context.Context, batches domain.BatchStore, ledger domain.Ledger, b domain.AnalysisBatch) error {
	importID := b.ImportID
	for _, f := range b.Data {
		errText := f.Error
		if err := ledger.Mark(ctx, domain.LedgerEntry{
			Provider:    domain.Provider,
			ExternalID:  f.ExternalID,
			HotelID:     b.HotelID,
			HotelName:   b.HotelName,
			Status:      domain.StatusProcessed,
			ProcessedAt: b.ImportDate,
			Error:       &errText,
			ImportID:    &importID,
		}); err != nil {
			return fmt.Errorf("mark %s: %w", f.ExternalID, err)
		}
	}
	if err := batches.MarkBatchApplied(ctx, b.HotelID, b.ImportID); err != nil {
		return fmt.Errorf("flag batch %s applied: %w", b.ImportID, err)
	}
	return nil
}
