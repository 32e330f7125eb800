package app

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"feedback_ingest/internal/adapters/observability"
	"feedback_ingest/internal/domain"
)

const (
	defaultClassifyWorkers = 4
	classifyFailedMessage  = "classification failed"
)

// ClassifyOutcome pairs a record with its classification or the error that
// replaced it. Exactly one of Classification and Err is set.
type ClassifyOutcome struct {
	Record         domain.ExternalRecord
	Classification *domain.Classification
	Err            error
}

// ErrorText is the per-item message recorded in the ledger.
func (o ClassifyOutcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	if msg := o.Err.Error(); msg != "" {
		return msg
	}
	return classifyFailedMessage
}

// NotAttempted reports whether the record never reached the analysis service
// or was cut off by the run's context. Such records stay pending.
func (o ClassifyOutcome) NotAttempted() bool {
	return errors.Is(o.Err, domain.ErrNotAttempted) ||
		errors.Is(o.Err, context.Canceled) ||
		errors.Is(o.Err, context.DeadlineExceeded)
}

// Orchestrator fans classification out over a bounded pool.
type Orchestrator struct {
	classifier domain.Classifier
	workers    int
}

func NewOrchestrator(c domain.Classifier, workers int) *Orchestrator {
	if workers <= 0 {
		workers = defaultClassifyWorkers
	}
	return &Orchestrator{classifier: c, workers: workers}
}

// ClassifyAll classifies every record. Failures never abort the run: they are
// returned in the outcome of the record they belong to. Output order matches
// input order.
func (o *Orchestrator) ClassifyAll(ctx context.Context, records []domain.ExternalRecord, apiKey string) []ClassifyOutcome {
	out := make([]ClassifyOutcome, len(records))
	sem := semaphore.NewWeighted(int64(o.workers))
	var wg sync.WaitGroup

	for i, rec := range records {
		out[i].Record = rec
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < len(records); j++ {
				out[j] = ClassifyOutcome{Record: records[j], Err: err}
			}
			break
		}
		wg.Add(1)
		go func(i int, rec domain.ExternalRecord) {
			defer wg.Done()
			defer sem.Release(1)

			c, err := o.classifier.Analyze(ctx, rec.Message, apiKey)
			if err != nil {
				out[i].Err = err
				return
			}
			out[i].Classification = &c
		}(i, rec)
	}
	wg.Wait()

	for _, oc := range out {
		if oc.NotAttempted() {
			log.Debug().
				Str("external_id", oc.Record.ExternalID).
				Err(oc.Err).
				Msg("classification not attempted")
			continue
		}
		if oc.Err != nil {
			observability.ObserveClassificationFailure()
			log.Warn().
				Str("external_id", oc.Record.ExternalID).
				Str("hotel_id", oc.Record.HotelID).
				Err(oc.Err).
				Msg("classification failed")
		}
	}
	return out
}
