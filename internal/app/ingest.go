package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"feedback_ingest/internal/adapters/observability"
	"feedback_ingest/internal/domain"
)

const (
	runLockKey         = "lock:feedback-ingest:" + domain.Provider
	defaultLockTTL     = 10 * time.Minute
	missingHotelReason = "hotelId missing in external payload"
	notAttemptedReason = "classification not attempted before the run ended"
)

type ItemStatus string

const (
	ItemProcessed ItemStatus = "processed"
	ItemSkipped   ItemStatus = "skipped"
	ItemFailed    ItemStatus = "failed"
)

// ProcessOptions tune one run. A nil Limit means no limit; a nil DeferFailed
// uses the service default.
type ProcessOptions struct {
	APIKey      string
	Limit       *int
	DryRun      bool
	Scope       *domain.Scope
	DeferFailed *bool
}

type HotelImport struct {
	HotelID   string `json:"hotelId"`
	HotelName string `json:"hotelName"`
	Count     int    `json:"count"`
	ImportID  string `json:"importId,omitempty"`
}

type RunMetadata struct {
	RunID           string        `json:"runId"`
	TotalCandidates int           `json:"totalCandidates"`
	Processed       int           `json:"processed"`
	Skipped         int           `json:"skipped"`
	Failed          int           `json:"failed"`
	DryRun          bool          `json:"dryRun"`
	ProcessedAt     time.Time     `json:"processedAt"`
	Hotels          []HotelImport `json:"hotels"`
}

type ItemResult struct {
	ExternalID string     `json:"externalId"`
	HotelID    string     `json:"hotelId"`
	HotelName  string     `json:"hotelName"`
	Status     ItemStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
}

type ItemError struct {
	ExternalID string `json:"externalId"`
	Message    string `json:"message"`
}

// ProcessResult is the run report returned to the caller.
type ProcessResult struct {
	Metadata RunMetadata  `json:"metadata"`
	Items    []ItemResult `json:"items"`
	Errors   []ItemError  `json:"errors"`
}

// IngestionDeps wires an IngestionService. Cache, Locker, Events and Clock
// are optional.
type IngestionDeps struct {
	Source      domain.RemoteSource
	Store       domain.Store
	Classifier  *Orchestrator
	Cache       domain.Cache
	Locker      domain.Locker
	Events      domain.EventPublisher
	Clock       Clock
	DeferFailed bool
	LockTTL     time.Duration
}

type IngestionService struct {
	source      domain.RemoteSource
	store       domain.Store
	dir         *Directory
	classify    *Orchestrator
	cache       domain.Cache
	locker      domain.Locker
	events      domain.EventPublisher
	clock       Clock
	deferFailed bool
	lockTTL     time.Duration
}

func NewIngestionService(d IngestionDeps) *IngestionService {
	s := &IngestionService{
		source:      d.Source,
		store:       d.Store,
		dir:         NewDirectory(d.Store),
		classify:    d.Classifier,
		cache:       d.Cache,
		locker:      d.Locker,
		events:      d.Events,
		clock:       d.Clock,
		deferFailed: d.DeferFailed,
		lockTTL:     d.LockTTL,
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.events == nil {
		s.events = NoopPublisher{}
	}
	if s.clock == nil {
		s.clock = systemClock
	}
	if s.lockTTL <= 0 {
		s.lockTTL = defaultLockTTL
	}
	return s
}

// Process runs one ingestion: fetch, select pending, classify, build, group
// by hotel and commit. Per-item classification failures are reported in the
// result; fetch and persistence failures abort the run.
func (s *IngestionService) Process(ctx context.Context, opt ProcessOptions) (res ProcessResult, err error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Bool("dry_run", opt.DryRun).Logger()

	if opt.APIKey == "" {
		return ProcessResult{}, domain.ErrMissingAPIKey
	}

	if !opt.DryRun {
		unlock, lerr := s.locker.TryLock(ctx, runLockKey, s.lockTTL)
		if lerr != nil {
			if errors.Is(lerr, domain.ErrRunInProgress) {
				observability.ObserveRun("locked")
			}
			return ProcessResult{}, lerr
		}
		defer func() {
			if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
				logger.Warn().Err(uerr).Msg("release run lock failed")
			}
		}()
	}

	ctx, span := observability.StartSpan(ctx, "ingest.process",
		attribute.String("run_id", runID),
		attribute.Bool("dry_run", opt.DryRun),
	)
	defer span.End()
	defer func() {
		switch {
		case errors.Is(err, domain.ErrRemoteUnavailable):
			span.RecordError(err)
			observability.ObserveRun("fetch_error")
		case err != nil:
			span.RecordError(err)
			observability.ObserveRun("error")
		case opt.DryRun:
			observability.ObserveRun("dry_run")
		default:
			observability.ObserveRun("ok")
		}
	}()

	records, names, entries, err := s.load(ctx)
	if err != nil {
		return ProcessResult{}, err
	}

	if !opt.DryRun {
		replayed, rerr := s.Reconcile(ctx)
		if rerr != nil {
			return ProcessResult{}, rerr
		}
		if replayed > 0 {
			if entries, err = s.store.Entries(ctx); err != nil {
				return ProcessResult{}, fmt.Errorf("reload ledger: %w", err)
			}
		}
	}

	consumed := processedIDs(entries)
	var pending []domain.ExternalRecord
	for _, r := range FilterByScope(records, opt.Scope, recordHotel) {
		if !consumed[r.ExternalID] {
			pending = append(pending, r)
		}
	}
	candidates := pending
	if opt.Limit != nil && *opt.Limit >= 0 && *opt.Limit < len(candidates) {
		candidates = candidates[:*opt.Limit]
	}

	res = ProcessResult{
		Metadata: RunMetadata{
			RunID:           runID,
			TotalCandidates: len(pending),
			DryRun:          opt.DryRun,
			ProcessedAt:     s.clock(),
			Hotels:          []HotelImport{},
		},
		Items:  []ItemResult{},
		Errors: []ItemError{},
	}
	if len(candidates) == 0 {
		logger.Info().Int("pending", len(pending)).Msg("nothing to ingest")
		return res, nil
	}

	var usable []domain.ExternalRecord
	for _, r := range candidates {
		if r.HasUsableHotel() {
			usable = append(usable, r)
			continue
		}
		res.Items = append(res.Items, ItemResult{
			ExternalID: r.ExternalID,
			HotelID:    r.HotelID,
			HotelName:  domain.UnknownHotelName,
			Status:     ItemSkipped,
			Error:      missingHotelReason,
		})
	}

	cctx, cspan := observability.StartSpan(ctx, "ingest.classify", attribute.Int("items", len(usable)))
	outcomes := s.classify.ClassifyAll(cctx, usable, opt.APIKey)
	cspan.End()

	deferFailed := s.deferFailed
	if opt.DeferFailed != nil {
		deferFailed = *opt.DeferFailed
	}

	type group struct {
		hotelName string
		items     []domain.Feedback
	}
	groups := map[string]*group{}
	var order []string
	var deferred []ClassifyOutcome

	for _, oc := range outcomes {
		rec := oc.Record
		hotelName := names.Resolve(rec.HotelID)
		if oc.NotAttempted() {
			res.Items = append(res.Items, ItemResult{
				ExternalID: rec.ExternalID, HotelID: rec.HotelID, HotelName: hotelName,
				Status: ItemSkipped, Error: notAttemptedReason,
			})
			continue
		}
		errText := oc.ErrorText()
		if errText != "" {
			res.Errors = append(res.Errors, ItemError{ExternalID: rec.ExternalID, Message: errText})
		}
		if errText != "" && deferFailed {
			deferred = append(deferred, oc)
			res.Items = append(res.Items, ItemResult{
				ExternalID: rec.ExternalID, HotelID: rec.HotelID, HotelName: hotelName,
				Status: ItemFailed, Error: errText,
			})
			continue
		}

		fb := BuildFeedback(rec, hotelName, oc.Classification)
		fb.Error = errText
		g, ok := groups[rec.HotelID]
		if !ok {
			g = &group{hotelName: hotelName}
			groups[rec.HotelID] = g
			order = append(order, rec.HotelID)
		}
		g.items = append(g.items, fb)
		res.Items = append(res.Items, ItemResult{
			ExternalID: rec.ExternalID, HotelID: rec.HotelID, HotelName: hotelName,
			Status: ItemProcessed, Error: errText,
		})
	}

	writer := NewWriter(s.store, s.store, s.clock)
	for _, hotelID := range order {
		g := groups[hotelID]
		hi := HotelImport{HotelID: hotelID, HotelName: g.hotelName, Count: len(g.items)}
		if !opt.DryRun {
			importID, cerr := writer.Commit(ctx, hotelID, g.hotelName, g.items)
			if cerr != nil {
				return res, fmt.Errorf("commit hotel %s: %w", hotelID, cerr)
			}
			hi.ImportID = importID
			s.afterCommit(ctx, hi, &logger)
		}
		res.Metadata.Hotels = append(res.Metadata.Hotels, hi)
	}

	if !opt.DryRun {
		for _, oc := range deferred {
			rec := oc.Record
			if merr := writer.MarkFailed(ctx, rec, names.Resolve(rec.HotelID), oc.ErrorText()); merr != nil {
				return res, fmt.Errorf("mark failed %s: %w", rec.ExternalID, merr)
			}
			s.invalidate(ctx, rec.HotelID)
		}
	}

	for _, it := range res.Items {
		switch it.Status {
		case ItemProcessed:
			res.Metadata.Processed++
		case ItemSkipped:
			res.Metadata.Skipped++
		}
	}
	res.Metadata.Failed = len(res.Errors)

	observability.ObserveItems(string(ItemProcessed), res.Metadata.Processed)
	observability.ObserveItems(string(ItemSkipped), res.Metadata.Skipped)
	observability.ObserveItems(string(ItemFailed), res.Metadata.Failed)
	logger.Info().
		Int("candidates", len(candidates)).
		Int("processed", res.Metadata.Processed).
		Int("skipped", res.Metadata.Skipped).
		Int("failed", res.Metadata.Failed).
		Int("batches", len(res.Metadata.Hotels)).
		Msg("ingestion run finished")
	return res, nil
}

// load reads the three leaves in parallel. Nothing is written before this
// succeeds.
func (s *IngestionService) load(ctx context.Context) ([]domain.ExternalRecord, HotelNames, []domain.LedgerEntry, error) {
	var (
		records []domain.ExternalRecord
		names   HotelNames
		entries []domain.LedgerEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fctx, span := observability.StartSpan(gctx, "ingest.fetch")
		defer span.End()
		var err error
		records, err = s.source.Fetch(fctx)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("fetch external feedbacks: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if names, err = s.dir.ResolveAll(gctx); err != nil {
			return fmt.Errorf("load hotel directory: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if entries, err = s.store.Entries(gctx); err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, HotelNames{}, nil, err
	}
	return records, names, entries, nil
}

func (s *IngestionService) afterCommit(ctx context.Context, hi HotelImport, logger *zerolog.Logger) {
	s.invalidate(ctx, hi.HotelID)
	ev := domain.ImportEvent{
		HotelID:    hi.HotelID,
		HotelName:  hi.HotelName,
		ImportID:   hi.ImportID,
		Count:      hi.Count,
		ImportedAt: s.clock(),
	}
	if err := s.events.PublishImport(ctx, ev); err != nil {
		logger.Warn().Err(err).Str("import_id", hi.ImportID).Msg("publish import event failed")
	}
}

func (s *IngestionService) invalidate(ctx context.Context, hotelID string) {
	if s.cache == nil {
		return
	}
	for _, k := range DashboardCacheKeys(hotelID) {
		_ = s.cache.Del(ctx, k)
	}
}

// Reconcile replays the ledger marks of batches whose commit was interrupted
// and returns how many batches it finished.
func (s *IngestionService) Reconcile(ctx context.Context) (int, error) {
	batches, err := s.store.UnappliedBatches(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unapplied batches: %w", err)
	}
	for _, b := range batches {
		if err := applyBatch(ctx, s.store, s.store, b); err != nil {
			return 0, fmt.Errorf("reconcile %s: %w", b.ImportID, err)
		}
		s.invalidate(ctx, b.HotelID)
		log.Warn().
			Str("hotel_id", b.HotelID).
			Str("import_id", b.ImportID).
			Int("count", len(b.Data)).
			Msg("replayed interrupted batch")
	}
	return len(batches), nil
}

// Requeue makes error-carrying processed entries eligible again by flipping
// them to failed. Entries outside scope, unknown ids and clean entries are
// left alone. It returns how many entries changed.
func (s *IngestionService) Requeue(ctx context.Context, scope *domain.Scope, externalIDs []string) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	wanted := make(map[string]bool, len(externalIDs))
	for _, id := range externalIDs {
		wanted[id] = true
	}
	entries, err := s.store.Entries(ctx)
	if err != nil {
		return 0, fmt.Errorf("load ledger: %w", err)
	}
	n := 0
	for _, e := range FilterByScope(entries, scope, entryHotel) {
		if !wanted[e.ExternalID] || e.Status != domain.StatusProcessed || e.ErrorText() == "" {
			continue
		}
		if err := s.store.Mark(ctx, domain.LedgerEntry{
			Provider:    e.Provider,
			ExternalID:  e.ExternalID,
			Status:      domain.StatusFailed,
			ProcessedAt: s.clock(),
		}); err != nil {
			return n, fmt.Errorf("requeue %s: %w", e.ExternalID, err)
		}
		s.invalidate(ctx, e.HotelID)
		n++
	}
	log.Info().Int("requeued", n).Msg("ledger entries requeued")
	return n, nil
}
