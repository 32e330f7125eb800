package app

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"feedback_ingest/internal/adapters/observability"
	"feedback_ingest/internal/domain"
)

const (
	historyLimit   = 15
	previewRunes   = 280
	dashboardAdmin = "dashboard:admin"
	buildTimeout   = 30 * time.Second
)

// DashboardCacheKeys lists the cached views a change to hotelID affects.
func DashboardCacheKeys(hotelID string) []string {
	return []string{dashboardAdmin, dashboardKey(&domain.Scope{Role: domain.RoleManager, HotelID: hotelID})}
}

func dashboardKey(scope *domain.Scope) string {
	if scope.IsAdmin() {
		return dashboardAdmin
	}
	return "dashboard:hotel:" + domain.NormalizeHotelID(scope.HotelID)
}

// DashboardService builds the read-only integration view.
type DashboardService struct {
	source domain.RemoteSource
	dir    *Directory
	ledger domain.Ledger
	cache  domain.Cache
	ttl    time.Duration
	clock  Clock
	group  singleflight.Group
}

func NewDashboardService(src domain.RemoteSource, dir domain.HotelDirectory, ledger domain.Ledger, cache domain.Cache, ttl time.Duration, clock Clock) *DashboardService {
	if clock == nil {
		clock = systemClock
	}
	return &DashboardService{
		source: src,
		dir:    NewDirectory(dir),
		ledger: ledger,
		cache:  cache,
		ttl:    ttl,
		clock:  clock,
	}
}

// BuildView returns pending items, recent history and totals visible to scope.
// It never writes to the ledger or the batch store.
func (s *DashboardService) BuildView(ctx context.Context, scope *domain.Scope) (domain.DashboardView, error) {
	key := dashboardKey(scope)
	var view domain.DashboardView
	if s.cache != nil && s.ttl > 0 {
		if ok, _ := s.cache.Get(ctx, key, &view); ok {
			return view, nil
		}
	}

	// Waiters share one build, so it must outlive any single caller.
	v, err, _ := s.group.Do(key, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()
		return s.build(bctx, scope)
	})
	if err != nil {
		return domain.DashboardView{}, err
	}
	view = v.(domain.DashboardView)

	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, key, view, int(s.ttl.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("dashboard cache set failed")
		}
	}
	return view, nil
}

func (s *DashboardService) build(ctx context.Context, scope *domain.Scope) (domain.DashboardView, error) {
	ctx, span := observability.StartSpan(ctx, "dashboard.build", attribute.String("scope", dashboardKey(scope)))
	defer span.End()

	var (
		records []domain.ExternalRecord
		names   HotelNames
		entries []domain.LedgerEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { records, err = s.source.Fetch(gctx); return })
	g.Go(func() (err error) { names, err = s.dir.ResolveAll(gctx); return })
	g.Go(func() (err error) { entries, err = s.ledger.Entries(gctx); return })
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.DashboardView{}, err
	}

	consumed := processedIDs(entries)
	scoped := FilterByScope(entries, scope, entryHotel)

	view := domain.DashboardView{
		Source:    domain.SourceInfo{BaseURL: s.source.BaseURL()},
		Pending:   []domain.PendingItem{},
		Processed: []domain.HistoryItem{},
	}
	for _, r := range FilterByScope(records, scope, recordHotel) {
		if consumed[r.ExternalID] {
			continue
		}
		view.Pending = append(view.Pending, domain.PendingItem{
			ExternalID: r.ExternalID,
			Provider:   domain.Provider,
			HotelID:    r.HotelID,
			HotelName:  names.Resolve(r.HotelID),
			GuestName:  r.GuestName,
			Rating:     r.Rating,
			Message:    preview(r.Message),
			CreatedAt:  r.CreatedAt,
		})
	}

	history := append([]domain.LedgerEntry(nil), scoped...)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].ProcessedAt.After(history[j].ProcessedAt)
	})
	if len(history) > historyLimit {
		history = history[:historyLimit]
	}
	for _, e := range history {
		view.Processed = append(view.Processed, domain.HistoryItem{
			ExternalID:  e.ExternalID,
			Provider:    orDefault(e.Provider, domain.Provider),
			HotelID:     e.HotelID,
			HotelName:   e.HotelName,
			Status:      e.Status,
			ProcessedAt: e.ProcessedAt,
			Error:       e.ErrorText(),
			ImportID:    e.ImportRef(),
		})
	}

	processed, failed := map[string]bool{}, map[string]bool{}
	for _, e := range scoped {
		switch e.Status {
		case domain.StatusProcessed:
			processed[e.ExternalID] = true
		case domain.StatusFailed:
			failed[e.ExternalID] = true
		}
	}
	view.Totals = domain.Totals{Pending: len(view.Pending), Processed: len(processed), Failed: len(failed)}
	view.Metadata.UpdatedAt = s.clock()
	if len(view.Processed) > 0 {
		last := view.Processed[0].ProcessedAt
		view.Metadata.LastSyncAt = &last
	}
	return view, nil
}

// processedIDs is the set of external ids that must never be selected again.
func processedIDs(entries []domain.LedgerEntry) map[string]bool {
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Status == domain.StatusProcessed {
			out[e.ExternalID] = true
		}
	}
	return out
}

func preview(msg string) string {
	r := []rune(msg)
	if len(r) <= previewRunes {
		return msg
	}
	return string(r[:previewRunes-1]) + "…"
}
