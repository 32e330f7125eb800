// Package wiring builds the adapters both binaries share from Config.
package wiring

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"feedback_ingest/internal/adapters/analyzer"
	"feedback_ingest/internal/adapters/events"
	redisad "feedback_ingest/internal/adapters/redis"
	"feedback_ingest/internal/adapters/remote"
	"feedback_ingest/internal/app"
	"feedback_ingest/internal/domain"
	"feedback_ingest/internal/shared"
	mongostore "feedback_ingest/internal/storage/mongo"
	mysqlstore "feedback_ingest/internal/storage/mysql"
)

type Deps struct {
	Store    domain.Store
	Remote   *remote.Client
	Classify *app.Orchestrator
	Cache    domain.Cache // nil without Redis
	Locker   domain.Locker
	Events   domain.EventPublisher

	closers []func() error
}

// Close releases connections in reverse order of creation.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func Build(ctx context.Context, cfg shared.Config) (*Deps, error) {
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	switch cfg.StoreDriver {
	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, func() error { return client.Disconnect(context.Background()) })
		store, err := mongostore.New(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			return nil, err
		}
		d.Store = store
		log.Info().Str("db", cfg.MongoDB).Msg("mongo store ready")
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("sql.Open: %w", err)
		}
		d.closers = append(d.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		d.Store = mysqlstore.New(db)
		log.Info().Msg("mysql store ready")
	}

	rc, err := remote.New(cfg.RemoteURL, cfg.RemoteRPS)
	if err != nil {
		return nil, err
	}
	d.Remote = rc

	ac, err := analyzer.New(cfg.AnalyzerOrigin, cfg.AnalyzerRPS)
	if err != nil {
		return nil, err
	}
	d.Classify = app.NewOrchestrator(ac, cfg.ClassifyWorkers)

	if cfg.RedisAddr != "" {
		rdb := redisad.NewClient(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		d.closers = append(d.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		d.Cache = redisad.NewCache(rdb)
		d.Locker = redisad.NewLocker(rdb)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache and lock ready")
	} else {
		d.Locker = app.NewLocalLocker()
		log.Warn().Msg("REDIS_ADDR empty: dashboard cache off, run lock is process-local")
	}

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		pub := events.NewPublisher(brokers, cfg.KafkaTopic)
		d.closers = append(d.closers, pub.Close)
		d.Events = pub
		log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("import events enabled")
	} else {
		d.Events = app.NoopPublisher{}
	}

	ok = true
	return d, nil
}

// Ingestion builds the run service.
func (d *Deps) Ingestion(cfg shared.Config) *app.IngestionService {
	return app.NewIngestionService(app.IngestionDeps{
		Source:      d.Remote,
		Store:       d.Store,
		Classifier:  d.Classify,
		Cache:       d.Cache,
		Locker:      d.Locker,
		Events:      d.Events,
		DeferFailed: cfg.DeferFailed,
		LockTTL:     cfg.IngestLockTTL,
	})
}

// Dashboard builds the read-side service.
func (d *Deps) Dashboard(cfg shared.Config) *app.DashboardService {
	return app.NewDashboardService(d.Remote, d.Store, d.Store, d.Cache, cfg.DashboardTTL, nil)
}
