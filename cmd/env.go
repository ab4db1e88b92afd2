package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/e-roy/find-a-flight-school-sub001/internal/claims"
	"github.com/e-roy/find-a-flight-school-sub001/internal/crawl"
	"github.com/e-roy/find-a-flight-school-sub001/internal/db"
	"github.com/e-roy/find-a-flight-school-sub001/internal/dedupe"
	"github.com/e-roy/find-a-flight-school-sub001/internal/facts"
	"github.com/e-roy/find-a-flight-school-sub001/internal/refresh"
	"github.com/e-roy/find-a-flight-school-sub001/internal/resolve"
	"github.com/e-roy/find-a-flight-school-sub001/internal/school"
	"github.com/e-roy/find-a-flight-school-sub001/internal/seed"
	"github.com/e-roy/find-a-flight-school-sub001/pkg/extractor"
	"github.com/e-roy/find-a-flight-school-sub001/pkg/mailer"
	"github.com/e-roy/find-a-flight-school-sub001/pkg/places"
	"github.com/e-roy/find-a-flight-school-sub001/pkg/probe"
)

// env bundles the database pool and every store built over it. Commands that
// touch persistence call initEnv once and close it on exit.
type env struct {
	Pool *pgxpool.Pool

	Seeds     *seed.PostgresStore
	Schools   *school.PostgresStore
	Queue     *crawl.PostgresQueueStore
	Snapshots *crawl.PostgresSnapshotStore
	Facts     *facts.PostgresStore
	Claims    *claims.PostgresStore
	Dedupe    *dedupe.PostgresStore
	Refresh   *refresh.PostgresStore
}

func initEnv(ctx context.Context) (*env, error) {
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	if err != nil {
		return nil, err
	}

	return &env{
		Pool:      pool,
		Seeds:     seed.NewPostgresStore(pool),
		Schools:   school.NewPostgresStore(pool),
		Queue:     crawl.NewPostgresQueueStore(pool),
		Snapshots: crawl.NewPostgresSnapshotStore(pool),
		Facts:     facts.NewPostgresStore(pool),
		Claims:    claims.NewPostgresStore(pool),
		Dedupe:    dedupe.NewPostgresStore(pool),
		Refresh:   refresh.NewPostgresStore(pool),
	}, nil
}

func (e *env) Close() {
	e.Pool.Close()
}

// newSeedBatch wires the domain resolver over the HTTP prober.
func (e *env) newSeedBatch() *seed.Batch {
	prober := probe.New(
		probe.WithTimeout(time.Duration(cfg.Resolver.ProbeTimeoutSecs)*time.Second),
		probe.WithRateLimit(cfg.Resolver.ProbesPerSecond),
	)
	resolver := resolve.NewResolver(resolve.NewHTTPProber(prober), cfg.Resolver.PlausibilityFloor)
	return seed.NewBatch(e.Seeds, resolver, e.Schools)
}

// newCrawlWorker wires the extraction client into the queue worker.
func (e *env) newCrawlWorker() *crawl.Worker {
	client := extractor.NewClient(cfg.Extractor.Key,
		extractor.WithBaseURL(cfg.Extractor.BaseURL),
		extractor.WithRateLimit(cfg.Extractor.CallsPerSecond),
	)
	ingest := facts.NewIngest(facts.NewNormalizer(), e.Facts)
	return crawl.NewWorker(e.Queue, e.Snapshots, crawl.NewAPIExtractor(client), ingest)
}

func (e *env) newDedupeEngine() *dedupe.Engine {
	return dedupe.NewEngine(e.Dedupe, e.Facts, cfg.Dedupe.SimilarityThreshold, cfg.Dedupe.CandidateNameSim)
}

func (e *env) newRefreshScheduler() *refresh.Scheduler {
	return refresh.NewScheduler(e.Schools, e.Refresh, e.Queue, cfg.Refresh.StalenessDays)
}

func (e *env) newClaimService() *claims.Service {
	relay := mailer.NewClient(cfg.Mailer.Key, cfg.Mailer.From, mailer.WithBaseURL(cfg.Mailer.BaseURL))
	return claims.NewService(e.Claims, e.Schools, e.Facts, relay)
}

func (e *env) newPlacesClient() places.Client {
	return places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
}
