package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"creditflow/internal/advisor"
	applicantfacts "creditflow/internal/applicant/facts"
	applicanthandler "creditflow/internal/applicant/handler"
	applicantseed "creditflow/internal/applicant/seed"
	applicantstore "creditflow/internal/applicant/store"
	evalfacts "creditflow/internal/evaluation/facts"
	evalhandler "creditflow/internal/evaluation/handler"
	evalmetrics "creditflow/internal/evaluation/metrics"
	"creditflow/internal/evaluation/pipeline"
	evalports "creditflow/internal/evaluation/ports"
	evalservice "creditflow/internal/evaluation/service"
	evalstore "creditflow/internal/evaluation/store"
	jwttoken "creditflow/internal/jwt_token"
	"creditflow/internal/platform/config"
	"creditflow/internal/platform/database"
	httpmetrics "creditflow/internal/platform/metrics"
	platformredis "creditflow/internal/platform/redis"
	ruleshandler "creditflow/internal/rules/handler"
	rulesports "creditflow/internal/rules/ports"
	rulesseed "creditflow/internal/rules/seed"
	rulesservice "creditflow/internal/rules/service"
	rulesstore "creditflow/internal/rules/store"
	id "creditflow/pkg/domain"
	"creditflow/pkg/platform/audit"
	auditkafka "creditflow/pkg/platform/audit/kafka"
	"creditflow/pkg/platform/audit/publisher"
	auditmem "creditflow/pkg/platform/audit/store/memory"
	auditpg "creditflow/pkg/platform/audit/store/postgres"
	"creditflow/pkg/platform/audit/worker"
	"creditflow/pkg/platform/circuit"
	"creditflow/pkg/platform/httputil"
	authmw "creditflow/pkg/platform/middleware/auth"
	"creditflow/pkg/platform/middleware/metadata"
	"creditflow/pkg/platform/middleware/request"
	"creditflow/pkg/platform/middleware/requesttime"
)

const outboxRelayInterval = 2 * time.Second

type evaluationStore interface {
	evalservice.RecordStore
	CountByApplicant(ctx context.Context, applicantID id.ApplicantID) (int, error)
}

type customerStore interface {
	applicantfacts.Store
	applicanthandler.Store
	applicantseed.Store
}

// app holds the wired router and the resources main must release.
type app struct {
	router  http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) onClose(fn func()) { a.closers = append(a.closers, fn) }

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.close()
		return nil, err
	}

	var db *sql.DB
	if cfg.Database.URL != "" {
		var err error
		if db, err = database.Open(ctx, cfg.Database); err != nil {
			return fail(err)
		}
		a.onClose(func() { _ = db.Close() })
		if cfg.Database.MigrateOnStart {
			if err := database.Migrate(db, log); err != nil {
				return fail(err)
			}
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fail(err)
	}
	if rdb != nil {
		a.onClose(func() { _ = rdb.Close() })
	}

	emitter, err := buildAudit(ctx, a, cfg, db, log)
	if err != nil {
		return fail(err)
	}

	var (
		ruleStore rulesports.Store
		records   evaluationStore
		customers customerStore
	)
	if db != nil {
		ruleStore = rulesstore.NewPostgres(db)
		records = evalstore.NewPostgres(db)
		customers = applicantstore.NewPostgres(db)
	} else {
		ruleStore = rulesstore.NewInMemoryStore()
		records = evalstore.NewInMemoryStore()
		customers = applicantstore.NewInMemoryStore()
	}

	rules, err := rulesservice.New(ruleStore,
		rulesservice.WithLogger(log),
		rulesservice.WithAuditPublisher(emitter),
	)
	if err != nil {
		return fail(err)
	}
	if err := seedRules(ctx, cfg, ruleStore, log); err != nil {
		return fail(err)
	}
	if cfg.SeedCustomers {
		if err := seedCustomers(ctx, cfg, customers, log); err != nil {
			return fail(err)
		}
	}

	m := evalmetrics.New()
	gatherer, err := evalfacts.NewGatherer(factProviders(cfg, customers, rdb, m, log),
		evalfacts.WithTimeout(cfg.Pipeline.FactTimeout),
		evalfacts.WithLogger(log),
		evalfacts.WithMetrics(m),
	)
	if err != nil {
		return fail(err)
	}

	consultant, err := buildAdvisor(cfg.Advisor, log)
	if err != nil {
		return fail(err)
	}
	pipe, err := pipeline.New(rules, consultant,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
		pipeline.WithThresholds(cfg.Pipeline.MinimumAge, cfg.Pipeline.MinimumScore),
		pipeline.WithRuleLoadTimeout(cfg.Pipeline.RuleLoadTimeout),
		pipeline.WithAdvisorTimeout(cfg.Advisor.Timeout),
		pipeline.WithMinAdvisorConfidence(cfg.Pipeline.MinAdvisorConfidence),
	)
	if err != nil {
		return fail(err)
	}

	evaluations, err := evalservice.New(records, gatherer, pipe,
		evalservice.WithLogger(log),
		evalservice.WithMetrics(m),
		evalservice.WithAuditPublisher(emitter),
		evalservice.WithRuleProposer(rules),
	)
	if err != nil {
		return fail(err)
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	reviewerOnly := authmw.RequireReviewer(jwttoken.NewJWTServiceAdapter(jwtService), log)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(httpmetrics.New().Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", healthHandler(db, rdb))
	evalhandler.New(evaluations, log).Register(r)
	ruleshandler.New(rules, log).Register(r, reviewerOnly)
	applicanthandler.New(customers, records, log).Register(r)

	a.router = r
	return a, nil
}

// buildAudit returns the audit publisher. With Postgres, events go through
// the outbox and a relay forwards them to Kafka; without it, Kafka is a
// direct sink of the in-memory publisher.
func buildAudit(ctx context.Context, a *app, cfg config.Config, db *sql.DB, log *slog.Logger) (*publisher.Publisher, error) {
	var producer *auditkafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		var err error
		if producer, err = auditkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic); err != nil {
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		a.onClose(func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			producer.Close(closeCtx)
		})
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
	}

	opts := []publisher.Option{publisher.WithLogger(log), publisher.WithAsyncBuffer(256)}
	var store audit.Store
	if db != nil {
		pg := auditpg.New(db)
		store = pg
		if producer != nil {
			relayCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			relay := worker.NewRelay(pg, producer, outboxRelayInterval, log)
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = relay.Run(relayCtx)
			}()
			a.onClose(func() {
				cancel()
				<-done
			})
		}
	} else {
		store = auditmem.NewInMemoryStore()
		if producer != nil {
			opts = append(opts, publisher.WithSink(producer))
		}
	}

	pub := publisher.NewPublisher(store, opts...)
	a.onClose(pub.Close)
	return pub, nil
}

func buildAdvisor(cfg config.AdvisorConfig, log *slog.Logger) (evalports.Advisor, error) {
	if !cfg.Enabled {
		log.Warn("advisor disabled, flagged applications go to manual review")
		return advisor.Disabled{}, nil
	}
	heuristic := advisor.NewHeuristic()
	if cfg.Endpoint == "" {
		log.Info("no advisor endpoint configured, using heuristic advisor")
		return heuristic, nil
	}
	client, err := advisor.NewClient(advisor.Config{
		Endpoint:    cfg.Endpoint,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		Temperature: cfg.Temperature,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create advisor client: %w", err)
	}
	return advisor.NewGuarded(client,
		advisor.WithFallback(heuristic),
		advisor.WithBreaker(circuit.New("advisor", circuit.WithFailureThreshold(cfg.FailureThreshold))),
		advisor.WithGuardLogger(log),
	)
}

func factProviders(cfg config.Config, customers applicantfacts.Store, rdb *platformredis.Client, m *evalmetrics.Metrics, log *slog.Logger) []evalports.FactProvider {
	providers := []evalports.FactProvider{
		applicantfacts.NewProfileProvider(customers),
		applicantfacts.NewBureauProvider(customers),
		applicantfacts.NewBankingProvider(customers),
	}
	if rdb == nil {
		return providers
	}
	cache := applicantfacts.NewRedisCache(rdb.Client)
	for i, p := range providers {
		providers[i] = applicantfacts.NewCachedProvider(p, cache, cfg.Redis.FactTTL,
			applicantfacts.WithCacheLogger(log),
			applicantfacts.WithCacheMetrics(m),
		)
	}
	return providers
}

func seedRules(ctx context.Context, cfg config.Config, store rulesports.Store, log *slog.Logger) error {
	data, err := rulesseed.ReadFile(cfg.SeedRulesPath)
	if err != nil {
		return err
	}
	defs, err := rulesseed.Parse(data)
	if err != nil {
		return err
	}
	_, err = rulesseed.Apply(ctx, store, defs, time.Now, log)
	return err
}

func seedCustomers(ctx context.Context, cfg config.Config, store applicantseed.Store, log *slog.Logger) error {
	data, err := applicantseed.ReadFile(cfg.SeedCustomersPath)
	if err != nil {
		return err
	}
	profiles, err := applicantseed.Parse(data)
	if err != nil {
		return err
	}
	_, err = applicantseed.Apply(ctx, store, profiles, time.Now, log)
	return err
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

func healthHandler(db *sql.DB, rdb *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Database: "in-memory", Redis: "disabled"}
		if db != nil {
			resp.Database = "up"
			if err := db.PingContext(ctx); err != nil {
				resp.Database, resp.Status = "down", "degraded"
			}
		}
		if rdb != nil {
			resp.Redis = "up"
			if err := rdb.Health(ctx); err != nil {
				resp.Redis, resp.Status = "down", "degraded"
			}
		}
		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
