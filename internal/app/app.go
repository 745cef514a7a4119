// Package app builds the service graph shared by the API server and the seal
// worker from one Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"

	"civictrust/internal/geography"
	"civictrust/internal/governance/adapters"
	govkafka "civictrust/internal/governance/adapters/kafka"
	"civictrust/internal/governance/jobs"
	govmetrics "civictrust/internal/governance/metrics"
	govservice "civictrust/internal/governance/service"
	poolstore "civictrust/internal/governance/store/pool"
	identitymetrics "civictrust/internal/identity/metrics"
	identityservice "civictrust/internal/identity/service"
	citizenstore "civictrust/internal/identity/store/citizen"
	jwttoken "civictrust/internal/jwt_token"
	"civictrust/internal/ledger/merkle"
	"civictrust/internal/platform/config"
	"civictrust/internal/platform/kafka"
	"civictrust/internal/platform/postgres"
	platformredis "civictrust/internal/platform/redis"
	privadapters "civictrust/internal/privilege/adapters"
	privmetrics "civictrust/internal/privilege/metrics"
	privservice "civictrust/internal/privilege/service"
	"civictrust/internal/standing"
	"civictrust/migrations"
	"civictrust/pkg/platform/audit"
	"civictrust/pkg/platform/audit/publisher"
	auditpostgres "civictrust/pkg/platform/audit/store/postgres"
	"civictrust/pkg/platform/audit/store/slogstore"
	"civictrust/pkg/platform/circuit"
	"civictrust/pkg/platform/tx"
)

// App holds the wired services and the connections they share.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	Postgres *postgres.DB
	Redis    *platformredis.Client
	Kafka    *kgo.Client

	Auditor     *publisher.Publisher
	Formatter   *audit.Formatter
	Standing    *standing.Registry
	Calculator  *standing.Calculator
	Identity    *identityservice.Service
	Privileges  *privservice.Service
	Pools       *govservice.Service
	Tokens      *jwttoken.JWTService
	Revocations *jwttoken.RedisRevocations

	queue   *asynq.Client
	closers []func() error
}

// New connects the configured backends and wires every service. Backends
// left unconfigured fall back to in-process implementations.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  prometheus.NewRegistry(),
		Formatter: audit.NewFormatter("en"),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.connect(ctx); err != nil {
		return nil, err
	}

	a.Auditor = publisher.NewPublisher(a.auditStore(),
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(logger),
		publisher.WithMetrics(publisher.NewMetrics(a.Registry)),
	)
	a.closers = append(a.closers, a.Auditor.Close)

	var citizens identityservice.Store = citizenstore.NewInMemory()
	var runner tx.Runner = tx.NewShardedRunner()
	if a.Postgres != nil {
		citizens = citizenstore.NewPostgres(a.Postgres.SQL)
		runner = tx.NewSQLRunner(a.Postgres.SQL)
	}

	a.Standing = standing.NewRegistry()
	a.Calculator = standing.NewCalculator(a.Standing)
	a.Identity, err = identityservice.New(citizens, a.Calculator,
		identityservice.WithTxRunner(runner),
		identityservice.WithAuditor(a.Auditor),
		identityservice.WithFormatter(a.Formatter),
		identityservice.WithLogger(logger),
		identityservice.WithMetrics(identitymetrics.New(a.Registry)),
	)
	if err != nil {
		return nil, fmt.Errorf("identity service: %w", err)
	}

	a.Privileges = privservice.New(privadapters.NewIdentityAdapter(citizens),
		privservice.WithAuditor(a.Auditor),
		privservice.WithFormatter(a.Formatter),
		privservice.WithLogger(logger),
		privservice.WithMetrics(privmetrics.New(a.Registry)),
	)

	a.Pools, err = a.poolService(citizens)
	if err != nil {
		return nil, err
	}

	a.Tokens = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	if a.Redis != nil {
		a.Revocations = jwttoken.NewRedisRevocations(a.Redis)
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		a.Postgres = db
		a.closers = append(a.closers, db.Close)
		if cfg.Postgres.Migrate {
			if err := migrations.Apply(ctx, db.SQL); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
		}
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		a.Redis = rc
		a.closers = append(a.closers, rc.Close)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewClient(kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
			Linger:   cfg.Kafka.Linger,
		})
		if err != nil {
			return err
		}
		a.Kafka = client
		a.closers = append(a.closers, func() error { client.Close(); return nil })
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.SealTopic, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) auditStore() audit.Store {
	if a.Postgres != nil {
		return auditpostgres.New(a.Postgres.SQL)
	}
	return slogstore.New(a.Logger)
}

func (a *App) poolService(citizens adapters.CitizenReader) (*govservice.Service, error) {
	cfg := a.Config

	var pools govservice.Store
	switch cfg.Governance.PoolBackend {
	case config.BackendPostgres:
		if a.Postgres == nil {
			return nil, errors.New("postgres pool backend selected without a database")
		}
		pools = poolstore.NewPostgres(a.Postgres.Pool)
	case config.BackendRedis:
		if a.Redis == nil {
			return nil, errors.New("redis pool backend selected without redis")
		}
		pools = poolstore.NewRedis(a.Redis.Client)
	default:
		pools = poolstore.NewInMemory()
	}

	var regions geography.Resolver = geography.NewStaticResolver(cfg.Governance.CountryCodes)
	if a.Redis != nil {
		regions = geography.NewCachedResolver(regions, a.Redis,
			geography.WithTTL(cfg.Redis.RegionTTL),
			geography.WithBreaker(circuit.New("region-cache")),
			geography.WithCacheLogger(a.Logger),
		)
	}

	opts := []govservice.Option{
		govservice.WithSealer(merkle.NewSealer(merkle.WithLeafCeiling(cfg.Governance.LeafCeiling))),
		govservice.WithCitizenDirectory(adapters.NewIdentityDirectory(citizens)),
		govservice.WithRegionResolver(regions),
		govservice.WithMaxSealAttempts(cfg.Governance.MaxSealAttempts),
		govservice.WithAuditor(a.Auditor),
		govservice.WithFormatter(a.Formatter),
		govservice.WithLogger(a.Logger),
		govservice.WithMetrics(govmetrics.New(a.Registry)),
	}
	if cfg.Governance.QuorumWeight > 0 && a.Redis != nil {
		a.queue = asynq.NewClient(a.Redis.AsynqOpt())
		a.closers = append(a.closers, a.queue.Close)
		opts = append(opts, govservice.WithQuorum(cfg.Governance.QuorumWeight, jobs.NewSealScheduler(a.queue, a.Logger)))
	}
	if a.Kafka != nil {
		opts = append(opts, govservice.WithSealAnnouncer(govkafka.NewAnnouncer(a.Kafka, cfg.Kafka.SealTopic)))
	}

	svc, err := govservice.New(pools, opts...)
	if err != nil {
		return nil, fmt.Errorf("pool service: %w", err)
	}
	return svc, nil
}

// HealthChecks returns one probe per connected backend.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if a.Postgres != nil {
		checks["postgres"] = a.Postgres.Health
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Health
	}
	if a.Kafka != nil {
		checks["kafka"] = a.Kafka.Ping
	}
	return checks
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
