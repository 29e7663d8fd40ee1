package di

import (
	"context"
	"fmt"
	"time"

	"PlanSentry/internal/domain/repository"
	"PlanSentry/internal/handler/api"
	mid "PlanSentry/internal/middleware"
	internalrepo "PlanSentry/internal/repository"
	"PlanSentry/internal/service/barsource"
	"PlanSentry/internal/service/barstream"
	"PlanSentry/internal/service/learning"
	"PlanSentry/internal/service/ratelimit"
	"PlanSentry/internal/services/barcache"
	"PlanSentry/internal/services/profile"
	"PlanSentry/internal/services/session"
	"PlanSentry/internal/services/structure"
	"PlanSentry/internal/services/threshold"
	"PlanSentry/internal/usecase"
	pkgcache "PlanSentry/pkg/cache"
	pkgch "PlanSentry/pkg/clickhouse"
	"PlanSentry/pkg/config"
	xhttp "PlanSentry/pkg/http"
	pkgkafka "PlanSentry/pkg/kafka"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/metrics"
	"PlanSentry/pkg/server"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideProfileStore loads asset profiles and the session-bias matrix.
func ProvideProfileStore(cfg *config.Config) (*profile.Store, error) {
	s, err := profile.Load(cfg.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}
	return s, nil
}

func ProvideSessionClassifier(profiles *profile.Store, cfg *config.Config) *session.Classifier {
	return session.New(profiles, session.WithBiasBounds(cfg.Threshold.BiasFloor, cfg.Threshold.BiasCeiling))
}

// ProvideCalibrator reads bias through the classifier so multipliers are
// clamped and inapplicable sessions get the strictest bias.
func ProvideCalibrator(profiles *profile.Store, sessions *session.Classifier, cfg *config.Config) *threshold.Calibrator {
	return threshold.New(profiles, sessions,
		threshold.WithBounds(cfg.Threshold.Floor, cfg.Threshold.Ceiling),
		threshold.WithDefaultBase(cfg.Threshold.DefaultBase),
	)
}

func ProvideBarCache(cfg *config.Config) *barcache.Cache {
	return barcache.New(
		barcache.WithCapacity(cfg.Cache.BarCapacity),
		barcache.WithMinWindow(cfg.Cache.MinWindow),
	)
}

func ProvideAnalyzer(cfg *config.Config) *structure.Analyzer {
	p := structure.DefaultParams()
	p.MinBars = cfg.Cache.MinWindow
	return structure.New(structure.WithParams(p), structure.WithStaleAfter(cfg.Refresh.StaleAfter))
}

// ProvideClickHouseClient creates a ClickHouse client and its tables. It
// returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}
	stmts = append(stmts, internalrepo.OutcomeSchema(outcomeTable(cfg))...)
	if cfg.BarSource.Type == "clickhouse" {
		stmts = append(stmts, internalrepo.BarSchema(cfg.BarSource.Table)...)
	}
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func outcomeTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + ".signal_outcomes"
}

// ProvideBarSource selects the broker collaborator and wraps it with the
// rate limiter and circuit breaker.
func ProvideBarSource(cfg *config.Config, ch *pkgch.Client, log *applogger.Logger) (repository.BarSource, error) {
	var inner repository.BarSource
	switch cfg.BarSource.Type {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("bar source clickhouse: clickhouse is disabled")
		}
		inner = internalrepo.NewCHBarSource(ch, cfg.BarSource.Table, log)
	default:
		if cfg.BarSource.URL == "" {
			return nil, fmt.Errorf("bar source http: url is required")
		}
		inner = barsource.NewHTTPSource(cfg.BarSource.URL, cfg.BarSource.Interval, log,
			xhttp.WithTimeout(cfg.BarSource.Timeout), xhttp.WithUserAgent(userAgent(cfg)))
	}
	return internalrepo.NewGuardedSource(inner, internalrepo.GuardSettings{
		Name:                "bar_source_" + cfg.BarSource.Type,
		RPS:                 cfg.BarSource.RateLimit.RPS,
		Burst:               cfg.BarSource.RateLimit.Burst,
		ConsecutiveFailures: cfg.BarSource.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.BarSource.Breaker.OpenTimeout,
	}, log), nil
}

// ProvideCacheStore returns Redis when enabled, otherwise an in-process
// cache that only survives until the process exits.
func ProvideCacheStore(cfg *config.Config) (pkgcache.Store, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(1024)), nil
	}
	rc, err := pkgcache.NewRedisCache(context.Background(),
		pkgcache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		pkgcache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

func ProvideSnapshotStore(store pkgcache.Store, cfg *config.Config) repository.SnapshotStore {
	return internalrepo.NewCacheSnapshotStore(store, cfg.Persistence.MaxAge, time.Now)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatchTimeout(10*time.Millisecond),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEmitter publishes executions to Kafka, or logs them when Kafka is
// disabled.
func ProvideEmitter(producer *pkgkafka.Producer, cfg *config.Config, log *applogger.Logger) repository.ExecutionEmitter {
	if producer == nil {
		return internalrepo.NewLogEmitter(log)
	}
	return internalrepo.NewKafkaEmitter(producer, cfg.Kafka.ExecutionsTopic)
}

// ProvideKafkaConsumer creates the plan command consumer, or nil when Kafka
// is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.CommandsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithHook(pkgkafka.TraceHook)
	return consumer, nil
}

// ProvideOutcomeStore keeps outcomes in ClickHouse when available.
func ProvideOutcomeStore(ch *pkgch.Client, cfg *config.Config) repository.OutcomeStore {
	if ch == nil {
		return internalrepo.NewMemoryOutcomeStore()
	}
	return internalrepo.NewClickHouseOutcomeStore(ch, outcomeTable(cfg))
}

// ProvideAdvisor returns nil when no learning service is configured.
func ProvideAdvisor(cfg *config.Config) repository.LearningAdvisor {
	if cfg.Learning.URL == "" {
		return nil
	}
	return learning.NewHTTPAdvisor(cfg.Learning.URL, cfg.Learning.Timeout, xhttp.WithUserAgent(userAgent(cfg)))
}

func userAgent(cfg *config.Config) string {
	return "plansentry/" + cfg.Environment
}

func ProvidePlanRegistry(cfg *config.Config) *usecase.PlanRegistry {
	return usecase.NewPlanRegistry(cfg.Engine.CommandQueueSize)
}

func ProvidePlanService(registry *usecase.PlanRegistry) *usecase.PlanService {
	return usecase.NewPlanService(registry, time.Now)
}

func ProvideRefreshScheduler(
	source repository.BarSource,
	cache *barcache.Cache,
	profiles *profile.Store,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.RefreshScheduler {
	startDay, startHour, endDay, endHour := cfg.WeekendWindow()
	return usecase.NewRefreshScheduler(source, cache, profiles, m, log, usecase.RefreshConfig{
		Symbols:        cfg.Refresh.Symbols,
		ActiveInterval: cfg.Refresh.ActiveInterval,
		IdleInterval:   cfg.Refresh.IdleInterval,
		StaleAfter:     cfg.Refresh.StaleAfter,
		FetchCount:     cfg.Refresh.FetchCount,
		FetchTimeout:   cfg.Refresh.FetchTimeout,
		Retries:        cfg.Refresh.Retries,
		BackoffMin:     cfg.Refresh.BackoffMin,
		BackoffMax:     cfg.Refresh.BackoffMax,
		Workers:        cfg.Refresh.Workers,
		Weekend: usecase.WeekendWindow{
			Enabled:   cfg.Refresh.Weekend.Enabled,
			StartDay:  startDay,
			StartHour: startHour,
			EndDay:    endDay,
			EndHour:   endHour,
		},
	}, time.Now)
}

func ProvideAnalysisService(cache *barcache.Cache, analyzer *structure.Analyzer, profiles *profile.Store, cfg *config.Config) *usecase.AnalysisService {
	return usecase.NewAnalysisService(cache, analyzer, profiles, cfg.Cache.SnapshotTTL, time.Now)
}

func ProvideThresholdResolver(calib *threshold.Calibrator, advisor repository.LearningAdvisor, log *applogger.Logger, cfg *config.Config) *usecase.ThresholdResolver {
	var opts []usecase.ResolverOption
	if advisor != nil {
		opts = append(opts, usecase.WithAdvisor(advisor, cfg.Engine.AdvisoryShiftCap, cfg.Learning.Timeout))
	}
	return usecase.NewThresholdResolver(calib, cfg.Engine.FallbackThreshold, log, opts...)
}

func ProvideConditionEngine(
	registry *usecase.PlanRegistry,
	refresher *usecase.RefreshScheduler,
	snapshots *usecase.AnalysisService,
	sessions *session.Classifier,
	profiles *profile.Store,
	thresholds *usecase.ThresholdResolver,
	emitter repository.ExecutionEmitter,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.ConditionEngine {
	return usecase.NewConditionEngine(registry, refresher, snapshots, sessions, profiles, thresholds, emitter, m, log,
		usecase.EngineConfig{
			CycleInterval:    cfg.Engine.CycleInterval,
			EventMargin:      cfg.Engine.EventMargin,
			StaleAfter:       cfg.Refresh.StaleAfter,
			AlwaysOpenStaleX: cfg.Engine.AlwaysOpenStaleX,
		}, time.Now)
}

func ProvideSnapshotPersister(store repository.SnapshotStore, cache *barcache.Cache, m repository.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.SnapshotPersister {
	return usecase.NewSnapshotPersister(store, cache, cfg.Persistence.SaveInterval, m, log, time.Now)
}

func ProvideOutcomeRecorder(store repository.OutcomeStore, advisor repository.LearningAdvisor, m repository.Metrics, log *applogger.Logger) (*usecase.OutcomeRecorder, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("outcome store: %w", err)
	}
	return usecase.NewOutcomeRecorder(store, advisor, m, log, time.Now), nil
}

// ProvideBarCollector builds the live kline collector, or nil when the
// stream is disabled.
func ProvideBarCollector(cfg *config.Config, cache *barcache.Cache, m repository.Metrics, log *applogger.Logger) *usecase.BarCollector {
	if !cfg.Stream.Enabled {
		return nil
	}
	symbols := cfg.Stream.Symbols
	if len(symbols) == 0 {
		symbols = cfg.Refresh.Symbols
	}
	stream := barstream.New(barstream.Config{
		URL:            cfg.Stream.URL,
		Symbols:        symbols,
		Interval:       cfg.Stream.Interval,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		PingInterval:   cfg.Stream.PingInterval,
	}, log)
	pipe := mid.NewBarPipeline(mid.CacheSink{Cache: cache}, m, log,
		mid.WithMaxRPS(float64(cfg.Stream.MaxRPS), cfg.Stream.MaxRPS*2),
	)
	return usecase.NewBarCollector(stream, pipe, m, log)
}

func ProvidePlanCommandHandler(plans *usecase.PlanService, m repository.Metrics, log *applogger.Logger, cfg *config.Config) *usecase.PlanCommandHandler {
	return usecase.NewPlanCommandHandler(cfg.Kafka.CommandsTopic, plans, m, log)
}

func ProvidePlanHandler(
	plans *usecase.PlanService,
	refresher *usecase.RefreshScheduler,
	snapshots *usecase.AnalysisService,
	sessions *session.Classifier,
	thresholds *usecase.ThresholdResolver,
	outcomes *usecase.OutcomeRecorder,
	profiles *profile.Store,
	bars *barcache.Cache,
	log *applogger.Logger,
	cfg *config.Config,
) *api.PlanHandler {
	opts := []api.HandlerOption{api.WithBars(usecase.NewBarsUseCase(bars))}
	if cfg.Server.RateLimit.RPS > 0 {
		opts = append(opts, api.WithRateLimiter(ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)))
	}
	return api.NewPlanHandler(plans, refresher, snapshots, sessions, thresholds, outcomes, profiles, log, opts...)
}

func ProvideHTTPServer(handler *api.PlanHandler, source repository.BarSource, log *applogger.Logger, cfg *config.Config) *xhttp.Server {
	return xhttp.NewServer(handler, log,
		xhttp.WithReadiness("bar_source", source.Health),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
	)
}

// ProvideApp creates the application server and attaches the optional
// collaborators.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.ConditionEngine,
	scheduler *usecase.RefreshScheduler,
	persister *usecase.SnapshotPersister,
	httpServer *xhttp.Server,
	collector *usecase.BarCollector,
	consumer *pkgkafka.Consumer,
	commands *usecase.PlanCommandHandler,
	emitter repository.ExecutionEmitter,
	outcomes repository.OutcomeStore,
	cache pkgcache.Store,
	ch *pkgch.Client,
) *server.App {
	app := server.New(cfg, log, engine, scheduler, persister, httpServer)
	if collector != nil {
		app.SetCollector(collector)
	}
	if consumer != nil {
		app.SetConsumer(consumer, commands)
	}
	if ch != nil {
		app.OnShutdown("clickhouse", ch)
	}
	app.OnShutdown("cache", cache)
	app.OnShutdown("outcome_store", outcomes)
	app.OnShutdown("emitter", emitter)
	return app
}
