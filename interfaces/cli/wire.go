package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/orbit/application"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/domain/config"
	"github.com/felixgeelhaar/orbit/domain/event"
	"github.com/felixgeelhaar/orbit/domain/lock"
	"github.com/felixgeelhaar/orbit/domain/pack"
	"github.com/felixgeelhaar/orbit/domain/session"
	"github.com/felixgeelhaar/orbit/domain/toolcall"
	"github.com/felixgeelhaar/orbit/infrastructure/bridge"
	"github.com/felixgeelhaar/orbit/infrastructure/completion"
	"github.com/felixgeelhaar/orbit/infrastructure/conversation"
	"github.com/felixgeelhaar/orbit/infrastructure/evaluator"
	infraevent "github.com/felixgeelhaar/orbit/infrastructure/event"
	"github.com/felixgeelhaar/orbit/infrastructure/executor"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
	"github.com/felixgeelhaar/orbit/infrastructure/planner"
	"github.com/felixgeelhaar/orbit/infrastructure/resilience"
	"github.com/felixgeelhaar/orbit/infrastructure/safety"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/badger"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/memory"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/mongodb"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/redis"
	"github.com/felixgeelhaar/orbit/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/orbit/infrastructure/telemetry"
	"github.com/felixgeelhaar/orbit/pack/fileops"
	"github.com/felixgeelhaar/orbit/pack/shell"
)

// mongoCollection holds checkpoints in the configured database.
const mongoCollection = "checkpoints"

// runtime is a fully wired engine plus everything that must be closed
// when the command finishes.
type runtime struct {
	engine    *application.Engine
	publisher *infraevent.Publisher
	registry  *memory.ToolRegistry
	gate      *safety.Gate
	saver     checkpoint.Saver
	events    event.Store

	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *runtime) onClose(fn func(context.Context) error) {
	r.closers = append(r.closers, fn)
}

func (r *runtime) onCloseErr(fn func() error) {
	r.onClose(func(context.Context) error { return fn() })
}

// stores are the persistence components selected by storage.backend.
type stores struct {
	saver     checkpoint.Saver
	toolCalls toolcall.Repository
	sessions  session.Store
	events    event.Store
	locks     lock.Locker
}

// buildRuntime wires every component from cfg. On error, whatever was
// already opened is closed before returning.
func buildRuntime(ctx context.Context, cfg *config.Config) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	tracing := telemetry.DefaultTracingConfig()
	tracing.Enabled = cfg.Telemetry.Enabled
	tracing.ServiceName = cfg.Telemetry.ServiceName
	tracing.ServiceVersion = Version
	tracing.Exporter = telemetry.ExporterType(cfg.Telemetry.Exporter)
	tracing.Endpoint = cfg.Telemetry.Endpoint
	tracing.Insecure = cfg.Telemetry.Insecure
	tp, err := telemetry.NewProvider(ctx, tracing)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose(tp.Shutdown)

	var metrics telemetry.Metrics = telemetry.NoopMetricsProvider{}
	if cfg.Telemetry.Enabled {
		mp := telemetry.NewMetricsProvider(telemetry.DefaultMetricsConfig())
		if mp.Error() != nil {
			return nil, fmt.Errorf("metrics: %w", mp.Error())
		}
		metrics = mp
	}

	rc := resilienceConfig(cfg)
	llm, err := completion.NewService(cfg.LLM, rc.BreakerConfig(), telemetry.CompletionObserver(metrics))
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	rt.gate = safety.NewGate(llm)
	rt.registry, err = memory.NewToolRegistry()
	if err != nil {
		return nil, err
	}

	var runner conversation.Runner
	if !cfg.Bridge.Disabled {
		client := bridge.New(bridge.Config{
			URL:     cfg.Bridge.URL,
			APIKey:  cfg.Bridge.APIKey,
			Timeout: cfg.Bridge.Timeout,
			Breaker: rc.BreakerConfig(),
		})
		runner = client

		shellPack, err := shell.New(client, shell.WithGate(rt.gate), shell.WithTimeout(cfg.Bridge.Timeout))
		if err != nil {
			return nil, fmt.Errorf("shell pack: %w", err)
		}
		filePack, err := fileops.New(client)
		if err != nil {
			return nil, fmt.Errorf("file pack: %w", err)
		}
		if err := pack.Install(rt.registry, shellPack, filePack); err != nil {
			return nil, err
		}
	}

	st, err := rt.openStores(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	rt.saver = st.saver
	rt.events = st.events

	rt.publisher = infraevent.NewPublisher(infraevent.WithStore(st.events))
	rt.onCloseErr(rt.publisher.Close)

	exec := executor.New(executor.Config{
		Registry:  rt.registry,
		Runner:    resilience.NewExecutor(rc),
		ToolCalls: st.toolCalls,
		Retry:     rc.RetryConfig(),
		Observer:  telemetry.ToolObserver(metrics),
	})

	rt.engine, err = application.NewEngineWithOptions(
		application.WithStages(
			conversation.NewClassifier(llm),
			conversation.NewCommandGenerator(llm, rt.gate, runner),
			planner.New(planner.Config{
				Completion:    llm,
				Registry:      rt.registry,
				MaxSteps:      cfg.Agent.MaxPlanSteps,
				ContextWindow: cfg.Agent.ContextWindow,
			}),
			exec,
			evaluator.New(llm),
			conversation.NewResponder(llm, cfg.Agent.ContextWindow),
		),
		application.WithCheckpointer(st.saver),
		application.WithSessions(st.sessions),
		application.WithPublisher(rt.publisher),
		application.WithThreadLock(st.locks),
		application.WithMetrics(metrics),
		application.WithTracer(tp.Tracer()),
		application.WithMaxIterations(cfg.Agent.MaxIterations),
		application.WithChunkSize(cfg.Agent.ChunkSize),
		application.WithPermissionLevel(cfg.Agent.PermissionLevel),
	)
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Add(logging.Component("cli")).
		Add(logging.Str("backend", string(cfg.Storage.Backend))).
		Add(logging.Str("provider", string(cfg.LLM.Provider))).
		Add(logging.Count("tools", len(rt.registry.Names()))).
		Msg("runtime ready")
	return rt, nil
}

func resilienceConfig(cfg *config.Config) resilience.ExecutorConfig {
	r := cfg.Resilience
	var opts []resilience.Option
	if r.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithMaxConcurrent(r.MaxConcurrent))
	}
	if r.RetryAttempts > 0 {
		opts = append(opts, resilience.WithRetryAttempts(r.RetryAttempts))
	}
	if r.RetryDelay > 0 {
		opts = append(opts, resilience.WithRetryDelay(r.RetryDelay))
	}
	if r.BreakerThreshold > 0 {
		opts = append(opts, resilience.WithCircuitBreakerThreshold(r.BreakerThreshold))
	}
	if r.BreakerTimeout > 0 {
		opts = append(opts, resilience.WithCircuitBreakerTimeout(r.BreakerTimeout))
	}
	if cfg.Agent.ToolTimeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.Agent.ToolTimeout))
	}
	return resilience.ApplyOptions(opts...)
}

// openStores opens the configured backend. Components a backend does not
// provide fall back to their in-memory versions.
func (r *runtime) openStores(ctx context.Context, sc config.StorageConfig) (stores, error) {
	st := stores{
		toolCalls: memory.NewToolCallRepository(),
		sessions:  memory.NewSessionStore(),
		events:    memory.NewEventStore(),
		locks:     memory.NewLocker(),
	}

	switch sc.Backend {
	case config.BackendMemory, "":
		st.saver = memory.NewCheckpointer()

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, sc.DSN, postgres.DefaultConfig(),
			postgres.WithSchema(sc.Schema),
			postgres.WithPoolSize(int32(sc.PoolSize)),
			postgres.WithConnectTimeout(sc.Timeout),
		)
		if err != nil {
			return st, err
		}
		r.onClose(func(context.Context) error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool, sc.Schema); err != nil {
			return st, err
		}
		st.saver = postgres.NewCheckpointer(pool, sc.Schema)
		st.toolCalls = postgres.NewToolCallRepository(pool, sc.Schema)
		st.sessions = postgres.NewSessionStore(pool, sc.Schema)

	case config.BackendSQLite:
		var opts []sqlite.Option
		if sc.DSN != "" {
			opts = append(opts, sqlite.WithDSN(sc.DSN))
		}
		db, err := sqlite.Open(sqlite.DefaultConfig(), opts...)
		if err != nil {
			return st, err
		}
		r.onCloseErr(db.Close)
		saver, err := sqlite.NewCheckpointerFromDB(db)
		if err != nil {
			return st, err
		}
		calls, err := sqlite.NewToolCallRepositoryFromDB(db)
		if err != nil {
			return st, err
		}
		events, err := sqlite.NewEventStoreFromDB(db)
		if err != nil {
			return st, err
		}
		st.saver, st.toolCalls, st.events = saver, calls, events

	case config.BackendBadger:
		opts := []badger.Option{badger.WithKeyPrefix(sc.KeyPrefix), badger.WithSyncWrites(sc.SyncWrites)}
		if sc.Dir == "" {
			opts = append(opts, badger.WithInMemory())
		} else {
			opts = append(opts, badger.WithDir(sc.Dir))
		}
		saver, err := badger.NewCheckpointer(badger.DefaultConfig(), opts...)
		if err != nil {
			return st, err
		}
		r.onCloseErr(saver.Close)
		st.saver = saver

	case config.BackendRedis:
		saver, err := redis.NewCheckpointer(redis.DefaultConfig(),
			redis.WithAddress(sc.Address),
			redis.WithPassword(sc.Password),
			redis.WithDB(sc.DB),
			redis.WithKeyPrefix(sc.KeyPrefix),
			redis.WithPoolSize(sc.PoolSize),
			redis.WithTimeouts(sc.Timeout, sc.Timeout, sc.Timeout),
		)
		if err != nil {
			return st, err
		}
		r.onCloseErr(saver.Close)
		st.saver = saver
		st.locks = saver.Locker()

	case config.BackendMongoDB:
		client, err := mongodb.Connect(ctx, mongodb.DefaultConfig(),
			mongodb.WithURI(sc.DSN),
			mongodb.WithDatabase(sc.Database),
		)
		if err != nil {
			return st, err
		}
		r.onClose(client.Close)
		saver := mongodb.NewCheckpointer(client, mongoCollection)
		if err := saver.EnsureIndexes(ctx); err != nil {
			return st, err
		}
		st.saver = saver

	default:
		return st, fmt.Errorf("%w: unsupported storage backend %q", config.ErrValidationFailed, sc.Backend)
	}
	return st, nil
}
