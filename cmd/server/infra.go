package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"

	"matchflow/internal/directory"
	pipelinemetrics "matchflow/internal/pipeline/metrics"
	"matchflow/internal/pipeline/notify"
	"matchflow/internal/pipeline/service"
	"matchflow/internal/pipeline/store/match"
	"matchflow/internal/platform/config"
	"matchflow/internal/platform/kafka"
	redisclient "matchflow/internal/platform/redis"
	"matchflow/migrations"
	"matchflow/pkg/platform/circuit"
)

// infra holds the stores and transports the service runs on, plus whatever
// must be closed at shutdown.
type infra struct {
	storeKind string
	matches   service.MatchStore
	directory service.Directory
	sink      notify.Sink
	async     *notify.AsyncSink
	breaker   *notify.BreakerSink

	db    *sql.DB
	redis *redisclient.Client
	kafka *kgo.Client
}

func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger, m *pipelinemetrics.Metrics) (*infra, error) {
	in := &infra{}
	ok := false
	defer func() {
		if !ok {
			in.close(log, cfg.Server.ShutdownTimeout)
		}
	}()

	var (
		dirReader directory.Reader
		seed      *directory.Seed
	)
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		in.db = db
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if cfg.Server.AutoMigrate {
			if err := migrations.Apply(ctx, db); err != nil {
				return nil, err
			}
		}
		in.storeKind = "postgres"
		in.matches = match.NewPostgres(db)
		dirReader = directory.NewPostgres(db)
	} else {
		in.storeKind = "memory"
		in.matches = match.NewInMemory()
		dir := directory.NewInMemory()
		if path := cfg.Pipeline.DirectorySeedFile; path != "" {
			loaded, err := directory.ReadSeedFile(path)
			if err != nil {
				return nil, err
			}
			dir.Load(loaded)
			seed = &loaded
			log.Info("directory seeded",
				"path", path,
				"companies", len(loaded.Companies),
				"candidates", len(loaded.Candidates),
				"jobs", len(loaded.Jobs),
			)
		}
		dirReader = dir
	}

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	in.redis = rc
	if rc != nil {
		cache := directory.NewRedisCache(dirReader, rc.Client, cfg.Pipeline.DirectoryCacheTTL,
			directory.WithCacheLogger(log))
		if seed != nil {
			if err := cache.Forget(ctx, *seed); err != nil {
				log.Warn("seeded directory may be shadowed by cached entries", "error", err)
			}
		}
		in.directory = cache
	} else {
		in.directory = dirReader
	}

	primary, err := in.primarySink(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	fallback := notify.NewLogSink(log)

	var sink notify.Sink = fallback
	if primary != nil {
		breaker := circuit.New("notifications",
			circuit.WithFailureThreshold(cfg.Notifications.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.Notifications.SuccessThreshold),
		)
		in.breaker = notify.NewBreakerSink(primary, fallback, breaker,
			notify.WithBreakerLogger(log),
			notify.WithStateHook(m.SetBreakerOpen),
		)
		sink = in.breaker
	}
	in.async = notify.NewAsyncSink(sink, cfg.Notifications.Buffer,
		notify.WithAsyncLogger(log),
		notify.WithDeliveryTimeout(cfg.Notifications.DeliveryTimeout),
		notify.WithErrorHook(func(error) { m.IncrementNotification("undelivered") }),
	)
	in.sink = in.async

	ok = true
	return in, nil
}

// primarySink builds the configured transport. A nil sink means log only.
func (in *infra) primarySink(ctx context.Context, cfg config.Config, log *slog.Logger) (notify.Sink, error) {
	switch cfg.Notifications.Sink {
	case "", "log":
		return nil, nil
	case "redis":
		if in.redis == nil {
			return nil, fmt.Errorf("notification sink redis requires REDIS_URL")
		}
		return notify.NewRedisSink(in.redis.Client, cfg.Notifications.RedisChannel), nil
	case "kafka":
		client, err := kafka.New(cfg.Kafka, log)
		if err != nil {
			return nil, err
		}
		in.kafka = client
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.NotificationTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return nil, err
		}
		return notify.NewKafkaSink(client, cfg.Kafka.NotificationTopic), nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", cfg.Notifications.Sink)
	}
}

// close drains the notification queue for at most drain, then releases the
// clients its workers deliver through.
func (in *infra) close(log *slog.Logger, drain time.Duration) {
	if in.async != nil {
		ctx, cancel := context.WithTimeout(context.Background(), drain)
		if err := in.async.Close(ctx); err != nil {
			log.Warn("notification queue not drained", "error", err)
		}
		cancel()
	}
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("close postgres", "error", err)
		}
	}
}

// notificationChecks reports queue drops and, with a primary transport, the
// circuit position.
func (in *infra) notificationChecks(checks map[string]string) {
	if in.async != nil {
		checks["notifications_dropped"] = strconv.FormatInt(in.async.Dropped(), 10)
	}
	if in.breaker != nil {
		checks["notification_circuit"] = "closed"
		if in.breaker.Open() {
			checks["notification_circuit"] = "open"
		}
	}
}
