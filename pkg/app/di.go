package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vsinha/mrp-planner/pkg/application/services/mrp"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/closer"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/config"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/events"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/lock"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/postgres"
	mrpv1 "github.com/vsinha/mrp-planner/pkg/interfaces/http/mrp/v1"
)

type MasterData interface {
	repositories.BOMResolver
	repositories.ItemRepository
	repositories.SnapshotProvider
}

type RunStore interface {
	repositories.RunRepository
	repositories.RequisitionLedger
}

type di struct {
	dbPool   *pgxpool.Pool
	sqlDB    *sql.DB
	migrator *postgres.Migrator

	masterData MasterData
	runStore   RunStore
	sink       repositories.RequisitionSink

	redisClient *goredis.Client
	locker      repositories.RunLocker

	syncProducer sarama.SyncProducer
	publisher    events.Publisher

	controller *mrp.Controller
	handler    mrpv1.RunHandler

	router *chi.Mux
}

func NewDI() *di { return &di{} }

func (d *di) DBPool(ctx context.Context) *pgxpool.Pool {
	if d.dbPool == nil {
		pool, err := pgxpool.New(ctx, config.C().Postgres.DSN())
		if err != nil {
			panic(fmt.Sprintf("failed to create pg pool: %v\n", err))
		}

		closer.AddNamed("PGX Pool",
			func(ctx context.Context) error {
				pool.Close()
				return nil
			})

		if err := pool.Ping(ctx); err != nil {
			panic(fmt.Sprintf("failed to ping db: %v\n", err))
		}

		d.dbPool = pool
	}

	return d.dbPool
}

func (d *di) Migrator(ctx context.Context) *postgres.Migrator {
	if d.migrator == nil {
		d.sqlDB = stdlib.OpenDBFromPool(d.DBPool(ctx))
		d.migrator = postgres.NewMigrator(d.sqlDB)

		closer.AddNamed("Migrator DB",
			func(ctx context.Context) error {
				return d.sqlDB.Close()
			})
	}

	return d.migrator
}

func (d *di) MasterData(ctx context.Context) MasterData {
	if d.masterData == nil {
		d.masterData = postgres.NewMasterDataRepository(d.DBPool(ctx))
	}

	return d.masterData
}

func (d *di) RunStore(ctx context.Context) RunStore {
	if d.runStore == nil {
		d.runStore = postgres.NewRunRepository(d.DBPool(ctx))
	}

	return d.runStore
}

func (d *di) RequisitionSink(ctx context.Context) repositories.RequisitionSink {
	if d.sink == nil {
		d.sink = postgres.NewRequisitionOutbox(d.DBPool(ctx))
	}

	return d.sink
}

func (d *di) RedisClient(ctx context.Context) *goredis.Client {
	if d.redisClient == nil {
		cfg := config.C().Redis

		rdb := goredis.NewClient(&goredis.Options{
			Addr:        cfg.Address(),
			Password:    cfg.Password(),
			DB:          cfg.DB(),
			DialTimeout: cfg.DialTimeout(),
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			panic(fmt.Sprintf("failed to ping redis %s: %v\n", cfg.Address(), err))
		}

		closer.AddNamed("Redis client", func(ctx context.Context) error {
			return rdb.Close()
		})

		d.redisClient = rdb
	}

	return d.redisClient
}

func (d *di) RunLocker(ctx context.Context) repositories.RunLocker {
	if d.locker == nil {
		cfg := config.C().Lock

		switch cfg.Backend() {
		case "redis":
			d.locker = lock.NewRedisLocker(d.RedisClient(ctx), cfg.LeaseTTL())
		case "memory":
			logger.Warn(ctx, "in-process run lock, do not run more than one replica")
			d.locker = lock.NewMemoryLocker()
		default:
			d.locker = lock.NewPostgresLocker(d.DBPool(ctx))
		}
	}

	return d.locker
}

func (d *di) SyncProducer(ctx context.Context) sarama.SyncProducer {
	if d.syncProducer == nil {
		p, err := sarama.NewSyncProducer(config.C().Kafka.Brokers(), events.NewProducerConfig())
		if err != nil {
			panic(fmt.Sprintf("failed to create sync producer: %s\n", err.Error()))
		}
		closer.AddNamed("Kafka sync producer", func(ctx context.Context) error {
			return p.Close()
		})

		d.syncProducer = p
	}

	return d.syncProducer
}

// Publisher sends run events to Kafka when brokers are configured and keeps
// them in process otherwise.
func (d *di) Publisher(ctx context.Context) events.Publisher {
	if d.publisher == nil {
		cfg := config.C().Kafka
		if cfg.Enabled() {
			d.publisher = events.NewKafkaPublisher(d.SyncProducer(ctx), cfg.RunEventsTopic())
		} else {
			logger.Info(ctx, "kafka brokers not configured, run events kept in memory")
			d.publisher = events.NewInMemoryEventStore()
		}
	}

	return d.publisher
}

func (d *di) Controller(ctx context.Context) *mrp.Controller {
	if d.controller == nil {
		cfg := config.C()

		scope, err := mrp.ParseShortageScope(cfg.Planning.ShortageScope())
		if err != nil {
			panic(fmt.Sprintf("invalid shortage scope: %v\n", err))
		}

		masterData := d.MasterData(ctx)
		runs := d.RunStore(ctx)
		d.controller = mrp.NewController(mrp.Dependencies{
			BOM:   masterData,
			Items: masterData,
			Snapshots: mrp.NewRetryingSnapshotProvider(
				masterData,
				cfg.Planning.SnapshotRetryAttempts(),
				cfg.Planning.SnapshotRetryBase(),
			),
			Runs:      runs,
			Ledger:    runs,
			Locker:    d.RunLocker(ctx),
			Sink:      d.RequisitionSink(ctx),
			Publisher: d.Publisher(ctx),
		}, mrp.Config{
			MaxBOMDepth:   cfg.Planning.MaxBOMDepth(),
			ShortageScope: scope,
			ReadTimeout:   cfg.Server.DBReadTimeout(),
			WriteTimeout:  cfg.Server.DBWriteTimeout(),
		})
	}

	return d.controller
}

func (d *di) RunHandler(ctx context.Context) mrpv1.RunHandler {
	if d.handler == nil {
		d.handler = mrpv1.NewRunHandler(d.Controller(ctx), config.C().Planning.PeriodDays())
	}

	return d.handler
}

func (d *di) Router(_ context.Context) *chi.Mux {
	if d.router == nil {
		d.router = chi.NewRouter()
	}

	return d.router
}
