package injector

import (
	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"

	"github.com/zeusync/ecsruntime/internal/config"
	"github.com/zeusync/ecsruntime/internal/core/events/bus"
	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/ecs/factory"
	"github.com/zeusync/ecsruntime/internal/ecs/manager"
	"github.com/zeusync/ecsruntime/internal/storage"
	redisstore "github.com/zeusync/ecsruntime/internal/storage/redis"
	"github.com/zeusync/ecsruntime/internal/transport"
)

// Runtime is the transport-independent part of a scene runtime.
type Runtime struct {
	Config  *config.Config
	Logger  *log.Logger
	Events  bus.EventBus
	Manager *manager.SceneComponentsManager
	Applier *transport.Applier
	// Snapshot is nil unless redis is configured. It records what the
	// Applier applies to Manager.
	Snapshot storage.Snapshot
}

// Registrar builds the component factory. It receives the runtime logger so
// component handlers log through the same sink as the rest of the runtime.
type Registrar func(logger log.Log) *factory.Factory

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideFactory,
	ProvideEventBus,
	ProvideManager,
	ProvideSnapshot,
	ProvideApplier,
)

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.New(cfg.LogLevel())
}

func ProvideFactory(r Registrar, logger *log.Logger) *factory.Factory {
	return r(logger)
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideManager(cfg *config.Config, f *factory.Factory, logger *log.Logger, events bus.EventBus) *manager.SceneComponentsManager {
	return manager.FromFactory(models.NewScene(cfg.Scene), f,
		manager.WithLogger(logger),
		manager.WithEventBus(events))
}

// ProvideSnapshot connects to redis when an address is configured. The
// cleanup closes the client.
func ProvideSnapshot(cfg *config.Config, logger *log.Logger) (storage.Snapshot, func(), error) {
	if cfg.Redis.Address == "" {
		return nil, func() {}, nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	snapshot := redisstore.New(client,
		redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix),
		redisstore.WithLogger(logger.With(log.String("storage", "redis"))))
	return snapshot, func() { _ = client.Close() }, nil
}

func ProvideApplier(cfg *config.Config, m *manager.SceneComponentsManager, snapshot storage.Snapshot, logger *log.Logger) *transport.Applier {
	opts := []transport.ApplierOption{
		transport.WithApplierLogger(logger.With(log.String("component", "applier"))),
		transport.WithQueueSize(cfg.Applier.QueueSize),
	}
	if cfg.Applier.DropStale {
		opts = append(opts, transport.WithStaleDrop())
	}
	if snapshot != nil {
		opts = append(opts, transport.WithRecorder(m.Scene(), snapshot))
	}
	return transport.NewApplier(m, opts...)
}
