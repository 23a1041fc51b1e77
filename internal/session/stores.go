package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mera-platform/mera/internal/config"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/engine"
	"github.com/mera-platform/mera/internal/save"
	"github.com/mera-platform/mera/internal/storage"
	"github.com/mera-platform/mera/internal/storage/badger"
	"github.com/mera-platform/mera/internal/storage/fs"
	"github.com/mera-platform/mera/internal/storage/memory"
	"github.com/mera-platform/mera/internal/storage/redis"
	"github.com/mera-platform/mera/internal/storage/s3"
	"github.com/mera-platform/mera/internal/storage/sqlite"
)

// OpenStore opens the driver named by cfg.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil

	case config.DriverSQLite:
		return opened(sqlite.Open(cfg.Path))

	case config.DriverBadger:
		bc := badger.DefaultConfig(cfg.Path)
		if cfg.InMemory {
			bc = badger.InMemoryConfig()
		}
		bc.Logger = logger
		return opened(badger.Open(bc))

	case config.DriverRedis:
		rc := redis.DefaultConfig()
		rc.Addr = cfg.Redis.Addr
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		if cfg.Redis.Prefix != "" {
			rc.Prefix = cfg.Redis.Prefix
		}
		return opened(redis.Open(ctx, rc))

	case config.DriverFS:
		return opened(fs.Open(cfg.Path))

	case config.DriverS3:
		return opened(s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		}))

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// opened keeps a failed constructor's typed nil out of the interface.
func opened[S storage.Store](s S, err error) (storage.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FromConfig opens both stores named by cfg and a session over them. The
// session closes the stores on Close.
func FromConfig(ctx context.Context, cfg config.Config, reg curriculum.Registry, opts ...Option) (*Session, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	local, err := OpenStore(ctx, cfg.Local, o.logger)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	remote, err := OpenStore(ctx, cfg.Remote, o.logger)
	if err != nil {
		_ = local.Close()
		return nil, fmt.Errorf("open remote store: %w", err)
	}

	base := []Option{
		withOwnedStores(),
		WithEngineOptions(
			engine.WithTickInterval(cfg.Engine.TickInterval),
			engine.WithPersistInterval(cfg.Engine.PersistInterval),
		),
		WithSaveOptions(
			save.WithPollInterval(cfg.Save.PollInterval),
			save.WithWriteTimeout(cfg.Save.WriteTimeout),
		),
	}
	if cfg.Backups.Enabled {
		base = append(base, WithBackups(
			save.WithRetain(cfg.Backups.Retain),
			save.WithBackupInterval(cfg.Backups.Interval),
		))
	}

	s, err := Open(ctx, reg, cfg.Owner, local, remote, append(base, opts...)...)
	if err != nil {
		_ = local.Close()
		_ = remote.Close()
		return nil, err
	}
	return s, nil
}
