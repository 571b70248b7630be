package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/appconfig"
	"github.com/MrEthical07/goSession/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// openStore builds the configured persistence mirror. The returned func releases it.
func openStore(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) (storage.Store, func(), error) {
	sc := cfg.Storage

	switch sc.Driver {
	case appconfig.DriverMemory:
		logger.Warn("using memory storage; the session ends with the process")
		return storage.NewMemory(nil), func() {}, nil

	case appconfig.DriverFile:
		logger.Debug("using file storage", slog.String("path", sc.Path))
		return storage.NewFileStore(sc.Path), func() {}, nil

	case appconfig.DriverMiniredis:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("using miniredis storage; the session ends with the process", slog.String("addr", mr.Addr()))
		return storage.NewRedisStore(rc, sc.RedisPrefix, sc.RedisTTL), func() {
			_ = rc.Close()
			mr.Close()
		}, nil

	case appconfig.DriverRedis:
		rc := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{sc.RedisAddr},
			DB:    sc.RedisDB,
		})
		st := storage.NewRedisStore(rc, sc.RedisPrefix, sc.RedisTTL)
		rtt, err := st.Ping(ctx)
		if err != nil {
			_ = rc.Close()
			return nil, nil, err
		}
		logger.Debug("using redis storage", slog.String("addr", sc.RedisAddr), slog.Duration("rtt", rtt))
		return st, func() { _ = rc.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
}
