package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"streetart_marketplace/internal/config"
	"streetart_marketplace/pkg/logger"
)

// deps хранит подключения, общие для всех подкоманд.
type deps struct {
	cfg *config.Config
	log logger.Logger
	db  *pgxpool.Pool
	rdb *redis.Client
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Log.Level), nil
}

func connectDB(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info("Database connection established")
	return pool, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Info("Redis connection established")
	return rdb, nil
}

// connect открывает подключения к PostgreSQL и Redis. После работы нужно вызвать Close.
func connect(ctx context.Context) (*deps, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := connectDB(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	rdb, err := connectRedis(ctx, cfg.Redis, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &deps{cfg: cfg, log: log, db: db, rdb: rdb}, nil
}

func (d *deps) Close() {
	if err := d.rdb.Close(); err != nil {
		d.log.Warn("Failed to close redis", "error", err)
	}
	d.db.Close()
}
