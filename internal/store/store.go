// Package store implements the persistence contract of the ledger, the tag
// registry and the recipient set on files, SQL databases and Redis.
package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rfidattend/internal/attendance"
	"rfidattend/internal/auth"
)

// Backend persists every collection the service owns. Saves replace the
// whole collection.
type Backend interface {
	attendance.LedgerStore
	attendance.TagStore
	auth.RecipientStore
	Healthy(ctx context.Context) bool
	Close() error
}

// Backend kinds accepted by Open.
const (
	KindJSON     = "json"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindRedis    = "redis"
)

// Config selects and locates a backend.
type Config struct {
	Kind        string
	DataDir     string
	DatabaseURL string
	SQLitePath  string
	RedisAddr   string
	RedisPrefix string
}

// Open connects to the configured backend and prepares its schema.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Backend, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindJSON:
		return OpenJSON(cfg.DataDir, logger)
	case KindPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL)
	case KindSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case KindRedis:
		r := NewRedis(cfg.RedisAddr, cfg.RedisPrefix)
		if !r.Healthy(ctx) {
			_ = r.Close()
			return nil, fmt.Errorf("redis store: %s unreachable", cfg.RedisAddr)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Kind)
	}
}
