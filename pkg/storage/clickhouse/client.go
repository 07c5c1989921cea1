// Package clickhouse implements the storage.Store contract on ClickHouse.
// Ledger tables use ReplacingMergeTree keyed on their natural unique columns,
// which is what makes the indexer's upserts idempotent: replaying a block
// rewrites the same rows instead of duplicating them.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/chainlens-network/chainlensx/pkg/retry"
	"github.com/chainlens-network/chainlensx/pkg/utils"
)

// Client wraps a ClickHouse connection plus the database it operates on.
type Client struct {
	Logger   *zap.Logger
	Db       driver.Conn
	Database string
}

// New connects to ClickHouse using CLICKHOUSE_ADDR and ensures dbName exists.
// The initial connection is retried with backoff since the database may still
// be coming up when the service starts.
func New(ctx context.Context, logger *zap.Logger, dbName string) (*Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable")
	username, password := extractCredentials(dsn)
	addrs := extractAddrs(dsn)

	options := &clickhouse.Options{
		Addr: addrs,
		Auth: clickhouse.Auth{
			Database: "default",
			Username: username,
			Password: password,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 10),
		ConnMaxLifetime: time.Hour,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}

	c := &Client{Logger: logger, Database: dbName}
	err := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "clickhouse_connection", func() error {
		conn, err := clickhouse.Open(options)
		if err != nil {
			return fmt.Errorf("open clickhouse connection: %w", err)
		}
		if err := conn.Ping(connCtx); err != nil {
			return fmt.Errorf("ping clickhouse: %w", err)
		}
		c.Db = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := c.initTables(ctx); err != nil {
		return nil, err
	}

	// Reconnect with the target database as default so sandbox queries can
	// reference bare table names. The first connection had to use "default"
	// because the target database may not have existed yet.
	if err := c.Db.Close(); err != nil {
		logger.Warn("close bootstrap connection", zap.Error(err))
	}
	options.Auth.Database = dbName
	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open connection to %s: %w", dbName, err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database %s: %w", dbName, err)
	}
	c.Db = conn

	logger.Info("ClickHouse connected",
		zap.Strings("addrs", addrs),
		zap.String("database", dbName))
	return c, nil
}

// extractAddrs parses comma-separated host:port pairs out of the DSN.
func extractAddrs(dsn string) []string {
	cleaned := strings.TrimPrefix(dsn, "clickhouse://")
	cleaned = strings.TrimPrefix(cleaned, "tcp://")
	if idx := strings.Index(cleaned, "@"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}
	if idx := strings.IndexAny(cleaned, "/?"); idx != -1 {
		cleaned = cleaned[:idx]
	}
	var out []string
	for _, a := range strings.Split(cleaned, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return []string{"localhost:9000"}
	}
	return out
}

// extractCredentials pulls user:pass out of the DSN, defaulting to "default".
func extractCredentials(dsn string) (string, string) {
	dsn = strings.TrimPrefix(dsn, "clickhouse://")
	dsn = strings.TrimPrefix(dsn, "tcp://")
	atIdx := strings.Index(dsn, "@")
	if atIdx == -1 {
		return "default", ""
	}
	creds := dsn[:atIdx]
	if colonIdx := strings.Index(creds, ":"); colonIdx != -1 {
		return creds[:colonIdx], creds[colonIdx+1:]
	}
	return creds, ""
}

func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	return c.Db.Exec(ctx, query, args...)
}

func (c *Client) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return c.Db.Query(ctx, query, args...)
}

func (c *Client) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return c.Db.QueryRow(ctx, query, args...)
}

func (c *Client) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return c.Db.PrepareBatch(ctx, query)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Db.Ping(ctx)
}

func (c *Client) Close() error {
	return c.Db.Close()
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
