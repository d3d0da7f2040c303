package database

import (
	"context"
	"fmt"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/config"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// NewClickHouse opens a ClickHouse connection for the telemetry mirror and
// creates the events table if needed.
func NewClickHouse(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.Logger) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			type      LowCardinality(String),
			name      String,
			game_id   String,
			player_id String,
			ad_id     String,
			slot      LowCardinality(String),
			ts        DateTime64(3),
			metadata  String
		) ENGINE = MergeTree ORDER BY (game_id, ts)`, cfg.Table)
	if err := conn.Exec(ctx, ddl); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create %s: %w", cfg.Table, err)
	}

	logger.Info("connected to ClickHouse",
		zap.Strings("addr", cfg.Addr),
		zap.String("database", cfg.Database),
		zap.String("table", cfg.Table),
	)
	return conn, nil
}
