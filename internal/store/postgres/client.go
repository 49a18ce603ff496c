// Package postgres persists candles and signals. Candle writes are
// idempotent upserts on the natural key; signal writes are append-only.
// All persistence here is best-effort from the pipeline's point of view —
// a failed save is logged by the caller and never blocks acknowledgment.
package postgres

import (
	"context"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Client wraps the gorm connection and the repository methods.
type Client struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the ohlcv and signals tables.
func Open(dsn string) (*Client, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	if err := db.AutoMigrate(&OHLCVRecord{}, &SignalRecord{}); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Printf("[postgres] connected, schema migrated")
	return &Client{db: db}, nil
}

// Healthy pings the underlying connection.
func (c *Client) Healthy(ctx context.Context) bool {
	db, err := c.db.DB()
	if err != nil {
		return false
	}
	return db.PingContext(ctx) == nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	db, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("postgres raw db: %w", err)
	}
	return db.Close()
}
