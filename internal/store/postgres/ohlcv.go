package postgres

import (
	"context"
	"time"

	"strategy-systemv1/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// OHLCVRecord is one persisted candle row. The composite unique index is
// the candle's natural key: conflicting inserts are silently ignored so
// redelivered messages cannot create duplicate rows.
type OHLCVRecord struct {
	ID       uint            `gorm:"primaryKey"`
	Exchange string          `gorm:"type:varchar(50);not null;uniqueIndex:uq_ohlcv"`
	Symbol   string          `gorm:"type:varchar(20);not null;uniqueIndex:uq_ohlcv"`
	Interval string          `gorm:"column:interval;type:varchar(10);not null;uniqueIndex:uq_ohlcv"`
	TS       time.Time       `gorm:"column:ts;not null;uniqueIndex:uq_ohlcv;index:idx_ohlcv_ts,sort:desc"`
	Open     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	High     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Low      decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Close    decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Volume   decimal.Decimal `gorm:"type:numeric(20,8);not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (OHLCVRecord) TableName() string { return "ohlcv" }

// NewOHLCVRecord converts a candle to its persisted form.
func NewOHLCVRecord(c model.Candle) *OHLCVRecord {
	return &OHLCVRecord{
		Exchange: c.Exchange,
		Symbol:   c.Symbol,
		Interval: c.Interval,
		TS:       c.TS,
		Open:     c.Open,
		High:     c.High,
		Low:      c.Low,
		Close:    c.Close,
		Volume:   c.Volume,
	}
}

// SaveCandle inserts the candle, ignoring a conflict on the natural key.
// Saving the same candle twice leaves exactly one row.
func (c *Client) SaveCandle(ctx context.Context, candle model.Candle) error {
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "exchange"},
			{Name: "symbol"},
			{Name: "interval"},
			{Name: "ts"},
		},
		DoNothing: true,
	}).Create(NewOHLCVRecord(candle)).Error
}
