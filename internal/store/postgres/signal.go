package postgres

import (
	"context"
	"encoding/json"
	"time"

	"strategy-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

// SignalRecord is one persisted strategy decision. Append-only: there is no
// natural-key dedup and no update path.
type SignalRecord struct {
	ID         uint            `gorm:"primaryKey"`
	Exchange   string          `gorm:"type:varchar(50);not null;index:idx_signals_lookup"`
	Symbol     string          `gorm:"type:varchar(20);not null;index:idx_signals_lookup"`
	Strategy   string          `gorm:"type:varchar(100);not null;index:idx_signals_lookup"`
	Action     string          `gorm:"type:varchar(20);not null;index:idx_signals_action"`
	Confidence decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	PriceRef   decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Indicators string          `gorm:"type:jsonb"`
	Meta       string          `gorm:"type:jsonb"`
	TS         time.Time       `gorm:"column:ts;not null;index:idx_signals_ts,sort:desc"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (SignalRecord) TableName() string { return "signals" }

// NewSignalRecord converts a signal to its persisted form. The indicator
// snapshot and metadata travel as JSON — they are auxiliary context, not
// structured columns.
func NewSignalRecord(s model.Signal) *SignalRecord {
	rec := &SignalRecord{
		Exchange:   s.Exchange,
		Symbol:     s.Symbol,
		Strategy:   s.Strategy,
		Action:     string(s.Action),
		Confidence: s.Confidence,
		PriceRef:   s.PriceRef,
		TS:         s.TS,
	}
	if s.Indicators != nil {
		b, err := json.Marshal(s.Indicators)
		if err == nil {
			rec.Indicators = string(b)
		}
	}
	if s.Meta != nil {
		b, err := json.Marshal(s.Meta)
		if err == nil {
			rec.Meta = string(b)
		}
	}
	return rec
}

// SaveSignal appends the signal row.
func (c *Client) SaveSignal(ctx context.Context, sig model.Signal) error {
	return c.db.WithContext(ctx).Create(NewSignalRecord(sig)).Error
}
