package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// EventAPI is the part of transport.Client the HTTP sink uses.
type EventAPI interface {
	TrackAdEvents(ctx context.Context, batch models.EventBatch) error
	SendGameEvents(ctx context.Context, batch models.EventBatch) error
}

// HTTPSink posts ad events and game events to their own endpoints.
type HTTPSink struct {
	api EventAPI
}

func NewHTTPSink(api EventAPI) *HTTPSink {
	return &HTTPSink{api: api}
}

// Submit splits events by kind, keeping the original order inside each part.
func (s *HTTPSink) Submit(ctx context.Context, events []models.TelemetryEvent) error {
	var ad, game []models.TelemetryEvent
	for _, e := range events {
		if e.Type.IsAdEvent() {
			ad = append(ad, e)
		} else {
			game = append(game, e)
		}
	}

	var errs []error
	if len(ad) > 0 {
		if err := s.api.TrackAdEvents(ctx, newBatch(ad)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(game) > 0 {
		if err := s.api.SendGameEvents(ctx, newBatch(game)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newBatch(events []models.TelemetryEvent) models.EventBatch {
	return models.EventBatch{
		GameID:   events[0].GameID,
		PlayerID: events[0].PlayerID,
		Events:   events,
	}
}

// BatchConn is the part of a ClickHouse connection the mirror sink needs.
type BatchConn interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

// ClickHouseSink mirrors events into a ClickHouse table for self-hosted
// analytics. The table layout is created by database.NewClickHouse.
type ClickHouseSink struct {
	conn  BatchConn
	table string
}

func NewClickHouseSink(conn BatchConn, table string) *ClickHouseSink {
	return &ClickHouseSink{conn: conn, table: table}
}

func (s *ClickHouseSink) Submit(ctx context.Context, events []models.TelemetryEvent) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		return fmt.Errorf("prepare clickhouse batch: %w", err)
	}

	for _, e := range events {
		meta := "{}"
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				batch.Abort()
				return fmt.Errorf("encode metadata: %w", err)
			}
			meta = string(b)
		}
		if err := batch.Append(
			string(e.Type),
			e.Name,
			e.GameID,
			e.PlayerID,
			e.AdID,
			string(e.Slot),
			e.Time(),
			meta,
		); err != nil {
			batch.Abort()
			return fmt.Errorf("append clickhouse row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send clickhouse batch: %w", err)
	}
	return nil
}

// Tee submits every batch to all sinks and joins their errors.
type Tee []Sink

func (t Tee) Submit(ctx context.Context, events []models.TelemetryEvent) error {
	var errs []error
	for _, s := range t {
		if err := s.Submit(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
