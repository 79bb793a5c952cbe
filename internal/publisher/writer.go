package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"ghcn-daily/internal/config"
	"ghcn-daily/internal/dly"
	"ghcn-daily/internal/models"
	"ghcn-daily/pkg/logging"
	"ghcn-daily/pkg/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes daily rows to a Kafka topic, one message per row keyed
// by station so a station's rows land on one partition in order.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewWriter creates a producer for the configured topic
func NewWriter(cfg config.KafkaConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
	}
	return newWriter(w, cfg.BatchSize, logger, metricsCollector)
}

func newWriter(w messageWriter, batchSize int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Writer {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Writer{writer: w, batchSize: batchSize, logger: logger, metrics: metricsCollector}
}

// rowMessage is the JSON body of a published row. Value is null for a
// missing day.
type rowMessage struct {
	StationID string   `json:"station_id"`
	Year      int      `json:"year"`
	Month     int      `json:"month"`
	Day       int      `json:"day"`
	Element   string   `json:"element"`
	Value     *float64 `json:"value"`
	Units     string   `json:"units"`
}

// PublishRows sends rows in chunks of the configured batch size
func (w *Writer) PublishRows(ctx context.Context, runID string, units dly.Units, rows []models.Row) error {
	for start := 0; start < len(rows); start += w.batchSize {
		end := start + w.batchSize
		if end > len(rows) {
			end = len(rows)
		}

		msgs := make([]kafkago.Message, 0, end-start)
		for _, r := range rows[start:end] {
			msg, err := serializeToMessage(runID, units, r)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}

		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			w.metrics.RecordIngestionError("publish_error")
			return fmt.Errorf("publish rows: %w", err)
		}
		w.metrics.PublishedRowsTotal.Add(float64(len(msgs)))
	}

	w.logger.Debug(ctx, "[PUBLISH] Rows published", logging.Fields{
		"run_id": runID,
		"rows":   len(rows),
	})
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(runID string, units dly.Units, r models.Row) (kafkago.Message, error) {
	body := rowMessage{
		StationID: r.Station,
		Year:      r.Year,
		Month:     r.Month,
		Day:       r.Day,
		Element:   r.Obs,
		Units:     string(units),
	}
	if !r.Missing() {
		v := r.Value
		body.Value = &v
	}

	data, err := json.Marshal(body)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize row: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(r.Station),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "element", Value: []byte(r.Obs)},
		},
	}, nil
}
