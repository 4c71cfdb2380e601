package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/safedrive-risk/internal/db"
	"github.com/septivank/safedrive-risk/internal/logging"
	"github.com/septivank/safedrive-risk/internal/metrics"
	"github.com/septivank/safedrive-risk/internal/mq"
	"github.com/septivank/safedrive-risk/internal/repository"
	"github.com/septivank/safedrive-risk/internal/validator"
	"go.uber.org/zap"
)

// ErrNoValidSamples is returned for a message whose samples all failed
// validation, so the consumer dead-letters it.
var ErrNoValidSamples = errors.New("no valid telemetry samples")

// TelemetryMessage represents the incoming message from RabbitMQ
type TelemetryMessage struct {
	RequestID  string             `json:"request_id"`
	ReceivedAt time.Time          `json:"received_at"`
	Samples    []TelemetryPayload `json:"samples"`
}

// TelemetryPayload represents a single device telemetry reading
type TelemetryPayload struct {
	DeviceID       string          `json:"device_id"`
	EventTime      string          `json:"event_time"`
	Latitude       *float64        `json:"latitude,omitempty"`
	Longitude      *float64        `json:"longitude,omitempty"`
	Speed          *float64        `json:"speed,omitempty"`
	AccelX         *float64        `json:"accel_x,omitempty"`
	AccelY         *float64        `json:"accel_y,omitempty"`
	AccelZ         *float64        `json:"accel_z,omitempty"`
	GyroX          *float64        `json:"gyro_x,omitempty"`
	GyroY          *float64        `json:"gyro_y,omitempty"`
	GyroZ          *float64        `json:"gyro_z,omitempty"`
	EngineTemp     *float64        `json:"engine_temp,omitempty"`
	FuelLevel      *float64        `json:"fuel_level,omitempty"`
	BatteryVoltage *float64        `json:"battery_voltage,omitempty"`
	RawPayload     json.RawMessage `json:"raw_payload_json,omitempty"`
}

// TelemetryStore persists telemetry samples
type TelemetryStore interface {
	BeginTx(ctx context.Context) (repository.Tx, error)
	InsertTelemetryTx(ctx context.Context, tx repository.Tx, rec *db.TelemetryRecord) error
}

// EventPublisher announces stored telemetry
type EventPublisher interface {
	PublishTelemetryAccepted(ctx context.Context, event mq.TelemetryAcceptedEvent, routingKey string) error
}

// TelemetryProcessor handles telemetry ingest messages
type TelemetryProcessor struct {
	store      TelemetryStore
	publisher  EventPublisher
	validator  *validator.Validator
	routingKey string
	logger     *zap.Logger
	now        func() time.Time
}

// NewTelemetryProcessor creates a new telemetry processor
func NewTelemetryProcessor(
	store TelemetryStore,
	publisher EventPublisher,
	validator *validator.Validator,
	routingKey string,
	logger *zap.Logger,
) *TelemetryProcessor {
	return &TelemetryProcessor{
		store:      store,
		publisher:  publisher,
		validator:  validator,
		routingKey: routingKey,
		logger:     logger,
		now:        time.Now,
	}
}

// ProcessMessage validates and stores the samples of one ingest message.
// Invalid samples are dropped; a storage failure fails the whole message.
func (p *TelemetryProcessor) ProcessMessage(ctx context.Context, body []byte) error {
	var msg TelemetryMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		metrics.TelemetryMessagesTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = p.now()
	}

	reqLogger := logging.WithRequestID(p.logger, msg.RequestID)
	reqLogger.Info("processing telemetry message", zap.Int("sample_count", len(msg.Samples)))

	var records []*db.TelemetryRecord
	for i, sample := range msg.Samples {
		rec, reason := p.toRecord(sample, msg.ReceivedAt)
		if rec == nil {
			reqLogger.Warn("telemetry sample rejected",
				zap.Int("index", i),
				zap.String("device_id", sample.DeviceID),
				zap.String("reason", reason),
			)
			continue
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		metrics.TelemetryMessagesTotal.WithLabelValues("rejected").Inc()
		reqLogger.Warn("no valid telemetry samples in message")
		if len(msg.Samples) > 0 {
			return fmt.Errorf("%w: all %d samples rejected", ErrNoValidSamples, len(msg.Samples))
		}
		return nil
	}

	tx, err := p.store.BeginTx(ctx)
	if err != nil {
		metrics.TelemetryMessagesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if err := p.store.InsertTelemetryTx(ctx, tx, rec); err != nil {
			metrics.TelemetryMessagesTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("failed to store telemetry for device %s: %w", rec.DeviceID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.TelemetryMessagesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.TelemetryMessagesTotal.WithLabelValues("stored").Inc()
	metrics.TelemetrySamplesStored.Add(float64(len(records)))

	// Publish events after successful commit
	for _, rec := range records {
		event := mq.TelemetryAcceptedEvent{
			RequestID: msg.RequestID,
			DeviceID:  rec.DeviceID,
			EventTime: rec.EventTime.Format(time.RFC3339Nano),
			Speed:     rec.Speed,
		}
		if err := p.publisher.PublishTelemetryAccepted(ctx, event, p.routingKey); err != nil {
			// Log error but don't fail the entire message processing
			reqLogger.Error("failed to publish telemetry event",
				zap.Error(err),
				zap.String("device_id", rec.DeviceID),
			)
		}
	}

	reqLogger.Info("telemetry message processed",
		zap.Int("stored", len(records)),
		zap.Int("rejected", len(msg.Samples)-len(records)),
	)

	return nil
}

func (p *TelemetryProcessor) toRecord(sample TelemetryPayload, receivedAt time.Time) (*db.TelemetryRecord, string) {
	eventTime, result := p.validator.ValidateTelemetry(validator.TelemetryData{
		DeviceID:       sample.DeviceID,
		EventTime:      sample.EventTime,
		Latitude:       sample.Latitude,
		Longitude:      sample.Longitude,
		Speed:          sample.Speed,
		AccelX:         sample.AccelX,
		AccelY:         sample.AccelY,
		AccelZ:         sample.AccelZ,
		GyroX:          sample.GyroX,
		GyroY:          sample.GyroY,
		GyroZ:          sample.GyroZ,
		EngineTemp:     sample.EngineTemp,
		FuelLevel:      sample.FuelLevel,
		BatteryVoltage: sample.BatteryVoltage,
	}, receivedAt)
	if !result.IsValid {
		return nil, result.Reason
	}

	return &db.TelemetryRecord{
		DeviceID:       strings.TrimSpace(sample.DeviceID),
		EventTime:      eventTime,
		Latitude:       sample.Latitude,
		Longitude:      sample.Longitude,
		Speed:          sample.Speed,
		AccelX:         sample.AccelX,
		AccelY:         sample.AccelY,
		AccelZ:         sample.AccelZ,
		GyroX:          sample.GyroX,
		GyroY:          sample.GyroY,
		GyroZ:          sample.GyroZ,
		EngineTemp:     sample.EngineTemp,
		FuelLevel:      sample.FuelLevel,
		BatteryVoltage: sample.BatteryVoltage,
		RawPayload:     sample.RawPayload,
	}, ""
}
