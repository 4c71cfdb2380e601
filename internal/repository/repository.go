package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/safedrive-risk/internal/db"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRecentTelemetry returns up to limit samples for a device, most recent first
func (r *Repository) GetRecentTelemetry(ctx context.Context, deviceID string, limit int) ([]db.TelemetrySample, error) {
	query := `
		SELECT speed, accel_x, accel_y, accel_z, gyro_x, gyro_y, gyro_z, event_time
		FROM telemetry_raw
		WHERE device_id = $1
		ORDER BY event_time DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent telemetry: %w", err)
	}
	defer rows.Close()

	samples := make([]db.TelemetrySample, 0, limit)
	for rows.Next() {
		var s db.TelemetrySample
		if err := rows.Scan(
			&s.Speed,
			&s.AccelX,
			&s.AccelY,
			&s.AccelZ,
			&s.GyroX,
			&s.GyroY,
			&s.GyroZ,
			&s.EventTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry sample: %w", err)
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return samples, nil
}

// CountAccidentsSince counts accidents for a device detected strictly after since
func (r *Repository) CountAccidentsSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM accidents
		WHERE device_id = $1 AND detected_at > $2
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, deviceID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recent accidents: %w", err)
	}

	return int(count), nil
}

// InsertPrediction stores a prediction and returns the stored row
func (r *Repository) InsertPrediction(ctx context.Context, p db.NewPrediction) (*db.PredictionRecord, error) {
	query := `
		INSERT INTO ai_predictions (
			media_id, model_name, model_version, prediction_type, confidence, result_json
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, media_id, related_accident_id, model_name, model_version,
			prediction_type, confidence, result_json, created_at
	`

	var (
		record     db.PredictionRecord
		resultJSON []byte
	)
	err := r.pool.QueryRow(ctx, query,
		p.MediaID,
		p.ModelName,
		p.ModelVersion,
		p.PredictionType,
		p.Confidence,
		string(p.ResultJSON),
	).Scan(
		&record.ID,
		&record.MediaID,
		&record.RelatedAccidentID,
		&record.ModelName,
		&record.ModelVersion,
		&record.PredictionType,
		&record.Confidence,
		&resultJSON,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert prediction: %w", err)
	}
	record.ResultJSON = json.RawMessage(resultJSON)

	return &record, nil
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// InsertTelemetryTx inserts a telemetry sample within a transaction
func (r *Repository) InsertTelemetryTx(ctx context.Context, tx pgx.Tx, rec *db.TelemetryRecord) error {
	query := `
		INSERT INTO telemetry_raw (
			device_id, event_time, latitude, longitude, speed,
			accel_x, accel_y, accel_z, gyro_x, gyro_y,
			gyro_z, engine_temp, fuel_level, battery_voltage, raw_payload_json
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	var rawPayload any
	if len(rec.RawPayload) > 0 {
		rawPayload = string(rec.RawPayload)
	}

	_, err := tx.Exec(ctx, query,
		rec.DeviceID,
		rec.EventTime,
		rec.Latitude,
		rec.Longitude,
		rec.Speed,
		rec.AccelX,
		rec.AccelY,
		rec.AccelZ,
		rec.GyroX,
		rec.GyroY,
		rec.GyroZ,
		rec.EngineTemp,
		rec.FuelLevel,
		rec.BatteryVoltage,
		rawPayload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry: %w", err)
	}

	return nil
}
