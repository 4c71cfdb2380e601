package db

import (
	"encoding/json"
	"time"
)

// TelemetrySample is one row of telemetry_raw as read by the risk engine.
// Sensor columns are nullable; a nil pointer means the device did not report it.
type TelemetrySample struct {
	Speed     *float64
	AccelX    *float64
	AccelY    *float64
	AccelZ    *float64
	GyroX     *float64
	GyroY     *float64
	GyroZ     *float64
	EventTime time.Time
}

// TelemetryRecord is a full telemetry_raw row written by the ingest path
type TelemetryRecord struct {
	DeviceID       string
	EventTime      time.Time
	Latitude       *float64
	Longitude      *float64
	Speed          *float64
	AccelX         *float64
	AccelY         *float64
	AccelZ         *float64
	GyroX          *float64
	GyroY          *float64
	GyroZ          *float64
	EngineTemp     *float64
	FuelLevel      *float64
	BatteryVoltage *float64
	RawPayload     []byte
}

// PredictionRecord represents a row of ai_predictions
type PredictionRecord struct {
	ID                int64           `json:"id"`
	MediaID           int64           `json:"media_id"`
	RelatedAccidentID *int64          `json:"related_accident_id"`
	ModelName         string          `json:"model_name"`
	ModelVersion      string          `json:"model_version"`
	PredictionType    string          `json:"prediction_type"`
	Confidence        float64         `json:"confidence"`
	ResultJSON        json.RawMessage `json:"result_json"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewPrediction holds the fields supplied when inserting a prediction
type NewPrediction struct {
	MediaID        int64
	ModelName      string
	ModelVersion   string
	PredictionType string
	Confidence     float64
	ResultJSON     json.RawMessage
}
