package validator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/septivank/safedrive-risk/tools/timeparser"
)

// ValidationResult holds validation outcome
type ValidationResult struct {
	IsValid bool
	Reason  string
}

// TelemetryData represents a single telemetry sample as reported by a device
type TelemetryData struct {
	DeviceID       string
	EventTime      string
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
}

// Validator handles telemetry validation with configurable parameters
type Validator struct {
	eventTimeToleranceMinutes int
}

// NewValidator creates a new validator with the specified tolerance
func NewValidator(eventTimeToleranceMinutes int) *Validator {
	return &Validator{
		eventTimeToleranceMinutes: eventTimeToleranceMinutes,
	}
}

// ValidateTelemetry validates a telemetry sample and returns its parsed event time
func (v *Validator) ValidateTelemetry(data TelemetryData, receivedAt time.Time) (time.Time, ValidationResult) {
	if strings.TrimSpace(data.DeviceID) == "" {
		return time.Time{}, invalid("device_id is required")
	}

	eventTime, err := timeparser.ParseEventTime(data.EventTime)
	if err != nil {
		return time.Time{}, invalid(fmt.Sprintf("invalid event_time: %v", err))
	}

	if !timeparser.IsWithinTolerance(eventTime, receivedAt, v.eventTimeToleranceMinutes) {
		return eventTime, invalid(fmt.Sprintf("event_time outside tolerance window (±%d minutes)", v.eventTimeToleranceMinutes))
	}

	for _, field := range []struct {
		name  string
		value *float64
	}{
		{"latitude", data.Latitude},
		{"longitude", data.Longitude},
		{"speed", data.Speed},
		{"accel_x", data.AccelX},
		{"accel_y", data.AccelY},
		{"accel_z", data.AccelZ},
		{"gyro_x", data.GyroX},
		{"gyro_y", data.GyroY},
		{"gyro_z", data.GyroZ},
		{"engine_temp", data.EngineTemp},
		{"fuel_level", data.FuelLevel},
		{"battery_voltage", data.BatteryVoltage},
	} {
		if field.value != nil && (math.IsNaN(*field.value) || math.IsInf(*field.value, 0)) {
			return eventTime, invalid(fmt.Sprintf("%s is not a finite number", field.name))
		}
	}

	if data.Speed != nil && *data.Speed < 0 {
		return eventTime, invalid("negative speed detected")
	}
	if data.Latitude != nil && math.Abs(*data.Latitude) > 90 {
		return eventTime, invalid("latitude out of range")
	}
	if data.Longitude != nil && math.Abs(*data.Longitude) > 180 {
		return eventTime, invalid("longitude out of range")
	}

	return eventTime, ValidationResult{IsValid: true}
}

func invalid(reason string) ValidationResult {
	return ValidationResult{IsValid: false, Reason: reason}
}
