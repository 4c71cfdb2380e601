package timeparser

import (
	"fmt"
	"strings"
	"time"
)

var eventTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05", // device local clock without offset, read as UTC
	"2006-01-02 15:04:05", // same, space separated
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss (legacy OBD gateways)
}

// ParseEventTime parses a device event timestamp, trying each supported layout in turn
func ParseEventTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	var lastErr error
	for _, layout := range eventTimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", value, lastErr)
}

// IsWithinTolerance checks if the event timestamp is within tolerance of the received time
func IsWithinTolerance(eventTime, receivedTime time.Time, toleranceMinutes int) bool {
	diff := eventTime.Sub(receivedTime)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceMinutes)*time.Minute
}
