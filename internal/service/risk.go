package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/septivank/safedrive-risk/internal/db"
	"github.com/septivank/safedrive-risk/internal/logging"
	"github.com/septivank/safedrive-risk/internal/metrics"
	"github.com/septivank/safedrive-risk/internal/risk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TelemetryReader loads the most recent telemetry of a device
type TelemetryReader interface {
	GetRecentTelemetry(ctx context.Context, deviceID string, limit int) ([]db.TelemetrySample, error)
}

// AccidentReader counts accidents of a device detected strictly after a cutoff
type AccidentReader interface {
	CountAccidentsSince(ctx context.Context, deviceID string, since time.Time) (int, error)
}

// PredictionWriter stores predictions
type PredictionWriter interface {
	InsertPrediction(ctx context.Context, p db.NewPrediction) (*db.PredictionRecord, error)
}

// RiskRequest identifies the device to assess. A non-nil MediaID persists the result.
type RiskRequest struct {
	DeviceID string
	MediaID  *int64
}

// Prediction is the outcome of AssessRisk. Record is set only when the
// assessment was persisted.
type Prediction struct {
	Assessment risk.Assessment
	Record     *db.PredictionRecord
}

// Payload returns the value reported to callers: the stored record when there
// is one, the raw assessment otherwise.
func (p *Prediction) Payload() any {
	if p.Record != nil {
		return p.Record
	}
	return p.Assessment
}

// RiskService loads device history, scores it and optionally persists the result
type RiskService struct {
	telemetry   TelemetryReader
	accidents   AccidentReader
	predictions PredictionWriter
	engine      *risk.Engine
	logger      *zap.Logger
	now         func() time.Time
}

// NewRiskService creates a new risk service
func NewRiskService(
	telemetry TelemetryReader,
	accidents AccidentReader,
	predictions PredictionWriter,
	engine *risk.Engine,
	logger *zap.Logger,
) *RiskService {
	return &RiskService{
		telemetry:   telemetry,
		accidents:   accidents,
		predictions: predictions,
		engine:      engine,
		logger:      logger,
		now:         time.Now,
	}
}

// AssessRisk computes the risk assessment of a device
func (s *RiskService) AssessRisk(ctx context.Context, req RiskRequest) (pred *Prediction, err error) {
	start := time.Now()
	defer func() {
		metrics.AssessmentDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.AssessmentFailuresTotal.WithLabelValues(errorKind(err)).Inc()
			return
		}
		metrics.AssessmentsTotal.WithLabelValues(string(pred.Assessment.RiskLevel)).Inc()
	}()

	deviceID := req.DeviceID
	if strings.TrimSpace(deviceID) == "" {
		return nil, &ValidationError{Field: "device_id", Message: "device_id is required"}
	}
	if req.MediaID != nil && *req.MediaID <= 0 {
		return nil, &ValidationError{Field: "media_id", Message: "media_id must be a positive integer"}
	}

	logger := logging.WithDevice(s.logger, deviceID)
	cutoff := s.now().Add(-risk.AccidentWindow)

	var (
		samples         []db.TelemetrySample
		recentAccidents int
		g               errgroup.Group
	)
	g.Go(func() error {
		rows, err := s.telemetry.GetRecentTelemetry(ctx, deviceID, risk.TelemetryWindow)
		if err != nil {
			return &DataAccessError{Op: "recent telemetry", Err: err}
		}
		samples = rows
		return nil
	})
	g.Go(func() error {
		count, err := s.accidents.CountAccidentsSince(ctx, deviceID, cutoff)
		if err != nil {
			return &DataAccessError{Op: "recent accidents", Err: err}
		}
		recentAccidents = count
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	assessment := s.engine.Assess(toRiskSamples(samples), recentAccidents)
	logger.Debug("risk assessed",
		zap.Int("samples", len(samples)),
		zap.Int("recent_accidents", recentAccidents),
		zap.Int("risk_score", assessment.RiskScore),
		zap.String("risk_level", string(assessment.RiskLevel)),
	)

	pred = &Prediction{Assessment: assessment}
	if req.MediaID == nil {
		return pred, nil
	}

	resultJSON, err := json.Marshal(assessment)
	if err != nil {
		return nil, &PersistenceError{Err: fmt.Errorf("failed to marshal assessment: %w", err)}
	}

	record, err := s.predictions.InsertPrediction(ctx, db.NewPrediction{
		MediaID:        *req.MediaID,
		ModelName:      risk.ModelName,
		ModelVersion:   risk.ModelVersion,
		PredictionType: risk.PredictionType,
		Confidence:     assessment.Confidence(),
		ResultJSON:     resultJSON,
	})
	if err != nil {
		return nil, &PersistenceError{Err: err}
	}

	logger.Info("prediction stored",
		zap.Int64("prediction_id", record.ID),
		zap.Int64("media_id", record.MediaID),
	)
	pred.Record = record

	return pred, nil
}

func toRiskSamples(rows []db.TelemetrySample) []risk.Sample {
	samples := make([]risk.Sample, len(rows))
	for i, row := range rows {
		samples[i] = risk.Sample{
			Speed:  row.Speed,
			AccelX: row.AccelX,
			AccelY: row.AccelY,
			AccelZ: row.AccelZ,
		}
	}
	return samples
}
