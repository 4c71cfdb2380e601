// Package risk scores driving risk for a device from its recent telemetry and
// accident history.
package risk

import (
	"math"
	"time"
)

// Scoring constants of the SafeDrive risk model, version 1.0.0.
const (
	SpeedDivisor           = 3.0
	SpeedCap               = 40.0
	AccelerationMultiplier = 5.0
	AccelerationCap        = 30.0
	AccidentWeight         = 10.0
	AccidentCap            = 30.0
	MaxScore               = 100
	MediumThreshold        = 40
	HighThreshold          = 70

	// TelemetryWindow is the number of most recent samples considered.
	TelemetryWindow = 50
	// AccidentWindow is the trailing period over which accidents are counted.
	AccidentWindow = 30 * 24 * time.Hour
)

// Model identification written to persisted predictions.
const (
	ModelName      = "SafeDrive-Risk-Model"
	ModelVersion   = "1.0.0"
	PredictionType = "Risk_Assessment"
)

// Level is the categorical bucket of a risk score
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Weights holds the coefficients, caps and thresholds of the scoring formula
type Weights struct {
	SpeedDivisor           float64
	SpeedCap               float64
	AccelerationMultiplier float64
	AccelerationCap        float64
	AccidentWeight         float64
	AccidentCap            float64
	MaxScore               int
	MediumThreshold        int
	HighThreshold          int
}

// DefaultWeights returns the weights of the current model version
func DefaultWeights() Weights {
	return Weights{
		SpeedDivisor:           SpeedDivisor,
		SpeedCap:               SpeedCap,
		AccelerationMultiplier: AccelerationMultiplier,
		AccelerationCap:        AccelerationCap,
		AccidentWeight:         AccidentWeight,
		AccidentCap:            AccidentCap,
		MaxScore:               MaxScore,
		MediumThreshold:        MediumThreshold,
		HighThreshold:          HighThreshold,
	}
}

// Sample is the part of a telemetry reading used for scoring.
// Nil or non-finite fields count as zero.
type Sample struct {
	Speed  *float64
	AccelX *float64
	AccelY *float64
	AccelZ *float64
}

// Magnitude returns the Euclidean norm of the sample's acceleration vector
func (s Sample) Magnitude() float64 {
	x, y, z := valueOrZero(s.AccelX), valueOrZero(s.AccelY), valueOrZero(s.AccelZ)
	return math.Sqrt(x*x + y*y + z*z)
}

// Metrics summarises the inputs behind a score
type Metrics struct {
	AvgSpeed        string `json:"avg_speed"`
	MaxAcceleration string `json:"max_acceleration"`
	RecentAccidents int    `json:"recent_accidents"`
}

// Assessment is the outcome of a scoring run
type Assessment struct {
	RiskScore int     `json:"risk_score"`
	RiskLevel Level   `json:"risk_level"`
	Metrics   Metrics `json:"metrics"`
}

// Confidence is the model confidence attached to a persisted assessment.
// It assumes the score lies in [0, MaxScore].
func (a Assessment) Confidence() float64 {
	return float64(100-a.RiskScore) / 100
}

// Engine computes risk assessments with a fixed set of weights
type Engine struct {
	weights Weights
}

// NewEngine creates a new engine with the specified weights
func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Assess scores a device from its recent samples (most recent first) and the
// number of accidents inside the accident window.
func (e *Engine) Assess(samples []Sample, recentAccidents int) Assessment {
	if recentAccidents < 0 {
		recentAccidents = 0
	}

	var score, avgSpeed, maxAccel float64

	if len(samples) > 0 {
		sum := 0.0
		for _, s := range samples {
			sum += valueOrZero(s.Speed)
			if m := s.Magnitude(); m > maxAccel {
				maxAccel = m
			}
		}
		avgSpeed = sum / float64(len(samples))

		score += math.Min(avgSpeed/e.weights.SpeedDivisor, e.weights.SpeedCap)
		score += math.Min(maxAccel*e.weights.AccelerationMultiplier, e.weights.AccelerationCap)
	}

	score += math.Min(float64(recentAccidents)*e.weights.AccidentWeight, e.weights.AccidentCap)

	// Rounded once, after all contributions are summed.
	riskScore := int(math.Round(score))
	if riskScore > e.weights.MaxScore {
		riskScore = e.weights.MaxScore
	}
	if riskScore < 0 {
		riskScore = 0
	}

	return Assessment{
		RiskScore: riskScore,
		RiskLevel: e.Level(riskScore),
		Metrics: Metrics{
			AvgSpeed:        FormatFixed(avgSpeed, 2),
			MaxAcceleration: FormatFixed(maxAccel, 2),
			RecentAccidents: recentAccidents,
		},
	}
}

// Level maps a score to its bucket. Threshold values belong to the lower bucket.
func (e *Engine) Level(score int) Level {
	switch {
	case score > e.weights.HighThreshold:
		return LevelHigh
	case score > e.weights.MediumThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return *v
}
