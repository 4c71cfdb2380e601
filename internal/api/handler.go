package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/safedrive-risk/internal/logging"
	"github.com/septivank/safedrive-risk/internal/service"
	"go.uber.org/zap"
)

// RiskAssessor computes device risk assessments
type RiskAssessor interface {
	AssessRisk(ctx context.Context, req service.RiskRequest) (*service.Prediction, error)
}

// Handler serves the prediction endpoints
type Handler struct {
	risk   RiskAssessor
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(risk RiskAssessor, logger *zap.Logger) *Handler {
	return &Handler{risk: risk, logger: logger, now: time.Now}
}

type predictRiskRequest struct {
	DeviceID string `json:"device_id"`
	MediaID  *int64 `json:"media_id"`
}

type fieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// PredictRisk handles POST /api/ai/predict-risk
func (h *Handler) PredictRisk(c *gin.Context) {
	var req predictRiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, bindError(err))
		return
	}

	pred, err := h.risk.AssessRisk(c.Request.Context(), service.RiskRequest{
		DeviceID: req.DeviceID,
		MediaID:  req.MediaID,
	})
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			validationFailed(c, fieldError{Path: "body." + vErr.Field, Message: vErr.Message})
			return
		}

		logging.WithRequestID(h.logger, requestID(c)).Error("error in predict risk",
			zap.Error(err),
			zap.String("device_id", req.DeviceID),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error during prediction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"prediction": pred.Payload(),
	})
}

// Health handles GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Backend is running",
		"time":    h.now().UTC(),
	})
}

// NotFound renders unknown routes as JSON
func (h *Handler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Route " + c.Request.URL.RequestURI() + " not found"})
}

func validationFailed(c *gin.Context, details ...fieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Validation failed",
		"details": details,
	})
}

// bindError maps a decode failure to the field it concerns when the body was
// valid JSON with a wrongly typed value.
func bindError(err error) fieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fieldError{Path: "body." + typeErr.Field, Message: "Expected " + expectedType(typeErr.Type)}
	}
	return fieldError{Path: "body", Message: err.Error()}
}

func expectedType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	default:
		return t.Kind().String()
	}
}
