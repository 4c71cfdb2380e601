package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/septivank/safedrive-risk/internal/config"
	"github.com/septivank/safedrive-risk/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with middleware and routes
func NewRouter(cfg *config.Config, logger *zap.Logger, h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(
		Recovery(logger),
		RequestID(),
		AccessLog(logger),
		metrics.Middleware(),
		CORS(cfg.HTTP.CORSAllowedOrigins),
	)

	router.GET("/api/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ai := router.Group("/api/ai")
	ai.POST("/predict-risk", h.PredictRisk)

	router.NoRoute(h.NotFound)

	return router
}

// NewServer creates the HTTP server and binds it to the fx lifecycle
func NewServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, router *gin.Engine) *http.Server {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("[HTTP] failed to listen on %s: %w", srv.Addr, err)
			}
			logger.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})

	return srv
}
