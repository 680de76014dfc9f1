// Package server exposes the scoring service over HTTP and streams alerts
// over WebSocket.
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/sentinelpay/sentinel/internal/config"
	"github.com/sentinelpay/sentinel/internal/risk"
)

// Server wires HTTP routes to the risk service.
type Server struct {
	logger *zap.Logger
	svc    *risk.Service
	hub    *Hub
	cfg    config.ServerConfig
}

// NewServer creates the HTTP server. hub may be nil when the alert feed is
// disabled.
func NewServer(logger *zap.Logger, svc *risk.Service, hub *Hub, cfg config.ServerConfig) *Server {
	return &Server{logger: logger, svc: svc, hub: hub, cfg: cfg}
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()

	router.Use(ginzap.Ginzap(s.logger, "2006-01-02T15:04:05Z07:00", true))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(otelgin.Middleware("sentinel"))

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) == 1 && s.cfg.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if s.hub != nil {
		router.GET("/ws/alerts", s.handleAlertFeed)
	}

	v1 := router.Group("/api/v1")
	{
		txns := v1.Group("/transactions")
		{
			txns.POST("/score", s.handleScore)
			txns.POST("/:id/explain", s.handleExplain)
		}
		patterns := v1.Group("/patterns")
		{
			patterns.POST("/detect", s.handleDetectPatterns)
			patterns.GET("", s.handleListPatterns)
			patterns.GET("/:id", s.handleGetPattern)
		}
	}

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"model_version": s.svc.ModelVersion(),
	})
}
