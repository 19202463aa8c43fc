package serve

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dtnitsch/llm-archive-reader/internal/mcp"
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBytes = 4 << 20

// HealthFunc reports service health.
type HealthFunc func() models.HealthStatus

// NewRouter builds the HTTP transport: POST /mcp, GET /health and GET /metrics.
func NewRouter(srv *mcp.Server, health HealthFunc, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			logger.String("path", c.Request.URL.Path),
			logger.Any("panic", recovered),
		)
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	router.Use(loggerMiddleware(log))

	router.POST("/mcp", mcpHandler(srv))
	router.GET("/health", healthHandler(health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func mcpHandler(srv *mcp.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, &mcp.Response{
				JSONRPC: "2.0",
				Error:   &mcp.ErrorObject{Code: mcp.ParseError, Message: "Failed to read request"},
			})
			return
		}
		resp := srv.HandleMessage(body)
		if resp == nil {
			c.Status(http.StatusAccepted)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func healthHandler(health HealthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := health()
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	}
}

// loggerMiddleware logs method, path, status and duration of every request.
func loggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			errs := make([]string, len(c.Errors))
			for i, e := range c.Errors {
				errs[i] = e.Err.Error()
			}
			fields = append(fields, logger.Strings("errors", errs))
			log.Error("HTTP request with errors", fields...)
			return
		}
		if strings.HasPrefix(path, "/health") || path == "/metrics" {
			log.Debug("HTTP request", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}
