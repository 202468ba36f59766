package ws

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/proctor/internal/api"
	"github.com/your-org/proctor/internal/auth"
	"github.com/your-org/proctor/internal/pipeline"
)

// RouterConfig bundles what NewRouter needs to wire the proctoring and
// monitor endpoints.
type RouterConfig struct {
	MonitorAPIKey string
	Orchestrator  *pipeline.Orchestrator
}

// NewRouter builds the gin engine exposing /healthz, /readyz, /metrics,
// the unauthenticated /ws/proctor stream, and the optionally API-key-gated
// /ws/monitor supervisor fan-out.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.LoggingMiddleware())
	r.Use(cors.Default())

	r.GET("/healthz", healthz)
	r.GET("/readyz", readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	monitor := NewMonitorHub()
	proctorHandler := NewProctorHandler(cfg.Orchestrator, monitor)

	// No authentication at this boundary: the surrounding system is
	// responsible for gating who may open an examinee session.
	r.GET("/ws/proctor", proctorHandler.Handle)

	monitorGroup := r.Group("/ws")
	monitorGroup.Use(auth.APIKeyMiddleware(cfg.MonitorAPIKey))
	monitorGroup.GET("/monitor", monitor.Handle)

	return r
}

func healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func readyz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
