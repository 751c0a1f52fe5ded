// Package web exposes the scheduling core over the JSON-RPC surface the
// frontend speaks: POST /api with getQuestions, getNextQuestion and
// provideAnswer, plus a GET /health probe.
package web

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jomof/kana-game/internal/catalog"
	"github.com/jomof/kana-game/internal/config"
	"github.com/jomof/kana-game/internal/scheduler"
)

// Server holds the dependencies for the HTTP server. Scheduling engines are
// acquired per request and closed when the request is done; the only state
// shared across requests is the catalog cache.
type Server struct {
	cfg     *config.Config
	catalog *catalog.Loader
	acquire func(user string) (*scheduler.Engine, error)
}

// NewServer creates and configures a new server.
func NewServer(cfg *config.Config, loader *catalog.Loader) *Server {
	return &Server{
		cfg:     cfg,
		catalog: loader,
		acquire: func(user string) (*scheduler.Engine, error) {
			return scheduler.ForUser(cfg.DataDir, user)
		},
	}
}

// Router builds the gin engine with CORS, the health probe, and the JSON-RPC
// endpoint.
func (s *Server) Router() *gin.Engine {
	router := gin.Default()

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "X-Requested-With"},
	}
	if len(s.cfg.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = s.cfg.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	router.Use(cors.New(corsCfg))

	router.GET("/health", handleHealth)
	router.POST("/api", s.handleRPC)

	return router
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
