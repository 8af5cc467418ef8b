// Package httpapi exposes the orchestrators over HTTP. It is a thin shell:
// request shaping, auth and status-code translation live here, all domain
// behavior stays in the orchestrator packages.
package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dply/internal/config"
	"dply/internal/orchestrator"
	"dply/internal/store"
)

// Server wires the HTTP routes to the orchestrators.
type Server struct {
	cfg          config.Config
	users        store.Users
	environments *orchestrator.Service
	teams        *orchestrator.Teams
}

// NewServer creates the HTTP layer.
func NewServer(cfg config.Config, st *store.Store, environments *orchestrator.Service, teams *orchestrator.Teams) *Server {
	return &Server{
		cfg:          cfg,
		users:        st.Users,
		environments: environments,
		teams:        teams,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID())

	router.POST("/api/v1/auth/register", s.register)
	router.POST("/api/v1/auth/login", s.login)

	authed := router.Group("/api/v1", authMiddleware(s.cfg.Auth.JWTSecret))
	{
		authed.GET("/environments", s.listEnvironments)
		authed.POST("/environments", s.createEnvironment)
		authed.GET("/environments/:id", s.getEnvironment)
		authed.DELETE("/environments/:id", s.deleteEnvironment)
		authed.POST("/environments/:id/cancel", s.cancelProvisioning)
		authed.GET("/environments/:id/teams", s.listTeams)
		authed.POST("/environments/:id/teams", s.createTeam)
		authed.GET("/me/environments", s.myEnvironments)
	}

	return router
}

// requestID tags every request so log lines across the async boundary can
// be correlated.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
