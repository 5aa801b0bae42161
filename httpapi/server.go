package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/calmops/taskhive/storage"
	"github.com/calmops/taskhive/tracker"
	"github.com/calmops/taskhive/transport"
)

// Server wires the HTTP surface to the application core.
type Server struct {
	svc *tracker.Service
	tr  *transport.Transport
	log zerolog.Logger
}

func NewServer(svc *tracker.Service, tr *transport.Transport, log zerolog.Logger) *Server {
	return &Server{svc: svc, tr: tr, log: log}
}

// Router builds the gin engine with all routes mounted under /v1.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1")
	{
		v1.POST("/register", s.handleRegister)
		v1.POST("/login", s.handleLogin)
		v1.POST("/refresh", s.handleRefresh)
		v1.POST("/logout", s.handleLogout)
		v1.POST("/password_reset/request", s.handlePasswordResetRequest)
		v1.POST("/password_reset/confirm", s.handlePasswordResetConfirm)

		authed := v1.Group("", s.guard())
		{
			authed.GET("/me", s.handleMe)
			authed.GET("/sessions", s.handleSessions)
			authed.POST("/logout_all", s.handleLogoutAll)

			authed.GET("/projects", s.handleListProjects)
			authed.GET("/projects/owned", s.handleListOwnedProjects)
			authed.POST("/projects", s.handleCreateProject)
			authed.GET("/projects/:id", s.handleGetProject)
			authed.PATCH("/projects/:id", s.handleUpdateProject)
			authed.DELETE("/projects/:id", s.handleDeleteProject)
			authed.POST("/projects/:id/members", s.handleAddProjectMember)
			authed.DELETE("/projects/:id/members/:userID", s.handleRemoveProjectMember)

			authed.GET("/projects/:id/tasks", s.handleListProjectTasks)
			authed.POST("/projects/:id/tasks", s.handleCreateTask)
			authed.GET("/tasks/:id", s.handleGetTask)
			authed.PATCH("/tasks/:id", s.handleUpdateTask)
			authed.DELETE("/tasks/:id", s.handleDeleteTask)
			authed.POST("/tasks/:id/assignees", s.handleAddTaskAssignee)
			authed.DELETE("/tasks/:id/assignees/:userID", s.handleRemoveTaskAssignee)
		}
	}

	return r
}

// respondError maps the core's closed error set onto HTTP statuses. All
// credential failures collapse to a bare 401 so the response carries no
// signal about which check tripped; the distinct reasons live in logs.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracker.ErrUnauthorized), errors.Is(err, transport.ErrNoCredential):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, tracker.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, tracker.ErrEmailTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email already registered"})
	case errors.Is(err, storage.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, storage.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
