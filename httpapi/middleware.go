package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const principalKey = "taskhive.userID"

// guard authenticates every request on the protected routes: extract
// the bearer credential, verify it, and stash the user id for handlers.
func (s *Server) guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := s.tr.Extract(c.Request)
		if err != nil {
			s.respondError(c, err)
			return
		}
		uid, err := s.svc.Authenticate(tok)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Set(principalKey, uid)
		c.Next()
	}
}

// principal returns the authenticated user id set by the guard.
func principal(c *gin.Context) uuid.UUID {
	return c.MustGet(principalKey).(uuid.UUID)
}
