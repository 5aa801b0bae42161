package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	u, err := s.svc.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	RedirectTo string `json:"redirect_to"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	creds, err := s.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.tr.DeliverTokens(c.Writer, c.Request, creds.AccessToken, creds.Session.ID, req.RedirectTo); err != nil {
		s.respondError(c, err)
	}
}

type refreshRequest struct {
	SessionID string `json:"session_id"`
}

// handleRefresh exchanges a possibly-expired access token for a fresh
// one. The session id comes from the session cookie for browser clients
// and from the body for API clients.
func (s *Server) handleRefresh(c *gin.Context) {
	tok, err := s.tr.Extract(c.Request)
	if err != nil {
		s.respondError(c, err)
		return
	}

	sessionID, ok := s.tr.SessionID(c.Request)
	if !ok {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		sessionID = req.SessionID
	}

	creds, err := s.svc.Refresh(c.Request.Context(), sessionID, tok)
	if err != nil {
		// A failed refresh ends the session client-side too.
		s.tr.ClearCredentials(c.Writer)
		s.respondError(c, err)
		return
	}
	if err := s.tr.DeliverTokens(c.Writer, c.Request, creds.AccessToken, creds.Session.ID, ""); err != nil {
		s.respondError(c, err)
	}
}

func (s *Server) handleLogout(c *gin.Context) {
	sessionID, ok := s.tr.SessionID(c.Request)
	if !ok {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			sessionID = req.SessionID
		}
	}

	if sessionID != "" {
		if err := s.svc.Logout(c.Request.Context(), sessionID); err != nil {
			s.respondError(c, err)
			return
		}
	}
	s.tr.ClearCredentials(c.Writer)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(c *gin.Context) {
	if err := s.svc.LogoutAll(c.Request.Context(), principal(c)); err != nil {
		s.respondError(c, err)
		return
	}
	s.tr.ClearCredentials(c.Writer)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := s.svc.Me(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.svc.Sessions(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

type passwordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (s *Server) handlePasswordResetRequest(c *gin.Context) {
	var req passwordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	// The token goes to the delivery channel, never into the response;
	// the endpoint answers identically whether or not the email exists.
	if _, err := s.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

type passwordResetConfirm struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *Server) handlePasswordResetConfirm(c *gin.Context) {
	var req passwordResetConfirm
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	if err := s.svc.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
