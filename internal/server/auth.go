package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auditdomain "github.com/stackdesk/stackdesk/internal/audit/domain"
	authdomain "github.com/stackdesk/stackdesk/internal/auth/domain"
	"github.com/stackdesk/stackdesk/internal/auth/session"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// sessionUser is the client-visible shape of an authenticated user.
type sessionUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func toSessionUser(user *authdomain.User) sessionUser {
	return sessionUser{
		ID:          user.ID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
	}
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	if !s.allowLogin(c, email) {
		return
	}

	result, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		s.obsMetrics.RecordLoginAttempt(c.Request.Context(), "failure")
		if s.auditSvc != nil {
			_ = s.auditSvc.AuditLog(c.Request.Context(), nil, auditdomain.ActorTypeUser, nil, "user.login_failed", "user", nil, map[string]any{
				"email": email,
			})
		}
		AbortWithError(c, err)
		return
	}

	userPayload, _ := json.Marshal(toSessionUser(result.User))
	if err := s.sessions.Write(c, session.Envelope{
		Token:     result.RawToken,
		ExpiresAt: result.ExpiresAt,
		User:      userPayload,
	}); err != nil {
		AbortWithError(c, ErrInternal)
		return
	}

	s.obsMetrics.RecordLoginAttempt(c.Request.Context(), "success")
	if s.auditSvc != nil {
		userID := result.User.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, auditdomain.ActorTypeUser, &userID, "user.login", "user", &userID, map[string]any{
			"email": email,
		})
	}

	c.JSON(http.StatusOK, gin.H{"user": toSessionUser(result.User)})
}

// allowLogin applies the per-address and per-email buckets. Limiter
// outages fail open: a redis blip must not lock every tenant out.
func (s *Server) allowLogin(c *gin.Context, email string) bool {
	if !s.loginLimiter.Enabled() {
		return true
	}

	ipResult, err := s.loginLimiter.AllowIP(c.Request.Context(), c.ClientIP())
	if err == nil && !ipResult.Allowed {
		s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "login", "ip")
		AbortWithError(c, ErrTooManyRequests)
		return false
	}

	emailResult, err := s.loginLimiter.AllowEmail(c.Request.Context(), email)
	if err == nil && !emailResult.Allowed {
		s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "login", "email")
		AbortWithError(c, ErrTooManyRequests)
		return false
	}

	return true
}

// Session reports the current user, or null when the cookie is absent
// or invalid. This endpoint never fails: the SPA polls it on boot and
// an error page here would wedge every portal.
func (s *Server) Session(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	token, ok := s.sessions.ReadToken(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	sess, err := s.authSvc.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	user, err := s.authSvc.UserByID(c.Request.Context(), sess.UserID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toSessionUser(user)})
}

// Logout revokes the session and clears every cookie slice on both
// domain scopes. Always replies ok: logout must succeed from the
// client's point of view even when the token is already dead.
func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		if err := s.authSvc.Logout(c.Request.Context(), token); err != nil {
			s.log.Warn("logout revocation failed", zap.Error(err))
		} else if s.auditSvc != nil {
			_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "user.logout", "user", nil, nil)
		}
	}

	s.sessions.Clear(c)
	s.bootstrapCtx.Logout()

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ChangePassword(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	currentPassword := strings.TrimSpace(req.CurrentPassword)
	newPassword := strings.TrimSpace(req.NewPassword)
	if currentPassword == "" {
		AbortWithError(c, newValidationError("current_password", "required", "current password is required"))
		return
	}
	if newPassword == "" {
		AbortWithError(c, newValidationError("new_password", "required", "new password is required"))
		return
	}
	if currentPassword == newPassword {
		AbortWithError(c, newValidationError("new_password", "must_differ", "new password must be different"))
		return
	}
	if len(newPassword) < 8 {
		AbortWithError(c, newValidationError("new_password", "weak_password", "password must be at least 8 characters"))
		return
	}

	verify, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:    user.Email,
		Password: currentPassword,
	})
	if err != nil {
		AbortWithError(c, newValidationError("current_password", "incorrect", "current password is incorrect"))
		return
	}
	// The verification login opened a throwaway session.
	_ = s.authSvc.Logout(c.Request.Context(), verify.RawToken)

	if err := s.authSvc.ChangePassword(c.Request.Context(), user.ID, newPassword); err != nil {
		AbortWithError(c, err)
		return
	}

	if s.auditSvc != nil {
		userID := user.ID.String()
		_ = s.auditSvc.AuditLog(c.Request.Context(), nil, "", nil, "user.password_changed", "user", &userID, nil)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) ListIdentities(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	identities, err := s.authSvc.ListIdentities(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identities": identities})
}

type linkIdentityRequest struct {
	Provider   string `json:"provider" binding:"required"`
	ProviderID string `json:"provider_id" binding:"required"`
	Email      string `json:"email"`
}

func (s *Server) LinkIdentity(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req linkIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	identity, err := s.authSvc.LinkIdentity(c.Request.Context(), authdomain.LinkIdentityRequest{
		UserID:     user.ID,
		Provider:   req.Provider,
		ProviderID: req.ProviderID,
		Email:      req.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (s *Server) UnlinkIdentity(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	identityID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authSvc.UnlinkIdentity(c.Request.Context(), user.ID, identityID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
