package donation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	sdkaccess "github.com/askidaforma/askida-forma/sdk/access"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "askida_session"
	// SessionContextKey is the key used to store session in gin.Context.
	SessionContextKey = "donation_session"
	// AccessResultContextKey holds the access result of a header-authenticated admin request.
	AccessResultContextKey = "access_result"
	// RoleVisitor is the role of every anonymous visitor.
	RoleVisitor = "visitor"
	// RoleAdmin is the role of a session that passed the admin password gate.
	RoleAdmin = "admin"
)

// SessionMiddleware attaches the visitor session to the context, creating one and setting
// the cookie when the request has none or an expired one.
func SessionMiddleware(sessionStore *SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionID, err := c.Cookie(SessionCookieName); err == nil && sessionID != "" {
			if session := sessionStore.Get(sessionID); session != nil {
				c.Set(SessionContextKey, session)
				c.Next()
				return
			}
		}

		session, err := sessionStore.Create()
		if err != nil {
			log.WithError(err).Error("failed to create session")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "session_failed",
				"message": "failed to create session",
			})
			return
		}
		SetSessionCookie(c, session.ID, int(sessionStore.TTL().Seconds()))
		c.Set(SessionContextKey, session)
		c.Next()
	}
}

// OptionalSessionMiddleware attaches an existing session without creating one.
func OptionalSessionMiddleware(sessionStore *SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil || sessionID == "" {
			c.Next()
			return
		}
		if session := sessionStore.Get(sessionID); session != nil {
			c.Set(SessionContextKey, session)
		}
		c.Next()
	}
}

// AdminMiddleware lets the request through when the session passed the login gate or the
// request carries the admin password in its headers.
func AdminMiddleware(manager *sdkaccess.Manager, logger *DonationLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAdmin(c) {
			c.Next()
			return
		}

		result, err := manager.Authenticate(c.Request.Context(), c.Request)
		if err == nil {
			c.Set(AccessResultContextKey, result)
			c.Next()
			return
		}

		status := http.StatusUnauthorized
		code := "unauthorized"
		switch {
		case errors.Is(err, sdkaccess.ErrNoProviders):
			status, code = http.StatusForbidden, "admin_disabled"
		case errors.Is(err, sdkaccess.ErrInvalidCredential):
			logger.LogAdminDenied(c.ClientIP(), c.FullPath())
		case errors.Is(err, sdkaccess.ErrNoCredentials):
		default:
			log.WithError(err).Error("admin authentication failed")
			status, code = http.StatusInternalServerError, "internal_error"
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error":   code,
			"message": "admin access required",
		})
	}
}

// GetSessionFromContext retrieves the session from the gin context.
// Returns nil if no session is found.
func GetSessionFromContext(c *gin.Context) *Session {
	value, exists := c.Get(SessionContextKey)
	if !exists {
		return nil
	}
	session, ok := value.(*Session)
	if !ok {
		return nil
	}
	return session
}

// SetSessionCookie sets the session cookie in the response.
func SetSessionCookie(c *gin.Context, sessionID string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		SessionCookieName,
		sessionID,
		maxAge,
		"/",
		"",
		c.Request.TLS != nil,
		true,
	)
}

// ClearSessionCookie clears the session cookie.
func ClearSessionCookie(c *gin.Context) {
	c.SetCookie(SessionCookieName, "", -1, "/", "", false, true)
}

// IsAdmin returns true if the session belongs to an admin.
func IsAdmin(c *gin.Context) bool {
	session := GetSessionFromContext(c)
	if session == nil {
		return false
	}
	return session.Role() == RoleAdmin
}
