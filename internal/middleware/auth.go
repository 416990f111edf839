package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/service"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
	"github.com/noah-isme/campus-schedule-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing the authenticated *models.User.
	ContextUserKey = "currentUser"
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "auth_token"
)

type tokenVerifier interface {
	Verify(token string) (*models.Claims, error)
}

type identityLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticate requires a valid session token and loads the user it names.
// The cookie wins over the Authorization header when both are present.
func Authenticate(tokens tokenVerifier, users identityLookup, metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := sessionToken(c)
		if raw == "" {
			metrics.RecordAuthRejection(service.RejectMissingToken)
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			return
		}

		claims, err := tokens.Verify(raw)
		if err != nil {
			metrics.RecordAuthRejection(service.RejectInvalidToken)
			response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired session"))
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				metrics.RecordAuthRejection(service.RejectUnknownUser)
				response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists"))
				return
			}
			response.Abort(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session user"))
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RedirectAuthenticated stops login and registration for callers that already
// hold a valid session and tells them where to go instead.
func RedirectAuthenticated(tokens tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := sessionToken(c)
		if raw == "" {
			c.Next()
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusConflict, response.Envelope{
			Error: appErrors.ErrAlreadyAuthenticated,
			Meta:  map[string]interface{}{"redirect": claims.Role.HomePath()},
		})
	}
}

// CurrentUser returns the identity stored by Authenticate.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
