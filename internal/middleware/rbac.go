package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	"github.com/noah-isme/campus-schedule-api/internal/service"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
	"github.com/noah-isme/campus-schedule-api/pkg/response"
)

// Role sets used by route groups. Admin is listed explicitly in every set.
var (
	Admin         = []models.UserRole{models.RoleAdmin}
	TeacherAccess = []models.UserRole{models.RoleAdmin, models.RoleTeacher}
	StudentAccess = []models.UserRole{models.RoleAdmin, models.RoleStudent}
	AnyRole       = []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleStudent}
)

// RequireRoles admits only identities whose role is in roles. It must run
// after Authenticate.
func RequireRoles(metrics *service.MetricsService, roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			metrics.RecordAuthRejection(service.RejectMissingToken)
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			metrics.RecordAuthRejection(service.RejectForbiddenRole)
			response.Abort(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
