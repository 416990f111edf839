package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-schedule-api/internal/middleware"
	"github.com/noah-isme/campus-schedule-api/internal/models"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
	"github.com/noah-isme/campus-schedule-api/pkg/response"
)

// currentUser returns the authenticated user or writes a 401 and returns nil.
func currentUser(c *gin.Context) *models.User {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return user
}

func bindError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
