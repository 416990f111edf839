package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-schedule-api/internal/models"
)

type fakeDashboardSrv struct {
	summary *models.DashboardSummary
	err     error
}

func (f *fakeDashboardSrv) Summary(context.Context) (*models.DashboardSummary, error) {
	return f.summary, f.err
}

func TestDashboardHandlerAdminSuccess(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{summary: &models.DashboardSummary{
		Counts: models.DashboardCounts{Users: 10, Teachers: 2, Groups: 3},
	}})
	rec, c := newTestContext(http.MethodGet, "/admin/dashboard", nil, adminUser)

	handler.Admin(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"teachers":2`)
}

func TestDashboardHandlerAdminFailure(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{err: errors.New("db down")})
	rec, c := newTestContext(http.MethodGet, "/admin/dashboard", nil, adminUser)

	handler.Admin(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, c.Errors, 1)
}
