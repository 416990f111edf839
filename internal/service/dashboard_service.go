package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-schedule-api/internal/models"
	appErrors "github.com/noah-isme/campus-schedule-api/pkg/errors"
)

type dashboardRepository interface {
	Counts(ctx context.Context) (*models.DashboardCounts, error)
}

// DashboardService assembles the admin overview.
type DashboardService struct {
	repo    dashboardRepository
	metrics *MetricsService
	logger  *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo dashboardRepository, metrics *MetricsService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, metrics: metrics, logger: logger}
}

// Summary returns entity totals plus a runtime metrics snapshot.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard")
	}
	return &models.DashboardSummary{Counts: *counts, Metrics: s.metrics.Snapshot()}, nil
}
