package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// ReportService exposes the reporting aggregations. All methods are pure
// reads over persisted state, recomputed on every call.
type ReportService struct {
	reports repositories.ReportRepository
	log     zerolog.Logger
}

// NewReportService creates a new report service
func NewReportService(reports repositories.ReportRepository, logger zerolog.Logger) *ReportService {
	return &ReportService{
		reports: reports,
		log:     logger.With().Str("component", "report_service").Logger(),
	}
}

// FinancialSummary totals revenue and completed visits in the inclusive
// date range.
func (s *ReportService) FinancialSummary(ctx context.Context, start, end time.Time) (*entities.FinancialSummary, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	return s.reports.FinancialSummary(ctx, start, end)
}

// DailyFinancialReport breaks the range down per checkout day
func (s *ReportService) DailyFinancialReport(ctx context.Context, start, end time.Time) ([]*entities.DailyFinancialRow, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	return s.reports.DailyFinancialReport(ctx, start, end)
}

// HourlyAnalytics aggregates wait and consultation times per arrival hour
func (s *ReportService) HourlyAnalytics(ctx context.Context) ([]*entities.HourlyAnalyticsRow, error) {
	return s.reports.HourlyAnalytics(ctx)
}

// MonthlyPerformance aggregates per-month practice metrics
func (s *ReportService) MonthlyPerformance(ctx context.Context, months int) ([]*entities.MonthlyPerformanceRow, error) {
	return s.reports.MonthlyPerformance(ctx, months)
}

// ServicesSummary aggregates usage count and revenue per service
func (s *ReportService) ServicesSummary(ctx context.Context) ([]*entities.ServiceUsageRow, error) {
	return s.reports.ServicesSummary(ctx)
}

// SearchPatients finds patients by name substring with visit aggregates
func (s *ReportService) SearchPatients(ctx context.Context, term string) ([]*entities.PatientSearchRow, error) {
	return s.reports.SearchPatients(ctx, term)
}

func validateRange(start, end time.Time) error {
	if end.Before(start) {
		return apperrors.NewValidationError("end date is before start date")
	}
	return nil
}
