package repositories

import (
	"context"
	"time"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
)

// ReportRepository defines read-only aggregate queries over persisted
// visits, services and patients. Implementations must return zero/empty
// defaults for empty result sets, never an error for "no rows".
// Cancelled visits are excluded from revenue and visit counts.
type ReportRepository interface {
	// FinancialSummary totals revenue and completed visits whose checkout
	// falls inside the inclusive date range.
	FinancialSummary(ctx context.Context, start, end time.Time) (*entities.FinancialSummary, error)

	// DailyFinancialReport breaks the range down per checkout day, newest
	// first, listing the distinct services billed that day.
	DailyFinancialReport(ctx context.Context, start, end time.Time) ([]*entities.DailyFinancialRow, error)

	// HourlyAnalytics aggregates average wait and consultation minutes
	// per arrival hour, busiest hours first.
	HourlyAnalytics(ctx context.Context) ([]*entities.HourlyAnalyticsRow, error)

	// MonthlyPerformance aggregates per-month practice metrics, newest
	// first, at most limit months.
	MonthlyPerformance(ctx context.Context, limit int) ([]*entities.MonthlyPerformanceRow, error)

	// ServicesSummary aggregates usage count and revenue per service
	ServicesSummary(ctx context.Context) ([]*entities.ServiceUsageRow, error)

	// SearchPatients finds patients whose name contains term
	// (case-insensitive), with visit history aggregates.
	SearchPatients(ctx context.Context, term string) ([]*entities.PatientSearchRow, error)
}
