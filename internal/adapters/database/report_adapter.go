package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog"

	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/domain/repositories"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	apperrors "github.com/cabinethub/clinicdesk/pkg/errors"
)

// ReportAdapter implements the ReportRepository interface. Every query is
// read-only and recomputed on each call; empty result sets yield zero
// values, never errors. Cancelled visits never contribute to revenue or
// visit counts.
type ReportAdapter struct {
	pool *sqlite.Pool
	gq   goqu.DialectWrapper
	log  zerolog.Logger
}

// NewReportAdapter creates a new report adapter
func NewReportAdapter(pool *sqlite.Pool, logger zerolog.Logger) repositories.ReportRepository {
	return &ReportAdapter{
		pool: pool,
		gq:   goqu.Dialect("sqlite3"),
		log:  logger.With().Str("component", "report_adapter").Logger(),
	}
}

// FinancialSummary totals revenue and completed visits in the range
func (a *ReportAdapter) FinancialSummary(ctx context.Context, start, end time.Time) (*entities.FinancialSummary, error) {
	summary := &entities.FinancialSummary{}
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		row := c.QueryRowxContext(ctx, `SELECT
				COUNT(visit_id),
				COALESCE(SUM(total_paid), 0)
			FROM visits
			WHERE checkout_at IS NOT NULL
			AND cancelled = 0
			AND date(checkout_at) BETWEEN ? AND ?`,
			start.Format(entities.DateLayout), end.Format(entities.DateLayout))
		if err := row.Scan(&summary.TotalVisits, &summary.TotalRevenue); err != nil {
			return apperrors.NewInternalError("failed to compute financial summary", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// DailyFinancialReport breaks the range down per checkout day
func (a *ReportAdapter) DailyFinancialReport(ctx context.Context, start, end time.Time) ([]*entities.DailyFinancialRow, error) {
	var report []*entities.DailyFinancialRow
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		rows, err := c.QueryxContext(ctx, `SELECT
				date(v.checkout_at) AS visit_date,
				COUNT(v.visit_id) AS total_visits,
				COALESCE(SUM(v.total_paid), 0) AS revenue,
				COALESCE((
					SELECT GROUP_CONCAT(DISTINCT s.name)
					FROM visits v2
					JOIN visit_services vs ON v2.visit_id = vs.visit_id
					JOIN services s ON vs.service_id = s.service_id
					WHERE date(v2.checkout_at) = date(v.checkout_at)
					AND v2.cancelled = 0
				), '') AS services
			FROM visits v
			WHERE v.checkout_at IS NOT NULL
			AND v.cancelled = 0
			AND date(v.checkout_at) BETWEEN ? AND ?
			GROUP BY date(v.checkout_at)
			ORDER BY visit_date DESC`,
			start.Format(entities.DateLayout), end.Format(entities.DateLayout))
		if err != nil {
			return apperrors.NewInternalError("failed to run financial report query", err)
		}
		defer rows.Close()

		for rows.Next() {
			r := &entities.DailyFinancialRow{}
			if err := rows.Scan(&r.Date, &r.Visits, &r.Revenue, &r.Services); err != nil {
				return apperrors.NewInternalError("failed to scan financial report row", err)
			}
			report = append(report, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// HourlyAnalytics aggregates wait and consultation minutes per arrival hour
func (a *ReportAdapter) HourlyAnalytics(ctx context.Context) ([]*entities.HourlyAnalyticsRow, error) {
	var report []*entities.HourlyAnalyticsRow
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		rows, err := c.QueryxContext(ctx, `WITH wait_times AS (
				SELECT
					strftime('%H', arrived_at) AS hour,
					(julianday(called_at) - julianday(arrived_at)) * 24 * 60 AS wait_mins,
					(julianday(checkout_at) - julianday(called_at)) * 24 * 60 AS consultation_mins
				FROM visits
				WHERE called_at IS NOT NULL
				AND cancelled = 0
			)
			SELECT
				hour,
				round(COALESCE(AVG(wait_mins), 0), 1) AS avg_wait_mins,
				round(COALESCE(AVG(consultation_mins), 0), 1) AS avg_consultation_mins,
				COUNT(*) AS visit_count
			FROM wait_times
			GROUP BY hour
			ORDER BY visit_count DESC`)
		if err != nil {
			return apperrors.NewInternalError("failed to run analytics query", err)
		}
		defer rows.Close()

		for rows.Next() {
			r := &entities.HourlyAnalyticsRow{}
			if err := rows.Scan(&r.Hour, &r.AvgWaitMinutes, &r.AvgConsultationMinutes, &r.Visits); err != nil {
				return apperrors.NewInternalError("failed to scan analytics row", err)
			}
			report = append(report, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// MonthlyPerformance aggregates per-month practice metrics, newest first
func (a *ReportAdapter) MonthlyPerformance(ctx context.Context, limit int) ([]*entities.MonthlyPerformanceRow, error) {
	if limit <= 0 {
		limit = 12
	}

	var report []*entities.MonthlyPerformanceRow
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		rows, err := c.QueryxContext(ctx, `SELECT
				strftime('%Y-%m', checkout_at) AS month,
				COUNT(DISTINCT patient_id) AS unique_patients,
				COUNT(*) AS total_visits,
				COALESCE(AVG(total_paid), 0) AS avg_revenue,
				COALESCE(SUM(total_paid), 0) AS total_revenue,
				COALESCE(AVG((julianday(checkout_at) - julianday(called_at)) * 24 * 60), 0) AS avg_visit_mins
			FROM visits
			WHERE checkout_at IS NOT NULL
			AND cancelled = 0
			GROUP BY strftime('%Y-%m', checkout_at)
			ORDER BY month DESC
			LIMIT ?`, limit)
		if err != nil {
			return apperrors.NewInternalError("failed to run performance query", err)
		}
		defer rows.Close()

		for rows.Next() {
			r := &entities.MonthlyPerformanceRow{}
			if err := rows.Scan(&r.Month, &r.UniquePatients, &r.Visits, &r.AvgRevenue, &r.TotalRevenue, &r.AvgVisitMinutes); err != nil {
				return apperrors.NewInternalError("failed to scan performance row", err)
			}
			report = append(report, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ServicesSummary aggregates usage count and revenue per service
func (a *ReportAdapter) ServicesSummary(ctx context.Context) ([]*entities.ServiceUsageRow, error) {
	var report []*entities.ServiceUsageRow
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		rows, err := c.QueryxContext(ctx, `SELECT
				s.name AS service_name,
				COUNT(vs.visit_id) AS usage_count,
				COUNT(vs.visit_id) * s.price AS total_revenue
			FROM services s
			LEFT JOIN visit_services vs ON s.service_id = vs.service_id
			GROUP BY s.service_id, s.name
			ORDER BY usage_count DESC, total_revenue DESC`)
		if err != nil {
			return apperrors.NewInternalError("failed to run services summary query", err)
		}
		defer rows.Close()

		for rows.Next() {
			r := &entities.ServiceUsageRow{}
			if err := rows.Scan(&r.Name, &r.Count, &r.TotalRevenue); err != nil {
				return apperrors.NewInternalError("failed to scan services summary row", err)
			}
			report = append(report, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// SearchPatients finds patients whose name contains term, with visit
// history aggregates. This is the one substring, case-insensitive lookup
// in the system; lifecycle operations always match names exactly.
func (a *ReportAdapter) SearchPatients(ctx context.Context, term string) ([]*entities.PatientSearchRow, error) {
	var results []*entities.PatientSearchRow
	err := a.pool.WithConn(ctx, func(c *sqlite.Conn) error {
		rows, err := c.QueryxContext(ctx, `SELECT
				p.patient_id,
				p.name,
				COUNT(CASE WHEN v.cancelled = 0 THEN v.visit_id END) AS visit_count,
				COALESCE(MAX(CASE WHEN v.cancelled = 0 THEN v.checkout_at END), '') AS last_visit,
				COALESCE(SUM(CASE WHEN v.cancelled = 0 THEN v.total_paid END), 0) AS total_spent
			FROM patients p
			LEFT JOIN visits v ON p.patient_id = v.patient_id
			WHERE p.name LIKE ?
			GROUP BY p.patient_id
			ORDER BY p.name`, "%"+term+"%")
		if err != nil {
			return apperrors.NewInternalError("failed to run patient search query", err)
		}
		defer rows.Close()

		for rows.Next() {
			r := &entities.PatientSearchRow{}
			if err := rows.Scan(&r.PatientID, &r.Name, &r.VisitCount, &r.LastVisit, &r.TotalSpent); err != nil {
				return apperrors.NewInternalError("failed to scan patient search row", err)
			}
			results = append(results, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
