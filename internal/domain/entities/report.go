package entities

// FinancialSummary aggregates completed visits over a date range.
type FinancialSummary struct {
	TotalRevenue int64
	TotalVisits  int64
}

// DailyFinancialRow is one day of the financial report.
type DailyFinancialRow struct {
	Date     string
	Visits   int64
	Revenue  int64
	Services string
}

// HourlyAnalyticsRow aggregates wait and consultation times per arrival
// hour.
type HourlyAnalyticsRow struct {
	Hour                   string
	AvgWaitMinutes         float64
	AvgConsultationMinutes float64
	Visits                 int64
}

// MonthlyPerformanceRow aggregates practice metrics per calendar month.
type MonthlyPerformanceRow struct {
	Month           string
	UniquePatients  int64
	Visits          int64
	AvgRevenue      float64
	TotalRevenue    int64
	AvgVisitMinutes float64
}

// ServiceUsageRow is one service's usage and revenue contribution.
type ServiceUsageRow struct {
	Name         string
	Count        int64
	TotalRevenue int64
}

// PatientSearchRow is one enhanced patient search result.
type PatientSearchRow struct {
	PatientID  int64
	Name       string
	VisitCount int64
	LastVisit  string
	TotalSpent int64
}
