package entity

import "time"

const (
	MetricRevenueCents = "revenue_cents"
	MetricSales        = "sales"
	MetricLeads        = "leads"
)

// MetricContribution adds Value to the (Date, Name) aggregate at most once per ContributionKey.
type MetricContribution struct {
	Date            time.Time
	Name            string
	ContributionKey string
	Value           int64
}

type DailyMetric struct {
	Date  time.Time `json:"date"`
	Name  string    `json:"name"`
	Value int64     `json:"value"`
}
