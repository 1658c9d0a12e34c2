package domain

// FlatRecord is one normalized row of the mediation report, in the exact
// column order of the CSV file and the warehouse table.
type FlatRecord struct {
	Date                 string `bigquery:"date"`
	AppName              string `bigquery:"app_name"`
	AdUnitName           string `bigquery:"ad_unit_name"`
	AdSourceName         string `bigquery:"ad_source_name"`
	AdSourceInstanceName string `bigquery:"ad_source_instance_name"`
	MediationGroupName   string `bigquery:"mediation_group_name"`
	Country              string `bigquery:"country"`

	AdRequests              int64   `bigquery:"ad_requests"`
	Clicks                  int64   `bigquery:"clicks"`
	EstimatedEarningsMicros int64   `bigquery:"estimated_earnings_micros"`
	Impressions             int64   `bigquery:"impressions"`
	ImpressionCTR           float64 `bigquery:"impression_ctr"`
	MatchedRequests         int64   `bigquery:"matched_requests"`
	MatchRate               float64 `bigquery:"match_rate"`
	ObservedECPMMicros      int64   `bigquery:"observed_ecpm_micros"`
}
