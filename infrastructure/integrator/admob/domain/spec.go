package domain

import "time"

// ReportSpec is the request body of mediationReport:generate.
type ReportSpec struct {
	DateRange        DateRange         `json:"dateRange"`
	Dimensions       []string          `json:"dimensions"`
	Metrics          []string          `json:"metrics"`
	SortConditions   []SortCondition   `json:"sortConditions,omitempty"`
	DimensionFilters []DimensionFilter `json:"dimensionFilters,omitempty"`
}

type DateRange struct {
	StartDate ReportDate `json:"startDate"`
	EndDate   ReportDate `json:"endDate"`
}

type ReportDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type SortCondition struct {
	Dimension string `json:"dimension"`
	Order     string `json:"order"`
}

type DimensionFilter struct {
	Dimension  string     `json:"dimension"`
	MatchesAny StringList `json:"matchesAny"`
}

type StringList struct {
	Values []string `json:"values"`
}

// NewReportDate converts a time.Time into the API's date representation.
func NewReportDate(t time.Time) ReportDate {
	return ReportDate{
		Year:  t.Year(),
		Month: int(t.Month()),
		Day:   t.Day(),
	}
}

// MediationReportSpec builds the one-day report spec used by the pipeline:
// the full dimension set, all metrics, rows sorted by date ascending, and
// optional APP / AD_UNIT filters. The upstream sort is what makes row order
// significant downstream.
func MediationReportSpec(reportDate time.Time, appFilter, adUnitFilter []string) ReportSpec {
	spec := ReportSpec{
		DateRange: DateRange{
			StartDate: NewReportDate(reportDate),
			EndDate:   NewReportDate(reportDate),
		},
		Dimensions: []string{
			DimensionDate,
			DimensionApp,
			DimensionAdUnit,
			DimensionAdSource,
			DimensionAdSourceInstance,
			DimensionMediationGroup,
			DimensionCountry,
		},
		Metrics: []string{
			MetricAdRequests,
			MetricClicks,
			MetricEstimatedEarnings,
			MetricImpressions,
			MetricImpressionCTR,
			MetricMatchedRequests,
			MetricMatchRate,
			MetricObservedECPM,
		},
		SortConditions: []SortCondition{
			{Dimension: DimensionDate, Order: "ASCENDING"},
		},
	}

	if len(appFilter) > 0 {
		spec.DimensionFilters = append(spec.DimensionFilters, DimensionFilter{
			Dimension:  DimensionApp,
			MatchesAny: StringList{Values: appFilter},
		})
	}
	if len(adUnitFilter) > 0 {
		spec.DimensionFilters = append(spec.DimensionFilters, DimensionFilter{
			Dimension:  DimensionAdUnit,
			MatchesAny: StringList{Values: adUnitFilter},
		})
	}

	return spec
}
