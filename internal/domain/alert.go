package domain

import (
	"fmt"
	"time"
)

// Metric names addressable by alert rules. The first two are derived from the
// aggregated counters; the rest are the raw aggregates themselves.
const (
	AlertMetricCTR                     = "ctr"
	AlertMetricMatchRate               = "match_rate"
	AlertMetricAdRequests              = "ad_requests"
	AlertMetricClicks                  = "clicks"
	AlertMetricImpressions             = "impressions"
	AlertMetricMatchedRequests         = "matched_requests"
	AlertMetricEstimatedEarningsMicros = "estimated_earnings_micros"
	AlertMetricObservedECPMMicros      = "observed_ecpm_micros"
)

// Operator is a threshold comparison operator.
type Operator string

const (
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpEqual          Operator = "=="
)

// ParseOperator validates and converts an operator string.
func ParseOperator(s string) (Operator, error) {
	switch Operator(s) {
	case OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual, OpEqual:
		return Operator(s), nil
	}
	return "", fmt.Errorf("unsupported comparison operator: %q", s)
}

// Compare reports whether the observed value breaches the threshold.
func (o Operator) Compare(observed, threshold float64) bool {
	switch o {
	case OpLessThan:
		return observed < threshold
	case OpLessOrEqual:
		return observed <= threshold
	case OpGreaterThan:
		return observed > threshold
	case OpGreaterOrEqual:
		return observed >= threshold
	case OpEqual:
		return observed == threshold
	}
	return false
}

// AlertRule is a threshold definition, optionally scoped to an app and/or an
// ad unit. Empty scope fields match any aggregate.
type AlertRule struct {
	App       string
	AdUnit    string
	Metric    string
	Op        Operator
	Threshold float64
}

// Matches reports whether the rule applies to the given app/ad-unit pair.
func (r AlertRule) Matches(app, adUnit string) bool {
	if r.App != "" && r.App != app {
		return false
	}
	if r.AdUnit != "" && r.AdUnit != adUnit {
		return false
	}
	return true
}

// AlertEvent is one breach notification. Observed always violates the rule
// at emission time.
type AlertEvent struct {
	ID          string
	ReportDate  string
	App         string
	AdUnit      string
	Metric      string
	Observed    float64
	Threshold   float64
	Op          Operator
	TriggeredAt time.Time
}
