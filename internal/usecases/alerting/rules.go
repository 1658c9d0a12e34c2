package alerting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

// knownMetrics are the metric names a rule may reference.
var knownMetrics = map[string]struct{}{
	domain.AlertMetricCTR:                     {},
	domain.AlertMetricMatchRate:               {},
	domain.AlertMetricAdRequests:              {},
	domain.AlertMetricClicks:                  {},
	domain.AlertMetricImpressions:             {},
	domain.AlertMetricMatchedRequests:         {},
	domain.AlertMetricEstimatedEarningsMicros: {},
	domain.AlertMetricObservedECPMMicros:      {},
}

// ParseRules parses the compact rule list from configuration. Each rule is
// "metric;operator;threshold[;app[;ad_unit]]"; rules are comma separated.
// Example: "ctr;<;0.01,match_rate;<;0.5;My App".
func ParseRules(raw string) ([]domain.AlertRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var rules []domain.AlertRule
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		rule, err := parseRule(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid alert rule %q: %w", entry, err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseRule(entry string) (domain.AlertRule, error) {
	parts := strings.Split(entry, ";")
	if len(parts) < 3 || len(parts) > 5 {
		return domain.AlertRule{}, fmt.Errorf("expected metric;operator;threshold[;app[;ad_unit]]")
	}

	metric := strings.TrimSpace(parts[0])
	if _, ok := knownMetrics[metric]; !ok {
		return domain.AlertRule{}, fmt.Errorf("unknown metric %q", metric)
	}

	op, err := domain.ParseOperator(strings.TrimSpace(parts[1]))
	if err != nil {
		return domain.AlertRule{}, err
	}

	threshold, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("invalid threshold %q", parts[2])
	}

	rule := domain.AlertRule{
		Metric:    metric,
		Op:        op,
		Threshold: threshold,
	}
	if len(parts) > 3 {
		rule.App = strings.TrimSpace(parts[3])
	}
	if len(parts) > 4 {
		rule.AdUnit = strings.TrimSpace(parts[4])
	}

	return rule, nil
}
