package alerting

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
	"github.com/vfg2006/mediation-report-pipeline/pkg/utils"
)

// Aggregate holds the summed counters of one (app, ad unit) pair, the
// granularity alert rules are evaluated at.
type Aggregate struct {
	App    string
	AdUnit string

	AdRequests              int64
	Clicks                  int64
	EstimatedEarningsMicros int64
	Impressions             int64
	MatchedRequests         int64
	ObservedECPMMicros      int64
}

// CTR is clicks over impressions, defined as 0 when there are no impressions.
func (a *Aggregate) CTR() float64 {
	if a.Impressions == 0 {
		return 0
	}
	return float64(a.Clicks) / float64(a.Impressions)
}

// MatchRate is matched requests over ad requests, defined as 0 when there are
// no ad requests.
func (a *Aggregate) MatchRate() float64 {
	if a.AdRequests == 0 {
		return 0
	}
	return float64(a.MatchedRequests) / float64(a.AdRequests)
}

// Metric resolves a rule metric name against the aggregate.
func (a *Aggregate) Metric(name string) (float64, bool) {
	switch name {
	case domain.AlertMetricCTR:
		return a.CTR(), true
	case domain.AlertMetricMatchRate:
		return a.MatchRate(), true
	case domain.AlertMetricAdRequests:
		return float64(a.AdRequests), true
	case domain.AlertMetricClicks:
		return float64(a.Clicks), true
	case domain.AlertMetricImpressions:
		return float64(a.Impressions), true
	case domain.AlertMetricMatchedRequests:
		return float64(a.MatchedRequests), true
	case domain.AlertMetricEstimatedEarningsMicros:
		return float64(a.EstimatedEarningsMicros), true
	case domain.AlertMetricObservedECPMMicros:
		return float64(a.ObservedECPMMicros), true
	}
	return 0, false
}

// Evaluator computes derived metrics over the run's records and decides which
// configured rules are breached. Evaluation is a pure function of
// (records, rules) plus a per-run dedup set.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// AggregateRecords groups the records per (app, ad unit), summing the raw
// counters. First-seen order is preserved.
func (e *Evaluator) AggregateRecords(records []domain.FlatRecord) []*Aggregate {
	byKey := make(map[string]*Aggregate)
	var ordered []*Aggregate

	for i := range records {
		record := &records[i]

		key := record.AppName + "\x00" + record.AdUnitName
		agg, ok := byKey[key]
		if !ok {
			agg = &Aggregate{App: record.AppName, AdUnit: record.AdUnitName}
			byKey[key] = agg
			ordered = append(ordered, agg)
		}

		agg.AdRequests += record.AdRequests
		agg.Clicks += record.Clicks
		agg.EstimatedEarningsMicros += record.EstimatedEarningsMicros
		agg.Impressions += record.Impressions
		agg.MatchedRequests += record.MatchedRequests
		agg.ObservedECPMMicros += record.ObservedECPMMicros
	}

	return ordered
}

// Evaluate returns one alert event per breached (app, ad unit, metric)
// within this run. The dedup set guarantees at most one emission per key even
// when several rules target the same metric.
func (e *Evaluator) Evaluate(records []domain.FlatRecord, rules []domain.AlertRule, reportDate string) []domain.AlertEvent {
	if len(rules) == 0 || len(records) == 0 {
		return nil
	}

	aggregates := e.AggregateRecords(records)
	seen := make(map[string]struct{})

	var events []domain.AlertEvent
	for _, agg := range aggregates {
		for _, rule := range rules {
			if !rule.Matches(agg.App, agg.AdUnit) {
				continue
			}

			observed, ok := agg.Metric(rule.Metric)
			if !ok {
				logrus.WithField("metric", rule.Metric).Warn("Alert rule references an unknown metric")
				continue
			}

			if !rule.Op.Compare(observed, rule.Threshold) {
				continue
			}

			key := agg.App + "\x00" + agg.AdUnit + "\x00" + rule.Metric
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			id, err := utils.GenerateID()
			if err != nil {
				logrus.WithError(err).Warn("Could not generate alert event ID")
			}

			events = append(events, domain.AlertEvent{
				ID:          id,
				ReportDate:  reportDate,
				App:         agg.App,
				AdUnit:      agg.AdUnit,
				Metric:      rule.Metric,
				Observed:    observed,
				Threshold:   rule.Threshold,
				Op:          rule.Op,
				TriggeredAt: time.Now().UTC(),
			})
		}
	}

	return events
}
