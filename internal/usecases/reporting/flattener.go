package reporting

import (
	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

// Flattener converts one raw report chunk into a flat record. Chunks without
// a row substructure (header/footer chunks) flatten to nothing; every field
// lookup is an explicit presence check with a default, so flattening never
// fails.
type Flattener struct{}

func NewFlattener() *Flattener {
	return &Flattener{}
}

// Flatten returns the flat record of the chunk, or (nil, false) when the
// chunk carries no row.
func (f *Flattener) Flatten(chunk *admobdomain.ReportChunk) (*domain.FlatRecord, bool) {
	if chunk == nil || chunk.Row == nil {
		return nil, false
	}

	dims := chunk.Row.DimensionValues
	metrics := chunk.Row.MetricValues

	record := &domain.FlatRecord{
		Date:                 isoDate(rawDimension(dims, admobdomain.DimensionDate)),
		AppName:              displayName(dims, admobdomain.DimensionApp),
		AdUnitName:           displayName(dims, admobdomain.DimensionAdUnit),
		AdSourceName:         displayName(dims, admobdomain.DimensionAdSource),
		AdSourceInstanceName: displayName(dims, admobdomain.DimensionAdSourceInstance),
		MediationGroupName:   displayName(dims, admobdomain.DimensionMediationGroup),
		Country:              rawDimension(dims, admobdomain.DimensionCountry),

		AdRequests:              AsInt(metrics, admobdomain.MetricAdRequests),
		Clicks:                  AsInt(metrics, admobdomain.MetricClicks),
		EstimatedEarningsMicros: AsInt(metrics, admobdomain.MetricEstimatedEarnings),
		Impressions:             AsInt(metrics, admobdomain.MetricImpressions),
		ImpressionCTR:           AsFloat(metrics, admobdomain.MetricImpressionCTR),
		MatchedRequests:         AsInt(metrics, admobdomain.MetricMatchedRequests),
		MatchRate:               AsFloat(metrics, admobdomain.MetricMatchRate),
		ObservedECPMMicros:      AsInt(metrics, admobdomain.MetricObservedECPM),
	}

	return record, true
}

// displayName picks the display label when present, else the raw value.
func displayName(dims map[string]admobdomain.DimensionValue, key string) string {
	dv, ok := dims[key]
	if !ok {
		return ""
	}
	return dv.Label()
}

func rawDimension(dims map[string]admobdomain.DimensionValue, key string) string {
	dv, ok := dims[key]
	if !ok {
		return ""
	}
	return dv.Value
}

// isoDate converts the report's YYYYMMDD date into YYYY-MM-DD. Values in any
// other shape pass through unchanged.
func isoDate(raw string) string {
	if len(raw) != 8 {
		return raw
	}
	return raw[:4] + "-" + raw[4:6] + "-" + raw[6:]
}
