package domain

import (
	"bytes"
	"context"
	"encoding/json"
)

// Dimension names of the mediation report.
const (
	DimensionDate             = "DATE"
	DimensionApp              = "APP"
	DimensionAdUnit           = "AD_UNIT"
	DimensionAdSource         = "AD_SOURCE"
	DimensionAdSourceInstance = "AD_SOURCE_INSTANCE"
	DimensionMediationGroup   = "MEDIATION_GROUP"
	DimensionCountry          = "COUNTRY"
)

// Metric names of the mediation report.
const (
	MetricAdRequests        = "AD_REQUESTS"
	MetricClicks            = "CLICKS"
	MetricEstimatedEarnings = "ESTIMATED_EARNINGS"
	MetricImpressions       = "IMPRESSIONS"
	MetricImpressionCTR     = "IMPRESSION_CTR"
	MetricMatchedRequests   = "MATCHED_REQUESTS"
	MetricMatchRate         = "MATCH_RATE"
	MetricObservedECPM      = "OBSERVED_ECPM"
)

// ReportChunk is one element of the streamed response array. Header and
// footer chunks carry no row; that is a normal outcome, not an error.
type ReportChunk struct {
	Header    json.RawMessage `json:"header,omitempty"`
	Row       *ReportRow      `json:"row,omitempty"`
	FooterRow json.RawMessage `json:"footer,omitempty"`
}

// ReportRow holds the nested dimension and metric maps of one report row.
type ReportRow struct {
	DimensionValues map[string]DimensionValue `json:"dimensionValues"`
	MetricValues    map[string]MetricValue    `json:"metricValues"`
}

// DimensionValue is a raw dimension value with an optional human-readable
// label.
type DimensionValue struct {
	Value        string `json:"value"`
	DisplayLabel string `json:"displayLabel,omitempty"`
}

// Label returns the display label when present, falling back to the raw
// value.
func (d DimensionValue) Label() string {
	if d.DisplayLabel != "" {
		return d.DisplayLabel
	}
	return d.Value
}

// Numeric holds a JSON number or numeric string as text. The reporting API
// serializes 64-bit integers as JSON strings; fixtures and older payloads use
// bare numbers.
type Numeric string

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*n = ""
		return nil
	}
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Numeric(s)
		return nil
	}
	*n = Numeric(data)
	return nil
}

// MetricValue is the optional-field record behind one metric entry. Which
// field is populated depends on the metric's declared type; all of them may
// be absent for rows where the metric is inactive.
type MetricValue struct {
	IntegerValue Numeric  `json:"integerValue,omitempty"`
	MicrosValue  Numeric  `json:"microsValue,omitempty"`
	DoubleValue  *float64 `json:"doubleValue,omitempty"`
	DecimalValue Numeric  `json:"decimalValue,omitempty"`
	Value        Numeric  `json:"value,omitempty"`
}

// UnmarshalJSON accepts both the API object form and a bare number, the
// compact form used by fixtures.
func (m *MetricValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type metricValue MetricValue
		var v metricValue
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*m = MetricValue(v)
		return nil
	}

	var n Numeric
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	m.Value = n
	return nil
}

// ChunkStream is a finite, non-restartable lazy sequence of report chunks.
// Next returns io.EOF after the last chunk.
type ChunkStream interface {
	Next(ctx context.Context) (*ReportChunk, error)
	Close() error
}
