package reporting

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
)

func decodeChunk(t *testing.T, raw string) *admobdomain.ReportChunk {
	t.Helper()
	var chunk admobdomain.ReportChunk
	require.NoError(t, json.Unmarshal([]byte(raw), &chunk))
	return &chunk
}

func TestFlattenFullRow(t *testing.T) {
	chunk := decodeChunk(t, `{
		"row": {
			"dimensionValues": {
				"DATE": {"value": "20240115"},
				"APP": {"value": "ca-app-pub-1~1", "displayLabel": "My Game"},
				"AD_UNIT": {"value": "ca-app-pub-1/2", "displayLabel": "Banner Bottom"},
				"AD_SOURCE": {"value": "5450213213286189855", "displayLabel": "AdMob Network"},
				"AD_SOURCE_INSTANCE": {"value": "1:0", "displayLabel": "AdMob (default)"},
				"MEDIATION_GROUP": {"value": "3", "displayLabel": "All traffic"},
				"COUNTRY": {"value": "US"}
			},
			"metricValues": {
				"AD_REQUESTS": {"integerValue": "1000"},
				"CLICKS": {"integerValue": "12"},
				"ESTIMATED_EARNINGS": {"microsValue": "2350000"},
				"IMPRESSIONS": {"integerValue": "480"},
				"IMPRESSION_CTR": {"doubleValue": 0.025},
				"MATCHED_REQUESTS": {"integerValue": "900"},
				"MATCH_RATE": {"doubleValue": 0.9},
				"OBSERVED_ECPM": {"microsValue": "4895833"}
			}
		}
	}`)

	record, ok := NewFlattener().Flatten(chunk)
	require.True(t, ok)

	assert.Equal(t, "2024-01-15", record.Date)
	assert.Equal(t, "My Game", record.AppName)
	assert.Equal(t, "Banner Bottom", record.AdUnitName)
	assert.Equal(t, "AdMob Network", record.AdSourceName)
	assert.Equal(t, "AdMob (default)", record.AdSourceInstanceName)
	assert.Equal(t, "All traffic", record.MediationGroupName)
	assert.Equal(t, "US", record.Country)
	assert.Equal(t, int64(1000), record.AdRequests)
	assert.Equal(t, int64(12), record.Clicks)
	assert.Equal(t, int64(2350000), record.EstimatedEarningsMicros)
	assert.Equal(t, int64(480), record.Impressions)
	assert.Equal(t, 0.025, record.ImpressionCTR)
	assert.Equal(t, int64(900), record.MatchedRequests)
	assert.Equal(t, 0.9, record.MatchRate)
	assert.Equal(t, int64(4895833), record.ObservedECPMMicros)
}

func TestFlattenDisplayLabelFallback(t *testing.T) {
	chunk := decodeChunk(t, `{
		"row": {
			"dimensionValues": {
				"DATE": {"value": "20240115"},
				"APP": {"value": "ca-app-pub-1~1"}
			},
			"metricValues": {}
		}
	}`)

	record, ok := NewFlattener().Flatten(chunk)
	require.True(t, ok)

	// no display label: fall back to the raw value
	assert.Equal(t, "ca-app-pub-1~1", record.AppName)
}

func TestFlattenPartialRowDefaults(t *testing.T) {
	chunk := decodeChunk(t, `{
		"row": {
			"dimensionValues": {
				"DATE": {"value": "20240115"},
				"APP": {"value": "a", "displayLabel": "App A"}
			},
			"metricValues": {
				"CLICKS": {"integerValue": "3"}
			}
		}
	}`)

	record, ok := NewFlattener().Flatten(chunk)
	require.True(t, ok)

	assert.Equal(t, "", record.AdUnitName)
	assert.Equal(t, "", record.Country)
	assert.Equal(t, int64(3), record.Clicks)
	assert.Equal(t, int64(0), record.AdRequests)
	assert.Equal(t, int64(0), record.Impressions)
	assert.Equal(t, 0.0, record.MatchRate)
}

func TestFlattenCompactMetricForm(t *testing.T) {
	chunk := decodeChunk(t, `{
		"row": {
			"dimensionValues": {
				"DATE": {"value": "20240115"},
				"APP": {"value": "a", "displayLabel": "App A"}
			},
			"metricValues": {
				"CLICKS": 5,
				"IMPRESSIONS": 100,
				"MATCH_RATE": 0.75
			}
		}
	}`)

	record, ok := NewFlattener().Flatten(chunk)
	require.True(t, ok)

	assert.Equal(t, int64(5), record.Clicks)
	assert.Equal(t, int64(100), record.Impressions)
	assert.Equal(t, 0.75, record.MatchRate)
}

func TestFlattenSkipsChunksWithoutRow(t *testing.T) {
	flattener := NewFlattener()

	header := decodeChunk(t, `{"header": {"dateRange": {}}}`)
	footer := decodeChunk(t, `{"footer": {"matchingRowCount": "2"}}`)

	_, ok := flattener.Flatten(header)
	assert.False(t, ok)

	_, ok = flattener.Flatten(footer)
	assert.False(t, ok)

	_, ok = flattener.Flatten(nil)
	assert.False(t, ok)
}

func TestIsoDate(t *testing.T) {
	assert.Equal(t, "2024-01-15", isoDate("20240115"))
	assert.Equal(t, "2024-01-15", isoDate("2024-01-15"))
	assert.Equal(t, "", isoDate(""))
	assert.Equal(t, "bogus", isoDate("bogus"))
}
