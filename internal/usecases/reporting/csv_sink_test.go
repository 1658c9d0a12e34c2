package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

func sampleRecords() []domain.FlatRecord {
	return []domain.FlatRecord{
		{
			Date:                    "2024-01-15",
			AppName:                 "My Game",
			AdUnitName:              "Banner Bottom",
			AdSourceName:            "AdMob Network",
			AdSourceInstanceName:    "AdMob (default)",
			MediationGroupName:      "All traffic",
			Country:                 "US",
			AdRequests:              1000,
			Clicks:                  12,
			EstimatedEarningsMicros: 2350000,
			Impressions:             480,
			ImpressionCTR:           0.025,
			MatchedRequests:         900,
			MatchRate:               0.9,
			ObservedECPMMicros:      4895833,
		},
		{
			Date:       "2024-01-15",
			AppName:    `App "quoted", with comma`,
			AdUnitName: "Unit\nwith newline",
			Country:    "BR",
			MatchRate:  0.3333333333333333,
		},
	}
}

func TestFilename(t *testing.T) {
	sink := NewCSVSink(t.TempDir())
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "mediation_20240115.csv", sink.Filename(date))
}

func TestWriteReadRoundTrip(t *testing.T) {
	sink := NewCSVSink(t.TempDir())
	records := sampleRecords()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	path, err := sink.WriteReport(records, date)
	require.NoError(t, err)
	assert.Equal(t, "mediation_20240115.csv", filepath.Base(path))

	parsed, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, records, parsed)
}

func TestWriteDeterministic(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(dir)
	records := sampleRecords()

	pathA := filepath.Join(dir, "a.csv")
	pathB := filepath.Join(dir, "b.csv")
	require.NoError(t, sink.Write(records, pathA))
	require.NoError(t, sink.Write(records, pathB))

	bytesA, err := os.ReadFile(pathA)
	require.NoError(t, err)
	bytesB, err := os.ReadFile(pathB)
	require.NoError(t, err)

	assert.Equal(t, bytesA, bytesB)
}

func TestWriteHeaderOnlyForEmptyReport(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(dir)

	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, sink.Write(nil, path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, strings.Join(csvHeader, ","), lines[0])
}

func TestWriteQuotesSpecialCharacters(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(dir)

	path := filepath.Join(dir, "quoting.csv")
	require.NoError(t, sink.Write(sampleRecords(), path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"App ""quoted"", with comma"`)
}

func TestReadFileRejectsWrongHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	header := strings.Replace(strings.Join(csvHeader, ","), "date", "day", 1)
	require.NoError(t, os.WriteFile(path, []byte(header+"\n"), 0o644))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected csv header")
}
