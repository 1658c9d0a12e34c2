package reporting

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

// csvHeader is the fixed column order of the sink file and the warehouse
// table.
var csvHeader = []string{
	"date",
	"app_name", "ad_unit_name",
	"ad_source_name", "ad_source_instance_name", "mediation_group_name",
	"country",
	"ad_requests", "clicks", "estimated_earnings_micros", "impressions",
	"impression_ctr", "matched_requests", "match_rate", "observed_ecpm_micros",
}

// CSVSink serializes flat records into a local CSV file. Identical input
// produces byte-identical output.
type CSVSink struct {
	dir string
}

func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

// Filename returns the date-derived file name, mediation_<YYYYMMDD>.csv.
func (s *CSVSink) Filename(reportDate time.Time) string {
	return fmt.Sprintf("mediation_%s.csv", reportDate.Format("20060102"))
}

// WriteReport writes the records under the sink directory and returns the
// full path of the file.
func (s *CSVSink) WriteReport(records []domain.FlatRecord, reportDate time.Time) (string, error) {
	path := filepath.Join(s.dir, s.Filename(reportDate))
	if err := s.Write(records, path); err != nil {
		return "", err
	}
	return path, nil
}

// Write serializes the records to path: one header row, one data row per
// record, RFC 4180 quoting, no blank lines.
func (s *CSVSink) Write(records []domain.FlatRecord, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv file: %w", err)
	}

	writer := csv.NewWriter(file)

	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return fmt.Errorf("writing csv header: %w", err)
	}

	for i := range records {
		if err := writer.Write(recordToRow(&records[i])); err != nil {
			file.Close()
			return fmt.Errorf("writing csv row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return fmt.Errorf("flushing csv file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"path": path,
		"rows": len(records),
	}).Info("CSV report written")

	return nil
}

// ReadFile parses a sink file back into records. It is the exact inverse of
// Write and is used for verification.
func ReadFile(path string) ([]domain.FlatRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i, column := range csvHeader {
		if header[i] != column {
			return nil, fmt.Errorf("unexpected csv header column %d: %q", i, header[i])
		}
	}

	var records []domain.FlatRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}
		record, err := rowToRecord(row)
		if err != nil {
			return nil, fmt.Errorf("parsing csv line %d: %w", line, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func recordToRow(r *domain.FlatRecord) []string {
	return []string{
		r.Date,
		r.AppName, r.AdUnitName,
		r.AdSourceName, r.AdSourceInstanceName, r.MediationGroupName,
		r.Country,
		formatInt(r.AdRequests), formatInt(r.Clicks),
		formatInt(r.EstimatedEarningsMicros), formatInt(r.Impressions),
		formatFloat(r.ImpressionCTR), formatInt(r.MatchedRequests),
		formatFloat(r.MatchRate), formatInt(r.ObservedECPMMicros),
	}
}

func rowToRecord(row []string) (domain.FlatRecord, error) {
	record := domain.FlatRecord{
		Date:                 row[0],
		AppName:              row[1],
		AdUnitName:           row[2],
		AdSourceName:         row[3],
		AdSourceInstanceName: row[4],
		MediationGroupName:   row[5],
		Country:              row[6],
	}

	var err error
	if record.AdRequests, err = strconv.ParseInt(row[7], 10, 64); err != nil {
		return record, err
	}
	if record.Clicks, err = strconv.ParseInt(row[8], 10, 64); err != nil {
		return record, err
	}
	if record.EstimatedEarningsMicros, err = strconv.ParseInt(row[9], 10, 64); err != nil {
		return record, err
	}
	if record.Impressions, err = strconv.ParseInt(row[10], 10, 64); err != nil {
		return record, err
	}
	if record.ImpressionCTR, err = strconv.ParseFloat(row[11], 64); err != nil {
		return record, err
	}
	if record.MatchedRequests, err = strconv.ParseInt(row[12], 10, 64); err != nil {
		return record, err
	}
	if record.MatchRate, err = strconv.ParseFloat(row[13], 64); err != nil {
		return record, err
	}
	if record.ObservedECPMMicros, err = strconv.ParseInt(row[14], 10, 64); err != nil {
		return record, err
	}

	return record, nil
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// formatFloat uses the shortest representation that round-trips exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
