package bigquery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Loader makes a warehouse load idempotent for a report date: the existing
// partition is deleted before the CSV is appended, so repeated runs for the
// same date never duplicate rows.
type Loader interface {
	ReplacePartition(ctx context.Context, gcsURI string, reportDate time.Time) error
}

type TableLoader struct {
	client  *bigquery.Client
	dataset string
	table   string
}

func NewTableLoader(ctx context.Context, projectID, dataset, table string, opts ...option.ClientOption) (*TableLoader, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	return &TableLoader{
		client:  client,
		dataset: dataset,
		table:   table,
	}, nil
}

var tableSchema = bigquery.Schema{
	{Name: "date", Type: bigquery.DateFieldType, Required: true},
	{Name: "app_name", Type: bigquery.StringFieldType},
	{Name: "ad_unit_name", Type: bigquery.StringFieldType},
	{Name: "ad_source_name", Type: bigquery.StringFieldType},
	{Name: "ad_source_instance_name", Type: bigquery.StringFieldType},
	{Name: "mediation_group_name", Type: bigquery.StringFieldType},
	{Name: "country", Type: bigquery.StringFieldType},
	{Name: "ad_requests", Type: bigquery.IntegerFieldType},
	{Name: "clicks", Type: bigquery.IntegerFieldType},
	{Name: "estimated_earnings_micros", Type: bigquery.IntegerFieldType},
	{Name: "impressions", Type: bigquery.IntegerFieldType},
	{Name: "impression_ctr", Type: bigquery.FloatFieldType},
	{Name: "matched_requests", Type: bigquery.IntegerFieldType},
	{Name: "match_rate", Type: bigquery.FloatFieldType},
	{Name: "observed_ecpm_micros", Type: bigquery.IntegerFieldType},
}

func (l *TableLoader) ReplacePartition(ctx context.Context, gcsURI string, reportDate time.Time) error {
	if err := l.deletePartition(ctx, reportDate); err != nil {
		return err
	}

	source := bigquery.NewGCSReference(gcsURI)
	source.SourceFormat = bigquery.CSV
	source.SkipLeadingRows = 1
	source.Schema = tableSchema

	loader := l.client.Dataset(l.dataset).Table(l.table).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("starting load job: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"uri":   gcsURI,
		"table": fmt.Sprintf("%s.%s", l.dataset, l.table),
		"date":  reportDate.Format("2006-01-02"),
	}).Info("report loaded into warehouse")

	return nil
}

func (l *TableLoader) deletePartition(ctx context.Context, reportDate time.Time) error {
	query := l.client.Query(fmt.Sprintf(
		"DELETE FROM `%s.%s` WHERE date = @report_date", l.dataset, l.table,
	))
	query.Parameters = []bigquery.QueryParameter{
		{Name: "report_date", Value: civil.DateOf(reportDate)},
	}

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("starting partition delete: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		// A missing table is fine on the first run, the load creates it.
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("waiting for partition delete: %w", err)
	}
	if err := status.Err(); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("partition delete failed: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404
	}
	return false
}
