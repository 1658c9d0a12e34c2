package reporting

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	admobdomain "github.com/vfg2006/mediation-report-pipeline/infrastructure/integrator/admob/domain"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

// Consumer drains a chunk stream into flat records, preserving arrival order.
// The upstream sort condition (date ascending) makes that order significant
// end to end.
type Consumer struct {
	flattener *Flattener
}

func NewConsumer(flattener *Flattener) *Consumer {
	return &Consumer{flattener: flattener}
}

// Consume reads the stream to its end. Chunks that flatten to nothing are
// dropped silently and counted; a stream error is terminal for the run.
func (c *Consumer) Consume(ctx context.Context, stream admobdomain.ChunkStream) ([]domain.FlatRecord, int, error) {
	var records []domain.FlatRecord
	dropped := 0

	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, dropped, fmt.Errorf("reading report stream: %w", err)
		}

		record, ok := c.flattener.Flatten(chunk)
		if !ok {
			dropped++
			continue
		}

		records = append(records, *record)
	}

	logrus.WithFields(logrus.Fields{
		"rows":           len(records),
		"dropped_chunks": dropped,
	}).Debug("Report stream consumed")

	return records, dropped, nil
}
