package admobclient

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamOf(raw string) *chunkStream {
	return newChunkStream(io.NopCloser(strings.NewReader(raw)))
}

func TestChunkStreamDecodesSequence(t *testing.T) {
	stream := streamOf(`[
		{"header": {"dateRange": {}}},
		{"row": {
			"dimensionValues": {"DATE": {"value": "20240115"}},
			"metricValues": {"CLICKS": {"integerValue": "7"}}
		}},
		{"footer": {"matchingRowCount": "1"}}
	]`)
	defer stream.Close()

	ctx := context.Background()

	first, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.NotNil(t, first.Header)
	assert.Nil(t, first.Row)

	second, err := stream.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, second.Row)
	assert.Equal(t, "20240115", second.Row.DimensionValues["DATE"].Value)
	assert.Equal(t, "7", string(second.Row.MetricValues["CLICKS"].IntegerValue))

	third, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.NotNil(t, third.FooterRow)

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	// stays terminated
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestChunkStreamEmptyArray(t *testing.T) {
	stream := streamOf(`[]`)
	defer stream.Close()

	_, err := stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestChunkStreamRejectsNonArray(t *testing.T) {
	stream := streamOf(`{"row": {}}`)
	defer stream.Close()

	_, err := stream.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected report stream opening")
}

func TestChunkStreamTruncatedResponse(t *testing.T) {
	stream := streamOf(`[{"header": {}}, {"row": `)
	defer stream.Close()

	ctx := context.Background()

	_, err := stream.Next(ctx)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestChunkStreamHonoursContextCancellation(t *testing.T) {
	stream := streamOf(`[{"header": {}}]`)
	defer stream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
