package alerting

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/mediation-report-pipeline/internal/domain"
)

func sampleEvent() domain.AlertEvent {
	return domain.AlertEvent{
		ID:         "evt1",
		ReportDate: "2024-01-15",
		App:        "My Game",
		AdUnit:     "Banner Bottom",
		Metric:     domain.AlertMetricCTR,
		Observed:   0.001,
		Threshold:  0.01,
		Op:         domain.OpLessThan,
	}
}

func TestDispatchPostsWebhookPayload(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := NewWebhookDispatcher(server.URL, time.Second)
	require.NoError(t, dispatcher.Dispatch(context.Background(), sampleEvent()))

	assert.Equal(t, "application/json", gotContentType)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Contains(t, payload["text"], "[mediation-alert]")
	assert.Contains(t, payload["text"], `app="My Game"`)
	assert.Contains(t, payload["text"], "metric=ctr")
}

func TestDispatchNonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "channel_not_found", http.StatusNotFound)
	}))
	defer server.Close()

	dispatcher := NewWebhookDispatcher(server.URL, time.Second)
	err := dispatcher.Dispatch(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestDispatchConnectionFailureIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	dispatcher := NewWebhookDispatcher(server.URL, time.Second)
	err := dispatcher.Dispatch(context.Background(), sampleEvent())
	require.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	message := FormatMessage(sampleEvent())
	assert.Equal(
		t,
		`[mediation-alert] date=2024-01-15 app="My Game" ad_unit="Banner Bottom" metric=ctr observed=0.001 rule="< 0.01"`,
		message,
	)
}
