package observe

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psalmlabs/selah/internal/testutil"
)

type ingestCapture struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	status   int
}

func newIngestServer(t *testing.T, status int) (*httptest.Server, *ingestCapture) {
	t.Helper()
	cap := &ingestCapture{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		cap.mu.Lock()
		cap.requests = append(cap.requests, r.Clone(r.Context()))
		cap.bodies = append(cap.bodies, body)
		cap.mu.Unlock()
		w.WriteHeader(cap.status)
	}))
	t.Cleanup(srv.Close)
	return srv, cap
}

func (c *ingestCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func TestLoggerShipsEvents(t *testing.T) {
	srv, cap := newIngestServer(t, http.StatusOK)

	l := NewLogger(LoggerOptions{
		Token:            "xaat-test",
		OrgID:            "psalmlabs",
		Endpoint:         srv.URL,
		DatasetEvents:    "companion-events",
		DatasetEnvelopes: "companion-envelopes",
	})

	l.LogEvent(RequestReceived(testTraceContext()))
	l.Flush()

	require.Equal(t, 1, cap.count())
	req := cap.requests[0]
	assert.Equal(t, "/v1/datasets/companion-events/ingest", req.URL.Path)
	assert.Equal(t, "Bearer xaat-test", req.Header.Get("Authorization"))
	assert.Equal(t, "psalmlabs", req.Header.Get("X-Axiom-Org-Id"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	var records []Event
	require.NoError(t, json.Unmarshal(cap.bodies[0], &records))
	require.Len(t, records, 1)
	assert.Equal(t, EventRequestReceived, records[0].Kind)
	assert.Equal(t, "trace-1", records[0].TraceID)
}

func TestLoggerShipsEnvelopeToOwnDataset(t *testing.T) {
	srv, cap := newIngestServer(t, http.StatusOK)

	l := NewLogger(LoggerOptions{
		Token:            "xaat-test",
		Endpoint:         srv.URL,
		DatasetEvents:    "companion-events",
		DatasetEnvelopes: "companion-envelopes",
	})

	l.LogEnvelope(NewEnvelopeBuilder(testTraceContext()).Build())
	l.Flush()

	require.Equal(t, 1, cap.count())
	assert.Equal(t, "/v1/datasets/companion-envelopes/ingest", cap.requests[0].URL.Path)
}

func TestLoggerBatchesInOneRequest(t *testing.T) {
	srv, cap := newIngestServer(t, http.StatusOK)

	l := NewLogger(LoggerOptions{
		Token:         "xaat-test",
		Endpoint:      srv.URL,
		DatasetEvents: "companion-events",
	})

	tc := testTraceContext()
	l.LogEvents([]Event{RequestReceived(tc), ContextBuilt(tc, 2, 10), PromptAssembled(tc, 4, 1)})
	l.Flush()

	require.Equal(t, 1, cap.count())
	var records []Event
	require.NoError(t, json.Unmarshal(cap.bodies[0], &records))
	assert.Len(t, records, 3)
}

func TestLoggerDisabledWithoutToken(t *testing.T) {
	srv, cap := newIngestServer(t, http.StatusOK)

	l := NewLogger(LoggerOptions{
		Endpoint:      srv.URL,
		DatasetEvents: "companion-events",
	})

	l.LogEvent(RequestReceived(testTraceContext()))
	l.LogEnvelope(NewEnvelopeBuilder(testTraceContext()).Build())
	l.Flush()

	assert.Equal(t, 0, cap.count())
}

func TestLoggerFailureNeverReachesCaller(t *testing.T) {
	var buf bytes.Buffer
	local := slog.New(slog.NewTextHandler(&buf, nil))

	t.Run("forbidden logs token hint", func(t *testing.T) {
		buf.Reset()
		srv, _ := newIngestServer(t, http.StatusForbidden)

		l := NewLogger(LoggerOptions{
			Token:         "xaat-bad",
			Endpoint:      srv.URL,
			DatasetEvents: "companion-events",
			Logger:        local,
		})

		assert.NotPanics(t, func() {
			l.LogEvent(RequestReceived(testTraceContext()))
			l.Flush()
		})
		assert.Contains(t, buf.String(), "check the telemetry token")
	})

	t.Run("missing dataset logs creation hint", func(t *testing.T) {
		buf.Reset()
		srv, _ := newIngestServer(t, http.StatusNotFound)

		l := NewLogger(LoggerOptions{
			Token:         "xaat-test",
			Endpoint:      srv.URL,
			DatasetEvents: "companion-events",
			Logger:        local,
		})

		l.LogEvent(RequestReceived(testTraceContext()))
		l.Flush()
		assert.Contains(t, buf.String(), "not found")
	})

	t.Run("unreachable endpoint is swallowed", func(t *testing.T) {
		buf.Reset()
		l := NewLogger(LoggerOptions{
			Token:         "xaat-test",
			Endpoint:      "http://127.0.0.1:1",
			DatasetEvents: "companion-events",
			Logger:        local,
		})

		assert.NotPanics(t, func() {
			l.LogError(testTraceContext(), "model_call", assert.AnError)
			l.Flush()
		})
		assert.Contains(t, buf.String(), "telemetry delivery failed")
	})
}

func TestLoggerConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	local := slog.New(slog.NewTextHandler(&buf, nil))

	l := NewLogger(LoggerOptions{Console: true, Logger: local})

	l.LogEvent(RequestReceived(testTraceContext()))
	l.LogEnvelope(NewEnvelopeBuilder(testTraceContext()).Build())
	l.Flush()

	out := buf.String()
	assert.Contains(t, out, "companion event")
	assert.Contains(t, out, "companion envelope")
	assert.Contains(t, out, "trace-1")
}

func TestLoggerReplayedIngest(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "telemetry_ingest")
	defer cleanup()

	var buf bytes.Buffer
	local := slog.New(slog.NewTextHandler(&buf, nil))

	l := NewLogger(LoggerOptions{
		Token:         "xaat-test",
		OrgID:         "psalmlabs",
		Endpoint:      "https://api.axiom.co",
		DatasetEvents: "companion-events",
		HTTPClient:    testutil.VCRHTTPClient(r),
		Logger:        local,
	})

	l.LogEvent(RequestReceived(testTraceContext()))
	l.Flush()

	assert.NotContains(t, buf.String(), "telemetry delivery failed")
}
