package observe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// LoggerOptions configures telemetry delivery.
type LoggerOptions struct {
	// Console enables local structured output.
	Console bool
	// Token authorizes remote delivery; empty disables it entirely.
	Token string
	// OrgID is sent as the X-Axiom-Org-Id header when non-empty.
	OrgID string
	// Endpoint is the ingestion base URL.
	Endpoint string
	// DatasetEvents and DatasetEnvelopes name the target datasets.
	DatasetEvents    string
	DatasetEnvelopes string
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
	// Logger receives local output and delivery failures.
	Logger *slog.Logger
}

// Logger ships events and envelopes to the telemetry backend. Delivery is
// fire-and-forget: a failure is logged locally and never reaches the caller,
// because these methods sit on the critical request path.
type Logger struct {
	opts   LoggerOptions
	client *http.Client
	logger *slog.Logger
	wg     sync.WaitGroup
}

const shipTimeout = 10 * time.Second

// NewLogger creates a telemetry logger.
func NewLogger(opts LoggerOptions) *Logger {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: shipTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{opts: opts, client: client, logger: logger}
}

// LogEvent delivers one discrete event.
func (l *Logger) LogEvent(e Event) {
	if l.opts.Console {
		l.logger.Info("companion event",
			slog.String("event", string(e.Kind)),
			slog.String("trace_id", e.TraceID),
			slog.String("request_id", e.RequestID),
			slog.Int64("duration_ms", e.DurationMs))
	}
	l.shipAsync(l.opts.DatasetEvents, []any{e})
}

// LogEvents delivers a batch of events in one request.
func (l *Logger) LogEvents(events []Event) {
	if len(events) == 0 {
		return
	}
	if l.opts.Console {
		l.logger.Info("companion event batch", slog.Int("count", len(events)))
	}
	records := make([]any, len(events))
	for i, e := range events {
		records[i] = e
	}
	l.shipAsync(l.opts.DatasetEvents, records)
}

// LogEnvelope delivers a finished debug envelope.
func (l *Logger) LogEnvelope(env Envelope) {
	if l.opts.Console {
		l.logger.Info("companion envelope",
			slog.String("trace_id", env.TraceID),
			slog.String("request_id", env.RequestID),
			slog.Int64("total_ms", env.TotalMs),
			slog.Int("actions", env.Response.ActionCount),
			slog.Int("dropped", env.PostProcessing.DroppedCount))
	}
	l.shipAsync(l.opts.DatasetEnvelopes, []any{env})
}

// LogError delivers an error event.
func (l *Logger) LogError(tc TraceContext, stage string, err error) {
	e := ErrorEvent(tc, stage, err)
	if l.opts.Console {
		l.logger.Error("companion error",
			slog.String("trace_id", e.TraceID),
			slog.String("stage", stage),
			slog.String("error", e.Error))
	}
	l.shipAsync(l.opts.DatasetEvents, []any{e})
}

// Flush waits for in-flight deliveries. Intended for shutdown and tests.
func (l *Logger) Flush() {
	l.wg.Wait()
}

// shipAsync dispatches delivery on a detached goroutine with its own error
// boundary, so neither a network failure nor a panic can affect the caller.
func (l *Logger) shipAsync(dataset string, records []any) {
	if l.opts.Token == "" || dataset == "" {
		return
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("telemetry delivery panic", slog.Any("panic", r))
			}
		}()
		if err := l.ship(dataset, records); err != nil {
			l.logger.Warn("telemetry delivery failed",
				slog.String("dataset", dataset),
				slog.String("error", err.Error()))
		}
	}()
}

func (l *Logger) ship(dataset string, records []any) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	url := l.opts.Endpoint + "/v1/datasets/" + dataset + "/ingest"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.opts.Token)
	if l.opts.OrgID != "" {
		req.Header.Set("X-Axiom-Org-Id", l.opts.OrgID)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("status 403: token lacks ingest permission for dataset %q, check the telemetry token", dataset)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("status 404: dataset %q not found, create it in the telemetry backend", dataset)
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
}
