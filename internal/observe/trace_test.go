package observe

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTraceContext(t *testing.T) {
	t.Run("headers propagated", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/v1/companion/chat", nil)
		r.Header.Set(HeaderTraceID, "trace-123")
		r.Header.Set(HeaderSessionID, "sess-456")
		r.Header.Set(HeaderEntryPoint, "verse_detail")
		r.Header.Set(HeaderAppVersion, "2.4.1")
		r.Header.Set(HeaderPlatform, "ios")

		tc := ExtractTraceContext(r, "user-1")

		assert.Equal(t, "trace-123", tc.TraceID)
		assert.Equal(t, "sess-456", tc.SessionID)
		assert.Equal(t, "user-1", tc.UserID)
		assert.Equal(t, "verse_detail", tc.EntryPoint)
		assert.Equal(t, "2.4.1", tc.AppVersion)
		assert.Equal(t, "ios", tc.Platform)
		assert.NotEmpty(t, tc.RequestID)
		assert.False(t, tc.ReceivedAt.IsZero())
	})

	t.Run("missing headers default", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/v1/companion/chat", nil)

		tc := ExtractTraceContext(r, "user-1")

		assert.NotEmpty(t, tc.TraceID)
		assert.Equal(t, "unknown", tc.SessionID)
		assert.Equal(t, "unknown", tc.EntryPoint)
		assert.Equal(t, "unknown", tc.AppVersion)
		assert.Equal(t, "unknown", tc.Platform)
	})

	t.Run("request id is always server generated", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/v1/companion/chat", nil)
		r.Header.Set(HeaderTraceID, "trace-123")

		a := ExtractTraceContext(r, "user-1")
		b := ExtractTraceContext(r, "user-1")

		require.NotEmpty(t, a.RequestID)
		assert.NotEqual(t, a.RequestID, b.RequestID)
		assert.Equal(t, a.TraceID, b.TraceID)
	})
}

func TestInternalTraceContext(t *testing.T) {
	tc := InternalTraceContext("system")

	assert.NotEmpty(t, tc.TraceID)
	assert.NotEmpty(t, tc.RequestID)
	assert.NotEqual(t, tc.TraceID, tc.RequestID)
	assert.Equal(t, "internal", tc.SessionID)
	assert.Equal(t, "internal", tc.EntryPoint)
	assert.Equal(t, "server", tc.Platform)
	assert.Equal(t, "system", tc.UserID)
}
