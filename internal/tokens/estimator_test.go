package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimatorCount(t *testing.T) {
	e := NewEstimator()

	assert.Equal(t, 0, e.Count(""))

	n := e.Count("Be still, and know that I am God.")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 20)

	// Longer text counts more tokens.
	short := e.Count("peace")
	long := e.Count(strings.Repeat("peace be with you ", 50))
	assert.Greater(t, long, short)
}

func TestEstimatorCountMessage(t *testing.T) {
	e := NewEstimator()

	content := e.Count("hello")
	msg := e.CountMessage("user", "hello")
	assert.Equal(t, content+tokensPerMessage+tokensPerRole, msg)
}

func TestEstimatorCountPrompt(t *testing.T) {
	e := NewEstimator()

	assert.Equal(t, 0, e.CountPrompt("", nil))

	withSystem := e.CountPrompt("You are a gentle devotional companion.", nil)
	assert.Greater(t, withSystem, 0)

	withMessages := e.CountPrompt("You are a gentle devotional companion.", []string{"Help me pray", "about my family"})
	assert.Greater(t, withMessages, withSystem)
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, ApproxTokens(""))
	assert.Equal(t, 25, ApproxTokens(strings.Repeat("a", 100)))
}
