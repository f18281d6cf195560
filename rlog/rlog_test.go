package rlog

import (
	"bytes"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, logiface.LevelInformational)
	require.NotNil(t, logger)

	logger.Info().Str("event", "bearer_established").Log("rlc-am ready")
	assert.Contains(t, buf.String(), "bearer_established")
	assert.Contains(t, buf.String(), "rlc-am ready")
}

func TestForBearerAddsNameFields(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, logiface.LevelInformational)
	child := ForBearer(root, "rlc-am", 3)

	child.Info().Log("poll triggered")
	out := buf.String()
	assert.Contains(t, out, `"component":"rlc-am"`)
	assert.Contains(t, out, `"lcid":3`)
}
