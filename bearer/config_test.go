package bearer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validYAML() string {
	return `
sn_len: 10
t_poll_retx_ms: 80
t_reordering_ms: 100
t_status_prohibit_ms: 50
t_discard_ms: 1500
poll_pdu: 16
poll_byte: 25000
max_retx_threshold: 4
rb_type: drb
rlc_mode: am
`
}

func TestLoadConfigValid(t *testing.T) {
	c, err := LoadConfig(strings.NewReader(validYAML()))
	require.NoError(t, err)
	assert.EqualValues(t, 10, c.SNLen)
	assert.Equal(t, RBData, c.RBType)
	assert.Equal(t, RLCAcknowledged, c.RLCMode)
	assert.Equal(t, uint32(4), c.MaxRetxThreshold)
}

func TestLoadConfigRejectsBadSNLen(t *testing.T) {
	bad := strings.Replace(validYAML(), "sn_len: 10", "sn_len: 9", 1)
	_, err := LoadConfig(strings.NewReader(bad))
	assert.ErrorIs(t, err, ErrConfigError)
}

func TestLoadConfigRejectsAMWithZeroMaxRetx(t *testing.T) {
	bad := strings.Replace(validYAML(), "max_retx_threshold: 4", "max_retx_threshold: 0", 1)
	_, err := LoadConfig(strings.NewReader(bad))
	assert.ErrorIs(t, err, ErrConfigError)
}

func TestLoadConfigRejectsUnparsable(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("not: [valid yaml"))
	assert.ErrorIs(t, err, ErrParseError)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	c, err := LoadConfig(strings.NewReader(validYAML()))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, SaveConfig(&buf, c))

	c2, err := LoadConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, c, c2)
}
