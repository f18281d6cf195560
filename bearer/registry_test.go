package bearer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntity struct {
	reestablished bool
	closed        bool
}

func (f *fakeEntity) Reestablish() { f.reestablished = true }
func (f *fakeEntity) Close()       { f.closed = true }

func testConfig() Config {
	return Config{
		SNLen:            10,
		MaxRetxThreshold: 4,
		RBType:           RBData,
		RLCMode:          RLCAcknowledged,
	}
}

func TestRegistryAddGetHasDel(t *testing.T) {
	r := NewRegistry()
	rlc, pdcp := &fakeEntity{}, &fakeEntity{}
	require.NoError(t, r.AddBearer(3, testConfig(), rlc, pdcp))

	assert.True(t, r.HasBearer(3))
	b, ok := r.Get(3)
	require.True(t, ok)
	assert.Equal(t, LCID(3), b.LCID)

	r.DelBearer(3)
	assert.False(t, r.HasBearer(3))
	assert.True(t, rlc.closed)
	assert.True(t, pdcp.closed)
}

func TestRegistryRejectsDuplicateLCID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddBearer(1, testConfig(), &fakeEntity{}, &fakeEntity{}))
	err := r.AddBearer(1, testConfig(), &fakeEntity{}, &fakeEntity{})
	assert.ErrorIs(t, err, ErrBearerExists)
}

func TestRegistryReestablish(t *testing.T) {
	r := NewRegistry()
	rlc, pdcp := &fakeEntity{}, &fakeEntity{}
	require.NoError(t, r.AddBearer(1, testConfig(), rlc, pdcp))
	require.NoError(t, r.Reestablish(1))
	assert.True(t, rlc.reestablished)
	assert.True(t, pdcp.reestablished)
}

func TestRegistryReestablishUnknownLCID(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Reestablish(99), ErrBearerNotFound)
}

func TestRegistryChangeLCID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddBearer(1, testConfig(), &fakeEntity{}, &fakeEntity{}))
	require.NoError(t, r.ChangeLCID(1, 2))
	assert.False(t, r.HasBearer(1))
	assert.True(t, r.HasBearer(2))
}

func TestRegistryChangeLCIDConflict(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddBearer(1, testConfig(), &fakeEntity{}, &fakeEntity{}))
	require.NoError(t, r.AddBearer(2, testConfig(), &fakeEntity{}, &fakeEntity{}))
	assert.ErrorIs(t, r.ChangeLCID(1, 2), ErrBearerExists)
}

func TestRegistryResetAllClosesEverything(t *testing.T) {
	r := NewRegistry()
	rlc1, pdcp1 := &fakeEntity{}, &fakeEntity{}
	require.NoError(t, r.AddBearer(1, testConfig(), rlc1, pdcp1))
	require.NoError(t, r.AddBearer(2, testConfig(), &fakeEntity{}, &fakeEntity{}))

	r.ResetAll()
	assert.Equal(t, 0, r.Len())
	assert.True(t, rlc1.closed)
}
