package procs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countdown is a toy procedure: Init sets how many Steps it runs; every
// Step but the last yields, and the last succeeds with the number of steps
// taken as its result.
type countdown struct {
	remaining int
	steps     int
}

func (c *countdown) Init(n int) Outcome {
	c.remaining = n
	c.steps = 0
	if n <= 0 {
		return Error
	}
	return Yield
}

func (c *countdown) Step() Outcome {
	c.steps++
	c.remaining--
	if c.remaining <= 0 {
		return Success
	}
	return Yield
}

func (c *countdown) Result() int { return c.steps }

func TestManagerLaunchAndRunToSuccess(t *testing.T) {
	m := NewManager[*countdown, int, int](&countdown{})
	require.True(t, m.Launch(3))
	require.True(t, m.IsBusy())

	require.True(t, m.Run())
	require.True(t, m.Run())
	require.False(t, m.Run()) // third step completes it

	assert.True(t, m.IsIdle())
}

func TestManagerLaunchRejectsErrorInit(t *testing.T) {
	m := NewManager[*countdown, int, int](&countdown{})
	assert.False(t, m.Launch(0))
	assert.True(t, m.IsIdle())
}

func TestManagerRejectsRelaunchWhileBusy(t *testing.T) {
	m := NewManager[*countdown, int, int](&countdown{})
	require.True(t, m.Launch(5))
	assert.False(t, m.Launch(5))
}

func TestManagerFutureObservesResult(t *testing.T) {
	m := NewManager[*countdown, int, int](&countdown{})
	m.Launch(2)
	fut := m.Future()
	assert.False(t, fut.IsComplete())

	m.Run()
	m.Run()
	assert.True(t, fut.IsComplete())
	v, ok := fut.Result().Value()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestManagerThenCallback(t *testing.T) {
	m := NewManager[*countdown, int, int](&countdown{})
	var got Result[int]
	m.Then(func(r Result[int]) { got = r })
	m.Launch(1)
	m.Run()
	assert.True(t, got.IsSuccess())
	v, _ := got.Value()
	assert.Equal(t, 1, v)
}

func TestManagerThenAlwaysFiresEveryRun(t *testing.T) {
	m := NewManager[*countdown, int, int](&countdown{})
	calls := 0
	m.ThenAlways(func(Result[int]) { calls++ })

	m.Launch(1)
	m.Run()
	m.Launch(1)
	m.Run()
	assert.Equal(t, 2, calls)
}

// pollable reacts to an externally injected event while busy.
type pollable struct {
	acked bool
}

func (p *pollable) Init(struct{}) Outcome { return Yield }
func (p *pollable) Step() Outcome         { return Yield }
func (p *pollable) React(ack bool) Outcome {
	p.acked = ack
	if ack {
		return Success
	}
	return Yield
}

func TestTriggerDeliversEventToBusyProcedure(t *testing.T) {
	m := NewManager[*pollable, struct{}, struct{}](&pollable{})
	m.Launch(struct{}{})
	require.True(t, m.IsBusy())

	stillBusy := Trigger[*pollable, struct{}, struct{}, bool](m, false)
	assert.True(t, stillBusy)

	stillBusy = Trigger[*pollable, struct{}, struct{}, bool](m, true)
	assert.False(t, stillBusy)
	assert.True(t, m.Proc().acked)
}

func TestTriggerIgnoredWhenIdle(t *testing.T) {
	m := NewManager[*pollable, struct{}, struct{}](&pollable{})
	assert.False(t, Trigger[*pollable, struct{}, struct{}, bool](m, true))
}

func TestManagerListDropsCompleted(t *testing.T) {
	var list ManagerList
	m1 := NewManager[*countdown, int, int](&countdown{})
	m2 := NewManager[*countdown, int, int](&countdown{})
	m1.Launch(1)
	m2.Launch(2)
	list.Add(m1)
	list.Add(m2)

	list.RunAll()
	assert.Equal(t, 1, list.Len()) // m1 completed, m2 still going

	list.RunAll()
	assert.Equal(t, 0, list.Len())
}

func TestEventHandlerFansOutToManager(t *testing.T) {
	m := NewManager[*pollable, struct{}, struct{}](&pollable{})
	m.Launch(struct{}{})

	var h EventHandler[bool]
	h.OnEveryTrigger(func(ev bool) { Trigger[*pollable, struct{}, struct{}, bool](m, ev) })

	h.Trigger(false)
	assert.True(t, m.IsBusy())
	h.Trigger(true)
	assert.False(t, m.IsBusy())
}

func TestCallbackGroupOneShotVsPersistent(t *testing.T) {
	var g CallbackGroup[int]
	var onceSum, alwaysSum int
	g.OnNextCall(func(v int) { onceSum += v })
	g.OnEveryCall(func(v int) { alwaysSum += v })

	g.Call(1)
	g.Call(2)

	assert.Equal(t, 1, onceSum)
	assert.Equal(t, 3, alwaysSum)
}
