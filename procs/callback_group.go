package procs

// CallbackGroup bundles zero or more callbacks with an identical signature.
// Calling it invokes every active registered callback in turn; one-shot
// callbacks registered via OnNextCall are deactivated after their single
// firing, while callbacks registered via OnEveryCall persist.
//
// Grounded on srsRAN's callback_group_t<Args...>.
type CallbackGroup[Args any] struct {
	items []callbackItem[Args]
}

type callbackItem[Args any] struct {
	active     bool
	callAlways bool
	fn         func(Args)
}

// CallbackID identifies a registered callback for the lifetime of the group.
type CallbackID uint32

// OnNextCall registers fn to run exactly once, the next time the group is
// invoked, then deactivates.
func (g *CallbackGroup[Args]) OnNextCall(fn func(Args)) CallbackID {
	return g.register(fn, false)
}

// OnEveryCall registers fn to run every time the group is invoked, until
// explicitly deactivated via Cancel.
func (g *CallbackGroup[Args]) OnEveryCall(fn func(Args)) CallbackID {
	return g.register(fn, true)
}

func (g *CallbackGroup[Args]) register(fn func(Args), always bool) CallbackID {
	for i := range g.items {
		if !g.items[i].active {
			g.items[i] = callbackItem[Args]{active: true, callAlways: always, fn: fn}
			return CallbackID(i)
		}
	}
	g.items = append(g.items, callbackItem[Args]{active: true, callAlways: always, fn: fn})
	return CallbackID(len(g.items) - 1)
}

// Cancel deactivates a registered callback; canceling an unknown or already
// inactive id is a no-op.
func (g *CallbackGroup[Args]) Cancel(id CallbackID) {
	if int(id) < len(g.items) {
		g.items[id].active = false
	}
}

// Call invokes every active callback with arg, in registration order,
// deactivating one-shot callbacks after they fire. The active-callback set
// is snapshotted before iterating so a callback mutating the group (e.g.
// registering a new one-shot from inside itself) cannot corrupt this call's
// iteration.
func (g *CallbackGroup[Args]) Call(arg Args) {
	snapshot := make([]callbackItem[Args], len(g.items))
	copy(snapshot, g.items)
	for i, item := range snapshot {
		if !item.active {
			continue
		}
		item.fn(arg)
		if !item.callAlways {
			g.items[i].active = false
		}
	}
}
