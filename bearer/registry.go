package bearer

import (
	"sync"

	"github.com/pkg/errors"
)

// Entity is the lifecycle surface a Registry needs from the RLC and PDCP
// instances it holds, kept deliberately narrow so this package doesn't
// need to import rlcam/pdcp (they import bearer for Config, not the other
// way around).
type Entity interface {
	// Reestablish resets the entity's windows/sequence numbers back to 0
	// while keeping its security configuration, per spec.md §3's
	// lifecycle note.
	Reestablish()
	// Close releases any resources (pooled buffers, pending timers) held
	// by the entity.
	Close()
}

// Bearer is one logical channel's live state: its configuration plus its
// RLC and PDCP entities.
type Bearer struct {
	LCID   LCID
	Config Config
	RLC    Entity
	PDCP   Entity
}

// ErrBearerExists is returned by AddBearer when lcid is already registered.
var ErrBearerExists = errors.New("bearer: lcid already registered")

// ErrBearerNotFound is returned when an operation names an lcid that isn't
// registered.
var ErrBearerNotFound = errors.New("bearer: lcid not found")

// Registry is the process-wide map of live bearers, guarded by an
// RWMutex so MAC/RRC-thread readers (get_buffer_state, has_bearer) don't
// contend with the rarer add/del/reestablish writers.
//
// Grounded on original_source's srsran/rlc/rlc.h: `rlc_map_t rlc_array`
// guarded by a `pthread_rwlock_t`, with add_bearer/del_bearer/reestablish/
// change_lcid/has_bearer as the mutating surface.
type Registry struct {
	mu      sync.RWMutex
	bearers map[LCID]*Bearer
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{bearers: make(map[LCID]*Bearer)}
}

// AddBearer registers a new bearer under lcid.
func (r *Registry) AddBearer(lcid LCID, cfg Config, rlc, pdcp Entity) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bearers[lcid]; exists {
		return errors.Wrapf(ErrBearerExists, "lcid %d", lcid)
	}
	r.bearers[lcid] = &Bearer{LCID: lcid, Config: cfg, RLC: rlc, PDCP: pdcp}
	return nil
}

// DelBearer removes and closes the bearer registered under lcid. Deleting
// an unregistered lcid is a no-op.
func (r *Registry) DelBearer(lcid LCID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bearers[lcid]
	if !ok {
		return
	}
	delete(r.bearers, lcid)
	b.RLC.Close()
	b.PDCP.Close()
}

// HasBearer reports whether lcid is currently registered.
func (r *Registry) HasBearer(lcid LCID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bearers[lcid]
	return ok
}

// Get returns the bearer registered under lcid.
func (r *Registry) Get(lcid LCID) (*Bearer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bearers[lcid]
	return b, ok
}

// Reestablish resets a single bearer's RLC and PDCP entities in place.
func (r *Registry) Reestablish(lcid LCID) error {
	r.mu.RLock()
	b, ok := r.bearers[lcid]
	r.mu.RUnlock()
	if !ok {
		return errors.Wrapf(ErrBearerNotFound, "lcid %d", lcid)
	}
	b.RLC.Reestablish()
	b.PDCP.Reestablish()
	return nil
}

// ReestablishAll reestablishes every registered bearer, e.g. on handover.
func (r *Registry) ReestablishAll() {
	r.mu.RLock()
	bearers := make([]*Bearer, 0, len(r.bearers))
	for _, b := range r.bearers {
		bearers = append(bearers, b)
	}
	r.mu.RUnlock()
	for _, b := range bearers {
		b.RLC.Reestablish()
		b.PDCP.Reestablish()
	}
}

// ResetAll closes and removes every registered bearer.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for lcid, b := range r.bearers {
		b.RLC.Close()
		b.PDCP.Close()
		delete(r.bearers, lcid)
	}
}

// ChangeLCID moves a bearer's registration from oldLCID to newLCID without
// touching its entities, mirroring srsran::rlc::change_lcid.
func (r *Registry) ChangeLCID(oldLCID, newLCID LCID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bearers[oldLCID]
	if !ok {
		return errors.Wrapf(ErrBearerNotFound, "lcid %d", oldLCID)
	}
	if _, exists := r.bearers[newLCID]; exists {
		return errors.Wrapf(ErrBearerExists, "lcid %d", newLCID)
	}
	delete(r.bearers, oldLCID)
	b.LCID = newLCID
	r.bearers[newLCID] = b
	return nil
}

// Len reports how many bearers are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bearers)
}
