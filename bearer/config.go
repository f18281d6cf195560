// Package bearer holds bearer configuration and the process-wide registry
// of live bearers, the unit that owns exactly one RLC entity and one PDCP
// entity (spec.md GLOSSARY "Bearer").
package bearer

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/snum"
)

// ErrConfigError is returned by LoadConfig/Validate when a configuration
// is structurally present but semantically invalid (spec.md §7).
var ErrConfigError = errs.ErrConfigError

// ErrParseError is returned by LoadConfig when the YAML document itself
// cannot be parsed.
var ErrParseError = errs.ErrParseError

// LCID identifies a logical channel, and therefore a bearer, within a
// single UE's stack.
type LCID uint16

// RBType distinguishes a signalling bearer from a data bearer.
type RBType string

const (
	RBSignalling RBType = "srb"
	RBData       RBType = "drb"
)

// RLCMode selects the RLC entity mode. Validate accepts tm, um and am
// (srsRAN bearers may be configured any of those ways), but this module
// only implements an entity for Acknowledged Mode (am).
type RLCMode string

const (
	RLCTransparent   RLCMode = "tm"
	RLCUnacknowledged RLCMode = "um"
	RLCAcknowledged  RLCMode = "am"
)

// Config is one bearer's full configuration, per spec.md §3's "Bearer
// configuration" tuple.
type Config struct {
	SNLen             snum.Width `yaml:"sn_len"`
	TPollRetxMs       uint32     `yaml:"t_poll_retx_ms"`
	TReorderingMs     uint32     `yaml:"t_reordering_ms"`
	TStatusProhibitMs uint32     `yaml:"t_status_prohibit_ms"`
	TDiscardMs        uint32     `yaml:"t_discard_ms"`
	PollPDU           uint32     `yaml:"poll_pdu"`
	PollByte          uint32     `yaml:"poll_byte"`
	MaxRetxThreshold  uint32     `yaml:"max_retx_threshold"`
	RBType            RBType     `yaml:"rb_type"`
	RLCMode           RLCMode    `yaml:"rlc_mode"`
}

// Validate reports whether c is self-consistent enough to build a bearer
// from.
func (c Config) Validate() error {
	if !c.SNLen.IsValid() {
		return errors.Wrapf(ErrConfigError, "sn_len %d is not one of {5,7,10,12,18}", c.SNLen)
	}
	switch c.RBType {
	case RBSignalling, RBData:
	default:
		return errors.Wrapf(ErrConfigError, "rb_type %q must be srb or drb", c.RBType)
	}
	switch c.RLCMode {
	case RLCTransparent, RLCUnacknowledged, RLCAcknowledged:
	default:
		return errors.Wrapf(ErrConfigError, "rlc_mode %q must be tm, um or am", c.RLCMode)
	}
	if c.RLCMode == RLCAcknowledged && c.MaxRetxThreshold == 0 {
		return errors.Wrap(ErrConfigError, "am bearers require a non-zero max_retx_threshold")
	}
	return nil
}

// LoadConfig parses a single bearer Config from YAML.
func LoadConfig(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, errors.Wrap(ErrParseError, err.Error())
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// SaveConfig writes c back out as YAML.
func SaveConfig(w io.Writer, c Config) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("bearer: encode config: %w", err)
	}
	return nil
}
