// Package persist implements the detach-state serialization described in
// spec.md §6: the NAS security context carried across a detach/reattach
// cycle, as a flat key=value line format kept byte-for-byte compatible
// with the wire format peers already expect. A structured YAML companion
// (SaveYAML/LoadYAML) covers test fixtures, following bearer.Config's
// LoadConfig/SaveConfig shape.
package persist

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ranl2/l2core/errs"
)

// ErrParseError marks a malformed or incomplete persisted state document.
var ErrParseError = errs.ErrParseError

// State is the NAS security context persisted at detach (spec.md §6): the
// UE identity (M-TMSI, PLMN), the PDCP COUNT pair at the point of detach,
// the negotiated algorithm IDs, the key-set identifier, and K_ASME itself.
type State struct {
	MTMSI   uint32
	MCC     uint16
	MNC     uint16
	TxCount uint32
	RxCount uint32
	IntAlg  uint8
	EncAlg  uint8
	KSI     uint8
	KASME   [32]byte
}

// requiredKeys lists every key Load requires to be present exactly once;
// any document missing one, or carrying an unknown key, is rejected.
var requiredKeys = []string{
	"m_tmsi", "mcc", "mnc", "tx_count", "rx_count",
	"int_alg", "enc_alg", "ksi", "k_asme",
}

// Save writes s out in spec.md §6's key=value line format.
func Save(w io.Writer, s State) error {
	lines := []string{
		fmt.Sprintf("m_tmsi=%d", s.MTMSI),
		fmt.Sprintf("mcc=%d", s.MCC),
		fmt.Sprintf("mnc=%d", s.MNC),
		fmt.Sprintf("tx_count=%d", s.TxCount),
		fmt.Sprintf("rx_count=%d", s.RxCount),
		fmt.Sprintf("int_alg=%d", s.IntAlg),
		fmt.Sprintf("enc_alg=%d", s.EncAlg),
		fmt.Sprintf("ksi=%d", s.KSI),
		fmt.Sprintf("k_asme=%s", hex.EncodeToString(s.KASME[:])),
	}
	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return errors.Wrap(err, "persist: write")
		}
	}
	return nil
}

// Load parses a State from spec.md §6's key=value line format, rejecting
// any document missing a required key, carrying an unknown one, or
// repeating one.
func Load(r io.Reader) (State, error) {
	var s State
	seen := make(map[string]bool, len(requiredKeys))

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return State{}, errors.Wrapf(ErrParseError, "persist: malformed line %q", line)
		}
		if seen[key] {
			return State{}, errors.Wrapf(ErrParseError, "persist: duplicate key %q", key)
		}
		if err := s.setField(key, val); err != nil {
			return State{}, err
		}
		seen[key] = true
	}
	if err := sc.Err(); err != nil {
		return State{}, errors.Wrap(err, "persist: scan")
	}
	for _, k := range requiredKeys {
		if !seen[k] {
			return State{}, errors.Wrapf(ErrParseError, "persist: missing key %q", k)
		}
	}
	return s, nil
}

func (s *State) setField(key, val string) error {
	parseUint := func(bits int) (uint64, error) {
		v, err := strconv.ParseUint(val, 10, bits)
		if err != nil {
			return 0, errors.Wrapf(ErrParseError, "persist: %s=%q: %s", key, val, err)
		}
		return v, nil
	}
	switch key {
	case "m_tmsi":
		v, err := parseUint(32)
		if err != nil {
			return err
		}
		s.MTMSI = uint32(v)
	case "mcc":
		v, err := parseUint(16)
		if err != nil {
			return err
		}
		s.MCC = uint16(v)
	case "mnc":
		v, err := parseUint(16)
		if err != nil {
			return err
		}
		s.MNC = uint16(v)
	case "tx_count":
		v, err := parseUint(32)
		if err != nil {
			return err
		}
		s.TxCount = uint32(v)
	case "rx_count":
		v, err := parseUint(32)
		if err != nil {
			return err
		}
		s.RxCount = uint32(v)
	case "int_alg":
		v, err := parseUint(8)
		if err != nil {
			return err
		}
		s.IntAlg = uint8(v)
	case "enc_alg":
		v, err := parseUint(8)
		if err != nil {
			return err
		}
		s.EncAlg = uint8(v)
	case "ksi":
		v, err := parseUint(8)
		if err != nil {
			return err
		}
		s.KSI = uint8(v)
	case "k_asme":
		if len(val) != 64 {
			return errors.Wrapf(ErrParseError, "persist: k_asme must be 64 hex chars, got %d", len(val))
		}
		b, err := hex.DecodeString(val)
		if err != nil {
			return errors.Wrapf(ErrParseError, "persist: k_asme: %s", err)
		}
		copy(s.KASME[:], b)
	default:
		return errors.Wrapf(ErrParseError, "persist: unknown key %q", key)
	}
	return nil
}

// yamlState mirrors State for the structured companion format, carrying
// K_ASME as a hex string since yaml.v3 has no native fixed-size-array
// codec.
type yamlState struct {
	MTMSI   uint32 `yaml:"m_tmsi"`
	MCC     uint16 `yaml:"mcc"`
	MNC     uint16 `yaml:"mnc"`
	TxCount uint32 `yaml:"tx_count"`
	RxCount uint32 `yaml:"rx_count"`
	IntAlg  uint8  `yaml:"int_alg"`
	EncAlg  uint8  `yaml:"enc_alg"`
	KSI     uint8  `yaml:"ksi"`
	KASME   string `yaml:"k_asme"`
}

// SaveYAML writes s out as a structured YAML document, for test fixtures
// that want field-level diffs instead of the raw wire format.
func SaveYAML(w io.Writer, s State) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	y := yamlState{
		MTMSI: s.MTMSI, MCC: s.MCC, MNC: s.MNC,
		TxCount: s.TxCount, RxCount: s.RxCount,
		IntAlg: s.IntAlg, EncAlg: s.EncAlg, KSI: s.KSI,
		KASME: hex.EncodeToString(s.KASME[:]),
	}
	if err := enc.Encode(y); err != nil {
		return fmt.Errorf("persist: encode yaml: %w", err)
	}
	return nil
}

// LoadYAML is SaveYAML's inverse.
func LoadYAML(r io.Reader) (State, error) {
	var y yamlState
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&y); err != nil {
		return State{}, errors.Wrap(ErrParseError, err.Error())
	}
	if len(y.KASME) != 64 {
		return State{}, errors.Wrapf(ErrParseError, "persist: k_asme must be 64 hex chars, got %d", len(y.KASME))
	}
	b, err := hex.DecodeString(y.KASME)
	if err != nil {
		return State{}, errors.Wrapf(ErrParseError, "persist: k_asme: %s", err)
	}
	s := State{
		MTMSI: y.MTMSI, MCC: y.MCC, MNC: y.MNC,
		TxCount: y.TxCount, RxCount: y.RxCount,
		IntAlg: y.IntAlg, EncAlg: y.EncAlg, KSI: y.KSI,
	}
	copy(s.KASME[:], b)
	return s, nil
}
