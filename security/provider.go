// Package security implements the crypto collaborator contract that the
// PDCP entities depend on for integrity protection and ciphering
// (spec.md §4.H). It is deliberately narrow: algorithm selection and key
// material are supplied by the caller, and this package never derives or
// stores keys itself.
package security

import "github.com/ranl2/l2core/errs"

// ErrConfigError is returned when an algorithm is not supported by the
// configured Provider (spec.md §7).
var ErrConfigError = errs.ErrConfigError

// ErrIntegrityFailure is returned by Verify when the computed MAC does not
// match the one carried on the PDU (spec.md §7).
var ErrIntegrityFailure = errs.ErrIntegrityFailure

// IntegrityAlgorithm identifies an integrity-protection algorithm, using
// the 3GPP NIA/EIA numbering carried over the air.
type IntegrityAlgorithm uint8

const (
	IntegrityNone IntegrityAlgorithm = iota
	IntegrityAES
	IntegritySNOW3G
	IntegrityZUC
)

// CipherAlgorithm identifies a ciphering algorithm, using the 3GPP
// NEA/EEA numbering.
type CipherAlgorithm uint8

const (
	CipherNone CipherAlgorithm = iota
	CipherAES
	CipherSNOW3G
	CipherZUC
)

// Direction distinguishes uplink from downlink, which the 3GPP security
// algorithms fold into their input alongside COUNT and bearer ID.
type Direction uint8

const (
	DirectionUplink Direction = iota
	DirectionDownlink
)

// Context bundles the inputs every integrity/ciphering operation needs
// beyond the message bytes themselves, mirroring the parameters
// pdcp_entity_base passes to integrity_generate/cipher_encrypt in
// pdcp_entity_base.h.
type Context struct {
	Count     uint32
	Bearer    uint8
	Direction Direction
}

// Provider performs integrity protection and ciphering for one configured
// algorithm pair and key set. Implementations must be safe for concurrent
// use by multiple PDCP entities sharing a key (handover key reuse).
type Provider interface {
	// IntegrityGenerate computes a MAC over msg.
	IntegrityGenerate(ctx Context, msg []byte) (mac [4]byte, err error)
	// IntegrityVerify recomputes the MAC and compares it against mac,
	// returning ErrIntegrityFailure on mismatch.
	IntegrityVerify(ctx Context, msg []byte, mac [4]byte) error
	// CipherEncrypt returns the keystream-XORed ciphertext for msg.
	CipherEncrypt(ctx Context, msg []byte) ([]byte, error)
	// CipherDecrypt is the inverse of CipherEncrypt (XOR ciphers are
	// involutions, but algorithms need not assume that at the interface).
	CipherDecrypt(ctx Context, msg []byte) ([]byte, error)
}
