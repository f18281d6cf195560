package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
)

// Software is a stdlib-backed reference Provider covering the "null"
// algorithm and the AES-based 128-EEA2/128-EIA2 constructions. SNOW-3G and
// ZUC are not implemented: no bearer configured to use them will encode or
// decode correctly, and NewSoftware/IntegrityGenerate/CipherEncrypt all
// report ErrConfigError for them rather than silently passing data through.
type Software struct {
	key       [16]byte
	integrity IntegrityAlgorithm
	cipherAlg CipherAlgorithm
	block     cipher.Block
}

// NewSoftware constructs a Software provider for one key and algorithm
// pair. The key is shared by both integrity and ciphering, matching how a
// single KASME-derived key set feeds both algorithms in a PDCP security
// context.
func NewSoftware(key [16]byte, integrity IntegrityAlgorithm, cipherAlg CipherAlgorithm) (*Software, error) {
	switch integrity {
	case IntegrityNone, IntegrityAES:
	default:
		return nil, ErrConfigError
	}
	switch cipherAlg {
	case CipherNone, CipherAES:
	default:
		return nil, ErrConfigError
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return &Software{key: key, integrity: integrity, cipherAlg: cipherAlg, block: block}, nil
}

// macInput lays out COUNT || BEARER<<3|DIRECTION || msg, the message
// format 128-EIA2 feeds to AES-CMAC.
func macInput(ctx Context, msg []byte) []byte {
	buf := make([]byte, 5+len(msg))
	buf[0] = byte(ctx.Count >> 24)
	buf[1] = byte(ctx.Count >> 16)
	buf[2] = byte(ctx.Count >> 8)
	buf[3] = byte(ctx.Count)
	buf[4] = ctx.Bearer<<3 | byte(ctx.Direction)<<2
	copy(buf[5:], msg)
	return buf
}

func (s *Software) IntegrityGenerate(ctx Context, msg []byte) ([4]byte, error) {
	var mac [4]byte
	switch s.integrity {
	case IntegrityNone:
		return mac, nil
	case IntegrityAES:
		full := aesCMAC(s.block, macInput(ctx, msg))
		copy(mac[:], full[:4])
		return mac, nil
	default:
		return mac, ErrConfigError
	}
}

func (s *Software) IntegrityVerify(ctx Context, msg []byte, mac [4]byte) error {
	computed, err := s.IntegrityGenerate(ctx, msg)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(computed[:], mac[:]) != 1 {
		return ErrIntegrityFailure
	}
	return nil
}

// counterBlock builds the initial CTR counter block for 128-EEA2: COUNT
// (32 bits) || BEARER (5 bits) || DIRECTION (1 bit) || 26 zero bits.
func counterBlock(ctx Context) [16]byte {
	var iv [16]byte
	iv[0] = byte(ctx.Count >> 24)
	iv[1] = byte(ctx.Count >> 16)
	iv[2] = byte(ctx.Count >> 8)
	iv[3] = byte(ctx.Count)
	iv[4] = ctx.Bearer<<3 | byte(ctx.Direction)<<2
	return iv
}

func (s *Software) CipherEncrypt(ctx Context, msg []byte) ([]byte, error) {
	switch s.cipherAlg {
	case CipherNone:
		out := make([]byte, len(msg))
		copy(out, msg)
		return out, nil
	case CipherAES:
		iv := counterBlock(ctx)
		out := make([]byte, len(msg))
		stream := cipher.NewCTR(s.block, iv[:])
		stream.XORKeyStream(out, msg)
		return out, nil
	default:
		return nil, ErrConfigError
	}
}

// CipherDecrypt is identical to CipherEncrypt: CTR-mode keystream XOR is
// its own inverse.
func (s *Software) CipherDecrypt(ctx Context, msg []byte) ([]byte, error) {
	return s.CipherEncrypt(ctx, msg)
}
