package pdcp

import (
	"github.com/ranl2/l2core/errs"
	"github.com/ranl2/l2core/security"
	"github.com/ranl2/l2core/snum"
)

// secureTx integrity-protects and ciphers payload for transmission, per
// pdcp_entity_base's tx pipeline: generate the MAC over header||payload
// first, then cipher the payload (and, on signalling bearers, the MAC
// too, since TS 33.401 ciphers the whole PDCP PDU body on SRBs). sec may
// be nil, or configured with both algorithms None, in which case payload
// passes through unchanged and no MAC is appended.
func secureTx(sec security.Provider, cfg Config, count snum.Count, header, payload []byte) ([]byte, error) {
	if sec == nil || (cfg.IntegrityAlgo == security.IntegrityNone && cfg.CipherAlgo == security.CipherNone) {
		return payload, nil
	}
	ctx := cfg.securityContext(count)

	var mac [4]byte
	haveMAC := cfg.IntegrityAlgo != security.IntegrityNone
	if haveMAC {
		msg := make([]byte, 0, len(header)+len(payload))
		msg = append(msg, header...)
		msg = append(msg, payload...)
		m, err := sec.IntegrityGenerate(ctx, msg)
		if err != nil {
			return nil, err
		}
		mac = m
	}

	out := payload
	if cfg.CipherAlgo != security.CipherNone {
		enc, err := sec.CipherEncrypt(ctx, payload)
		if err != nil {
			return nil, err
		}
		out = enc
		if haveMAC && cfg.RBType == RBSignalling {
			encMAC, err := sec.CipherEncrypt(ctx, mac[:])
			if err != nil {
				return nil, err
			}
			copy(mac[:], encMAC)
		}
	}

	if haveMAC {
		out = append(append([]byte{}, out...), mac[:]...)
	}
	return out, nil
}

// unsecureRx is secureTx's inverse: decipher first, then verify integrity
// over header||deciphered-payload, matching pdcp_entity_base's rx pipeline
// order (cipher is removed before the MAC, which was computed over
// plaintext, can be checked).
func unsecureRx(sec security.Provider, cfg Config, count snum.Count, header, wire []byte) ([]byte, error) {
	if sec == nil || (cfg.IntegrityAlgo == security.IntegrityNone && cfg.CipherAlgo == security.CipherNone) {
		return wire, nil
	}
	ctx := cfg.securityContext(count)

	payload := wire
	var macBytes []byte
	haveMAC := cfg.IntegrityAlgo != security.IntegrityNone
	if haveMAC {
		if len(wire) < 4 {
			return nil, errs.ErrParseError
		}
		payload = wire[:len(wire)-4]
		macBytes = append([]byte{}, wire[len(wire)-4:]...)
	}

	if cfg.CipherAlgo != security.CipherNone {
		dec, err := sec.CipherDecrypt(ctx, payload)
		if err != nil {
			return nil, err
		}
		payload = dec
		if haveMAC && cfg.RBType == RBSignalling {
			decMAC, err := sec.CipherDecrypt(ctx, macBytes)
			if err != nil {
				return nil, err
			}
			macBytes = decMAC
		}
	}

	if haveMAC {
		var mac4 [4]byte
		copy(mac4[:], macBytes)
		msg := make([]byte, 0, len(header)+len(payload))
		msg = append(msg, header...)
		msg = append(msg, payload...)
		if err := sec.IntegrityVerify(ctx, msg, mac4); err != nil {
			return nil, err
		}
	}
	return payload, nil
}
