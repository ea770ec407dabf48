package tuya

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	Version31 = "3.1"
	Version33 = "3.3"

	signatureLen = 16
	// "3.3" followed by twelve zero bytes
	header33Len = 15
)

var ErrUnsupportedVersion = errors.New("tuya: unsupported protocol version")

// Codec turns JSON bodies into frame payloads and back for one device.
// Requests travel from the controller to the appliance, responses the
// other way round.
type Codec struct {
	version string
	key     string
	cipher  *ecb
}

func NewCodec(version, key string) (*Codec, error) {
	v, err := NormalizeVersion(version)
	if err != nil {
		return nil, err
	}
	c, err := newECB(key)
	if err != nil {
		return nil, err
	}
	return &Codec{version: v, key: key, cipher: c}, nil
}

// NormalizeVersion accepts "3.3", "3.30" or 3.3 written as a number and
// returns the canonical "3.3" form.
func NormalizeVersion(version string) (string, error) {
	f, err := strconv.ParseFloat(version, 64)
	if err != nil {
		return "", fmt.Errorf("%w %q", ErrUnsupportedVersion, version)
	}
	v := strconv.FormatFloat(f, 'f', 1, 64)
	switch v {
	case Version31, Version33:
		return v, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedVersion, version)
	}
}

func (c *Codec) Version() string {
	return c.version
}

func (c *Codec) EncodeRequest(cmd uint32, body []byte) []byte {
	switch c.version {
	case Version31:
		if cmd != CmdControl {
			return body
		}
		return c.signed31(body)
	default:
		ct := c.cipher.encrypt(body)
		if cmd == CmdDPQuery {
			return ct
		}
		return append(c.header33(), ct...)
	}
}

func (c *Codec) DecodeRequest(payload []byte) ([]byte, error) {
	switch c.version {
	case Version31:
		if !bytes.HasPrefix(payload, []byte(c.version)) {
			return payload, nil
		}
		return c.open31(payload)
	default:
		payload = bytes.TrimPrefix(payload, c.header33())
		return c.cipher.decrypt(payload)
	}
}

// EncodeResponse prepends the zero return code. Asynchronous status pushes
// are encrypted the same way the appliances do it.
func (c *Codec) EncodeResponse(cmd uint32, body []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, 0)
	if len(body) == 0 {
		return out
	}

	switch c.version {
	case Version31:
		if cmd == CmdStatus {
			return append(out, c.signed31(body)...)
		}
		return append(out, body...)
	default:
		if cmd == CmdStatus {
			out = append(out, c.header33()...)
		}
		return append(out, c.cipher.encrypt(body)...)
	}
}

// DecodeResponse strips the return code and decrypts what follows. An
// empty result is a plain acknowledgement.
func (c *Codec) DecodeResponse(payload []byte) ([]byte, error) {
	if len(payload) >= 4 && binary.BigEndian.Uint32(payload)&0xFFFFFF00 == 0 {
		code := binary.BigEndian.Uint32(payload)
		payload = payload[4:]
		if code != 0 {
			return nil, fmt.Errorf("tuya: appliance returned code %d", code)
		}
	}
	if len(payload) == 0 {
		return nil, nil
	}
	if payload[0] == '{' && json.Valid(payload) {
		return payload, nil
	}

	switch c.version {
	case Version31:
		if !bytes.HasPrefix(payload, []byte(c.version)) {
			return nil, fmt.Errorf("tuya: unexpected response %q", payload)
		}
		return c.open31(payload)
	default:
		if bytes.HasPrefix(payload, []byte(c.version)) && len(payload) >= header33Len {
			payload = payload[header33Len:]
		}
		if len(payload) == 0 {
			return nil, nil
		}
		if len(payload)%16 != 0 {
			return nil, fmt.Errorf("tuya: unexpected response %q", payload)
		}
		return c.cipher.decrypt(payload)
	}
}

func (c *Codec) header33() []byte {
	h := make([]byte, header33Len)
	copy(h, c.version)
	return h
}

func (c *Codec) signed31(body []byte) []byte {
	ct := c.cipher.encrypt(body)
	b64 := make([]byte, base64.StdEncoding.EncodedLen(len(ct)))
	base64.StdEncoding.Encode(b64, ct)

	out := make([]byte, 0, len(c.version)+signatureLen+len(b64))
	out = append(out, c.version...)
	out = append(out, sign31(b64, c.key, c.version)...)
	return append(out, b64...)
}

func (c *Codec) open31(payload []byte) ([]byte, error) {
	if len(payload) < len(c.version)+signatureLen {
		return nil, errors.New("tuya: short 3.1 payload")
	}
	sig := payload[len(c.version) : len(c.version)+signatureLen]
	b64 := payload[len(c.version)+signatureLen:]
	if !bytes.Equal(sig, sign31(b64, c.key, c.version)) {
		return nil, errors.New("tuya: bad 3.1 signature")
	}

	ct := make([]byte, base64.StdEncoding.DecodedLen(len(b64)))
	n, err := base64.StdEncoding.Decode(ct, b64)
	if err != nil {
		return nil, fmt.Errorf("tuya: decoding 3.1 payload: %w", err)
	}
	return c.cipher.decrypt(ct[:n])
}
