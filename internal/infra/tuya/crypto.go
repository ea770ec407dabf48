package tuya

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
)

// ecb is AES in electronic codebook mode with PKCS#7 padding, which is what
// the appliances speak.
type ecb struct {
	block cipher.Block
}

func newECB(key string) (*ecb, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("tuya: local key: %w", err)
	}
	return &ecb{block: block}, nil
}

func (e *ecb) encrypt(plain []byte) []byte {
	bs := e.block.BlockSize()
	pad := bs - len(plain)%bs
	data := make([]byte, len(plain), len(plain)+pad)
	copy(data, plain)
	data = append(data, bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		e.block.Encrypt(out[i:i+bs], data[i:i+bs])
	}
	return out
}

func (e *ecb) decrypt(ciphertext []byte) ([]byte, error) {
	bs := e.block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("tuya: bad ciphertext length %d", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += bs {
		e.block.Decrypt(out[i:i+bs], ciphertext[i:i+bs])
	}

	pad := int(out[len(out)-1])
	if pad == 0 || pad > bs {
		return nil, errors.New("tuya: bad padding")
	}
	for _, b := range out[len(out)-pad:] {
		if int(b) != pad {
			return nil, errors.New("tuya: bad padding")
		}
	}
	return out[:len(out)-pad], nil
}

// sign31 is the 16 character signature protocol 3.1 puts in front of
// encrypted payloads.
func sign31(b64 []byte, key, version string) []byte {
	h := md5.New()
	h.Write([]byte("data="))
	h.Write(b64)
	h.Write([]byte("||lpv=" + version + "||"))
	h.Write([]byte(key))
	sum := h.Sum(nil)
	return []byte(hex.EncodeToString(sum[4:12]))
}
