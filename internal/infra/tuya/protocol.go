package tuya

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	framePrefix uint32 = 0x000055AA
	frameSuffix uint32 = 0x0000AA55

	headerLen  = 16
	trailerLen = 8

	// appliances never send more than a few hundred bytes
	maxFrameSize = 10000
)

// Command codes understood by the local protocol.
const (
	CmdControl   uint32 = 7
	CmdStatus    uint32 = 8
	CmdHeartBeat uint32 = 9
	CmdDPQuery   uint32 = 10
)

var (
	ErrBadPrefix = errors.New("tuya: bad frame prefix")
	ErrBadSuffix = errors.New("tuya: bad frame suffix")
	ErrChecksum  = errors.New("tuya: frame checksum mismatch")
)

// Frame is one message on the wire:
//
//	prefix | seq | cmd | len | payload | crc32 | suffix
//
// All integers are big endian; len counts payload, crc and suffix.
type Frame struct {
	Seq     uint32
	Cmd     uint32
	Payload []byte
}

func (f Frame) MarshalBinary() ([]byte, error) {
	if len(f.Payload)+trailerLen > maxFrameSize {
		return nil, fmt.Errorf("tuya: payload too large (%d bytes)", len(f.Payload))
	}

	b := make([]byte, 0, headerLen+len(f.Payload)+trailerLen)
	b = binary.BigEndian.AppendUint32(b, framePrefix)
	b = binary.BigEndian.AppendUint32(b, f.Seq)
	b = binary.BigEndian.AppendUint32(b, f.Cmd)
	b = binary.BigEndian.AppendUint32(b, uint32(len(f.Payload)+trailerLen))
	b = append(b, f.Payload...)
	b = binary.BigEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
	b = binary.BigEndian.AppendUint32(b, frameSuffix)
	return b, nil
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}
	if binary.BigEndian.Uint32(header) != framePrefix {
		return Frame{}, ErrBadPrefix
	}

	size := binary.BigEndian.Uint32(header[12:])
	if size < trailerLen || size > maxFrameSize {
		return Frame{}, fmt.Errorf("tuya: dubious frame length %d", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, err
	}

	payload := body[:size-trailerLen]
	if binary.BigEndian.Uint32(body[size-4:]) != frameSuffix {
		return Frame{}, ErrBadSuffix
	}

	crc := crc32.NewIEEE()
	crc.Write(header)
	crc.Write(payload)
	if crc.Sum32() != binary.BigEndian.Uint32(body[size-trailerLen:]) {
		return Frame{}, ErrChecksum
	}

	return Frame{
		Seq:     binary.BigEndian.Uint32(header[4:]),
		Cmd:     binary.BigEndian.Uint32(header[8:]),
		Payload: payload,
	}, nil
}
