// Package tuyatest provides an in-process appliance speaking the local
// protocol, for tests.
package tuyatest

import (
	"encoding/json"
	"errors"
	"net"
	"sync"

	"tuya-switch/internal/infra/tuya"
)

// Request is a command received by the Device, decrypted.
type Request struct {
	Cmd  uint32
	Body map[string]any
}

// Device is a fake appliance listening on a loopback port.
type Device struct {
	ID    string
	codec *tuya.Codec

	listener net.Listener
	wg       sync.WaitGroup
	conns    map[net.Conn]struct{}

	mu          sync.Mutex
	dps         map[string]any
	requests    []Request
	dropControl bool
}

// NewDevice starts an appliance with the given identity and initial data
// points. Close must be called to release the listener.
func NewDevice(id, key, version string, dps map[string]any) (*Device, error) {
	codec, err := tuya.NewCodec(version, key)
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	d := &Device{
		ID:       id,
		codec:    codec,
		listener: ln,
		conns:    make(map[net.Conn]struct{}),
		dps:      make(map[string]any, len(dps)),
	}
	for k, v := range dps {
		d.dps[k] = v
	}

	d.wg.Add(1)
	go d.serve()

	return d, nil
}

// Addr is the host:port to put in a registry record's ip field.
func (d *Device) Addr() string {
	return d.listener.Addr().String()
}

func (d *Device) Close() error {
	err := d.listener.Close()
	d.mu.Lock()
	for conn := range d.conns {
		conn.Close()
	}
	d.mu.Unlock()
	d.wg.Wait()
	return err
}

// DropControl makes the appliance hang up on control commands without
// answering.
func (d *Device) DropControl(drop bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropControl = drop
}

func (d *Device) DPS() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]any, len(d.dps))
	for k, v := range d.dps {
		out[k] = v
	}
	return out
}

func (d *Device) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Request, len(d.requests))
	copy(out, d.requests)
	return out
}

// Controls returns the bodies of the control commands received so far.
func (d *Device) Controls() []Request {
	var out []Request
	for _, r := range d.Requests() {
		if r.Cmd == tuya.CmdControl {
			out = append(out, r)
		}
	}
	return out
}

func (d *Device) serve() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			return
		}
		d.mu.Lock()
		d.conns[conn] = struct{}{}
		d.mu.Unlock()

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer func() {
				d.mu.Lock()
				delete(d.conns, conn)
				d.mu.Unlock()
				conn.Close()
			}()
			d.handle(conn)
		}()
	}
}

func (d *Device) handle(conn net.Conn) {
	for {
		f, err := tuya.ReadFrame(conn)
		if err != nil {
			return
		}

		plain, err := d.codec.DecodeRequest(f.Payload)
		if err != nil {
			return
		}
		var body map[string]any
		if err := json.Unmarshal(plain, &body); err != nil {
			return
		}

		replies, err := d.apply(f.Cmd, body)
		if err != nil {
			return
		}
		for _, r := range replies {
			r.Seq = f.Seq
			b, err := r.MarshalBinary()
			if err != nil {
				return
			}
			if _, err := conn.Write(b); err != nil {
				return
			}
		}
	}
}

var errHangUp = errors.New("hang up")

func (d *Device) apply(cmd uint32, body map[string]any) ([]tuya.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, Request{Cmd: cmd, Body: body})

	switch cmd {
	case tuya.CmdDPQuery:
		status, _ := json.Marshal(map[string]any{"devId": d.ID, "dps": d.dps})
		return []tuya.Frame{
			{Cmd: tuya.CmdHeartBeat, Payload: d.codec.EncodeResponse(tuya.CmdHeartBeat, nil)},
			{Cmd: tuya.CmdDPQuery, Payload: d.codec.EncodeResponse(tuya.CmdDPQuery, status)},
		}, nil

	case tuya.CmdControl:
		if d.dropControl {
			return nil, errHangUp
		}
		if dps, ok := body["dps"].(map[string]any); ok {
			for k, v := range dps {
				d.dps[k] = v
			}
		}
		return []tuya.Frame{
			{Cmd: tuya.CmdControl, Payload: d.codec.EncodeResponse(tuya.CmdControl, nil)},
		}, nil

	default:
		return []tuya.Frame{
			{Cmd: cmd, Payload: d.codec.EncodeResponse(cmd, nil)},
		}, nil
	}
}
