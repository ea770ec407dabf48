package tuya

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"tuya-switch/internal/domain"
	"tuya-switch/internal/infra"
)

const DefaultPort = 6668

// a reply may be preceded by heartbeats or status pushes
const maxFramesPerExchange = 8

type Options struct {
	Port    int
	Timeout time.Duration
	Retry   infra.RetryConfig
}

func DefaultOptions() Options {
	return Options{
		Port:    DefaultPort,
		Timeout: 5 * time.Second,
		Retry:   infra.DefaultRetryConfig(),
	}
}

// Client talks to one appliance over the local network. Every call opens
// its own TCP connection: appliances accept a single client at a time.
type Client struct {
	id    string
	addr  string
	codec *Codec
	opts  Options

	mu       sync.Mutex
	seq      uint32
	switchDP string
}

// NewOutlet returns a client for a smart plug, switched through data point 1.
func NewOutlet(id, ip, key, version string, opts Options) (*Client, error) {
	return newClient(id, ip, key, version, domain.DPSSwitch, opts)
}

// NewBulb returns a client for a light bulb. Until a status has been read
// the newer data point 20 is assumed.
func NewBulb(id, ip, key, version string, opts Options) (*Client, error) {
	return newClient(id, ip, key, version, domain.DPSBulbSwitch, opts)
}

// Open picks the constructor matching the record's device type.
func Open(rec domain.Record, opts Options) (*Client, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	switch rec.Type {
	case domain.DeviceTypeOutlet:
		return NewOutlet(rec.ID, rec.IP, rec.Key, rec.Version, opts)
	case domain.DeviceTypeBulb:
		return NewBulb(rec.ID, rec.IP, rec.Key, rec.Version, opts)
	default:
		return nil, fmt.Errorf("tuya: unsupported device type %q", rec.Type)
	}
}

func newClient(id, ip, key, version, switchDP string, opts Options) (*Client, error) {
	codec, err := NewCodec(version, key)
	if err != nil {
		return nil, err
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	return &Client{
		id:       id,
		addr:     address(ip, opts.Port),
		codec:    codec,
		opts:     opts,
		switchDP: switchDP,
	}, nil
}

// address keeps an explicit port given in the registry.
func address(ip string, port int) string {
	if _, _, err := net.SplitHostPort(ip); err == nil {
		return ip
	}
	return net.JoinHostPort(ip, strconv.Itoa(port))
}

func (c *Client) Addr() string {
	return c.addr
}

// SwitchDP is the data point used by TurnOn, TurnOff and SetStatus.
func (c *Client) SwitchDP() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.switchDP
}

func (c *Client) Status(ctx context.Context) (domain.Status, error) {
	body, _ := json.Marshal(map[string]any{
		"gwId":  c.id,
		"devId": c.id,
		"uid":   c.id,
		"t":     strconv.FormatInt(time.Now().Unix(), 10),
	})

	resp, err := c.exchange(ctx, CmdDPQuery, body)
	if err != nil {
		return domain.Status{}, fmt.Errorf("querying status: %w", err)
	}

	var result struct {
		DPS map[string]any `json:"dps"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return domain.Status{}, fmt.Errorf("parsing status: %w", err)
	}
	if result.DPS == nil {
		return domain.Status{}, errors.New("tuya: status response without dps")
	}

	status := domain.Status{DPS: result.DPS}
	if _, dp, ok := status.Switch(); ok {
		c.mu.Lock()
		c.switchDP = dp
		c.mu.Unlock()
	}

	return status, nil
}

func (c *Client) TurnOn(ctx context.Context) error {
	return c.SetStatus(ctx, true)
}

func (c *Client) TurnOff(ctx context.Context) error {
	return c.SetStatus(ctx, false)
}

func (c *Client) SetStatus(ctx context.Context, on bool) error {
	body, _ := json.Marshal(map[string]any{
		"devId": c.id,
		"uid":   c.id,
		"t":     strconv.FormatInt(time.Now().Unix(), 10),
		"dps":   map[string]bool{c.SwitchDP(): on},
	})

	if _, err := c.exchange(ctx, CmdControl, body); err != nil {
		return fmt.Errorf("setting switch: %w", err)
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, cmd uint32, body []byte) ([]byte, error) {
	var resp []byte
	err := infra.WithRetry(ctx, c.opts.Retry, func() error {
		var err error
		resp, err = c.roundTrip(ctx, cmd, body)
		return err
	})
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, cmd uint32, body []byte) ([]byte, error) {
	dialer := net.Dialer{Timeout: c.opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("setting deadline: %w", err)
	}

	// appliances cannot handle a frame split over several writes
	frame, err := Frame{Seq: c.nextSeq(), Cmd: cmd, Payload: c.codec.EncodeRequest(cmd, body)}.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("sending: %w", err)
	}

	for i := 0; i < maxFramesPerExchange; i++ {
		f, err := ReadFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("receiving: %w", err)
		}
		if !answers(cmd, f.Cmd) {
			continue
		}
		data, err := c.codec.DecodeResponse(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("tuya: no reply to command %d", cmd)
}

func answers(sent, received uint32) bool {
	if sent == received {
		return true
	}
	// some appliances answer a control with a status push only
	return sent == CmdControl && received == CmdStatus
}

func (c *Client) nextSeq() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}
