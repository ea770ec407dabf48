package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"tuya-switch/internal/domain"
)

type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Timeout     time.Duration
}

// Notifier publishes state changes as retained messages, one topic per
// device.
type Notifier struct {
	client  paho.Client
	prefix  string
	timeout time.Duration
}

func NewNotifier(client paho.Client, prefix string, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		client:  client,
		prefix:  strings.Trim(prefix, "/"),
		timeout: timeout,
	}
}

// Connect dials the broker and returns a ready Notifier.
func Connect(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(BrokerURL(cfg.Broker))

	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = "switch-tuya-device-" + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetAutoReconnect(false)

	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	}
	opts.OnConnect = func(_ paho.Client) {
		logger.Debug("mqtt connected", "broker", cfg.Broker)
	}

	client := paho.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connecting to %s: timeout", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}

	return NewNotifier(client, cfg.TopicPrefix, cfg.Timeout), nil
}

// BrokerURL rewrites the mqtt:// scheme to the tcp:// one paho expects.
func BrokerURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return "tcp://localhost:1883"
	}
	if rest, ok := strings.CutPrefix(url, "mqtt://"); ok {
		return "tcp://" + rest
	}
	if !strings.Contains(url, "://") {
		return "tcp://" + url
	}
	return url
}

func (n *Notifier) Topic(deviceID string) string {
	if n.prefix == "" {
		return deviceID + "/state"
	}
	return n.prefix + "/" + deviceID + "/state"
}

func (n *Notifier) Notify(ctx context.Context, change domain.StateChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encoding state change: %w", err)
	}

	tok := n.client.Publish(n.Topic(change.DeviceID), 1, true, payload)

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return fmt.Errorf("publishing: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("publishing: timeout after %s", n.timeout)
	}
}

func (n *Notifier) Close() {
	if n == nil || n.client == nil {
		return
	}
	n.client.Disconnect(250)
}
