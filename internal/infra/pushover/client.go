package pushover

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tuya-switch/internal/domain"
)

const DefaultURL = "https://api.pushover.net/1/messages.json"

type Client struct {
	token      string
	userKey    string
	url        string
	httpClient *http.Client
}

func NewClient(token, userKey string) *Client {
	return NewClientWithURL(token, userKey, DefaultURL)
}

func NewClientWithURL(token, userKey, apiURL string) *Client {
	return &Client{
		token:      token,
		userKey:    userKey,
		url:        apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Notify(ctx context.Context, change domain.StateChange) error {
	if c.token == "" || c.userKey == "" {
		return nil
	}

	data := url.Values{}
	data.Set("token", c.token)
	data.Set("user", c.userKey)
	data.Set("message", fmt.Sprintf("Device %s turned %s (%s)", change.DeviceID, change.Verb(), change.Command))
	data.Set("title", "Tuya switch")
	data.Set("timestamp", fmt.Sprintf("%d", change.Time.Unix()))

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.url,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pushover error: %s", resp.Status)
	}

	return nil
}
