package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Channel names.
const (
	ChannelSlack = "slack"
	ChannelEmail = "email"
)

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
}

// SlackOption configures a SlackChannel.
type SlackOption func(*SlackChannel)

// WithSlackHTTPClient sets the HTTP client used for the webhook.
func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackChannel) {
		if c != nil {
			s.client = c
		}
	}
}

// NewSlackChannel creates a webhook channel. It returns ErrIncompleteConfig
// when webhookURL is empty.
func NewSlackChannel(webhookURL string, opts ...SlackOption) (*SlackChannel, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return nil, fmt.Errorf("slack: %w", ErrIncompleteConfig)
	}
	s := &SlackChannel{webhookURL: webhookURL, client: &http.Client{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements Channel.
func (s *SlackChannel) Name() string { return ChannelSlack }

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

func slackPayloadFor(msg Message) slackPayload {
	return slackPayload{
		Text: msg.Title,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: msg.Title}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: msg.Body}},
			{Type: "divider"},
		},
	}
}

// Send implements Channel. Slack acknowledges a delivered message with
// HTTP 200 and the literal body "ok".
func (s *SlackChannel) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(slackPayloadFor(msg))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read slack response: %w", err)
	}
	text := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK || text != "ok" {
		return fmt.Errorf("slack webhook: HTTP %d: %s", resp.StatusCode, text)
	}
	return nil
}
