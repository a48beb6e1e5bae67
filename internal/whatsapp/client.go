package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client sends outbound messages through the Graph API. A client with an empty
// token is a no-op sender, which keeps local development working without
// WhatsApp credentials.
type Client struct {
	apiBase string
	phoneID string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Graph API client.
func NewClient(apiBase, phoneID, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiBase: apiBase,
		phoneID: phoneID,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Configured reports whether the client has credentials to actually send.
func (c *Client) Configured() bool {
	return c.token != "" && c.phoneID != ""
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers one text message to a recipient. Errors are returned for
// the caller to log; delivery failures never bubble past the webhook handler.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	if !c.Configured() {
		c.logger.Debug("whatsapp client not configured, dropping outbound message",
			zap.String("to_suffix", redact(to)))
		return "", nil
	}

	payload, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, c.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("graph api returned %d: %s", resp.StatusCode, string(body))
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode send response: %w", err)
	}
	if len(decoded.Messages) == 0 {
		return "", nil
	}
	return decoded.Messages[0].ID, nil
}

// VerifyHandshake checks the webhook subscription handshake and returns the
// challenge to echo back when it is valid.
func VerifyHandshake(mode, token, challenge, expectedToken string) (string, bool) {
	if mode == "subscribe" && expectedToken != "" && token == expectedToken {
		return challenge, true
	}
	return "", false
}

func redact(identity string) string {
	const keep = 4
	if len(identity) <= keep {
		return identity
	}
	return "***" + identity[len(identity)-keep:]
}
