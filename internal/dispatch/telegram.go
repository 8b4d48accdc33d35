package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TelegramClient implements ChannelProvider over the Telegram Bot API. The
// channel identity is the numeric chat id, as a string.
type TelegramClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewTelegramClient(token, baseURL string) *TelegramClient {
	return &TelegramClient{
		token:      token,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

type telegramSendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramSendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *TelegramClient) Send(ctx context.Context, identity, message string) error {
	payload, err := json.Marshal(telegramSendRequest{ChatID: identity, Text: message})
	if err != nil {
		return fmt.Errorf("error encoding request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	var data telegramSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}
	if !data.OK {
		return fmt.Errorf("telegram rejected message: %s", data.Description)
	}
	return nil
}
