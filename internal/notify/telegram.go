package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts messages to one Telegram chat through the Bot API.
type TelegramSender struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegram returns a sender with a shared HTTP client to reuse connections.
func NewTelegram(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL points the sender at another Bot API host.
func (s *TelegramSender) WithBaseURL(base string) *TelegramSender {
	s.baseURL = strings.TrimSuffix(base, "/")
	return s
}

// ChatID returns the chat the sender writes to.
func (s *TelegramSender) ChatID() string {
	return s.chatID
}

// Validate ensures we have enough configuration before sending anything.
func (s *TelegramSender) Validate() error {
	if s.token == "" || s.chatID == "" {
		return errors.New("telegram token and chat id are required")
	}
	return nil
}

// Send posts a message to the configured chat.
func (s *TelegramSender) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    message,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("telegram returned %s", resp.Status)
	}
	return nil
}

func (s *TelegramSender) endpoint() string {
	return fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
}
