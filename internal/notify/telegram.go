package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramSink pushes order summaries to a fixed admin chat through the
// Telegram Bot API sendMessage method.
type TelegramSink struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegramSink(token, chatID string) *TelegramSink {
	return &TelegramSink{
		apiBase: defaultAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// NewTelegramSinkWithBase is used by tests to point the sink at a local
// server.
func NewTelegramSinkWithBase(apiBase, token, chatID string) *TelegramSink {
	s := NewTelegramSink(token, chatID)
	s.apiBase = strings.TrimRight(apiBase, "/")
	return s
}

func (s *TelegramSink) Send(ctx context.Context, evt Event) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    FormatMessage(evt),
	})
	if err != nil {
		return fmt.Errorf("encode telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}

	return nil
}

// FormatMessage renders the human-readable multi-line admin summary.
func FormatMessage(evt Event) string {
	var b strings.Builder

	if evt.Cancelled {
		b.WriteString("❌ Order cancelled\n\n")
	} else {
		b.WriteString("🛒 New order!\n\n")
	}

	fmt.Fprintf(&b, "User: %s\n", evt.Email)
	if evt.User != nil {
		fmt.Fprintf(&b, "Name: %s\n", evt.User.Name)
		fmt.Fprintf(&b, "Contact: %s\n", evt.User.Contact)
		fmt.Fprintf(&b, "City: %s\n", evt.User.City)
		fmt.Fprintf(&b, "Address: %s\n", evt.User.Address)
	}

	b.WriteString("Items:\n")
	for i, it := range evt.Items {
		if it.Quantity > 1 {
			fmt.Fprintf(&b, "%d) %s — $%.2f x%d\n", i+1, it.Name, it.UnitPrice, it.Quantity)
		} else {
			fmt.Fprintf(&b, "%d) %s — $%.2f\n", i+1, it.Name, it.UnitPrice)
		}
	}

	fmt.Fprintf(&b, "Total: $%.2f\n", evt.Total)
	fmt.Fprintf(&b, "Order: %s", evt.OrderRef)

	return b.String()
}
