package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmattli/go-exopticon/internal/alert"
	"github.com/dmattli/go-exopticon/internal/model"
)

// telegramAPIBase is formatted with the bot token (carried in
// model.Notifier.Password) to build the sendMessage endpoint, per the
// Telegram Bot API. No ecosystem Telegram client library exists in the
// examples pack, so this speaks the HTTP API directly with net/http.
const telegramAPIBase = "https://api.telegram.org/bot%s/sendMessage"

// telegramWorker delivers notifications via the Telegram Bot API.
// ContactGroup on the Notification is used as the chat_id.
type telegramWorker struct {
	botToken string
	client   *http.Client
}

// NewTelegramWorker builds a Worker speaking the Telegram Bot API for
// row. row.Hostname/Port are unused for this protocol; row.Password
// carries the bot token.
func NewTelegramWorker(row model.Notifier) Worker {
	return &telegramWorker{
		botToken: row.Password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *telegramWorker) Send(ctx context.Context, n alert.Notification) error {
	return w.send(ctx, fmt.Sprintf(telegramAPIBase, w.botToken), n)
}

// send posts to an explicit endpoint so tests can point it at an
// httptest server instead of the real Telegram API.
func (w *telegramWorker) send(ctx context.Context, endpoint string, n alert.Notification) error {
	form := url.Values{}
	form.Set("chat_id", n.ContactGroup)
	form.Set("text", n.Message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram sendMessage: unexpected status %s", resp.Status)
	}
	return nil
}
