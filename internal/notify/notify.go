package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chatlink/chatlink/internal/logging"
)

// sender sends a one-off Telegram message without requiring a running bot
// instance. Swappable in tests.
var sender = func(token string, chatID int64, text string) error {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	_, err = bot.Send(msg)
	return err
}

// TelegramNotifier sends operator alerts about sync failures to a Telegram
// chat. Alerts are throttled so a broken platform does not flood the chat.
type TelegramNotifier struct {
	token    string
	chatID   int64
	throttle *Throttler
	logger   *logging.Logger
}

// NewTelegramNotifier creates a notifier. An empty token or zero chat ID
// yields a notifier that silently drops everything.
func NewTelegramNotifier(token string, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		token:    strings.TrimSpace(token),
		chatID:   chatID,
		throttle: NewThrottler(6, 3),
		logger:   logging.NewLogger(),
	}
}

// NotifySyncFailure reports a failed sync page.
func (n *TelegramNotifier) NotifySyncFailure(page, itemCount int, err error) {
	text := fmt.Sprintf("⚠️ *Content sync failed*\nPage %d (%d items) could not be pushed:\n`%v`", page, itemCount, err)
	n.send(text)
}

// NotifyAuthExpired reports that the platform session is gone and a re-login
// is required.
func (n *TelegramNotifier) NotifyAuthExpired() {
	n.send("🔑 *Platform session expired*\nAutomatic refresh failed, log in again to resume syncing.")
}

func (n *TelegramNotifier) send(text string) {
	if n.token == "" || n.chatID == 0 {
		return
	}
	if !n.throttle.Allow() {
		n.logger.Debug("notification throttled")
		return
	}
	if err := sender(n.token, n.chatID, text); err != nil {
		n.logger.Warn("telegram notification failed", "error", err.Error())
	}
}
