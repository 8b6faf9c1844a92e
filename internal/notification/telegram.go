package notification

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botSender is the part of tgbotapi.BotAPI the notifier uses
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// TelegramNotifier sends notifications to one Telegram chat
type TelegramNotifier struct {
	api     botSender
	chatID  int64
	enabled bool
}

// NewTelegramNotifier connects the bot. A disabled or incomplete config
// yields a disabled notifier and no error.
func NewTelegramNotifier(config TelegramConfig) (*TelegramNotifier, error) {
	if !config.Enabled || config.BotToken == "" || config.ChatID == "" {
		return &TelegramNotifier{}, nil
	}

	chatID, err := strconv.ParseInt(config.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{api: api, chatID: chatID, enabled: true}, nil
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
