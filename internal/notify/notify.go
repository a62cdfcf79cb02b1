package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the subset of *tgbotapi.BotAPI this package depends on, kept
// as its own interface so tests can inject a fake transport rather than
// hitting the network (mirrors the dependency-inversion style of
// internal/router's StrategyTrackers/FundedState interfaces).
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends operator notifications to a single Telegram chat.
// Notifications are a no-op when no bot token/chat ID is configured, the
// same "enabled" gate the teacher's Notifier uses.
type Notifier struct {
	bot     sender
	chatID  int64
	enabled bool
}

// NewNotifier creates a Notifier backed by the real Telegram Bot API.
// Notifications are disabled when botToken or chatID is unset.
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	if botToken == "" || chatID == 0 {
		return &Notifier{enabled: false}, nil
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: create bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID, enabled: true}, nil
}

// Enabled reports whether the notifier will actually deliver messages.
func (n *Notifier) Enabled() bool { return n.enabled }

func (n *Notifier) send(html string) error {
	if !n.enabled {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return nil
}

// NotifyModeChange sends a strategy mode-change or eligibility-signal alert.
func (n *Notifier) NotifyModeChange(d ModeChangeData) error {
	return n.send(RenderModeChangeHTML(d))
}

// NotifyRiskViolation sends a funded-account rule-engine rejection alert.
func (n *Notifier) NotifyRiskViolation(d RiskViolationData) error {
	return n.send(RenderRiskViolationHTML(d))
}

// NotifyDailySummary sends a per-strategy daily performance digest entry.
func (n *Notifier) NotifyDailySummary(d DailySummaryData) error {
	return n.send(RenderDailySummaryHTML(d))
}
