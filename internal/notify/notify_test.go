package notify

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	lastMsg tgbotapi.MessageConfig
	calls   int
	err     error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.lastMsg = msg
	}
	return tgbotapi.Message{}, f.err
}

func TestNewNotifierDisabledWithoutCredentials(t *testing.T) {
	n, err := NewNotifier("", 0)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	if n.Enabled() {
		t.Fatal("expected disabled notifier with empty credentials")
	}
}

func TestDisabledNotifierSendIsNoOp(t *testing.T) {
	n, _ := NewNotifier("", 0)
	if err := n.NotifyModeChange(ModeChangeData{StrategyID: "s1"}); err != nil {
		t.Fatalf("disabled notify should succeed silently: %v", err)
	}
}

func TestNotifyModeChangeSendsRenderedHTML(t *testing.T) {
	fake := &fakeSender{}
	n := &Notifier{bot: fake, chatID: 123, enabled: true}

	err := n.NotifyModeChange(ModeChangeData{StrategyID: "s1", From: "live", To: "paper", Reason: "poor_win_rate", SetNumber: 4})
	if err != nil {
		t.Fatalf("NotifyModeChange: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("got %d send calls, want 1", fake.calls)
	}
	if fake.lastMsg.ChatID != 123 {
		t.Fatalf("got chat id %d, want 123", fake.lastMsg.ChatID)
	}
	if fake.lastMsg.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("got parse mode %q, want HTML", fake.lastMsg.ParseMode)
	}
}

func TestNotifyRiskViolationPropagatesSendError(t *testing.T) {
	fake := &fakeSender{err: errors.New("telegram unavailable")}
	n := &Notifier{bot: fake, chatID: 123, enabled: true}

	err := n.NotifyRiskViolation(RiskViolationData{AccountID: "acct-1", Symbol: "ES", Verdict: "violate", Reason: "daily_loss_cap"})
	if err == nil {
		t.Fatal("expected an error when the transport fails")
	}
}

func TestNotifyDailySummarySendsForPaperStrategy(t *testing.T) {
	fake := &fakeSender{}
	n := &Notifier{bot: fake, chatID: 123, enabled: true}

	err := n.NotifyDailySummary(DailySummaryData{StrategyID: "s1", Mode: "paper", TradeCount: 12, WinRate: 0.5, LifetimePaper: 40})
	if err != nil {
		t.Fatalf("NotifyDailySummary: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("got %d send calls, want 1", fake.calls)
	}
}
