// Package notify sends operator-facing Telegram notifications for the
// mode-change, risk-violation, and daily-summary events the engine emits,
// adapted from the teacher's internal/notify package: same Notifier shape
// and HTML-template-via-string-builder rendering style
// (internal/_ref_telegramtmpl/render.go), upgraded to ride on
// github.com/go-telegram-bot-api/telegram-bot-api/v5 instead of a hand-rolled
// HTTP client, and re-pointed at this engine's own events instead of
// Polymarket fills/stop-losses.
package notify

import (
	"fmt"
	"strings"
)

// ModeChangeData describes a strategy tracker mode transition or
// eligibility signal.
type ModeChangeData struct {
	StrategyID string
	From       string
	To         string
	Reason     string
	SetNumber  int
	Eligible   bool
}

// RenderModeChangeHTML renders a strategy mode-change notification.
func RenderModeChangeHTML(d ModeChangeData) string {
	var b strings.Builder
	if d.Eligible {
		b.WriteString("<b>Strategy Eligible For Live</b>\n")
	} else {
		b.WriteString("<b>Strategy Mode Change</b>\n")
	}
	b.WriteString(fmt.Sprintf("Strategy: <code>%s</code>\n", d.StrategyID))
	b.WriteString(fmt.Sprintf("%s → %s\n", strings.ToUpper(d.From), strings.ToUpper(d.To)))
	b.WriteString(fmt.Sprintf("Reason: %s\nSet: %d\n", d.Reason, d.SetNumber))
	return strings.TrimSpace(b.String())
}

// RiskViolationData describes a funded-account rule-engine rejection.
type RiskViolationData struct {
	AccountID string
	Symbol    string
	Verdict   string
	Reason    string
}

// RenderRiskViolationHTML renders a risk-violation notification.
func RenderRiskViolationHTML(d RiskViolationData) string {
	var b strings.Builder
	b.WriteString("<b>Risk Violation</b>\n")
	b.WriteString(fmt.Sprintf("Account: <code>%s</code>\nSymbol: %s\n", d.AccountID, d.Symbol))
	b.WriteString(fmt.Sprintf("Verdict: %s\nReason: %s\n", strings.ToUpper(d.Verdict), d.Reason))
	return strings.TrimSpace(b.String())
}

// DailySummaryData describes one strategy's performance over the prior
// trading day, for the daily operator digest.
type DailySummaryData struct {
	StrategyID    string
	Mode          string
	TradeCount    int
	WinRate       float64
	LifetimePaper int
}

// RenderDailySummaryHTML renders a daily per-strategy summary notification.
func RenderDailySummaryHTML(d DailySummaryData) string {
	var b strings.Builder
	b.WriteString("<b>Daily Strategy Summary</b>\n")
	b.WriteString(fmt.Sprintf("Strategy: <code>%s</code>\nMode: %s\n", d.StrategyID, strings.ToUpper(d.Mode)))
	b.WriteString(fmt.Sprintf("Trades: %d\nWin Rate: %.1f%%\n", d.TradeCount, d.WinRate*100))
	if d.Mode == "paper" {
		b.WriteString(fmt.Sprintf("Lifetime Paper Trades: %d\n", d.LifetimePaper))
	}
	return strings.TrimSpace(b.String())
}
