package notify

import (
	"strings"
	"testing"
)

func TestRenderModeChangeHTMLMarksEligibleSignalsDistinctly(t *testing.T) {
	eligible := RenderModeChangeHTML(ModeChangeData{StrategyID: "s1", From: "paper", To: "paper", Reason: "consecutive_passing_sets", Eligible: true})
	if !strings.Contains(eligible, "Eligible For Live") {
		t.Fatalf("got %q, want an eligible-for-live header", eligible)
	}

	applied := RenderModeChangeHTML(ModeChangeData{StrategyID: "s1", From: "live", To: "suspended", Reason: "consecutive_losing_sets"})
	if !strings.Contains(applied, "Mode Change") {
		t.Fatalf("got %q, want a mode-change header", applied)
	}
	if !strings.Contains(applied, "LIVE") || !strings.Contains(applied, "SUSPENDED") {
		t.Fatalf("got %q, want both modes uppercased", applied)
	}
}

func TestRenderRiskViolationHTMLIncludesAccountAndReason(t *testing.T) {
	out := RenderRiskViolationHTML(RiskViolationData{AccountID: "acct-1", Symbol: "ES", Verdict: "violate", Reason: "daily_loss_cap"})
	if !strings.Contains(out, "acct-1") || !strings.Contains(out, "daily_loss_cap") {
		t.Fatalf("got %q, want account id and reason present", out)
	}
}

func TestRenderDailySummaryHTMLOmitsLifetimePaperForLiveStrategies(t *testing.T) {
	live := RenderDailySummaryHTML(DailySummaryData{StrategyID: "s1", Mode: "live", TradeCount: 5, WinRate: 0.6})
	if strings.Contains(live, "Lifetime Paper") {
		t.Fatalf("got %q, want no lifetime paper line for a live strategy", live)
	}

	paper := RenderDailySummaryHTML(DailySummaryData{StrategyID: "s1", Mode: "paper", TradeCount: 5, WinRate: 0.6, LifetimePaper: 12})
	if !strings.Contains(paper, "Lifetime Paper Trades: 12") {
		t.Fatalf("got %q, want lifetime paper trades included for a paper strategy", paper)
	}
}
