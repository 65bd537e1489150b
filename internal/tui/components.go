package tui

import (
	"fmt"
	"strings"

	"kingk/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

const severedNotice = "Neural link severed. Please try again."

// FormatIdea renders a trade idea in its direction color.
func FormatIdea(idea domain.TradeIdea) string {
	style := WaitStyle
	switch idea {
	case domain.TradeBuy:
		style = BuyStyle
	case domain.TradeSell:
		style = SellStyle
	}
	return style.Render(strings.ToUpper(string(idea)))
}

// FormatAnalysis renders the full result: levels, confluence and reasoning.
func FormatAnalysis(r *domain.TradeAnalysisResult, width int) string {
	if r == nil {
		return ""
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("%s  %s  %s",
		TitleStyle.Render(r.Pair),
		FormatIdea(r.TradeIdea),
		SubtextStyle.Render(fmt.Sprintf("Trend %s | Confidence %s", r.Trend, r.Confidence)),
	))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  %-8s %s", "ENTRY", r.Entry))
	lines = append(lines, fmt.Sprintf("  %-8s %s", "SL", ErrorStyle.Render(r.StopLoss)))
	lines = append(lines, fmt.Sprintf("  %-8s %s", "TP1", VerifiedStyle.Render(r.TakeProfit1)))
	lines = append(lines, fmt.Sprintf("  %-8s %s", "TP2", VerifiedStyle.Render(r.TakeProfit2)))
	lines = append(lines, fmt.Sprintf("  %-8s %s", "R:R", r.RiskReward))

	if len(r.ConfluenceFactors) > 0 {
		lines = append(lines, "", HeaderStyle.Render("  Confluence"))
		for _, f := range r.ConfluenceFactors {
			lines = append(lines, "  "+RenderStrengthBar(f, 20))
		}
	}

	if r.Reasoning != "" {
		lines = append(lines, "", HeaderStyle.Render("  Reasoning"))
		wrap := width - 4
		if wrap < 20 {
			wrap = 20
		}
		lines = append(lines, lipgloss.NewStyle().Width(wrap).PaddingLeft(2).Render(r.Reasoning))
	}
	return strings.Join(lines, "\n")
}

// RenderStrengthBar renders a confluence factor as an ASCII bar; strength is
// clamped to 0-100.
func RenderStrengthBar(f domain.ConfluenceFactor, barWidth int) string {
	if barWidth <= 0 {
		barWidth = 20
	}
	strength := f.Strength
	if strength < 0 {
		strength = 0
	}
	if strength > 100 {
		strength = 100
	}
	filled := strength * barWidth / 100
	empty := barWidth - filled

	style := PendingStyle
	if f.Status == domain.FactorVerified {
		style = VerifiedStyle
	}

	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%-22s %s %3d%% %s", truncate(f.Factor, 22), bar, strength, SubtextStyle.Render(string(f.Status)))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func rule(width int) string {
	if width < 4 {
		width = 4
	}
	return SubtextStyle.Render(strings.Repeat("─", width-2))
}
