package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

var (
	reportTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})

	reportBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}).
			Padding(0, 1)

	reportWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#C2410C", Dark: "#FB923C"})
)

// ReportLines renders the exit record as plain text lines.
func ReportLines(r domain.ExitRecord, cfg Config) []string {
	lines := []string{
		fmt.Sprintf("group: %s", r.Group),
		fmt.Sprintf("started: %s", r.StartedAt.Format(time.DateTime)),
		fmt.Sprintf("stopped: %s", r.At.Format(time.DateTime)),
		fmt.Sprintf("duration: %s", formatDuration(r.Duration())),
		fmt.Sprintf("reason: %s (%s)", r.Reason, r.Reason.Description()),
	}

	if r.Message != "" {
		lines = append(lines, "detail: "+r.Message)
	}
	if r.FeeValue != "" {
		lines = append(lines, "fee: "+r.FeeValue)
	}

	rotation := "manual"
	if r.AutoRotation {
		rotation = "auto"
	}
	lines = append(lines,
		fmt.Sprintf("mode: %s, rotation %s", r.Mode.Describe(), rotation),
		fmt.Sprintf("trades: %d ok, %d failed, %d corrections", r.TradeCount, r.FailedCycles, r.Corrections),
		fmt.Sprintf("session: %d/%d, 24h orders: %d/%d", r.SessionTrades, r.SessionLimit, r.ActiveOrders24h, r.MaxOrders24h),
	)

	for _, id := range domain.AllAccounts {
		s := r.Snapshots.Get(id)
		balance := "unknown"
		if s.Balance.Valid {
			balance = s.Balance.Decimal.StringFixed(2) + " USD"
		}
		lines = append(lines, fmt.Sprintf("%s (%s): position %s %s, available %s",
			id, r.AccountNames.Get(id), s.Position.String(), s.Direction, balance))
	}

	return append(lines, reportWarnings(r, cfg)...)
}

func reportWarnings(r domain.ExitRecord, cfg Config) []string {
	var out []string

	a, b := r.Snapshots.A(), r.Snapshots.B()
	if diff := domain.SnapshotDiff(r.Snapshots); diff.GreaterThan(cfg.Balancer.Epsilon) {
		out = append(out, fmt.Sprintf("warning: position diff %s, check the accounts manually", diff.String()))
	}
	if a.Direction != domain.DirectionNone && a.Direction == b.Direction {
		out = append(out, fmt.Sprintf("warning: both accounts are %s, exposure is not hedged", a.Direction))
	}
	for _, id := range domain.AllAccounts {
		bal := r.Snapshots.Get(id).Balance
		if bal.Valid && bal.Decimal.LessThan(cfg.MinAvailableBalance) {
			out = append(out, fmt.Sprintf("warning: %s available balance %s below %s",
				r.AccountNames.Get(id), bal.Decimal.StringFixed(2), cfg.MinAvailableBalance.String()))
		}
	}
	if r.Reason == domain.ExitPositionCleared || (a.Position.LessThan(cfg.Balancer.Epsilon) && b.Position.LessThan(cfg.Balancer.Epsilon)) {
		out = append(out, "positions cleared")
	}

	return out
}

// RenderReport renders the exit record as a terminal panel.
func RenderReport(r domain.ExitRecord, cfg Config) string {
	var sb strings.Builder

	title := "session finished"
	if r.Reason.Fatal() {
		title = "session stopped"
	}
	sb.WriteString(reportTitleStyle.Render(title))

	for _, line := range ReportLines(r, cfg) {
		sb.WriteString("\n")
		if strings.HasPrefix(line, "warning:") {
			sb.WriteString(reportWarnStyle.Render(line))
			continue
		}
		sb.WriteString(line)
	}

	return reportBoxStyle.Render(sb.String())
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
