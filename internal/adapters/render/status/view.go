package status

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	// StaleAfter flags credentials nobody has refreshed for that long.
	// Zero disables the check.
	StaleAfter time.Duration
}

func renderView(inv inventory, opts RenderOptions, s styles) string {
	header := fmt.Sprintf("identities: %d", len(inv.rows))
	if len(inv.rows) > 0 {
		header += fmt.Sprintf("  paired: %d  stale: %d", inv.paired, inv.stale)
	}

	lines := []string{
		s.title.Render("relayd sessions"),
		s.header.Render(header),
	}

	if len(inv.rows) == 0 {
		lines = append(lines, s.empty.Render("No identities in the ledger."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, r := range inv.rows {
		lines = append(lines, s.section.Render(renderRow(r, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderRow(r row, opts RenderOptions, s styles) string {
	info := r.record.Credentials

	pairing := s.unpaired.Render("not paired")
	if info.Paired {
		pairing = s.paired.Render("paired")
	}

	parts := []string{
		s.identity.Render(string(r.record.Identity)),
		lipgloss.JoinHorizontal(lipgloss.Top, s.detail.Render("credentials: "), pairing, s.detail.Render(fmt.Sprintf(" (%s)", fileCount(info.Files)))),
	}

	if info.UpdatedAt.IsZero() {
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	updatedStyle := lipgloss.NewStyle().Foreground(ageColor(info.UpdatedAt, opts.Now, opts.StaleAfter))
	updated := s.detail.Render("updated: ") + updatedStyle.Render(formatAge(info.UpdatedAt, opts.Now))
	if r.stale {
		updated += " " + s.warning.Render("[stale]")
	}

	return lipgloss.JoinVertical(lipgloss.Left, append(parts, updated)...)
}

func fileCount(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}

func formatAge(updatedAt, now time.Time) string {
	if now.IsZero() {
		return updatedAt.Format(time.RFC3339)
	}

	elapsed := now.Sub(updatedAt)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(elapsed.Hours()), "hour") + " ago"
	default:
		return plural(int(math.Floor(elapsed.Hours()/24)), "day") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// ageColor fades from bright white for fresh credentials to grey at the
// stale threshold.
func ageColor(updatedAt, now time.Time, staleAfter time.Duration) lipgloss.Color {
	if now.IsZero() || staleAfter <= 0 {
		return lipgloss.Color("255")
	}

	freshness := staleAfter.Seconds() - now.Sub(updatedAt).Seconds()
	return interpolateColor(freshness, 0, staleAfter.Seconds())
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, 240 faded to 255 bright.
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}
