package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Pattern Performance Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Window: trailing %d days\n\n", r.WindowDays))

	sb.WriteString("## Patterns\n\n")
	if len(r.Patterns) > 0 {
		sb.WriteString("| Pattern | Occurrences | Success Rate | Avg Return % | Significant | Best Impact % | Best Coin |\n")
		sb.WriteString("|---------|-------------|--------------|--------------|-------------|---------------|-----------|\n")
		for _, p := range r.Patterns {
			best := "-"
			if p.BestCoin != "" {
				best = p.BestCoin
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %.2f | %.2f | %d | %.2f | %s |\n",
				p.Pattern, p.Occurrences, p.SuccessRate, p.AverageReturn,
				p.SignificantCount, p.BestImpact, best))
		}
	} else {
		sb.WriteString("No patterns configured.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Top Influencers\n\n")
	if len(r.Influencers) > 0 {
		sb.WriteString("| Handle | Score | Coins | Last Updated |\n")
		sb.WriteString("|--------|-------|-------|--------------|\n")
		for _, i := range r.Influencers {
			sb.WriteString(fmt.Sprintf("| %s | %.1f | %d | %s |\n",
				i.Handle, i.InfluenceScore, i.CoinsCount, i.LastUpdated.UTC().Format(time.RFC3339)))
		}
	} else {
		sb.WriteString("No tracked influencers.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
