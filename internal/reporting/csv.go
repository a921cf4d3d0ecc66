package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders pattern rows as CSV string.
func RenderCSV(rows []PatternRow) string {
	var sb strings.Builder

	sb.WriteString("pattern,occurrences,success_rate,average_return,significant_count,best_impact,best_coin\n")
	for _, p := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%.6f,%.6f,%d,%.6f,%s\n",
			p.Pattern,
			p.Occurrences,
			p.SuccessRate,
			p.AverageReturn,
			p.SignificantCount,
			p.BestImpact,
			p.BestCoin,
		))
	}

	return sb.String()
}
