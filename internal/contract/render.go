package contract

import (
	"fmt"
	"strings"
)

// Render formats the result as plain text for inclusion in a tool report.
func (r *Result) Render() string {
	var b strings.Builder
	stats := r.Metadata.Statistics

	fmt.Fprintf(&b, "Contract Findings (%d)\n", stats.Total)
	if stats.Total == 0 {
		b.WriteString("No contract issues detected.\n")
		return b.String()
	}

	for i, f := range r.Findings {
		fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i+1, strings.ToUpper(string(f.Severity)), f.Rule, f.Category)
		for _, e := range f.Evidence {
			fmt.Fprintf(&b, "   - %s\n", e)
		}
	}

	fmt.Fprintf(&b, "Severity: %d high, %d medium, %d low\n",
		stats.BySeverity.High, stats.BySeverity.Medium, stats.BySeverity.Low)
	return b.String()
}
