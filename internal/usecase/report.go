package usecase

import (
	"fmt"
	"strings"
	"time"

	"CommunityInsights/internal/domain"
)

// FormatReport renders a finished run as a short plain-text summary.
func FormatReport(report domain.RunReport) string {
	var b strings.Builder

	status := "ok"
	if report.Failed() {
		status = "with errors"
	}
	fmt.Fprintf(&b, "%s run finished %s in %s\n", report.Kind, status,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	if report.Err != "" {
		fmt.Fprintf(&b, "error: %s\n", report.Err)
	}

	for _, c := range report.Communities {
		switch report.Kind {
		case domain.WorkflowGenerate:
			line := fmt.Sprintf("- %s: %d candidates", c.Sheet, c.Candidates)
			if c.Generated {
				line += ", drafted from " + c.SelectedID
			}
			b.WriteString(line)
		default:
			fmt.Fprintf(&b, "- %s: %d scraped, %d new, %d appended", c.Sheet, c.Scraped, c.Fresh, c.Appended)
		}
		if c.Err != "" {
			fmt.Fprintf(&b, " (error: %s)", c.Err)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
