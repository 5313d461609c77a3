package output

import (
	"fmt"
	"strconv"
	"strings"
)

// MarkdownFormatter renders reports as a markdown table.
type MarkdownFormatter struct{}

// FormatReport renders a report as Markdown.
func (f *MarkdownFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", escapeMarkdownCell(reportTitle(report))))
	sb.WriteString("| # | Arrival (s) | Delay (s) | k | Window |\n")
	sb.WriteString("|---|-------------|-----------|---|--------|\n")

	for _, row := range report.Decisions {
		k := "-"
		if row.Delayed {
			k = strconv.Itoa(row.Overflow)
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %d/%d |\n",
			row.Seq,
			formatSeconds(row.ArrivalSeconds),
			row.Delay,
			k,
			row.WindowLen,
			report.Requests,
		))
	}

	sb.WriteString(fmt.Sprintf("\n**Delayed**: %d/%d, max %s s\n",
		report.Summary.Delayed, report.Summary.Total, report.Summary.MaxDelay))
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
