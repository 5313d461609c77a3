package output

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter renders reports as an ASCII table.
type TableFormatter struct{}

// FormatReport renders a report as a table.
func (f *TableFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(reportTitle(report))
	t.AppendHeader(table.Row{"#", "Arrival (s)", "Delay (s)", "k", "Window"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	for _, row := range report.Decisions {
		k := "-"
		if row.Delayed {
			k = strconv.Itoa(row.Overflow)
		}
		t.AppendRow(table.Row{
			row.Seq,
			formatSeconds(row.ArrivalSeconds),
			row.Delay,
			k,
			fmt.Sprintf("%d/%d", row.WindowLen, report.Requests),
		})
	}

	t.AppendFooter(table.Row{
		"",
		"",
		"max " + report.Summary.MaxDelay,
		"",
		fmt.Sprintf("%d delayed", report.Summary.Delayed),
	})

	return t.Render(), nil
}

func reportTitle(report *Report) string {
	title := fmt.Sprintf("%d requests / %ss (base delay %ss)",
		report.Requests,
		formatSeconds(report.PeriodSeconds),
		formatSeconds(report.BaseDelaySeconds))
	if report.Service != "" {
		title = report.Service + ": " + title
	}
	return title
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
