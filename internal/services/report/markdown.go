package report

import (
	"fmt"
	"strings"

	"github.com/ternarybob/tabanchor/internal/models"
)

// RenderMarkdown renders an extraction result, and any values replayed from
// relationships, as GitHub-flavoured markdown
func (s *Service) RenderMarkdown(result *models.ExtractionResult, applied []models.AppliedExtraction) string {
	var b strings.Builder

	b.WriteString("# Extraction Report\n\n")
	if result == nil {
		b.WriteString("No extraction result.\n")
		return b.String()
	}

	writeSummary(&b, result)

	for _, page := range result.Pages {
		fmt.Fprintf(&b, "## Page %d\n\n", page.PageNumber)
		for i, table := range page.Tables {
			writeTable(&b, i+1, table)
		}
	}

	if len(applied) > 0 {
		writeApplied(&b, applied)
	}

	return b.String()
}

func writeSummary(b *strings.Builder, result *models.ExtractionResult) {
	if result.FilePath != "" {
		fmt.Fprintf(b, "- **File:** %s\n", escapeInline(result.FilePath))
	}
	fmt.Fprintf(b, "- **File ID:** `%s`\n", result.FileID)
	fmt.Fprintf(b, "- **Backend:** %s\n", result.Backend)
	fmt.Fprintf(b, "- **Pages:** %d\n", result.TotalPages)
	fmt.Fprintf(b, "- **Tables:** %d\n", result.TotalTables)
	if result.SkippedTables > 0 {
		fmt.Fprintf(b, "- **Skipped tables:** %d\n", result.SkippedTables)
	}
	if result.SkippedPages > 0 {
		fmt.Fprintf(b, "- **Skipped pages:** %d\n", result.SkippedPages)
	}
	fmt.Fprintf(b, "- **Processing time:** %.2fs\n", result.ProcessingTimeSeconds)
	if result.Partial {
		fmt.Fprintf(b, "- **Status:** partial (%s)\n", escapeInline(result.Error))
	}
	b.WriteString("\n")

	if len(result.Warnings) > 0 {
		b.WriteString("**Warnings**\n\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(b, "- %s\n", escapeInline(w))
		}
		b.WriteString("\n")
	}
}

func writeTable(b *strings.Builder, n int, table *models.TableData) {
	fmt.Fprintf(b, "### Table %d\n\n", n)
	fmt.Fprintf(b, "`%s` confidence %.2f, position %s, method %s, empty cells %.0f%%\n\n",
		table.TableID,
		table.Metadata.Confidence,
		table.Metadata.Position,
		table.Metadata.ExtractionMethod,
		table.Metadata.EmptyCellRatio*100,
	)

	cols := 0
	if table.Grid != nil {
		cols = table.Grid.Cols
	}
	if cols == 0 {
		b.WriteString("_Empty table._\n\n")
		return
	}

	// GFM needs a header row; synthesize one when none was detected
	header := table.Headers
	if len(header) == 0 {
		header = make([]string, cols)
		for i := range header {
			header[i] = fmt.Sprintf("Col %d", i+1)
		}
	}

	writeRow(b, header, cols)
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range table.Rows {
		writeRow(b, row, cols)
	}
	b.WriteString("\n")
}

func writeApplied(b *strings.Builder, applied []models.AppliedExtraction) {
	b.WriteString("## Extracted Values\n\n")
	b.WriteString("| Key | Value | Confidence | Status | Page | Cell |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, a := range applied {
		cell := ""
		if a.ValueCell != nil {
			cell = fmt.Sprintf("(%d, %d)", a.ValueCell.Row, a.ValueCell.Col)
		}
		page := ""
		if a.PageNumber > 0 {
			page = fmt.Sprintf("%d", a.PageNumber)
		}
		writeRow(b, []string{
			a.KeyName,
			a.Value,
			fmt.Sprintf("%.2f", a.Confidence),
			string(a.Status),
			page,
			cell,
		}, 6)
	}
	b.WriteString("\n")
}

func writeRow(b *strings.Builder, cells []string, cols int) {
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		v := ""
		if i < len(cells) {
			v = escapeCell(cells[i])
		}
		b.WriteString(" ")
		b.WriteString(v)
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r", "", "\n", " ")

func escapeCell(s string) string {
	return cellEscaper.Replace(strings.TrimSpace(s))
}

var inlineEscaper = strings.NewReplacer("\r", "", "\n", " ", "*", `\*`, "_", `\_`, "`", "'")

func escapeInline(s string) string {
	return inlineEscaper.Replace(s)
}
