package report

import (
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

const (
	pageWidth   = 190.0 // A4 width minus margins, mm
	pageBottom  = 297.0 - 10.0
	baseFont    = "Arial"
	baseSize    = 9.0
	tableSize   = 8.0
	tableLineH  = 4.0
	maxRowLines = 6
)

// pdfRenderer walks a goldmark document and draws it with fpdf
type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	bold      bool
	italic    bool
	listLevel int
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(baseFont, style, baseSize)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.heading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case ast.KindText:
		if entering {
			t := n.(*ast.Text)
			r.pdf.Write(5, string(t.Segment.Value(r.source)))
			if t.SoftLineBreak() {
				r.pdf.Write(5, " ")
			}
		}
	case ast.KindEmphasis:
		e := n.(*ast.Emphasis)
		if e.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.updateFont()
	case ast.KindCodeSpan:
		return r.codeSpan(n, entering)
	case ast.KindList:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(6)
			}
		}
	case ast.KindListItem:
		if entering {
			if n.PreviousSibling() != nil {
				r.pdf.Ln(5)
			}
			r.pdf.SetX(10 + float64(r.listLevel)*5)
			r.pdf.Write(5, "- ")
		}
	case extast.KindTable:
		if entering {
			r.table(n.(*extast.Table))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) heading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if !entering {
		r.pdf.Ln(7)
		r.updateFont()
		return ast.WalkContinue, nil
	}
	size := 10.0
	switch n.Level {
	case 1:
		size = 15
	case 2:
		size = 12
	case 3:
		size = 10.5
	}
	r.pdf.Ln(3)
	r.pdf.SetFont(baseFont, "B", size)
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) codeSpan(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	r.pdf.SetFont("Courier", "", baseSize)
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			r.pdf.Write(5, string(t.Segment.Value(r.source)))
		}
	}
	r.updateFont()
	return ast.WalkSkipChildren, nil
}

func (r *pdfRenderer) table(n *extast.Table) {
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			rows = append(rows, r.rowCells(child))
		}
	}
	r.drawTable(rows)
}

func (r *pdfRenderer) rowCells(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			cells = append(cells, r.plainText(cell))
		}
	}
	return cells
}

// plainText concatenates the text segments below n
func (r *pdfRenderer) plainText(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(r.source))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func (r *pdfRenderer) drawTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	cols := len(rows[0])
	widths := r.columnWidths(rows, cols)

	r.pdf.Ln(1)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(baseFont, style, tableSize)

		lines := 1
		for j := 0; j < cols && j < len(row); j++ {
			if n := len(r.wrap(row[j], widths[j]-2)); n > lines {
				lines = n
			}
		}
		if lines > maxRowLines {
			lines = maxRowLines
		}
		height := float64(lines)*tableLineH + 2

		x, y := r.pdf.GetX(), r.pdf.GetY()
		if y+height > pageBottom {
			r.pdf.AddPage()
			y = r.pdf.GetY()
		}

		cx := x
		for j := 0; j < cols; j++ {
			if i == 0 {
				r.pdf.SetFillColor(230, 230, 230)
				r.pdf.Rect(cx, y, widths[j], height, "FD")
			} else {
				r.pdf.Rect(cx, y, widths[j], height, "D")
			}
			if j < len(row) {
				r.pdf.SetXY(cx+1, y+1)
				r.drawCell(row[j], widths[j]-2, lines)
			}
			cx += widths[j]
		}
		r.pdf.SetXY(x, y+height)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(4)
	r.updateFont()
}

// columnWidths sizes columns by their widest content, then fits them to the page
func (r *pdfRenderer) columnWidths(rows [][]string, cols int) []float64 {
	const minWidth = 12.0
	maxWidth := pageWidth / 2

	widths := make([]float64, cols)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(baseFont, style, tableSize)
		for j := 0; j < cols && j < len(row); j++ {
			if w := r.pdf.GetStringWidth(row[j]) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}

	total := 0.0
	for j := range widths {
		if widths[j] < minWidth {
			widths[j] = minWidth
		}
		if widths[j] > maxWidth {
			widths[j] = maxWidth
		}
		total += widths[j]
	}
	if total > pageWidth {
		scale := pageWidth / total
		for j := range widths {
			widths[j] *= scale
		}
	}
	return widths
}

func (r *pdfRenderer) drawCell(text string, width float64, maxLines int) {
	lines := r.wrap(text, width)
	for i := 0; i < len(lines) && i < maxLines; i++ {
		line := lines[i]
		if i == maxLines-1 && len(lines) > maxLines {
			for r.pdf.GetStringWidth(line+"...") > width && len(line) > 0 {
				line = line[:len(line)-1]
			}
			line += "..."
		}
		r.pdf.CellFormat(width, tableLineH, line, "", 2, "L", false, 0, "")
	}
}

// wrap splits text into lines no wider than width at the current font
func (r *pdfRenderer) wrap(text string, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	space := r.pdf.GetStringWidth(" ")

	var lines []string
	current := words[0]
	currentWidth := r.pdf.GetStringWidth(current)
	for _, w := range words[1:] {
		ww := r.pdf.GetStringWidth(w)
		if currentWidth+space+ww <= width {
			current += " " + w
			currentWidth += space + ww
			continue
		}
		lines = append(lines, current)
		current, currentWidth = w, ww
	}
	return append(lines, current)
}
