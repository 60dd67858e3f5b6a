package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/ternarybob/tabanchor/internal/models"
)

var appliedCSVHeader = []string{"key", "value", "confidence", "status", "page", "table_id", "row", "col"}

// RenderCSV writes the applied values when there are any, otherwise every
// table as its header row followed by its data rows. Tables are separated by
// an empty line.
func (s *Service) RenderCSV(result *models.ExtractionResult, applied []models.AppliedExtraction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if applied != nil {
		if err := writeAppliedCSV(w, applied); err != nil {
			return nil, err
		}
	} else if result != nil {
		for i, table := range result.AllTables() {
			if i > 0 {
				w.Flush()
				buf.WriteString("\n")
			}
			if err := writeTableCSV(w, table); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTableCSV(w *csv.Writer, table *models.TableData) error {
	if table.HasHeader() {
		if err := w.Write(table.Headers); err != nil {
			return fmt.Errorf("writing csv header of %s: %w", table.TableID, err)
		}
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return fmt.Errorf("writing csv rows of %s: %w", table.TableID, err)
	}
	return nil
}

func writeAppliedCSV(w *csv.Writer, applied []models.AppliedExtraction) error {
	if err := w.Write(appliedCSVHeader); err != nil {
		return err
	}
	for _, a := range applied {
		row, col := "", ""
		if a.ValueCell != nil {
			row, col = strconv.Itoa(a.ValueCell.Row), strconv.Itoa(a.ValueCell.Col)
		}
		page := ""
		if a.PageNumber > 0 {
			page = strconv.Itoa(a.PageNumber)
		}
		record := []string{
			a.KeyName,
			a.Value,
			strconv.FormatFloat(a.Confidence, 'f', 2, 64),
			string(a.Status),
			page,
			a.SourceTableID,
			row,
			col,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
