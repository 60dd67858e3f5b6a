package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/tabanchor/internal/models"
)

// Output formats accepted by --format
const (
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
	formatPDF      = "pdf"
	formatText     = "text"
	formatCSV      = "csv"
)

// writeOutput writes content to path, or to stdout when path is empty
func writeOutput(cmd *cobra.Command, path string, content []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(content)
		return err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logger.Info().Str("path", path).Int("bytes", len(content)).Msg("Output written")
	return nil
}

// encode renders v as indented JSON or YAML
func encode(v any, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case formatJSON, "":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case formatYAML, "yml":
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// parseCellRef reads a "row,col" pair of 0-based coordinates
func parseCellRef(s string) (models.CellRef, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.CellRef{}, fmt.Errorf("cell %q: expected row,col", s)
	}
	row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.CellRef{}, fmt.Errorf("cell %q: bad row: %w", s, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.CellRef{}, fmt.Errorf("cell %q: bad col: %w", s, err)
	}
	if row < 0 || col < 0 {
		return models.CellRef{}, fmt.Errorf("cell %q: coordinates must not be negative", s)
	}
	return models.CellRef{Row: row, Col: col}, nil
}

// backendOptions converts --opt key=value pairs into backend options
func backendOptions(pairs map[string]string) models.BackendOptions {
	if len(pairs) == 0 {
		return nil
	}
	opts := make(models.BackendOptions, len(pairs))
	for k, v := range pairs {
		opts[k] = v
	}
	return opts
}

// selectTable finds a table by id, or by 1-based index among the tables of a page
func selectTable(result *models.ExtractionResult, page int, table string) (*models.TableData, error) {
	if strings.HasPrefix(table, "tbl_") {
		if t, ok := result.Table(table); ok {
			return t, nil
		}
		return nil, fmt.Errorf("table %s not found", table)
	}

	index := 1
	if table != "" {
		n, err := strconv.Atoi(table)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("table %q: expected a table id or a 1-based index", table)
		}
		index = n
	}

	for _, p := range result.Pages {
		if p.PageNumber != page {
			continue
		}
		if index > len(p.Tables) {
			return nil, fmt.Errorf("page %d has %d table(s)", page, len(p.Tables))
		}
		return p.Tables[index-1], nil
	}
	return nil, fmt.Errorf("no tables found on page %d", page)
}
