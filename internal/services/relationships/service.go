package relationships

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// Service manages persisted relationships: lifecycle, replay, export and import
type Service struct {
	storage interfaces.RelationshipStorage
	matcher *Matcher
	logger  arbor.ILogger
}

// Compile-time assertion
var _ interfaces.RelationshipService = (*Service)(nil)

// NewService creates a relationship service
func NewService(storage interfaces.RelationshipStorage, matcher *Matcher, logger arbor.ILogger) *Service {
	if matcher == nil {
		matcher = NewDefaultMatcher()
	}
	return &Service{
		storage: storage,
		matcher: matcher,
		logger:  logger,
	}
}

// Matcher returns the matcher used for definition and replay
func (s *Service) Matcher() *Matcher {
	return s.matcher
}

// Define authors a DRAFT relationship from two coordinates of a table and stores it
func (s *Service) Define(ctx context.Context, table *models.TableData, anchor, value models.CellRef, keyName string, opts models.DefineOptions) (*models.RelationshipConfig, error) {
	if table == nil || table.Grid == nil {
		return nil, fmt.Errorf("%w: no table to define against", interfaces.ErrInvalidRelationship)
	}

	anchorCell, ok := table.Grid.Cell(anchor.Row, anchor.Col)
	if !ok {
		return nil, fmt.Errorf("%w: anchor (%d,%d) is outside the %dx%d grid",
			interfaces.ErrInvalidRelationship, anchor.Row, anchor.Col, table.Grid.Rows, table.Grid.Cols)
	}
	valueCell, ok := table.Grid.Cell(value.Row, value.Col)
	if !ok {
		return nil, fmt.Errorf("%w: value (%d,%d) is outside the %dx%d grid",
			interfaces.ErrInvalidRelationship, value.Row, value.Col, table.Grid.Rows, table.Grid.Cols)
	}
	// A merged cell resolves to its owner; keep the coordinates the operator picked
	anchorCell.Row, anchorCell.Col = anchor.Row, anchor.Col
	valueCell.Row, valueCell.Col = value.Row, value.Col

	if opts.SourceTableID == "" {
		opts.SourceTableID = table.TableID
	}

	cfg, err := s.matcher.Define(anchorCell, valueCell, keyName, opts)
	if err != nil {
		return nil, err
	}

	if err := s.storage.SaveRelationship(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to store draft relationship: %w", err)
	}

	s.logger.Info().
		Str("relationship_id", cfg.RelationshipID).
		Str("key", cfg.KeyName).
		Str("position", string(cfg.ValuePosition.RelativePosition)).
		Int("offset", cfg.ValuePosition.Offset).
		Msg("Relationship defined")

	return cfg, nil
}

// Save moves a DRAFT relationship to SAVED
func (s *Service) Save(ctx context.Context, id string) (*models.RelationshipConfig, error) {
	return s.transition(ctx, id, models.StateDraft, models.StateSaved)
}

// Archive moves a SAVED relationship to ARCHIVED
func (s *Service) Archive(ctx context.Context, id string) (*models.RelationshipConfig, error) {
	return s.transition(ctx, id, models.StateSaved, models.StateArchived)
}

func (s *Service) transition(ctx context.Context, id string, from, to models.RelationshipState) (*models.RelationshipConfig, error) {
	cfg, err := s.storage.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.State != from {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", interfaces.ErrInvalidTransition, id, cfg.State, from)
	}
	if err := s.matcher.Validate(cfg); err != nil {
		return nil, err
	}

	now := time.Now()
	cfg.State = to
	cfg.UpdatedAt = now
	if to == models.StateArchived {
		cfg.ArchivedAt = &now
	}

	if err := s.storage.SaveRelationship(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to store relationship: %w", err)
	}

	s.logger.Info().
		Str("relationship_id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Relationship state changed")

	return cfg, nil
}

// Revise copies a SAVED or ARCHIVED relationship into a new DRAFT with the next version.
// The original is left untouched.
func (s *Service) Revise(ctx context.Context, id string) (*models.RelationshipConfig, error) {
	cfg, err := s.storage.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.State == models.StateDraft {
		return nil, fmt.Errorf("%w: %s is already a draft", interfaces.ErrInvalidTransition, id)
	}

	now := time.Now()
	draft := *cfg
	draft.RelationshipID = common.NewRelationshipID()
	draft.State = models.StateDraft
	draft.Version = cfg.Version + 1
	draft.PreviousID = cfg.RelationshipID
	draft.CreatedAt = now
	draft.UpdatedAt = now
	draft.ArchivedAt = nil

	if err := s.storage.SaveRelationship(ctx, &draft); err != nil {
		return nil, fmt.Errorf("failed to store revision: %w", err)
	}

	s.logger.Info().
		Str("relationship_id", draft.RelationshipID).
		Str("previous_id", id).
		Int("version", draft.Version).
		Msg("Relationship revised")

	return &draft, nil
}

// Delete removes a relationship regardless of state
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.storage.GetRelationship(ctx, id); err != nil {
		return err
	}
	return s.storage.DeleteRelationship(ctx, id)
}

// Get returns one relationship
func (s *Service) Get(ctx context.Context, id string) (*models.RelationshipConfig, error) {
	return s.storage.GetRelationship(ctx, id)
}

// List returns relationships in one state, or all of them when state is empty
func (s *Service) List(ctx context.Context, state models.RelationshipState) ([]*models.RelationshipConfig, error) {
	if state == "" {
		return s.storage.ListRelationships(ctx)
	}
	return s.storage.ListByState(ctx, state)
}

// ListByTemplate returns the SAVED relationships of a file template, the replay set
func (s *Service) ListByTemplate(ctx context.Context, template string) ([]*models.RelationshipConfig, error) {
	return s.storage.ListByTemplate(ctx, template, models.StateSaved)
}

// topAnchorCount caps RelationshipStats.TopAnchors
const topAnchorCount = 5

// Statistics summarises every stored relationship. Recent counts those created
// at or after since.
func (s *Service) Statistics(ctx context.Context, since time.Time) (*models.RelationshipStats, error) {
	cfgs, err := s.storage.ListRelationships(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.RelationshipStats{
		Total:      len(cfgs),
		ByState:    make(map[models.RelationshipState]int),
		ByTemplate: make(map[string]int),
		TopAnchors: []models.AnchorCount{},
	}
	anchors := make(map[string]int)
	for _, cfg := range cfgs {
		stats.ByState[cfg.State]++
		if cfg.FileTemplate != "" {
			stats.ByTemplate[cfg.FileTemplate]++
		}
		if !cfg.CreatedAt.Before(since) {
			stats.Recent++
		}
		anchors[cfg.AnchorPattern]++
	}

	for pattern, n := range anchors {
		stats.TopAnchors = append(stats.TopAnchors, models.AnchorCount{Pattern: pattern, Count: n})
	}
	sort.Slice(stats.TopAnchors, func(i, j int) bool {
		if stats.TopAnchors[i].Count != stats.TopAnchors[j].Count {
			return stats.TopAnchors[i].Count > stats.TopAnchors[j].Count
		}
		return stats.TopAnchors[i].Pattern < stats.TopAnchors[j].Pattern
	})
	if len(stats.TopAnchors) > topAnchorCount {
		stats.TopAnchors = stats.TopAnchors[:topAnchorCount]
	}
	if len(anchors) > 0 {
		stats.AveragePerAnchor = float64(len(cfgs)) / float64(len(anchors))
	}
	return stats, nil
}

// ApplyTemplate replays a template's SAVED relationships across every table of a result
func (s *Service) ApplyTemplate(ctx context.Context, template string, result *models.ExtractionResult) ([]models.AppliedExtraction, error) {
	cfgs, err := s.ListByTemplate(ctx, template)
	if err != nil {
		return nil, err
	}

	applied := s.matcher.ApplyToResult(cfgs, result)

	found := 0
	for _, a := range applied {
		if a.Found() {
			found++
		}
	}
	s.logger.Info().
		Str("template", template).
		Int("relationships", len(cfgs)).
		Int("found", found).
		Msg("Template applied")

	return applied, nil
}

// Apply replays explicit relationships by id across every table of a result.
// Drafts are allowed so an operator can preview before saving.
func (s *Service) Apply(ctx context.Context, ids []string, result *models.ExtractionResult) ([]models.AppliedExtraction, error) {
	cfgs := make([]*models.RelationshipConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := s.storage.GetRelationship(ctx, id)
		if err != nil {
			return nil, err
		}
		if cfg.State == models.StateArchived {
			return nil, fmt.Errorf("%w: %s is archived", interfaces.ErrInvalidTransition, id)
		}
		cfgs = append(cfgs, cfg)
	}
	return s.matcher.ApplyToResult(cfgs, result), nil
}

// exportDocument is the on-disk shape of an export
type exportDocument struct {
	Version       int                          `json:"version" yaml:"version"`
	ExportedAt    time.Time                    `json:"exported_at" yaml:"exported_at"`
	Relationships []*models.RelationshipConfig `json:"relationships" yaml:"relationships"`
}

const exportVersion = 1

// Export writes every relationship as JSON or YAML and returns the count written
func (s *Service) Export(ctx context.Context, w io.Writer, format string) (int, error) {
	cfgs, err := s.storage.ListRelationships(ctx)
	if err != nil {
		return 0, err
	}

	doc := exportDocument{Version: exportVersion, ExportedAt: time.Now().UTC(), Relationships: cfgs}

	switch normalizeFormat(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(doc)
		if err == nil {
			err = enc.Close()
		}
	default:
		return 0, fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to encode relationships: %w", err)
	}

	s.logger.Info().Int("count", len(cfgs)).Str("format", format).Msg("Relationships exported")
	return len(cfgs), nil
}

// Import reads relationships written by Export. Existing ids are skipped and
// invalid entries are reported without aborting the import.
func (s *Service) Import(ctx context.Context, r io.Reader, format string) (*interfaces.ImportReport, error) {
	var doc exportDocument
	var err error

	switch normalizeFormat(format) {
	case "json":
		err = json.NewDecoder(r).Decode(&doc)
	case "yaml":
		err = yaml.NewDecoder(r).Decode(&doc)
	default:
		return nil, fmt.Errorf("unsupported import format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode relationships: %w", err)
	}

	report := &interfaces.ImportReport{}
	for i, cfg := range doc.Relationships {
		if cfg == nil {
			continue
		}
		if cfg.RelationshipID == "" {
			cfg.RelationshipID = common.NewRelationshipID()
		}

		if _, err := s.storage.GetRelationship(ctx, cfg.RelationshipID); err == nil {
			report.Skipped++
			continue
		} else if !errors.Is(err, interfaces.ErrRelationshipNotFound) {
			return report, err
		}

		if cfg.State == "" {
			cfg.State = models.StateDraft
		}
		if cfg.PatternType == "" {
			cfg.PatternType = models.PatternLiteral
		}
		if cfg.Version == 0 {
			cfg.Version = 1
		}
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = time.Now()
		}
		if cfg.UpdatedAt.IsZero() {
			cfg.UpdatedAt = cfg.CreatedAt
		}

		if err := s.matcher.Validate(cfg); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("entry %d (%s): %v", i, cfg.RelationshipID, err))
			continue
		}

		if err := s.storage.SaveRelationship(ctx, cfg); err != nil {
			return report, fmt.Errorf("failed to store imported relationship: %w", err)
		}
		report.Imported++
	}

	s.logger.Info().
		Int("imported", report.Imported).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Msg("Relationships imported")

	return report, nil
}

func normalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json"
	case "yaml", "yml":
		return "yaml"
	}
	return format
}
