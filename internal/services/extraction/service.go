// -----------------------------------------------------------------------
// Extraction Service - backend run, normalization, caching and comparison
// -----------------------------------------------------------------------

package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
	"github.com/ternarybob/tabanchor/internal/services/normalizer"
)

// Options tune the extraction service
type Options struct {
	Timeout        time.Duration // per document; zero disables
	MaxConcurrency int           // backends run at once by Compare
	CacheEnabled   bool
	CacheTTL       time.Duration // zero keeps entries until cleared
}

// OptionsFromConfig reads the [extraction] section
func OptionsFromConfig(config *common.Config) (Options, error) {
	timeout, err := config.ExtractionTimeout()
	if err != nil {
		return Options{}, err
	}
	ttl, err := config.CacheTTL()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Timeout:        timeout,
		MaxConcurrency: config.Extraction.MaxConcurrency,
		CacheEnabled:   config.Extraction.CacheEnabled,
		CacheTTL:       ttl,
	}, nil
}

// Service runs a backend over a document and returns normalized tables
type Service struct {
	provider   interfaces.BackendProvider
	normalizer *normalizer.Normalizer
	cache      interfaces.ExtractionCacheStorage
	opts       Options
	logger     arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ExtractionService = (*Service)(nil)

// NewService creates an extraction service. cache may be nil.
func NewService(provider interfaces.BackendProvider, norm *normalizer.Normalizer, cache interfaces.ExtractionCacheStorage, opts Options, logger arbor.ILogger) *Service {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if norm == nil {
		norm = normalizer.NewNormalizer(common.NormalizerConfig{}, nil, logger)
	}
	return &Service{
		provider:   provider,
		normalizer: norm,
		cache:      cache,
		opts:       opts,
		logger:     logger,
	}
}

// Extract runs one backend over a document.
//
// Fatal document errors are returned unchanged. When the timeout or ctx ends
// the run early, the tables normalized so far come back in a result marked
// Partial together with the context error.
func (s *Service) Extract(ctx context.Context, path string, backend models.BackendID, opts models.BackendOptions) (*models.ExtractionResult, error) {
	adapter, err := s.provider.Adapter(backend)
	if err != nil {
		return nil, err
	}
	if err := adapter.Available(); err != nil {
		if !errors.Is(err, interfaces.ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
		}
		return nil, err
	}

	merged := s.provider.Options(backend, opts)

	digest, digestErr := common.FileDigest(path)
	fileID := common.NewFileID()
	cacheKey := ""
	if digestErr == nil {
		fileID = common.FileIDFromDigest(digest)
		cacheKey = CacheKey(digest, backend, merged)
	}

	if cached := s.cached(ctx, cacheKey); cached != nil {
		cached.FilePath = path
		s.logger.Debug().Str("path", path).Str("backend", string(backend)).Msg("Extraction served from cache")
		return cached, nil
	}

	runCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info().Str("path", path).Str("backend", string(backend)).Msg("Extraction started")

	var raw *models.RawExtraction
	runErr := common.SafeCall(s.logger, "extract "+string(backend), func() error {
		var err error
		raw, err = adapter.Extract(runCtx, path, merged)
		return err
	})

	if runErr != nil {
		if interfaces.IsFatalDocumentError(runErr) {
			s.logger.Warn().Str("path", path).Str("backend", string(backend)).Err(runErr).Msg("Document rejected")
			return nil, runErr
		}
		if !isContextErr(runErr) || raw == nil {
			return nil, fmt.Errorf("%s extraction failed: %w", backend, runErr)
		}
	}

	result := s.assemble(raw, fileID, path, backend)
	result.ProcessingTimeSeconds = time.Since(start).Seconds()

	if runErr != nil {
		result.Partial = true
		result.Error = runErr.Error()
		s.logger.Warn().
			Str("path", path).
			Str("backend", string(backend)).
			Int("tables", result.TotalTables).
			Err(runErr).
			Msg("Extraction ended early, returning partial result")
		return result, runErr
	}

	s.store(ctx, cacheKey, result)

	s.logger.Info().
		Str("path", path).
		Str("backend", string(backend)).
		Int("pages", result.TotalPages).
		Int("tables", result.TotalTables).
		Int("skipped_tables", result.SkippedTables).
		Int("skipped_pages", result.SkippedPages).
		Float64("seconds", result.ProcessingTimeSeconds).
		Msg("Extraction complete")

	return result, nil
}

// assemble normalizes every raw table and groups the tables by page
func (s *Service) assemble(raw *models.RawExtraction, fileID, path string, backend models.BackendID) *models.ExtractionResult {
	result := &models.ExtractionResult{
		FileID:        fileID,
		FilePath:      path,
		Backend:       backend,
		TotalPages:    raw.PageCount,
		SkippedTables: raw.SkippedTables,
		SkippedPages:  raw.SkippedPages,
		Warnings:      append([]string(nil), raw.Warnings...),
		ExtractedAt:   time.Now(),
	}

	pages := make(map[int]*models.PageTableData)
	for i, rt := range raw.Tables {
		rawTable := rt
		var table *models.TableData
		ok := false
		err := common.SafeCall(s.logger, fmt.Sprintf("normalize table %d", i), func() error {
			table, ok = s.normalizer.Normalize(rawTable, rawTable.PageNumber, backend)
			return nil
		})
		if err != nil || !ok {
			result.SkippedTables++
			if err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("table %d on page %d skipped: %v", i, rawTable.PageNumber, err))
			}
			continue
		}

		check := normalizer.CheckStructure(table)
		for _, w := range check.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("table %s on page %d: %s", table.TableID, table.PageNumber, w))
		}
		if !check.Valid {
			result.SkippedTables++
			result.Warnings = append(result.Warnings, fmt.Sprintf("table %d on page %d skipped: %s", i, table.PageNumber, strings.Join(check.Errors, "; ")))
			s.logger.Warn().Int("page", table.PageNumber).Strs("errors", check.Errors).Msg("Malformed table skipped")
			continue
		}

		page, exists := pages[table.PageNumber]
		if !exists {
			page = &models.PageTableData{
				PageNumber: table.PageNumber,
				PageWidth:  rawTable.PageWidth,
				PageHeight: rawTable.PageHeight,
			}
			pages[table.PageNumber] = page
		}
		page.Tables = append(page.Tables, table)
		result.TotalTables++
	}

	result.Pages = make([]*models.PageTableData, 0, len(pages))
	for _, p := range pages {
		result.Pages = append(result.Pages, p)
	}
	sort.Slice(result.Pages, func(i, j int) bool { return result.Pages[i].PageNumber < result.Pages[j].PageNumber })

	if result.TotalPages < len(result.Pages) {
		result.TotalPages = len(result.Pages)
	}
	return result
}

func (s *Service) cached(ctx context.Context, key string) *models.ExtractionResult {
	if !s.opts.CacheEnabled || s.cache == nil || key == "" {
		return nil
	}
	result, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("Extraction cache read failed")
		}
		return nil
	}
	return result
}

func (s *Service) store(ctx context.Context, key string, result *models.ExtractionResult) {
	if !s.opts.CacheEnabled || s.cache == nil || key == "" {
		return
	}
	if err := s.cache.Put(ctx, key, result, s.opts.CacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("Extraction cache write failed")
	}
}

// Compare runs several backends over the same document concurrently.
// A failing backend does not stop the others; its error is reported in the
// second map. Partial results appear in both maps.
func (s *Service) Compare(ctx context.Context, path string, backends []models.BackendID) (map[models.BackendID]*models.ExtractionResult, map[models.BackendID]error) {
	results := make(map[models.BackendID]*models.ExtractionResult)
	failures := make(map[models.BackendID]error)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrency)

	seen := make(map[models.BackendID]bool)
	for _, id := range backends {
		if seen[id] {
			continue
		}
		seen[id] = true

		backend := id
		g.Go(func() error {
			result, err := s.Extract(ctx, path, backend, nil)
			mu.Lock()
			defer mu.Unlock()
			if result != nil {
				results[backend] = result
			}
			if err != nil {
				failures[backend] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info().
		Str("path", path).
		Int("backends", len(seen)).
		Int("succeeded", len(results)).
		Int("failed", len(failures)).
		Msg("Backend comparison complete")

	return results, failures
}

// CacheKey identifies an extraction by document content, backend and options
func CacheKey(digest string, backend models.BackendID, opts models.BackendOptions) string {
	// encoding/json writes map keys sorted, so equal options hash equally
	data, err := json.Marshal(opts)
	if err != nil {
		data = []byte(fmt.Sprint(opts))
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s:%s", digest, backend, hex.EncodeToString(sum[:8]))
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
