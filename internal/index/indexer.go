package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/flanksource/commons/logger"

	"github.com/flanksource/code-intel/internal/cache"
	"github.com/flanksource/code-intel/internal/store"
	"github.com/flanksource/code-intel/models"
)

// Parser produces an AST from file content. The indexer is parser-agnostic;
// the cache stores whatever the parser returns.
type Parser interface {
	Supports(path string) bool
	Language() string
	Extract(path string, content []byte) (*models.ParseResult, error)
}

// Options configures an indexing run.
type Options struct {
	// Workers is the number of parallel parsing workers. Defaults to
	// runtime.NumCPU when zero or negative.
	Workers int

	// Includes are doublestar patterns matched against paths relative to the
	// root. Empty means every file the parser supports.
	Includes []string

	// Excludes are doublestar patterns for files to skip.
	Excludes []string

	// NoCache bypasses cache lookups, forcing a re-parse of every file.
	// Results are still stored so later runs benefit.
	NoCache bool
}

// FileError records a per-file failure; one bad file never aborts the run.
type FileError struct {
	Path string
	Err  error
}

// Report summarizes an indexing run.
type Report struct {
	FilesFound int
	Parsed     int
	CacheHits  int
	Unchanged  int
	Failed     int
	Duration   time.Duration
	Errors     []FileError
}

// Indexer walks a source tree and parses every supported file, consulting the
// AST cache before parsing and recording file metadata after.
type Indexer struct {
	cache  *cache.ASTCache
	store  *store.MetadataStore
	parser Parser
	opts   Options

	mu     sync.Mutex
	report *Report
}

// New creates an indexer. The metadata store may be nil, in which case no
// per-file bookkeeping is persisted.
func New(astCache *cache.ASTCache, metadata *store.MetadataStore, parser Parser, opts Options) *Indexer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Indexer{
		cache:  astCache,
		store:  metadata,
		parser: parser,
		opts:   opts,
	}
}

var skipDirs = map[string]bool{
	".git":         true,
	"vendor":       true,
	"node_modules": true,
	"__pycache__":  true,
}

// IndexDirectory discovers supported files under root and indexes them with a
// pool of parallel workers. Per-file failures are collected in the report;
// only discovery errors and context cancellation abort the run.
func (i *Indexer) IndexDirectory(ctx context.Context, root string) (*Report, error) {
	started := time.Now()

	files, err := i.discoverFiles(root)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	logger.Infof("Indexing %d files in %s with %d workers", len(files), root, i.opts.Workers)

	i.mu.Lock()
	i.report = &Report{FilesFound: len(files)}
	i.mu.Unlock()

	jobs := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < i.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				i.indexFile(path)
			}
		}()
	}

	var canceled error
dispatch:
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			canceled = err
			break dispatch
		}
		select {
		case <-ctx.Done():
			canceled = ctx.Err()
			break dispatch
		case jobs <- path:
		}
	}
	close(jobs)
	wg.Wait()

	i.mu.Lock()
	report := i.report
	i.report = nil
	i.mu.Unlock()
	report.Duration = time.Since(started)

	if canceled != nil {
		return report, canceled
	}
	return report, nil
}

// IndexFile indexes a single file outside of a directory run, e.g. from the
// watcher. It returns whether the content was already cached.
func (i *Indexer) IndexFile(path string) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return i.indexContent(path, content)
}

// RemoveFile drops the persisted metadata for a deleted file. The cache needs
// no invalidation: keys are content-addressed, so the dead entry simply ages
// out.
func (i *Indexer) RemoveFile(path string) error {
	if i.store == nil {
		return nil
	}
	return i.store.Delete(path)
}

// Cache exposes the underlying AST cache, e.g. for stats reporting.
func (i *Indexer) Cache() *cache.ASTCache {
	return i.cache
}

// Supports reports whether the configured parser can handle the given file.
func (i *Indexer) Supports(path string) bool {
	return i.parser.Supports(path)
}

func (i *Indexer) discoverFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !i.parser.Supports(path) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if i.matches(filepath.ToSlash(rel)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (i *Indexer) matches(rel string) bool {
	for _, pattern := range i.opts.Excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(i.opts.Includes) == 0 {
		return true
	}
	for _, pattern := range i.opts.Includes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (i *Indexer) indexFile(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		i.recordError(path, fmt.Errorf("failed to read file: %w", err))
		return
	}

	hit, err := i.indexContent(path, content)
	if err != nil {
		i.recordError(path, err)
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.report == nil {
		return
	}
	if hit {
		i.report.CacheHits++
	} else {
		i.report.Parsed++
	}
}

func (i *Indexer) indexContent(path string, content []byte) (bool, error) {
	hash := cache.FingerprintOf(content).String()

	if i.store != nil {
		if upToDate, err := i.store.IsUpToDate(path, hash); err != nil {
			logger.Warnf("metadata lookup failed for %s: %v", path, err)
		} else if upToDate {
			i.mu.Lock()
			if i.report != nil {
				i.report.Unchanged++
			}
			i.mu.Unlock()
		}
	}

	if !i.opts.NoCache {
		if _, ok := i.cache.Get(content); ok {
			logger.Debugf("cache hit for %s (%s)", path, cache.FingerprintOf(content).Short())
			i.touch(path, hash, content)
			return true, nil
		}
	}

	result, err := i.parser.Extract(path, content)
	if err != nil {
		return false, err
	}

	i.cache.Put(content, result, result.SizeEstimate())
	logger.Debugf("parsed %s: %d nodes", path, len(result.Nodes))
	i.touch(path, hash, content)
	return false, nil
}

func (i *Indexer) touch(path, hash string, content []byte) {
	if i.store == nil {
		return
	}
	modTime := time.Now()
	if info, err := os.Stat(path); err == nil {
		modTime = info.ModTime()
	}
	if err := i.store.Touch(path, hash, int64(len(content)), modTime); err != nil {
		logger.Warnf("failed to record metadata for %s: %v", path, err)
	}
}

func (i *Indexer) recordError(path string, err error) {
	logger.Warnf("failed to index %s: %v", path, err)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.report == nil {
		return
	}
	i.report.Failed++
	i.report.Errors = append(i.report.Errors, FileError{Path: path, Err: err})
}
