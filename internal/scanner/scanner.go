package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ragctl/ragcore/internal/chunk"
	"github.com/ragctl/ragcore/internal/gitignore"
)

// gitignoreCacheSize is the maximum number of gitignore matchers to cache.
const gitignoreCacheSize = 1000

// Scanner discovers indexable files in a project directory and turns each
// into a chunk.FileRecord: C1, the File Walker.
type Scanner struct {
	gitignoreCache *lru.Cache[string, *gitignore.Matcher]
	cacheMu        sync.RWMutex

	globalMatcher *gitignore.Matcher
}

// New creates a new Scanner instance.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{
		gitignoreCache: cache,
		globalMatcher:  loadGlobalIgnore(),
	}, nil
}

// Walk discovers all indexable files in the project directory, streaming
// results on the returned channel as they are found. The channel is closed
// when the walk completes, errors out at the root, or ctx is cancelled.
func (s *Scanner) Walk(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDirectoryNotFound
		}
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrNotADirectory
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan ScanResult, workers*10)

	var submodulePaths []string
	if opts.Submodules != nil && opts.Submodules.Enabled {
		submodules, discoverErr := DiscoverSubmodules(absRoot, *opts.Submodules)
		if discoverErr != nil {
			slog.Warn("failed to discover submodules", slog.String("error", discoverErr.Error()))
		} else {
			for _, sm := range submodules {
				if sm.Initialized {
					submodulePaths = append(submodulePaths, sm.Path)
				} else {
					slog.Warn("skipping uninitialized submodule",
						slog.String("name", sm.Name), slog.String("path", sm.Path))
				}
			}
		}
	}

	go func() {
		defer close(results)
		s.walk(ctx, absRoot, absRoot, opts, maxFileSize, results)

		for _, smPath := range submodulePaths {
			s.walkSubmodule(ctx, absRoot, smPath, opts, maxFileSize, results)
		}
	}()

	return results, nil
}

// walk performs directory traversal from walkRoot, reporting paths relative
// to projectRoot (the two coincide except for submodule sub-walks).
func (s *Scanner) walk(ctx context.Context, projectRoot, walkRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // per-file read errors are skipped, not fatal
		}

		relPath, relErr := filepath.Rel(projectRoot, path)
		if relErr != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if s.shouldExcludeDir(relPath, opts) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}

		if s.shouldExcludeFile(relPath, projectRoot, opts) {
			return nil
		}

		record, ok, buildErr := s.buildFileRecord(path, relPath, projectRoot, opts, maxFileSize, d)
		if buildErr != nil {
			select {
			case results <- ScanResult{Error: buildErr}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}
		if !ok {
			return nil
		}

		select {
		case results <- ScanResult{File: record}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// walkSubmodule walks a submodule directory, reporting paths relative to
// projectRoot (so they read e.g. "libs/utils/file.go").
func (s *Scanner) walkSubmodule(ctx context.Context, projectRoot, submodulePath string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	s.walk(ctx, projectRoot, filepath.Join(projectRoot, submodulePath), opts, maxFileSize, results)
}

// buildFileRecord reads, validates and hashes one file, producing a
// chunk.FileRecord or (false, nil) when the file is silently rejected
// (too large, binary, etc).
func (s *Scanner) buildFileRecord(absPath, relPath, projectRoot string, opts *ScanOptions, maxFileSize int64, d fs.DirEntry) (*chunk.FileRecord, bool, error) {
	info, err := d.Info()
	if err != nil {
		return nil, false, nil
	}

	if info.Size() > maxFileSize {
		return nil, false, nil
	}

	if len(opts.IncludePatterns) > 0 && !s.matchesAnyPattern(relPath, opts.IncludePatterns) {
		return nil, false, nil
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, false, nil
	}

	isPDF := strings.EqualFold(extension(relPath), ".pdf")
	content, ok, err := readFileContent(absPath, raw, isPDF)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	language := DetectLanguage(relPath)

	return &chunk.FileRecord{
		AbsPath:   absPath,
		RelPath:   filepath.ToSlash(relPath),
		RootPath:  projectRoot,
		Content:   content,
		Language:  language,
		Extension: strings.ToLower(extension(relPath)),
		FileHash:  hashContent(content),
		Project:   opts.Project,
	}, true, nil
}

// shouldExcludeDir checks if a directory should be excluded.
func (s *Scanner) shouldExcludeDir(relPath string, opts *ScanOptions) bool {
	for _, pattern := range defaultExcludeDirs {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}

	for _, pattern := range opts.ExcludePatterns {
		if matchDirPattern(relPath, pattern) {
			return true
		}
	}

	return false
}

// shouldExcludeFile checks if a file should be excluded.
func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions) bool {
	baseName := filepath.Base(relPath)

	for _, pattern := range sensitiveFilePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}

	for _, pattern := range defaultExcludeFiles {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}

	for _, pattern := range opts.ExcludePatterns {
		if matchFilePattern(baseName, relPath, pattern) {
			return true
		}
	}

	if opts.RespectGitignore {
		if s.globalMatcher != nil && s.globalMatcher.Match(relPath, false) {
			return true
		}
		if s.isIgnored(relPath, absRoot) {
			return true
		}
	}

	return false
}

// matchDirPattern checks if a directory path matches a pattern.
func matchDirPattern(relPath, pattern string) bool {
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		suffix = strings.TrimSuffix(suffix, "/**")
		parts := strings.Split(relPath, string(filepath.Separator))
		for _, part := range parts {
			if part == suffix {
				return true
			}
		}
		return false
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if relPath == prefix || strings.HasPrefix(relPath, prefix+string(filepath.Separator)) {
			return true
		}
		return false
	}

	return relPath == pattern || strings.HasPrefix(relPath, pattern+string(filepath.Separator))
}

// matchFilePattern checks if a file matches a pattern.
func matchFilePattern(baseName, relPath, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") && !strings.HasPrefix(pattern, "**/") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if strings.HasPrefix(relPath, prefix+string(filepath.Separator)) {
			return true
		}
		return false
	}

	if strings.Contains(pattern, string(filepath.Separator)) && strings.Contains(pattern, "*") && !strings.HasPrefix(pattern, "**/") {
		dir := filepath.Dir(pattern)
		filePattern := filepath.Base(pattern)
		relDir := filepath.Dir(relPath)

		if relDir == dir {
			matched, err := filepath.Match(filePattern, baseName)
			if err == nil && matched {
				return true
			}
		}
		return false
	}

	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if strings.HasPrefix(suffix, "*.") {
			ext := strings.TrimPrefix(suffix, "*")
			return strings.HasSuffix(baseName, ext)
		}
		parts := strings.Split(relPath, string(filepath.Separator))
		for i, part := range parts {
			if part == suffix || (i < len(parts)-1 && matchDirPattern(strings.Join(parts[:i+1], string(filepath.Separator)), pattern)) {
				return true
			}
		}
		return false
	}

	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
		middle := strings.TrimSuffix(strings.TrimPrefix(pattern, "*"), "*")
		return strings.Contains(strings.ToLower(baseName), strings.ToLower(middle))
	}

	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(pattern, ".") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(baseName, prefix)
	}

	if strings.HasPrefix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(baseName, suffix)
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(baseName, prefix)
	}

	return baseName == pattern
}

// matchesAnyPattern checks if a path substring-matches any include pattern.
func (s *Scanner) matchesAnyPattern(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(relPath, pattern) {
			return true
		}
	}
	return false
}

// isIgnored checks whether a path is ignored by any nested .gitignore or
// .ignore file between the project root and the file.
func (s *Scanner) isIgnored(relPath, absRoot string) bool {
	if m := s.getIgnoreMatcher(absRoot, ""); m != nil && m.Match(relPath, false) {
		return true
	}

	parts := strings.Split(filepath.Dir(relPath), string(filepath.Separator))
	currentDir := absRoot
	currentBase := ""

	for _, part := range parts {
		if part == "." {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = filepath.Join(currentBase, part)
		}

		if m := s.getIgnoreMatcher(currentDir, currentBase); m != nil && m.Match(relPath, false) {
			return true
		}
	}

	return false
}

// getIgnoreMatcher gets or creates a matcher combining .gitignore and
// .ignore patterns for a directory.
func (s *Scanner) getIgnoreMatcher(dir, base string) *gitignore.Matcher {
	s.cacheMu.RLock()
	matcher, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	var found bool
	m := gitignore.New()
	for _, name := range []string{".gitignore", ".ignore"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := m.AddFromFile(p, base); err == nil {
			found = true
		}
	}
	if !found {
		return nil
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, m)
	s.cacheMu.Unlock()

	return m
}

// loadGlobalIgnore loads the user's global gitignore file, if configured,
// the way git itself resolves core.excludesFile: $XDG_CONFIG_HOME/git/ignore
// falling back to $HOME/.config/git/ignore.
func loadGlobalIgnore() *gitignore.Matcher {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		configHome = filepath.Join(home, ".config")
	}

	path := filepath.Join(configHome, "git", "ignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	m := gitignore.New()
	if err := m.AddFromFile(path, ""); err != nil {
		return nil
	}
	return m
}

// InvalidateGitignoreCache clears the cached ignore matchers. Call this
// when .gitignore/.ignore files change to ensure fresh patterns are used.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}

// Default directories to exclude.
var defaultExcludeDirs = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.aws/**",
	"**/.gcp/**",
	"**/.azure/**",
	"**/.ssh/**",
}

// Default files to exclude.
var defaultExcludeFiles = []string{
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// Sensitive file patterns that are never indexed.
var sensitiveFilePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"*.p12",
	"*.pfx",
	"*credentials*",
	"*secrets*",
	"*password*",
	".netrc",
	".npmrc",
	".pypirc",
	"id_rsa",
	"id_dsa",
	"id_ecdsa",
	"id_ed25519",
}
