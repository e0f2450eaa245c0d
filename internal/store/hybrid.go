package store

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
)

// HybridEngine is C8: it owns a VectorStore and a LexicalManager and keeps
// their row ids synchronized by using the first row id the vector store
// assigns to a batch as that batch's lexical base_id.
type HybridEngine struct {
	vector  VectorStore
	lexical *LexicalManager
}

// NewHybridEngine wires a vector store and lexical manager into a single
// hybrid index engine.
func NewHybridEngine(vector VectorStore, lexical *LexicalManager) *HybridEngine {
	return &HybridEngine{vector: vector, lexical: lexical}
}

// Initialize creates the vector table for the given dimension if missing.
func (e *HybridEngine) Initialize(dimension int) error {
	return e.vector.Initialize(dimension)
}

// Store appends rows to the vector store, takes the first row id it
// assigned as base_id, then mirrors (row id, content, file_path) into the lexical index
// for rootPath.
func (e *HybridEngine) Store(ctx context.Context, rows []VectorRow, rootPath string) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	baseID, err := e.vector.Store(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("store vectors: %w", err)
	}

	lex, err := e.lexical.GetOrCreate(rootPath)
	if err != nil {
		return 0, fmt.Errorf("get lexical index for root %q: %w", rootPath, err)
	}

	docs := make([]LexicalDocument, len(rows))
	for i, row := range rows {
		docs[i] = LexicalDocument{ID: baseID + uint64(i), Content: row.Content, FilePath: row.FilePath}
	}
	if err := lex.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("add lexical documents: %w", err)
	}

	return len(rows), nil
}

// Search implements both the pure-vector and hybrid search modes.
func (e *HybridEngine) Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	return e.search(ctx, opts, nil, nil, nil)
}

// SearchFiltered is Search with post-filters on extension, language, and
// glob path patterns.
func (e *HybridEngine) SearchFiltered(ctx context.Context, opts SearchOptions, fileExtensions, languages, pathPatterns []string) ([]SearchResult, error) {
	return e.search(ctx, opts, fileExtensions, languages, pathPatterns)
}

func (e *HybridEngine) search(ctx context.Context, opts SearchOptions, fileExtensions, languages, pathPatterns []string) ([]SearchResult, error) {
	var vecFilter *Predicate
	if opts.Project != nil {
		vecFilter = EqualsPredicate("project", *opts.Project)
	}

	if !opts.Hybrid {
		vecResults, err := e.vector.VectorSearch(ctx, opts.QueryVector, opts.Limit, vecFilter)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}

		results := make([]SearchResult, 0, len(vecResults))
		for _, vr := range vecResults {
			if vr.Score < opts.MinScore {
				continue
			}
			if opts.RootPath != nil && (vr.Row.RootPath == nil || *vr.Row.RootPath != *opts.RootPath) {
				continue
			}
			vs := vr.Score
			results = append(results, toSearchResult(vr.Row, vr.Score, &vs, nil))
		}
		results = applyPostFilters(results, fileExtensions, languages, pathPatterns)
		if len(results) > opts.Limit {
			results = results[:opts.Limit]
		}
		return results, nil
	}

	oversample := 3 * opts.Limit
	vecResults, err := e.vector.VectorSearch(ctx, opts.QueryVector, oversample, vecFilter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	vecIDs := make([]uint64, len(vecResults))
	vecScore := make(map[uint64]float64, len(vecResults))
	vecRows := make(map[uint64]VectorRow, len(vecResults))
	for i, vr := range vecResults {
		vecIDs[i] = vr.Row.RowID
		vecScore[vr.Row.RowID] = vr.Score
		vecRows[vr.Row.RowID] = vr.Row
	}

	lexIDs, lexScore := e.lexicalSearch(ctx, opts.QueryText, oversample)
	for id, row := range e.rowsFor(lexIDs) {
		vecRows[id] = row
	}

	fusedIDs, fusedScores := FuseRRFScores(vecIDs, lexIDs, opts.Limit*10)

	results := make([]SearchResult, 0, len(fusedIDs))
	for _, id := range fusedIDs {
		row, ok := vecRows[id]
		if !ok {
			continue
		}

		vs, hasVS := vecScore[id]
		ks, hasKS := lexScore[id]

		if !((hasVS && vs >= opts.MinScore) || (hasKS && ks >= opts.MinScore)) {
			continue
		}
		if opts.RootPath != nil && (row.RootPath == nil || *row.RootPath != *opts.RootPath) {
			continue
		}

		var vsPtr, ksPtr *float64
		if hasVS {
			vsPtr = &vs
		}
		if hasKS {
			ksPtr = &ks
		}
		results = append(results, toSearchResult(row, fusedScores[id], vsPtr, ksPtr))
	}

	results = applyPostFilters(results, fileExtensions, languages, pathPatterns)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// lexicalSearch runs query against every open per-root lexical index and
// merges hits, keeping the highest score seen for a given id.
func (e *HybridEngine) lexicalSearch(ctx context.Context, query string, limit int) ([]uint64, map[uint64]float64) {
	scores := make(map[uint64]float64)
	for _, idx := range e.lexical.All() {
		hits, err := idx.Search(ctx, query, limit)
		if err != nil {
			continue
		}
		for _, hit := range hits {
			if existing, ok := scores[hit.ID]; !ok || hit.Score > existing {
				scores[hit.ID] = hit.Score
			}
		}
	}

	ids := make([]uint64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, scores
}

// rowsFor retrieves the VectorRow for each id from the vector store by
// count-filtering; used to resolve metadata for lexical-only hits that
// never appeared in the vector search's oversampled window.
func (e *HybridEngine) rowsFor(ids []uint64) map[uint64]VectorRow {
	rows := make(map[uint64]VectorRow, len(ids))
	if len(ids) == 0 {
		return rows
	}
	type rowLookup interface {
		rowByID(id uint64) (VectorRow, bool)
	}
	if lookup, ok := e.vector.(rowLookup); ok {
		for _, id := range ids {
			if row, found := lookup.rowByID(id); found {
				rows[id] = row
			}
		}
	}
	return rows
}

func toSearchResult(row VectorRow, score float64, vectorScore, keywordScore *float64) SearchResult {
	return SearchResult{
		RowID:        row.RowID,
		FilePath:     row.FilePath,
		RootPath:     row.RootPath,
		StartLine:    row.StartLine,
		EndLine:      row.EndLine,
		Language:     row.Language,
		Extension:    row.Extension,
		FileHash:     row.FileHash,
		IndexedAt:    row.IndexedAt,
		Content:      row.Content,
		Project:      row.Project,
		Score:        score,
		VectorScore:  vectorScore,
		KeywordScore: keywordScore,
	}
}

func applyPostFilters(results []SearchResult, fileExtensions, languages, pathPatterns []string) []SearchResult {
	if len(fileExtensions) == 0 && len(languages) == 0 && len(pathPatterns) == 0 {
		return results
	}

	filtered := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if len(fileExtensions) > 0 && !hasAnySuffix(r.FilePath, fileExtensions) {
			continue
		}
		if len(languages) > 0 && !containsString(languages, r.Language) {
			continue
		}
		if len(pathPatterns) > 0 && !matchesAnyGlob(r.FilePath, pathPatterns) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func hasAnySuffix(p string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(p, s) {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// matchesAnyGlob implements the glob semantics: "**" is a segment
// wildcard, "*" matches within a segment. A candidate path matches a
// pattern if the full path matches, the path with its leading "/" stripped
// matches, or any suffix of the path split on "/" matches.
func matchesAnyGlob(filePath string, patterns []string) bool {
	candidates := pathSuffixCandidates(filePath)
	for _, pattern := range patterns {
		for _, candidate := range candidates {
			if globMatch(pattern, candidate) {
				return true
			}
		}
	}
	return false
}

func pathSuffixCandidates(p string) []string {
	candidates := []string{p}
	if strings.HasPrefix(p, "/") {
		candidates = append(candidates, strings.TrimPrefix(p, "/"))
	}
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i := range segments {
		candidates = append(candidates, strings.Join(segments[i:], "/"))
	}
	return candidates
}

// globMatch matches pattern against name using "**" (segment wildcard,
// matches zero or more segments) and "*" (matches within one segment, never
// crossing "/").
func globMatch(pattern, name string) bool {
	patternSegs := strings.Split(pattern, "/")
	nameSegs := strings.Split(name, "/")
	return globMatchSegs(patternSegs, nameSegs)
}

func globMatchSegs(pattern, name []string) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}

	if pattern[0] == "**" {
		if globMatchSegs(pattern[1:], name) {
			return true
		}
		if len(name) == 0 {
			return false
		}
		return globMatchSegs(pattern, name[1:])
	}

	if len(name) == 0 {
		return false
	}
	if !segmentMatch(pattern[0], name[0]) {
		return false
	}
	return globMatchSegs(pattern[1:], name[1:])
}

// segmentMatch matches a single path segment against a pattern segment
// using "*" as an intra-segment wildcard.
func segmentMatch(pattern, name string) bool {
	matched, err := path.Match(pattern, name)
	return err == nil && matched
}

// DeleteByFile removes every row (vector + every lexical index) carrying
// file_path.
func (e *HybridEngine) DeleteByFile(filePath string) error {
	for _, idx := range e.lexical.All() {
		if err := idx.DeleteByFilePath(filePath); err != nil {
			return fmt.Errorf("delete from lexical index: %w", err)
		}
	}

	predicate := fmt.Sprintf("file_path = '%s'", escapeQuote(filePath))
	if _, err := e.vector.DeleteWhere(predicate); err != nil {
		return fmt.Errorf("delete from vector store: %w", err)
	}
	return nil
}

func escapeQuote(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

// Clear drops the vector table and empties every lexical index.
func (e *HybridEngine) Clear() error {
	if err := e.vector.DropTable(); err != nil {
		return fmt.Errorf("drop vector table: %w", err)
	}
	if err := e.lexical.Clear(); err != nil {
		return fmt.Errorf("clear lexical indexes: %w", err)
	}
	return nil
}

// Stats returns the total row count and a descending language breakdown.
func (e *HybridEngine) Stats() HybridStats {
	total, _ := e.vector.CountRows(nil)

	breakdown := make(map[string]int)
	type allRows interface {
		allRows() []VectorRow
	}
	if lister, ok := e.vector.(allRows); ok {
		for _, row := range lister.allRows() {
			breakdown[row.Language]++
		}
	}

	counts := make([]LanguageCount, 0, len(breakdown))
	for lang, count := range breakdown {
		counts = append(counts, LanguageCount{Language: lang, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Language < counts[j].Language
	})

	return HybridStats{TotalRows: total, LanguageBreakdown: counts}
}

// Flush is a no-op. BleveLexicalIndex writes each batch as it is added, but
// HNSWVectorStore is not persisted eagerly: it reaches disk only through an
// explicit HNSWVectorStore.Save.
func (e *HybridEngine) Flush() error {
	return nil
}

var _ HybridIndexEngine = (*HybridEngine)(nil)
