package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// CodeTokenizerName is the name of the custom code-aware tokenizer.
	CodeTokenizerName = "code_tokenizer"

	// CodeStopFilterName is the name of the custom stop word filter.
	CodeStopFilterName = "code_stop"

	// CodeAnalyzerName is the name of the custom code analyzer.
	CodeAnalyzerName = "code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(CodeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(CodeStopFilterName, codeStopFilterConstructor)
}

// lexicalDocument is the document shape stored in Bleve for one row.
type lexicalDocument struct {
	Content  string `json:"content"`
	FilePath string `json:"file_path"`
}

// BleveLexicalIndex is a single per-root BM25 index (one of many behind a
// LexicalManager). Writers are serialized with mu; Bleve itself is safe for
// concurrent reads.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config BM25Config
	closed bool
}

// NewBleveLexicalIndex opens (or creates, or auto-recovers) the Bleve index
// at path. An empty path creates an in-memory index, used by tests.
func NewBleveLexicalIndex(path string, config BM25Config) (*BleveLexicalIndex, error) {
	indexMapping, err := createLexicalMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
			return nil, fmt.Errorf("create directory: %w", mkErr)
		}

		if validErr := validateLexicalIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted", slog.String("path", path), slog.String("error", validErr.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w (original: %v)", path, rmErr, validErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isLexicalCorruptionError(err) {
			slog.Warn("lexical_index_open_failed", slog.String("path", path), slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, fmt.Errorf("lexical index corrupted, cannot clear: %w (original: %v)", rmErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create/open index: %w", err)
	}

	return &BleveLexicalIndex{index: idx, path: path, config: config}, nil
}

func createLexicalMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	if err := indexMapping.AddCustomAnalyzer(CodeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": CodeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			CodeStopFilterName,
		},
	}); err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = CodeAnalyzerName

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = CodeAnalyzerName
	docMapping.AddFieldMappingsAt("content", contentField)

	filePathField := bleve.NewTextFieldMapping()
	filePathField.Analyzer = keyword.Name
	filePathField.Store = true
	docMapping.AddFieldMappingsAt("file_path", filePathField)

	indexMapping.DefaultMapping = docMapping

	return indexMapping, nil
}

func validateLexicalIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isLexicalCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

func docID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// AddDocuments appends documents; commits at the end.
func (b *BleveLexicalIndex) AddDocuments(ctx context.Context, docs []LexicalDocument) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		bleveDoc := lexicalDocument{Content: doc.Content, FilePath: doc.FilePath}
		if err := batch.Index(docID(doc.ID), bleveDoc); err != nil {
			return fmt.Errorf("index document %d: %w", doc.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute batch: %w", err)
	}
	return nil
}

// DeleteByID removes the document carrying id.
func (b *BleveLexicalIndex) DeleteByID(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	return b.index.Delete(docID(id))
}

// DeleteByFilePath removes every document carrying file_path.
func (b *BleveLexicalIndex) DeleteByFilePath(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}

	query := bleve.NewTermQuery(path)
	query.SetField("file_path")

	req := bleve.NewSearchRequest(query)
	req.Size = 1 << 20
	req.Fields = nil

	result, err := b.index.Search(req)
	if err != nil {
		return fmt.Errorf("search by file_path: %w", err)
	}
	if len(result.Hits) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	return b.index.Batch(batch)
}

// Clear empties the index.
func (b *BleveLexicalIndex) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}

	indexMapping, err := createLexicalMapping()
	if err != nil {
		return fmt.Errorf("create index mapping: %w", err)
	}

	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	if b.path == "" {
		idx, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return fmt.Errorf("recreate in-memory index: %w", err)
		}
		b.index = idx
		return nil
	}

	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("remove index directory: %w", err)
	}
	idx, err := bleve.New(b.path, indexMapping)
	if err != nil {
		return fmt.Errorf("recreate index: %w", err)
	}
	b.index = idx
	return nil
}

// Search returns the top-limit hits by BM25 score.
func (b *BleveLexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []LexicalResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		results = append(results, LexicalResult{ID: id, Score: hit.Score})
	}
	return results, nil
}

// Stats returns index statistics.
func (b *BleveLexicalIndex) Stats() LexicalStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return LexicalStats{}
	}
	docCount, _ := b.index.DocCount()
	return LexicalStats{TotalDocuments: int(docCount)}
}

// Close closes the index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

var _ BM25Index = (*BleveLexicalIndex)(nil)

func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveCodeTokenizer{}, nil
}

type bleveCodeTokenizer struct{}

func (t *bleveCodeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

func codeStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveCodeStopFilter{stopWords: BuildStopWordMap(DefaultCodeStopWords)}, nil
}

type bleveCodeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *bleveCodeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
