package chunk

import "context"

// FixedLinesDefault is the default group size for the fixed-lines strategy.
const FixedLinesDefault = 50

// FileRecord is C1's output and C2's input: one indexable file plus the
// metadata every chunk derived from it carries.
type FileRecord struct {
	AbsPath   string
	RelPath   string // relative to root
	RootPath  string
	Content   []byte
	Language  string
	Extension string
	FileHash  string // SHA-256 of Content at scan time
	Project   *string
	IndexedAt int64 // Unix seconds
}

// Chunk is a retrievable (content, metadata) unit.
type Chunk struct {
	FilePath  string // relative to project root
	Content   string
	Project   *string
	StartLine int // 1-indexed, inclusive
	EndLine   int // inclusive
	Language  string
	Extension string
	FileHash  string
	IndexedAt int64
}

// Chunker splits one file into chunks. Implementations are pure and
// deterministic: the same FileRecord always produces the same chunks.
type Chunker interface {
	ChunkFile(ctx context.Context, file *FileRecord) ([]*Chunk, error)
}

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds the tree-sitter grammar and AST-chunking allow-list
// for one supported language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// NodeKinds is the allow-list of grammar node types that become chunks:
	// every node whose Type is in this set emits exactly one chunk; lines
	// outside any such node are not emitted by the AST strategy.
	NodeKinds []string
}
