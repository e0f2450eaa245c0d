package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRegistry manages supported languages and their AST-chunking
// configurations.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a registry with every supported language's
// allow-list table registered.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerGo()
	r.registerPython()
	r.registerJavaScript()
	r.registerTypeScript()
	r.registerRust()
	r.registerJava()
	r.registerSwift()
	r.registerC()
	r.registerCPP()
	r.registerCSharp()
	r.registerRuby()
	r.registerPHP()

	return r
}

// GetByExtension returns the language configuration for a file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	langName, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	config, ok := r.configs[langName]
	return config, ok
}

// GetByName returns the language configuration by name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the tree-sitter grammar for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns every registered file extension.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *LanguageRegistry) registerLanguage(config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	r.tsLanguages[config.Name] = tsLang
	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

// The node-kind lists below are each grounded on the per-language
// allow-list categories (function, class, method, ...), translated into the
// concrete node type names the corresponding tree-sitter grammar emits for
// that category.

func (r *LanguageRegistry) registerGo() {
	r.registerLanguage(&LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		NodeKinds:  []string{"function_declaration", "method_declaration", "type_declaration"},
	}, golang.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	r.registerLanguage(&LanguageConfig{
		Name:       "python",
		Extensions: []string{".py"},
		NodeKinds:  []string{"function_definition", "class_definition", "decorated_definition"},
	}, python.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	jsKinds := []string{"function_declaration", "function_expression", "arrow_function", "method_definition", "class_declaration"}
	r.registerLanguage(&LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs"},
		NodeKinds:  jsKinds,
	}, javascript.GetLanguage())
	r.registerLanguage(&LanguageConfig{
		Name:       "jsx",
		Extensions: []string{".jsx"},
		NodeKinds:  jsKinds,
	}, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsKinds := []string{"function_declaration", "function_expression", "arrow_function", "method_definition", "class_declaration"}
	r.registerLanguage(&LanguageConfig{
		Name:       "typescript",
		Extensions: []string{".ts"},
		NodeKinds:  tsKinds,
	}, typescript.GetLanguage())
	r.registerLanguage(&LanguageConfig{
		Name:       "tsx",
		Extensions: []string{".tsx"},
		NodeKinds:  tsKinds,
	}, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerRust() {
	r.registerLanguage(&LanguageConfig{
		Name:       "rust",
		Extensions: []string{".rs"},
		NodeKinds:  []string{"function_item", "impl_item", "trait_item", "struct_item", "enum_item", "mod_item"},
	}, rust.GetLanguage())
}

func (r *LanguageRegistry) registerJava() {
	r.registerLanguage(&LanguageConfig{
		Name:       "java",
		Extensions: []string{".java"},
		NodeKinds:  []string{"method_declaration", "class_declaration", "interface_declaration", "constructor_declaration"},
	}, java.GetLanguage())
}

// Node kinds for Swift, C, C++, C#, Ruby and PHP below are translated from
// the per-language allow-list categories into the concrete node type
// names each grammar's published grammar.js/node-types.json documents;
// none of the retrieved example repos parse these languages, so these are
// best-effort rather than pack-grounded.
func (r *LanguageRegistry) registerSwift() {
	r.registerLanguage(&LanguageConfig{
		Name:       "swift",
		Extensions: []string{".swift"},
		NodeKinds: []string{
			"function_declaration", "class_declaration", "protocol_declaration",
			"struct_declaration", "enum_declaration", "extension_declaration",
			"deinit_declaration", "init_declaration", "subscript_declaration",
		},
	}, swift.GetLanguage())
}

func (r *LanguageRegistry) registerC() {
	r.registerLanguage(&LanguageConfig{
		Name:       "c",
		Extensions: []string{".c", ".h"},
		NodeKinds:  []string{"function_definition", "struct_specifier", "enum_specifier", "union_specifier", "type_definition"},
	}, c.GetLanguage())
}

func (r *LanguageRegistry) registerCPP() {
	r.registerLanguage(&LanguageConfig{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"},
		NodeKinds: []string{
			"function_definition", "class_specifier", "struct_specifier",
			"enum_specifier", "union_specifier", "namespace_definition", "template_declaration",
		},
	}, cpp.GetLanguage())
}

func (r *LanguageRegistry) registerCSharp() {
	r.registerLanguage(&LanguageConfig{
		Name:       "csharp",
		Extensions: []string{".cs"},
		NodeKinds: []string{
			"method_declaration", "class_declaration", "struct_declaration",
			"interface_declaration", "enum_declaration", "namespace_declaration",
			"constructor_declaration", "property_declaration",
		},
	}, csharp.GetLanguage())
}

func (r *LanguageRegistry) registerRuby() {
	r.registerLanguage(&LanguageConfig{
		Name:       "ruby",
		Extensions: []string{".rb"},
		NodeKinds:  []string{"method", "singleton_method", "class", "singleton_class", "module"},
	}, ruby.GetLanguage())
}

func (r *LanguageRegistry) registerPHP() {
	r.registerLanguage(&LanguageConfig{
		Name:       "php",
		Extensions: []string{".php"},
		NodeKinds: []string{
			"function_definition", "method_declaration", "class_declaration",
			"interface_declaration", "trait_declaration", "namespace_definition",
		},
	}, php.GetLanguage())
}

// defaultRegistry is the process-wide language registry.
var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the global language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
