package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderStatic uses the dependency-free deterministic hash embedder.
	// It is the only provider this module ships: no local or remote model
	// server is required to run an end-to-end index/search cycle.
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder for the given provider.
//
// RAGCTL_EMBEDDER overrides provider selection; RAGCTL_EMBED_CACHE=false
// disables the query-embedding cache that wraps the result.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if envProvider := os.Getenv("RAGCTL_EMBEDDER"); envProvider != "" {
		provider = ParseProvider(envProvider)
	}

	var embedder Embedder
	switch provider {
	case ProviderStatic, "":
		embedder = NewStaticEmbedder768()
	default:
		return nil, fmt.Errorf("embed: unknown provider %q (valid: %s)", provider, strings.Join(ValidProviders(), ", "))
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}
	return embedder, nil
}

// isCacheDisabled reports whether the query-embedding cache is disabled via
// the environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("RAGCTL_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// NewDefaultEmbedder creates the module's default embedder: a cached static
// hash embedder, requiring no network access or external model.
func NewDefaultEmbedder(ctx context.Context) (Embedder, error) {
	return NewEmbedder(ctx, ProviderStatic, "")
}

// ParseProvider converts a string to a ProviderType, defaulting to static
// for anything unrecognized.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static", "":
		return ProviderStatic
	default:
		return ProviderStatic
	}
}

// String returns the string representation of the provider.
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{string(ProviderStatic)}
}

// IsValidProvider reports whether s names a valid provider.
func IsValidProvider(s string) bool {
	return strings.ToLower(s) == string(ProviderStatic)
}

// EmbedderInfo describes a constructed embedder.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo reports the provider, model, dimensions and availability of embedder.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	return EmbedderInfo{
		Provider:   ProviderStatic,
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}
}

// MustNewEmbedder creates an embedder and panics on failure. Use only in
// tests or initialization code where failure is fatal.
func MustNewEmbedder(ctx context.Context, provider ProviderType, model string) Embedder {
	embedder, err := NewEmbedder(ctx, provider, model)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
