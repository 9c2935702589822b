package ai

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// StaticConfig is a ConfigProvider that always returns the same values.
// Useful for tests and single-tenant deployments; swap in a live provider
// when configuration must change without a restart.
type StaticConfig struct {
	GenerationConfig
}

// Config implements ConfigProvider.
func (s StaticConfig) Config(_ context.Context) GenerationConfig {
	return s.GenerationConfig
}

// FileReferenceDoc serves a reference document from a file on disk, re-read
// on every call so edits take effect without a restart. A missing or empty
// file yields no block; read failures are logged once.
type FileReferenceDoc struct {
	Path     string
	warnOnce sync.Once
}

// ReferenceDoc implements ReferenceDocProvider.
func (f *FileReferenceDoc) ReferenceDoc(_ context.Context) string {
	if f.Path == "" {
		return ""
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		f.warnOnce.Do(func() {
			slog.Warn("reference document unavailable", "path", f.Path, "error", err)
		})
		return ""
	}
	return string(raw)
}

// NoReferenceDoc is a ReferenceDocProvider with no document.
type NoReferenceDoc struct{}

// ReferenceDoc implements ReferenceDocProvider.
func (NoReferenceDoc) ReferenceDoc(_ context.Context) string { return "" }

var (
	_ ConfigProvider       = StaticConfig{}
	_ ReferenceDocProvider = (*FileReferenceDoc)(nil)
	_ ReferenceDocProvider = NoReferenceDoc{}
)
