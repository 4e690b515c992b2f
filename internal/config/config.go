package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds application configuration.
type Config struct {
	// QuotaBytes bounds the global stored-bytes counter: every write
	// that grows stored bytes (inline memory content, internal blob
	// commits) is checked against it before committing.
	QuotaBytes int64 `json:"quota_bytes"`

	// MaxInlineAssetBytes is the per-asset ceiling for inline storage.
	// Larger content goes through the upload pipeline instead.
	MaxInlineAssetBytes int64 `json:"max_inline_asset_bytes"`

	// MaxUploadSessions is the per-caller, per-capsule ceiling on
	// concurrently active upload sessions. A fixed back-pressure
	// ceiling, not auto-tuned.
	MaxUploadSessions int `json:"max_upload_sessions"`

	// MaxAccessDepth bounds MemoryAccess nesting, checked at write time.
	MaxAccessDepth int `json:"max_access_depth"`

	// MaxChunkCount is the ceiling on expected_chunk_count at upload begin.
	MaxChunkCount int `json:"max_chunk_count"`

	// MaxChunkBytes is the per-chunk size ceiling.
	MaxChunkBytes int64 `json:"max_chunk_bytes"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is
	// locked" errors). 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		QuotaBytes:          1 << 30, // 1 GiB
		MaxInlineAssetBytes: 2 << 20, // 2 MiB
		MaxUploadSessions:   4,
		MaxAccessDepth:      8,
		MaxChunkCount:       1024,
		MaxChunkBytes:       2 << 20, // 2 MiB
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.vessel.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.QuotaBytes = overlay.QuotaBytes
	if result.QuotaBytes == 0 {
		result.QuotaBytes = base.QuotaBytes
	}

	result.MaxInlineAssetBytes = overlay.MaxInlineAssetBytes
	if result.MaxInlineAssetBytes == 0 {
		result.MaxInlineAssetBytes = base.MaxInlineAssetBytes
	}

	result.MaxUploadSessions = overlay.MaxUploadSessions
	if result.MaxUploadSessions == 0 {
		result.MaxUploadSessions = base.MaxUploadSessions
	}

	result.MaxAccessDepth = overlay.MaxAccessDepth
	if result.MaxAccessDepth == 0 {
		result.MaxAccessDepth = base.MaxAccessDepth
	}

	result.MaxChunkCount = overlay.MaxChunkCount
	if result.MaxChunkCount == 0 {
		result.MaxChunkCount = base.MaxChunkCount
	}

	result.MaxChunkBytes = overlay.MaxChunkBytes
	if result.MaxChunkBytes == 0 {
		result.MaxChunkBytes = base.MaxChunkBytes
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
