package config

import (
	"strings"
	"time"

	"github.com/shelfd/shelfd/internal/bytesize"
	"github.com/shelfd/shelfd/pkg/store/metadata"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	applyDatabaseDefaults(&cfg.Database)
	applyStorageDefaults(&cfg.Storage)
	applyCacheDefaults(&cfg.Cache)
	applyIndexDefaults(&cfg.Index)
	applyAgentDefaults(&cfg.Agent)
	applyShareDefaults(&cfg.Share)
	applyTrashDefaults(&cfg.Trash)
	applyAuthDefaults(&cfg.Auth)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyServerDefaults sets HTTP API server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyDatabaseDefaults sets metadata database defaults.
func applyDatabaseDefaults(cfg *metadata.Config) {
	cfg.ApplyDefaults()
}

// applyStorageDefaults sets object store defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	// Path-style addressing is required by MinIO and most self-hosted stores
	if cfg.Endpoint != "" {
		cfg.ForcePathStyle = true
	}
	if cfg.BucketPrefix == "" {
		cfg.BucketPrefix = "shelfd"
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 8 * bytesize.MiB
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = 5 * bytesize.GiB
	}
	if cfg.PresignedURLExpiry == 0 {
		cfg.PresignedURLExpiry = 15 * time.Minute
	}
	if cfg.UploadExpiry == 0 {
		cfg.UploadExpiry = 24 * time.Hour
	}
}

// applyCacheDefaults sets metadata cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.TTL == 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "shelfd"
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 10000
	}
}

// applyIndexDefaults sets indexing pipeline defaults.
func applyIndexDefaults(cfg *IndexConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 256
	}
	if cfg.ChunkSizeCode == 0 {
		cfg.ChunkSizeCode = 1500
	}
	if cfg.ChunkSizeDocs == 0 {
		cfg.ChunkSizeDocs = 1000
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.MaxChunksPerFile == 0 {
		cfg.MaxChunksPerFile = 50
	}
	if cfg.LowConfidenceThreshold == 0 {
		cfg.LowConfidenceThreshold = 0.3
	}

	if cfg.Embedding.Endpoint == "" {
		cfg.Embedding.Endpoint = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}

	// Convert endpoint has no default; empty disables binary conversion
	if cfg.Convert.Timeout == 0 {
		cfg.Convert.Timeout = 2 * time.Minute
	}
}

// applyAgentDefaults sets agent tool surface defaults.
func applyAgentDefaults(cfg *AgentConfig) {
	if cfg.RateLimitRequests == 0 {
		cfg.RateLimitRequests = 100
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = 60 * time.Second
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	// DefaultWriteEnabled defaults to false (agents read-only unless a
	// library opts in)
}

// applyShareDefaults sets share link policy defaults.
func applyShareDefaults(cfg *ShareConfig) {
	if cfg.MaxExpiryDays == 0 {
		cfg.MaxExpiryDays = 90
	}
	if cfg.DefaultExpiryDays == 0 {
		cfg.DefaultExpiryDays = 30
	}
	if cfg.ViewTokenTTL == 0 {
		cfg.ViewTokenTTL = time.Hour
	}
	if cfg.DownloadTokenTTL == 0 {
		cfg.DownloadTokenTTL = 24 * time.Hour
	}
	// TokenSecret has no default; a random secret is generated at startup
	// when empty
}

// applyTrashDefaults sets trash retention defaults.
func applyTrashDefaults(cfg *TrashConfig) {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}
}

// applyAuthDefaults sets OIDC verification defaults.
// VerifyToken stays false unless configured; production configs must
// enable it explicitly.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.Realm == "" && cfg.URL != "" {
		cfg.Realm = "shelfd"
	}
	if cfg.Audience == "" {
		cfg.Audience = cfg.ClientID
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Database: metadata.Config{
			Type: metadata.DatabaseTypeSQLite, // Default to SQLite for single-node
		},
		Index: IndexConfig{
			Enabled: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
