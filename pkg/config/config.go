package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/shelfd/shelfd/internal/bytesize"
	"github.com/shelfd/shelfd/pkg/store/metadata"
)

// Config represents the shelfd configuration.
//
// This structure captures the static configuration of the shelfd server:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - HTTP server settings (ports, timeouts)
//   - Database connection (library metadata persistence)
//   - Object storage connection (S3-compatible blob storage)
//   - Indexing pipeline settings (chunking, embedding, vector store)
//   - Agent tool surface settings (rate limits, write gating)
//   - Share link and trash retention policy
//
// Dynamic state (libraries, directories, files, shares) is managed through
// the REST API and stored in the metadata database.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (SHELFD_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Server contains the public HTTP API server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Database configures the metadata database (SQLite or PostgreSQL).
	// This is the persistent store for libraries, directories, files,
	// versions, shares, notifications, and the audit log.
	Database metadata.Config `mapstructure:"database" yaml:"database"`

	// Storage configures the S3-compatible object store holding file blobs.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Cache configures the in-process read cache for metadata lookups.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Index configures the semantic indexing pipeline (chunking, embedding,
	// vector store).
	Index IndexConfig `mapstructure:"index" yaml:"index"`

	// Agent configures the AI agent tool surface (rate limits, write gating,
	// SSE transport).
	Agent AgentConfig `mapstructure:"agent" yaml:"agent"`

	// Share configures share link policy (expiry bounds, access tokens).
	Share ShareConfig `mapstructure:"share" yaml:"share"`

	// Trash configures soft-delete retention and the background sweeper.
	Trash TrashConfig `mapstructure:"trash" yaml:"trash"`

	// Auth configures OIDC token verification (Keycloak).
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// ServerConfig configures the public HTTP API server.
type ServerConfig struct {
	// Host is the listen address
	// Default: "0.0.0.0"
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the HTTP listen port
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading a request.
	// Uploads stream through the multipart state machine, so this bounds
	// a single part, not a whole file.
	// Default: 60s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// SSE streams are exempt (the handler hijacks the deadline).
	// Default: 60s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle connection timeout.
	// Default: 120s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout is the per-request middleware timeout.
	// Default: 60s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics endpoint is exposed.
type MetricsConfig struct {
	// Enabled controls whether the metrics HTTP server is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StorageConfig configures the S3-compatible object store.
type StorageConfig struct {
	// Endpoint is the S3 endpoint URL. Empty uses the AWS default resolver;
	// set for MinIO or other S3-compatible stores.
	// Example: http://localhost:9000
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Region is the S3 region
	// Default: "us-east-1"
	Region string `mapstructure:"region" yaml:"region"`

	// AccessKeyID and SecretAccessKey are static credentials. Empty falls
	// back to the ambient AWS credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// ForcePathStyle forces path-style bucket addressing (required by MinIO)
	// Default: true when Endpoint is set
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// BucketPrefix is prepended to derived library bucket names
	// Default: "shelfd"
	BucketPrefix string `mapstructure:"bucket_prefix" yaml:"bucket_prefix"`

	// ChunkSize is the multipart upload part size.
	// Supports human-readable formats: "8Mi", "16MB"
	// Default: 8Mi (S3 minimum part size is 5Mi)
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`

	// MaxFileSize is the global per-file size ceiling. Libraries may set a
	// lower limit, never a higher one.
	// Default: 5Gi
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size"`

	// PresignedURLExpiry is the validity window for presigned download URLs
	// Default: 15m
	PresignedURLExpiry time.Duration `mapstructure:"presigned_url_expiry" yaml:"presigned_url_expiry"`

	// UploadExpiry is how long an initiated multipart upload may stay idle
	// before the sweeper aborts it
	// Default: 24h
	UploadExpiry time.Duration `mapstructure:"upload_expiry" yaml:"upload_expiry"`
}

// CacheConfig configures the in-process metadata read cache.
type CacheConfig struct {
	// TTL is how long cached entries stay valid
	// Default: 5m
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// Prefix namespaces cache keys, useful when several instances share
	// diagnostics output
	// Default: "shelfd"
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// MaxEntries bounds the cache size; oldest entries are evicted first
	// Default: 10000
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// IndexConfig configures the semantic indexing pipeline.
type IndexConfig struct {
	// Enabled controls whether files are indexed on upload
	// Default: true
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// DataPath is the directory where the embedded vector store persists
	// collections. Empty keeps collections in memory only.
	DataPath string `mapstructure:"data_path" yaml:"data_path"`

	// Workers is the number of concurrent indexing workers
	// Default: 2
	Workers int `mapstructure:"workers" yaml:"workers"`

	// QueueSize is the indexing job queue capacity. Enqueue blocks when full.
	// Default: 256
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	// ChunkSizeCode is the target chunk size in characters for source code
	// Default: 1500
	ChunkSizeCode int `mapstructure:"chunk_size_code" yaml:"chunk_size_code"`

	// ChunkSizeDocs is the target chunk size in characters for prose
	// Default: 1000
	ChunkSizeDocs int `mapstructure:"chunk_size_docs" yaml:"chunk_size_docs"`

	// ChunkOverlap is the character overlap between consecutive fixed chunks
	// Default: 200
	ChunkOverlap int `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`

	// MaxChunksPerFile caps how many chunks a single file may produce
	// Default: 50
	MaxChunksPerFile int `mapstructure:"max_chunks_per_file" yaml:"max_chunks_per_file"`

	// LowConfidenceThreshold is the minimum similarity score a search hit
	// needs to be returned (0.0 to 1.0)
	// Default: 0.3
	LowConfidenceThreshold float64 `mapstructure:"low_confidence_threshold" validate:"omitempty,gte=0,lte=1" yaml:"low_confidence_threshold"`

	// Embedding configures the embedding model endpoint
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`

	// Convert configures the external document conversion service used to
	// extract text from binary formats (PDF, DOCX). Empty endpoint disables
	// conversion; binary files are then skipped by the indexer.
	Convert ConvertConfig `mapstructure:"convert" yaml:"convert"`
}

// EmbeddingConfig configures the embedding model client.
type EmbeddingConfig struct {
	// Endpoint is the Ollama-compatible embedding server URL
	// Default: "http://localhost:11434"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Model is the embedding model name
	// Default: "nomic-embed-text"
	Model string `mapstructure:"model" yaml:"model"`

	// Timeout is the per-request timeout
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ConvertConfig configures the document conversion service client.
type ConvertConfig struct {
	// Endpoint is the conversion service URL; empty disables conversion
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Timeout is the per-document conversion timeout
	// Default: 2m
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AgentConfig configures the AI agent tool surface.
type AgentConfig struct {
	// RateLimitRequests is the number of tool calls allowed per window
	// Default: 100
	RateLimitRequests int `mapstructure:"rate_limit_requests" yaml:"rate_limit_requests"`

	// RateLimitWindow is the sliding rate limit window
	// Default: 60s
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window" yaml:"rate_limit_window"`

	// DefaultWriteEnabled is the write-tool default for libraries that have
	// not set an explicit per-library policy
	// Default: false (agents read-only unless a library opts in)
	DefaultWriteEnabled bool `mapstructure:"default_write_enabled" yaml:"default_write_enabled"`

	// HeartbeatInterval is the SSE keep-alive comment interval
	// Default: 30s
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`

	// Policies are per-library overrides of the default agent policy,
	// applied to the policy engine at startup
	Policies []AgentPolicyConfig `mapstructure:"policies" yaml:"policies"`
}

// AgentPolicyConfig is one per-library agent policy entry.
type AgentPolicyConfig struct {
	// LibraryID names the library the policy applies to
	LibraryID string `mapstructure:"library_id" yaml:"library_id"`

	// ReadEnabled gates the read tools for this library
	ReadEnabled bool `mapstructure:"read_enabled" yaml:"read_enabled"`

	// WriteEnabled gates the write tools for this library
	WriteEnabled bool `mapstructure:"write_enabled" yaml:"write_enabled"`

	// AllowedAgents restricts the policy to named agent ids; empty
	// admits every agent
	AllowedAgents []string `mapstructure:"allowed_agents" yaml:"allowed_agents"`
}

// ShareConfig configures share link policy.
type ShareConfig struct {
	// MaxExpiryDays is the upper bound on share link lifetime. Requests
	// asking for more are clamped.
	// Default: 90
	MaxExpiryDays int `mapstructure:"max_expiry_days" yaml:"max_expiry_days"`

	// DefaultExpiryDays is applied when a share is created without an
	// explicit expiry. Zero means links do not expire by default.
	// Default: 30
	DefaultExpiryDays int `mapstructure:"default_expiry_days" yaml:"default_expiry_days"`

	// TokenSecret signs short-lived share access tokens (JWT). Required in
	// production; a random secret is generated at startup when empty, which
	// invalidates outstanding access tokens on restart.
	TokenSecret string `mapstructure:"token_secret" yaml:"token_secret,omitempty"`

	// ViewTokenTTL is the lifetime of access tokens for view shares
	// Default: 1h
	ViewTokenTTL time.Duration `mapstructure:"view_token_ttl" yaml:"view_token_ttl"`

	// DownloadTokenTTL is the lifetime of access tokens for download and
	// edit shares
	// Default: 24h
	DownloadTokenTTL time.Duration `mapstructure:"download_token_ttl" yaml:"download_token_ttl"`
}

// TrashConfig configures soft-delete retention.
type TrashConfig struct {
	// RetentionDays is how long trashed items are restorable before the
	// sweeper purges them permanently
	// Default: 30
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`

	// SweepInterval is how often the background sweeper runs
	// Default: 1h
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// AuthConfig configures OIDC bearer token verification.
type AuthConfig struct {
	// VerifyToken controls whether bearer tokens are cryptographically
	// verified against the issuer's JWKS.
	// Default: false (local development); production configs must enable it
	// and set URL and Realm.
	VerifyToken bool `mapstructure:"verify_token" yaml:"verify_token"`

	// URL is the Keycloak base URL
	// Example: https://auth.example.com
	URL string `mapstructure:"url" yaml:"url"`

	// Realm is the Keycloak realm name
	Realm string `mapstructure:"realm" yaml:"realm"`

	// ClientID is the expected OAuth2 client identifier
	ClientID string `mapstructure:"client_id" yaml:"client_id"`

	// Audience is the expected token audience; empty falls back to ClientID
	Audience string `mapstructure:"audience" yaml:"audience"`
}

// IssuerURL returns the OIDC issuer URL derived from the Keycloak base URL
// and realm.
func (c *AuthConfig) IssuerURL() string {
	return strings.TrimSuffix(c.URL, "/") + "/realms/" + c.Realm
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SHELFD_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	// Determine config path
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  shelfd init\n\n"+
				"Or specify a custom config file:\n"+
				"  shelfd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  shelfd init --config %s",
				configPath, configPath)
		}
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with restricted permissions; the file may contain credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the SHELFD_ prefix and underscores
	// Example: SHELFD_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("SHELFD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/shelfd/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable, defaults apply
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use
// human-readable sizes like "1Gi", "500Mi", "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "shelfd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "shelfd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
