package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Struct tag validation is
// stateless, so a single instance is safe for concurrent use.
var validate = validator.New()

// Validate checks the configuration for errors.
//
// Struct-level rules come from `validate` tags; cross-field rules that tags
// cannot express are checked explicitly below.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry: endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("telemetry: profiling endpoint is required when profiling is enabled")
	}

	if cfg.Storage.ChunkSize < 5*1024*1024 {
		return fmt.Errorf("storage: chunk_size must be at least 5Mi (S3 minimum part size)")
	}
	if cfg.Storage.MaxFileSize < cfg.Storage.ChunkSize {
		return fmt.Errorf("storage: max_file_size must be at least chunk_size")
	}

	if cfg.Index.ChunkOverlap >= cfg.Index.ChunkSizeDocs {
		return fmt.Errorf("index: chunk_overlap must be smaller than chunk_size_docs")
	}
	if cfg.Index.Workers < 1 {
		return fmt.Errorf("index: workers must be at least 1")
	}

	if cfg.Agent.RateLimitRequests < 1 {
		return fmt.Errorf("agent: rate_limit_requests must be at least 1")
	}
	if cfg.Agent.RateLimitWindow <= 0 {
		return fmt.Errorf("agent: rate_limit_window must be positive")
	}
	for i, p := range cfg.Agent.Policies {
		if p.LibraryID == "" {
			return fmt.Errorf("agent: policies[%d]: library_id is required", i)
		}
	}

	if cfg.Share.DefaultExpiryDays > cfg.Share.MaxExpiryDays {
		return fmt.Errorf("share: default_expiry_days (%d) exceeds max_expiry_days (%d)",
			cfg.Share.DefaultExpiryDays, cfg.Share.MaxExpiryDays)
	}

	if cfg.Trash.RetentionDays < 1 {
		return fmt.Errorf("trash: retention_days must be at least 1")
	}

	if cfg.Auth.VerifyToken {
		if cfg.Auth.URL == "" {
			return fmt.Errorf("auth: url is required when verify_token is enabled")
		}
		if cfg.Auth.Realm == "" {
			return fmt.Errorf("auth: realm is required when verify_token is enabled")
		}
	}

	return nil
}

// formatValidationError converts validator errors into a readable message
// naming the offending field and rule.
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, fieldErr := range validationErrors {
		return fmt.Errorf("invalid configuration: field %q failed %q validation (value: %v)",
			fieldErr.Namespace(), fieldErr.Tag(), fieldErr.Value())
	}

	return err
}
