package metadata

import (
	"strings"
	"testing"
)

func TestApplyDefaults_SQLitePath(t *testing.T) {
	cfg := &Config{Type: DatabaseTypeSQLite}
	cfg.ApplyDefaults()

	if cfg.SQLite.Path == "" {
		t.Error("expected default sqlite path to be set")
	}
	if !strings.Contains(cfg.SQLite.Path, "shelfd") {
		t.Errorf("expected path under shelfd dir, got %q", cfg.SQLite.Path)
	}
}

func TestApplyDefaults_Postgres(t *testing.T) {
	cfg := &Config{Type: DatabaseTypePostgres}
	cfg.ApplyDefaults()

	if cfg.Postgres.Port != 5432 {
		t.Errorf("expected default port 5432, got %d", cfg.Postgres.Port)
	}
	if cfg.Postgres.SSLMode != "disable" {
		t.Errorf("expected default ssl_mode disable, got %q", cfg.Postgres.SSLMode)
	}
	if cfg.Postgres.MaxOpenConns != 25 || cfg.Postgres.MaxIdleConns != 5 {
		t.Errorf("expected default pool 25/5, got %d/%d", cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns)
	}
}

func TestApplyDefaults_PreservesExplicitPath(t *testing.T) {
	cfg := &Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: "/custom/path.db"},
	}
	cfg.ApplyDefaults()

	if cfg.SQLite.Path != "/custom/path.db" {
		t.Errorf("expected explicit path preserved, got %q", cfg.SQLite.Path)
	}
}

func TestValidate(t *testing.T) {
	t.Run("sqlite requires path", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypeSQLite}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing sqlite path")
		}
	})

	t.Run("postgres requires host database user", func(t *testing.T) {
		cfg := &Config{Type: DatabaseTypePostgres}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing postgres host")
		}

		cfg.Postgres.Host = "localhost"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing postgres database")
		}

		cfg.Postgres.Database = "shelfd"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing postgres user")
		}

		cfg.Postgres.User = "shelfd"
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid postgres config, got %v", err)
		}
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		cfg := &Config{Type: "mysql"}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.example.com",
		Port:     5432,
		Database: "shelfd",
		User:     "app",
		Password: "secret",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	for _, want := range []string{"host=db.example.com", "port=5432", "dbname=shelfd", "sslmode=require"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("expected DSN to contain %q, got %q", want, dsn)
		}
	}
}
