package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/filterkit/logger"
)

type testAdmin struct {
	Addr        string        `mapstructure:"addr"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Admin         testAdmin `mapstructure:"admin"`
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
		if cfg.Logging.ServiceName != "svc" {
			t.Errorf("expected logging service name 'svc', got %q", cfg.Logging.ServiceName)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "svc", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging in production, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", ServiceConfig{Name: "svc", Environment: "development"}, false, ""},
		{"valid production", ServiceConfig{Name: "svc", Environment: "production"}, false, ""},
		{"missing name", ServiceConfig{Environment: "production"}, true, "name: is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "invalid"}, true, "environment: must be one of"},
		{"invalid log level", ServiceConfig{Name: "svc", Environment: "staging", Logging: logger.Config{Level: "loud"}}, true, "config.logging"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: filterkit
environment: staging
logging:
  level: warn
admin:
  addr: "127.0.0.1:9000"
  read_timeout: 3s
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	if err := LoadConfig("filterkit", &cfg, WithConfigFile(configPath), WithEnvPrefix("FKTEST_YAML")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "filterkit" {
		t.Errorf("expected name 'filterkit', got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected logging level 'warn', got %q", cfg.Logging.Level)
	}
	if cfg.Admin.Addr != "127.0.0.1:9000" {
		t.Errorf("expected admin addr, got %q", cfg.Admin.Addr)
	}
	if cfg.Admin.ReadTimeout != 3*time.Second {
		t.Errorf("expected read timeout 3s, got %v", cfg.Admin.ReadTimeout)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("admin:\n  addr: \"127.0.0.1:9000\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("FKTEST_ENV_ADMIN_ADDR", "0.0.0.0:7000")
	t.Setenv("FKTEST_ENV_ADMIN_READ_TIMEOUT", "250ms")

	var cfg testConfig
	err := LoadConfig("filterkit", &cfg,
		WithConfigFile(configPath),
		WithEnvPrefix("FKTEST_ENV"),
		WithDefaults(map[string]any{"name": "from-default", "admin.addr": "unused:1"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "from-default" {
		t.Errorf("expected default name, got %q", cfg.Name)
	}
	if cfg.Admin.Addr != "0.0.0.0:7000" {
		t.Errorf("expected env to override file, got %q", cfg.Admin.Addr)
	}
	if cfg.Admin.ReadTimeout != 250*time.Millisecond {
		t.Errorf("expected read timeout from env, got %v", cfg.Admin.ReadTimeout)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("FKTEST_DOTENV_NAME=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("FKTEST_DOTENV_NAME") })

	var cfg testConfig
	if err := LoadConfig("filterkit", &cfg, WithEnvFile(envPath), WithEnvPrefix("FKTEST_DOTENV"), WithFileSystem(&RealFileSystem{})); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "from-dotenv" {
		t.Errorf("expected name from .env, got %q", cfg.Name)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	// With no config file found, LoadConfig should still succeed (just empty config)
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigBrokenFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(configPath, []byte("admin: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg testConfig
	if err := LoadConfig("filterkit", &cfg, WithConfigFile(configPath)); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/filterkit/config.yml": true,
		"./.env":                     true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("filterkit", LoaderConfig{})
	if files.ConfigFile != "./cmd/filterkit/config.yml" {
		t.Errorf("expected config file at ./cmd/filterkit/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected env file at ./.env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles("filterkit", LoaderConfig{ConfigFile: "/etc/fk.yml"})
	if explicit.ConfigFile != "/etc/fk.yml" {
		t.Errorf("expected explicit config file, got %q", explicit.ConfigFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("ADMIN_READ_TIMEOUT")
	want := []string{"admin_read_timeout", "admin.read.timeout", "admin.read_timeout", "admin_read.timeout"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := envKeyVariants("NAME"); !reflect.DeepEqual(got, []string{"name"}) {
		t.Errorf("expected [name], got %v", got)
	}
}

func TestEnvPrefix(t *testing.T) {
	if got := envPrefix("filter-kit"); got != "FILTER_KIT" {
		t.Errorf("expected FILTER_KIT, got %q", got)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	WithFileSystem(&mockFS{})(&lc)
	WithConfigFile("/path/to/config.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	WithEnvPrefix("FK")(&lc)

	if lc.FileSystem == nil {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/path/to/config.yml" {
		t.Errorf("expected config file path, got %q", lc.ConfigFile)
	}
	if lc.EnvFile != "/path/to/.env" {
		t.Errorf("expected env file path, got %q", lc.EnvFile)
	}
	if lc.EnvPrefix != "FK" {
		t.Errorf("expected env prefix, got %q", lc.EnvPrefix)
	}
}
