package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the test away from a developer's real .gradekey.yaml.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	v := NewViper()
	v.Set("db-backend", BackendMemory)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 2, cfg.RegradeWorkers)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, "worst", cfg.OverflowPolicy)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("GRADEKEY_LISTEN_ADDR", ":9090")
	t.Setenv("GRADEKEY_DB_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/gradekey")
	t.Setenv("GRADEKEY_REGRADE_WORKERS", "5")
	t.Setenv("GRADEKEY_POLL_INTERVAL", "250ms")
	t.Setenv("GRADEKEY_OVERFLOW_POLICY", "best")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "postgres://localhost/gradekey", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.RegradeWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "best", cfg.OverflowPolicy)
}

func TestLoad_PrefixedURLWins(t *testing.T) {
	isolate(t)
	t.Setenv("DATABASE_URL", "postgres://legacy")
	t.Setenv("GRADEKEY_DATABASE_URL", "postgres://preferred")
	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "postgres://preferred", cfg.DatabaseURL)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	yaml := "db-backend: sqlite\nallowed-origins:\n  - https://school.example\nregrade-workers: 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(".", ".gradekey.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.DBBackend)
	assert.Equal(t, "gradekey.db", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://school.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 0, cfg.RegradeWorkers)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
		want string
	}{
		{"postgres without url", map[string]any{"db-backend": "postgres"}, "database-url not set"},
		{"mysql without url", map[string]any{"db-backend": "mysql"}, "database-url not set"},
		{"unknown backend", map[string]any{"db-backend": "oracle"}, "unknown db-backend"},
		{"unknown overflow", map[string]any{"db-backend": "memory", "overflow-policy": "clamp"}, "unknown overflow-policy"},
		{"negative workers", map[string]any{"db-backend": "memory", "regrade-workers": -1}, "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			v := NewViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_BrokenConfigFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".gradekey.yaml", []byte("listen-addr: [unterminated"), 0o600))
	_, err := Load(NewViper())
	assert.ErrorContains(t, err, "read config file")
}
