package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".sipgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Empty(t, cfg.Rules.Package)
	assert.Equal(t, config.DefaultOutputDir, cfg.Output.Dir)
	assert.Equal(t, config.DefaultJobs, cfg.Generate.Jobs)
	assert.Equal(t, config.DefaultSelect, cfg.Generate.Select)
	assert.Empty(t, cfg.Generate.Omit)
	assert.False(t, cfg.Generate.TraceDiscards)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, int64(config.DefaultCacheMaxBytes), cfg.Cache.MaxBytes)
	assert.Equal(t, config.DefaultLogLevel, cfg.Log.Level)
	assert.InDelta(t, config.DefaultSampleRatio, cfg.Observability.SampleRatio, 0.001)
	assert.ErrorIs(t, cfg.RequireRules(), config.ErrMissingRulesPackage)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `rules:
  package: /src/pykf5/rules
output:
  dir: /tmp/sip
generate:
  jobs: 4
  select: "KCodecs/.*"
  omit: "private"
  trace_discards: true
  dump_items: true
cache:
  enabled: false
  dir: /tmp/cache
  max_bytes: 1024
log:
  level: debug
  json: true
observability:
  otlp_endpoint: localhost:4317
  otlp_insecure: true
  sample_ratio: 0.25
  prometheus_addr: ":9090"
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.RequireRules())

	assert.Equal(t, "/src/pykf5/rules", cfg.Rules.Package)
	assert.Equal(t, "/tmp/sip", cfg.Output.Dir)
	assert.Equal(t, 4, cfg.Generate.Jobs)
	assert.Equal(t, "KCodecs/.*", cfg.Generate.Select)
	assert.Equal(t, "private", cfg.Generate.Omit)
	assert.True(t, cfg.Generate.TraceDiscards)
	assert.True(t, cfg.Generate.DumpItems)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/cache", cfg.Cache.Dir)
	assert.Equal(t, int64(1024), cfg.Cache.MaxBytes)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "localhost:4317", cfg.Observability.OTLPEndpoint)
	assert.True(t, cfg.Observability.OTLPInsecure)
	assert.InDelta(t, 0.25, cfg.Observability.SampleRatio, 0.001)
	assert.Equal(t, ":9090", cfg.Observability.PrometheusAddr)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"zero jobs", "generate:\n  jobs: 0\n", config.ErrInvalidJobs},
		{"negative jobs", "generate:\n  jobs: -3\n", config.ErrInvalidJobs},
		{"log level", "log:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"sample ratio", "observability:\n  sample_ratio: 1.5\n", config.ErrInvalidSampleRatio},
		{"cache size", "cache:\n  max_bytes: -1\n", config.ErrInvalidCacheSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "rules: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("SIPGEN_OUTPUT_DIR", "/env/sip")
	t.Setenv("SIPGEN_GENERATE_JOBS", "2")

	cfg, err := config.LoadConfig(writeConfig(t, "output:\n  dir: /file/sip\n"))
	require.NoError(t, err)

	assert.Equal(t, "/env/sip", cfg.Output.Dir)
	assert.Equal(t, 2, cfg.Generate.Jobs)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SIPGEN_TEST_DOTENV=from-file\nSIPGEN_TEST_KEEP=from-file\n"), 0o600))

	t.Setenv("SIPGEN_TEST_KEEP", "from-env")
	t.Setenv("SIPGEN_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("SIPGEN_TEST_DOTENV"))

	require.NoError(t, config.LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("SIPGEN_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("SIPGEN_TEST_KEEP"))

	require.NoError(t, config.LoadDotEnv(filepath.Join(dir, "missing.env")))
}
