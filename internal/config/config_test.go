package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/moments-pipeline/internal/lookup"
)

func TestValidate_DefaultConfig(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := Default()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"INFO", true},   // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Default()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown sink",
			mutate:  func(c *Config) { c.Output.Sinks = []string{"parquet"} },
			wantErr: "invalid sink: parquet",
		},
		{
			name:    "no sinks",
			mutate:  func(c *Config) { c.Output.Sinks = nil },
			wantErr: "at least one output sink",
		},
		{
			name:    "gcs without bucket",
			mutate:  func(c *Config) { c.Output.Sinks = []string{SinkJSON, SinkGCS} },
			wantErr: "gcs sink requires a bucket",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Pipeline.Workers = 0 },
			wantErr: "workers must be at least 1",
		},
		{
			name:    "inverted word bounds",
			mutate:  func(c *Config) { c.Validation.Passage.MaxWords = 5 },
			wantErr: "passages: word bounds invalid",
		},
		{
			name:    "quality threshold above one",
			mutate:  func(c *Config) { c.Validation.Interpretation.QualityThreshold = 1.5 },
			wantErr: "interpretations: quality threshold",
		},
		{
			name:    "profanity ratio out of range",
			mutate:  func(c *Config) { c.Issues.Profanity.RatioThreshold = -0.1 },
			wantErr: "profanity ratio threshold",
		},
		{
			name:    "zero similarity threshold",
			mutate:  func(c *Config) { c.Anomaly.Duplicate.SimilarityThreshold = 0 },
			wantErr: "similarity threshold",
		},
		{
			name:    "lookup without url",
			mutate:  func(c *Config) { c.Lookup.APIBaseURL = "" },
			wantErr: "api_base_url",
		},
		{
			name:    "log format",
			mutate:  func(c *Config) { c.Logger.Format = "xml" },
			wantErr: "invalid log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_LookupDisabledSkipsURL(t *testing.T) {
	cfg := Default()
	cfg.Lookup.Enabled = false
	cfg.Lookup.APIBaseURL = ""

	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, []string{SinkJSON}, cfg.Output.Sinks)
	assert.Equal(t, 0.85, cfg.Anomaly.Duplicate.SimilarityThreshold)
	assert.Equal(t, 10, cfg.Validation.Interpretation.MinWords)
	assert.Len(t, cfg.Books, 3)
	assert.True(t, filepath.IsAbs(cfg.Paths.OutputDir))
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	content := `
validation:
  interpretations:
    min_words: 5
    max_words: 300
    min_chars: 20
    max_chars: 2000
    quality_threshold: 0.4
anomaly_detection:
  duplicate:
    similarity_threshold: 0.9
gutenberg:
  timeout: 3s
books:
  - book_title: Dracula
    gutenberg_id: 345
    author: Bram Stoker
passage_title_mapping:
  "Frankenstein; Or, The Modern Prometheus": Frankenstein
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load([]string{"-config", path, "-env-file", filepath.Join(dir, "none.env")})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, 5, cfg.Validation.Interpretation.MinWords)
	assert.Equal(t, 0.4, cfg.Validation.Interpretation.QualityThreshold)
	// Untouched sections keep defaults.
	assert.Equal(t, 20, cfg.Validation.Passage.MinWords)
	assert.Equal(t, 0.9, cfg.Anomaly.Duplicate.SimilarityThreshold)
	assert.Equal(t, 2.5, cfg.Anomaly.Readability.ZScoreThreshold)
	assert.Equal(t, 3*time.Second, cfg.Lookup.Timeout)
	require.Len(t, cfg.Books, 1)
	assert.Equal(t, lookup.BookEntry{Title: "Dracula", GutenbergID: 345, Author: "Bram Stoker"}, cfg.Books[0])
	assert.Equal(t, "Frankenstein", cfg.PassageTitleMapping["Frankenstein; Or, The Modern Prometheus"])
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load([]string{"-config", "/nonexistent/pipeline.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("validation: [unclosed"), 0o644))

	_, err := Load([]string{"-config", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\npipeline:\n  workers: 2\n"), 0o644))

	// Env beats the file.
	t.Setenv("MOMENTS_LOG_LEVEL", "error")
	t.Setenv("MOMENTS_WORKERS", "6")

	cfg, err := Load([]string{"-config", path, "-env-file", filepath.Join(dir, "none.env")})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logger.Level)
	assert.Equal(t, 6, cfg.Pipeline.Workers)

	// Flags beat env.
	cfg, err = Load([]string{"-config", path, "-env-file", filepath.Join(dir, "none.env"), "-log-level", "debug", "-workers", "1"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
}

func TestLoad_InputDirSetsStandardFileNames(t *testing.T) {
	cfg, err := Load([]string{"-input-dir", "/data/raw", "-env-file", filepath.Join(t.TempDir(), "none.env")})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/data/raw", InterpretationsFile), cfg.Paths.Interpretations)
	assert.Equal(t, filepath.Join("/data/raw", PassagesFile), cfg.Paths.Passages)
	assert.Equal(t, filepath.Join("/data/raw", CharactersFile), cfg.Paths.Characters)
}

func TestLoad_SinkList(t *testing.T) {
	cfg, err := Load([]string{
		"-sinks", " json, sqlite ,badger",
		"-env-file", filepath.Join(t.TempDir(), "none.env"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{SinkJSON, SinkSQLite, SinkBadger}, cfg.Output.Sinks)
	assert.True(t, cfg.HasSink(SinkSQLite))
	assert.False(t, cfg.HasSink(SinkGCS))
}

func TestLoad_InvalidValues(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "none.env")

	_, err := Load([]string{"-workers", "many", "-env-file", envFile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid workers")

	_, err = Load([]string{"-lookup-timeout", "soon", "-env-file", envFile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid lookup-timeout")

	_, err = Load([]string{"-env", "qa", "-env-file", envFile})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup

	got, err := expandPath("~/moments")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, "moments"), got)

	got, err = expandPath("/absolute/path/to/data")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/path/to/data", got)

	got, err = expandPath("relative/path")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Contains(t, got, "relative/path")

	got, err = expandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetConfigValue_Precedence(t *testing.T) {
	// Test flag value takes priority.
	result := getConfigValue("flag-value", "ENV_KEY", "default-value")
	assert.Equal(t, "flag-value", result)

	// Test env var when flag is empty.
	t.Setenv("TEST_ENV_KEY", "env-value")

	result = getConfigValue("", "TEST_ENV_KEY", "default-value")
	assert.Equal(t, "env-value", result)

	// Test default when both are empty.
	result = getConfigValue("", "NONEXISTENT_KEY", "default-value")
	assert.Equal(t, "default-value", result)
}

func TestGetBoolConfigValue(t *testing.T) {
	got, err := getBoolConfigValue("", "MOMENTS_TEST_UNSET_BOOL", true)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = getBoolConfigValue("false", "MOMENTS_TEST_UNSET_BOOL", true)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = getBoolConfigValue("maybe", "MOMENTS_TEST_UNSET_BOOL", true)
	assert.Error(t, err)
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	// Create temp .env file.
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
MOMENTS_ENV=staging
MOMENTS_LOG_LEVEL=debug
MOMENTS_OUTPUT_DIR=/test/path
# Comment line
QUOTED_VALUE="some value"
SINGLE_QUOTED='another value'
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	// Clear any existing env vars; t.Setenv restores them afterwards.
	for _, k := range []string{"MOMENTS_ENV", "MOMENTS_LOG_LEVEL", "MOMENTS_OUTPUT_DIR", "QUOTED_VALUE", "SINGLE_QUOTED"} {
		t.Setenv(k, "")
	}

	// Load the file.
	err = loadEnvFile(envFile)
	require.NoError(t, err)

	// Verify values were loaded.
	assert.Equal(t, "staging", os.Getenv("MOMENTS_ENV"))
	assert.Equal(t, "debug", os.Getenv("MOMENTS_LOG_LEVEL"))
	assert.Equal(t, "/test/path", os.Getenv("MOMENTS_OUTPUT_DIR"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
	assert.Equal(t, "another value", os.Getenv("SINGLE_QUOTED"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	// Create temp .env file with invalid format.
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
ANOTHER_VALID=value
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)
	t.Setenv("VALID_KEY", "")

	// Should return error.
	err = loadEnvFile(envFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	err := loadEnvFile("/nonexistent/file/.env")
	assert.Error(t, err)
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	// Set env var first.
	t.Setenv("TEST_VAR", "original-value")

	// Create temp .env file that tries to override it.
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `TEST_VAR=new-value`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	// Load the file.
	err = loadEnvFile(envFile)
	require.NoError(t, err)

	// Original value should be preserved.
	assert.Equal(t, "original-value", os.Getenv("TEST_VAR"))
}

func TestLoadEnvFile_EmptyLinesAndWhitespace(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `
KEY1=value1


# Comment

  KEY_WITH_SPACES  =  value with spaces
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	t.Setenv("KEY1", "")
	t.Setenv("KEY_WITH_SPACES", "")

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "value1", os.Getenv("KEY1"))
	// Whitespace should be trimmed.
	assert.Equal(t, "value with spaces", os.Getenv("KEY_WITH_SPACES"))
}

func TestLoad_EnvFileFeedsEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MOMENTS_SINKS=json,sqlite\n"), 0o644))
	t.Setenv("MOMENTS_SINKS", "")

	cfg, err := Load([]string{"-env-file", envFile})
	require.NoError(t, err)

	assert.Equal(t, []string{SinkJSON, SinkSQLite}, cfg.Output.Sinks)
}
