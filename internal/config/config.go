// Package config provides pipeline configuration with support for a YAML rules file, environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/listenupapp/moments-pipeline/internal/anomaly"
	"github.com/listenupapp/moments-pipeline/internal/cleaner"
	"github.com/listenupapp/moments-pipeline/internal/id"
	"github.com/listenupapp/moments-pipeline/internal/issues"
	"github.com/listenupapp/moments-pipeline/internal/lookup"
	"github.com/listenupapp/moments-pipeline/internal/metrics"
	"github.com/listenupapp/moments-pipeline/internal/quality"
)

// Standard input file names inside an input directory.
const (
	InterpretationsFile = "all_interpretations_450_FINAL_NO_BIAS.json"
	PassagesFile        = "passages.csv"
	CharactersFile      = "characters.csv"
)

// Output sink kinds.
const (
	SinkJSON   = "json"
	SinkSQLite = "sqlite"
	SinkBadger = "badger"
	SinkGCS    = "gcs"
)

// DefaultConfigPath is read when no rules file is named. A missing default
// file is not an error.
const DefaultConfigPath = "config/pipeline.yaml"

// Config holds the pipeline configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Logger   LoggerConfig   `yaml:"logging"`
	Paths    PathsConfig    `yaml:"paths"`
	Output   OutputConfig   `yaml:"output"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Lookup   lookup.Config  `yaml:"gutenberg"`

	Cleaning   cleaner.Options `yaml:"cleaning"`
	Validation quality.Config  `yaml:"validation"`
	Issues     issues.Config   `yaml:"issue_detection"`
	Metrics    metrics.Config  `yaml:"metrics"`
	Anomaly    anomaly.Config  `yaml:"anomaly_detection"`
	IDs        id.Scheme       `yaml:"id_generation"`

	// Books is the static catalogue used when the lookup service misses.
	Books []lookup.BookEntry `yaml:"books"`
	// PassageTitleMapping rewrites raw passage book titles to canonical ones.
	PassageTitleMapping map[string]string `yaml:"passage_title_mapping"`

	// ConfigFile is the rules file that was loaded, empty when none was.
	ConfigFile string `yaml:"-"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `yaml:"environment"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or pretty; empty picks by environment
}

// PathsConfig holds input and output locations.
type PathsConfig struct {
	Interpretations string `yaml:"interpretations"`
	Passages        string `yaml:"passages"`
	Characters      string `yaml:"characters"`
	OutputDir       string `yaml:"output_dir"`
	ReportDir       string `yaml:"report_dir"`
}

// OutputConfig selects the sinks results are written to.
type OutputConfig struct {
	Sinks      []string `yaml:"sinks"`
	SQLitePath string   `yaml:"sqlite_path"`
	BadgerPath string   `yaml:"badger_path"`
	GCSBucket  string   `yaml:"gcs_bucket"`
	GCSPrefix  string   `yaml:"gcs_prefix"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Workers bounds parallel per-record work in the first pass.
	Workers int `yaml:"workers"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Paths: PathsConfig{
			Interpretations: filepath.Join("data", "raw", InterpretationsFile),
			Passages:        filepath.Join("data", "raw", PassagesFile),
			Characters:      filepath.Join("data", "raw", CharactersFile),
			OutputDir:       filepath.Join("data", "processed"),
			ReportDir:       filepath.Join("data", "validation"),
		},
		Output: OutputConfig{
			Sinks:      []string{SinkJSON},
			SQLitePath: filepath.Join("data", "processed", "moments.db"),
			BadgerPath: filepath.Join("data", "processed", "badger"),
			GCSPrefix:  "processed",
		},
		Pipeline: PipelineConfig{
			Name:    "moments-preprocessing",
			Version: "1.0.0",
			Workers: 4,
		},
		Lookup:     lookup.DefaultConfig(),
		Cleaning:   cleaner.DefaultOptions(),
		Validation: quality.DefaultConfig(),
		Issues:     issues.DefaultConfig(),
		Metrics:    metrics.DefaultConfig(),
		Anomaly:    anomaly.DefaultConfig(),
		IDs:        id.DefaultScheme(),
		Books: []lookup.BookEntry{
			{Title: "Frankenstein", GutenbergID: 84, Author: "Mary Wollstonecraft Shelley"},
			{Title: "Pride and Prejudice", GutenbergID: 1342, Author: "Jane Austen"},
			{Title: "The Great Gatsby", GutenbergID: 64317, Author: "F. Scott Fitzgerald"},
		},
		PassageTitleMapping: map[string]string{},
	}
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables (MOMENTS_*).
// 3. .env file.
// 4. YAML rules file.
// 5. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("preprocess", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to the pipeline YAML file")
	envFile := fs.String("env-file", ".env", "Path to .env file")
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")

	inputDir := fs.String("input-dir", "", "Directory holding the raw input files")
	outputDir := fs.String("output-dir", "", "Directory for processed collections")
	reportDir := fs.String("report-dir", "", "Directory for the validation report")

	sinks := fs.String("sinks", "", "Comma-separated output sinks (json, sqlite, badger, gcs)")
	sqlitePath := fs.String("sqlite-path", "", "SQLite database file for the sqlite sink")
	badgerPath := fs.String("badger-path", "", "Badger directory for the badger sink")
	gcsBucket := fs.String("gcs-bucket", "", "Bucket for the gcs sink")
	gcsPrefix := fs.String("gcs-prefix", "", "Object prefix for the gcs sink")

	workers := fs.String("workers", "", "Parallel workers for per-record processing")
	lookupEnabled := fs.String("lookup-enabled", "", "Query the book metadata service (default: true)")
	lookupURL := fs.String("lookup-url", "", "Book metadata service base URL")
	lookupTimeout := fs.String("lookup-timeout", "", "Book metadata request timeout (e.g., 10s)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := Default()

	path := getConfigValue(*configPath, "MOMENTS_CONFIG", "")
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat(DefaultConfigPath); err == nil {
		if err := cfg.loadFile(DefaultConfigPath); err != nil {
			return nil, err
		}
	}

	cfg.App.Environment = getConfigValue(*env, "MOMENTS_ENV", cfg.App.Environment)
	cfg.Logger.Level = getConfigValue(*logLevel, "MOMENTS_LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Format = getConfigValue(*logFormat, "MOMENTS_LOG_FORMAT", cfg.Logger.Format)

	if dir := getConfigValue(*inputDir, "MOMENTS_INPUT_DIR", ""); dir != "" {
		cfg.Paths.Interpretations = filepath.Join(dir, InterpretationsFile)
		cfg.Paths.Passages = filepath.Join(dir, PassagesFile)
		cfg.Paths.Characters = filepath.Join(dir, CharactersFile)
	}
	cfg.Paths.OutputDir = getConfigValue(*outputDir, "MOMENTS_OUTPUT_DIR", cfg.Paths.OutputDir)
	cfg.Paths.ReportDir = getConfigValue(*reportDir, "MOMENTS_REPORT_DIR", cfg.Paths.ReportDir)

	if s := getConfigValue(*sinks, "MOMENTS_SINKS", ""); s != "" {
		cfg.Output.Sinks = splitList(s)
	}
	cfg.Output.SQLitePath = getConfigValue(*sqlitePath, "MOMENTS_SQLITE_PATH", cfg.Output.SQLitePath)
	cfg.Output.BadgerPath = getConfigValue(*badgerPath, "MOMENTS_BADGER_PATH", cfg.Output.BadgerPath)
	cfg.Output.GCSBucket = getConfigValue(*gcsBucket, "MOMENTS_GCS_BUCKET", cfg.Output.GCSBucket)
	cfg.Output.GCSPrefix = getConfigValue(*gcsPrefix, "MOMENTS_GCS_PREFIX", cfg.Output.GCSPrefix)

	var err error
	if cfg.Pipeline.Workers, err = getIntConfigValue(*workers, "MOMENTS_WORKERS", cfg.Pipeline.Workers); err != nil {
		return nil, fmt.Errorf("invalid workers: %w", err)
	}
	if cfg.Lookup.Enabled, err = getBoolConfigValue(*lookupEnabled, "MOMENTS_LOOKUP_ENABLED", cfg.Lookup.Enabled); err != nil {
		return nil, fmt.Errorf("invalid lookup-enabled: %w", err)
	}
	cfg.Lookup.APIBaseURL = getConfigValue(*lookupURL, "MOMENTS_LOOKUP_URL", cfg.Lookup.APIBaseURL)
	if cfg.Lookup.Timeout, err = getDurationConfigValue(*lookupTimeout, "MOMENTS_LOOKUP_TIMEOUT", cfg.Lookup.Timeout); err != nil {
		return nil, fmt.Errorf("invalid lookup-timeout: %w", err)
	}

	cfg.Paths.OutputDir, err = expandPath(cfg.Paths.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("invalid output dir: %w", err)
	}
	cfg.Paths.ReportDir, err = expandPath(cfg.Paths.ReportDir)
	if err != nil {
		return nil, fmt.Errorf("invalid report dir: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFile decodes a YAML rules file over the current values. Keys absent
// from the file keep their defaults.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.ConfigFile = path
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "" && c.Logger.Format != "json" && c.Logger.Format != "pretty" {
		return fmt.Errorf("invalid log format: %s (must be json or pretty)", c.Logger.Format)
	}

	if len(c.Output.Sinks) == 0 {
		return errors.New("at least one output sink is required")
	}
	for _, s := range c.Output.Sinks {
		switch s {
		case SinkJSON, SinkSQLite, SinkBadger:
		case SinkGCS:
			if c.Output.GCSBucket == "" {
				return errors.New("gcs sink requires a bucket")
			}
		default:
			return fmt.Errorf("invalid sink: %s (must be json, sqlite, badger, or gcs)", s)
		}
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Pipeline.Workers)
	}

	for name, t := range map[string]quality.Thresholds{
		"interpretations": c.Validation.Interpretation,
		"passages":        c.Validation.Passage,
	} {
		if err := validateThresholds(name, t); err != nil {
			return err
		}
	}

	if r := c.Issues.Profanity.RatioThreshold; r < 0 || r > 1 {
		return fmt.Errorf("profanity ratio threshold must be within [0, 1], got %g", r)
	}
	if c.Anomaly.WordCount.IQRMultiplier < 0 {
		return fmt.Errorf("iqr multiplier must not be negative, got %g", c.Anomaly.WordCount.IQRMultiplier)
	}
	if c.Anomaly.Readability.ZScoreThreshold <= 0 {
		return fmt.Errorf("z-score threshold must be positive, got %g", c.Anomaly.Readability.ZScoreThreshold)
	}
	if s := c.Anomaly.Duplicate.SimilarityThreshold; s <= 0 || s > 1 {
		return fmt.Errorf("similarity threshold must be within (0, 1], got %g", s)
	}

	if c.Lookup.Enabled {
		if c.Lookup.APIBaseURL == "" {
			return errors.New("lookup enabled without api_base_url")
		}
		if c.Lookup.MaxAttempts < 1 {
			return fmt.Errorf("lookup max_attempts must be at least 1, got %d", c.Lookup.MaxAttempts)
		}
	}

	return nil
}

func validateThresholds(name string, t quality.Thresholds) error {
	if t.MinWords < 0 || t.MaxWords < t.MinWords {
		return fmt.Errorf("%s: word bounds invalid (min %d, max %d)", name, t.MinWords, t.MaxWords)
	}
	if t.MinChars < 0 || t.MaxChars < t.MinChars {
		return fmt.Errorf("%s: char bounds invalid (min %d, max %d)", name, t.MinChars, t.MaxChars)
	}
	if t.QualityThreshold < 0 || t.QualityThreshold > 1 {
		return fmt.Errorf("%s: quality threshold must be within [0, 1], got %g", name, t.QualityThreshold)
	}
	return nil
}

// HasSink reports whether the named sink is selected.
func (c *Config) HasSink(kind string) bool {
	return slices.Contains(c.Output.Sinks, kind)
}

// getConfigValue returns the first non-empty value from: flag, env var, default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

func getBoolConfigValue(flagValue, envKey string, defaultValue bool) (bool, error) {
	v := getConfigValue(flagValue, envKey, "")
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(v)
}

func getIntConfigValue(flagValue, envKey string, defaultValue int) (int, error) {
	v := getConfigValue(flagValue, envKey, "")
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getDurationConfigValue(flagValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	v := getConfigValue(flagValue, envKey, "")
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandPath expands ~ to the home directory and makes the path absolute.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// loadEnvFile loads environment variables from a .env file.
// Variables already set in the environment are not overwritten.
func loadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close() //nolint:errcheck // Read-only file, close error not critical

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
