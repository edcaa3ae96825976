package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Viper keys
const (
	KeyProjectPath      = "project_path"
	KeyTestPath         = "test_path"
	KeyForgePath        = "forge_path"
	KeyVerbosity        = "verbosity"
	KeyProjectMarker    = "project_marker"
	KeyTestPattern      = "test_pattern"
	KeyExcludeContracts = "exclude.contracts"
	KeyExcludeTests     = "exclude.tests"
	KeyPathsToIgnore    = "paths.ignore"
	KeyEmptyFiles       = "discovery.empty_files"
	KeyIDStyle          = "discovery.ids"
	KeyOutputDir        = "output.dir"
	KeyOutputFile       = "output.file"
	KeyStoreDriver      = "store.driver"
	KeyStoreDSN         = "store.dsn"
	KeyLogFilename      = "log.filename"
	KeyLogLevel         = "log.level"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath   string
	TestPath      string
	ProjectMarker string
	TestPattern   string

	// Forge invocation
	ForgePath string
	Verbosity string

	// Discovery settings
	ExcludeContracts []string
	ExcludeTests     []string
	PathsToIgnore    []string
	EmptyFiles       string
	IDStyle          string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string
	StoreDriver    string
	StoreDSN       string

	// Logging
	LogFilename string
	LogLevel    string

	// Command flags
	Flags Flags
}

// Flags holds command-line flags that only make sense per invocation
type Flags struct {
	TestPath   string
	NameFilter string
	TestCases  bool
	FailFast   bool
	OnlyFailed bool
	OpenFaills bool
	Debug      bool
	Verbose    bool
	Exclude    []string
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:    DefaultProjectPath,
		TestPath:       DefaultTestPath,
		ProjectMarker:  DefaultProjectMarker,
		TestPattern:    DefaultTestPattern,
		ForgePath:      DefaultForgePath,
		Verbosity:      DefaultVerbosity,
		EmptyFiles:     DefaultEmptyFiles,
		IDStyle:        DefaultIDStyle,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		StoreDriver:    DefaultStoreDriver,
		LogLevel:       DefaultLogLevel,
	}
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyProjectPath, DefaultProjectPath)
	v.SetDefault(KeyTestPath, DefaultTestPath)
	v.SetDefault(KeyForgePath, DefaultForgePath)
	v.SetDefault(KeyVerbosity, DefaultVerbosity)
	v.SetDefault(KeyProjectMarker, DefaultProjectMarker)
	v.SetDefault(KeyTestPattern, DefaultTestPattern)
	v.SetDefault(KeyExcludeContracts, []string{})
	v.SetDefault(KeyExcludeTests, []string{})
	v.SetDefault(KeyPathsToIgnore, DefaultPathsToIgnore)
	v.SetDefault(KeyEmptyFiles, DefaultEmptyFiles)
	v.SetDefault(KeyIDStyle, DefaultIDStyle)
	v.SetDefault(KeyOutputDir, DefaultOutputJSONDir)
	v.SetDefault(KeyOutputFile, DefaultOutputJSONFile)
	v.SetDefault(KeyStoreDriver, DefaultStoreDriver)
	v.SetDefault(KeyStoreDSN, "")
	v.SetDefault(KeyLogFilename, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// NewViper returns a viper instance with defaults and FTR_* env lookup
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load creates a config from v. The project's .env is loaded first, then the
// optional .ftr.yaml in the project directory; flags bound to v win over both.
func Load(v *viper.Viper, flags Flags) (*Config, error) {
	projectPath := v.GetString(KeyProjectPath)
	if projectPath == "" {
		projectPath = DefaultProjectPath
	}

	if err := godotenv.Load(filepath.Join(projectPath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(projectPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		ProjectPath:      projectPath,
		TestPath:         v.GetString(KeyTestPath),
		ProjectMarker:    v.GetString(KeyProjectMarker),
		TestPattern:      v.GetString(KeyTestPattern),
		ForgePath:        v.GetString(KeyForgePath),
		Verbosity:        v.GetString(KeyVerbosity),
		ExcludeContracts: splitList(v.GetStringSlice(KeyExcludeContracts)),
		ExcludeTests:     splitList(v.GetStringSlice(KeyExcludeTests)),
		PathsToIgnore:    splitList(v.GetStringSlice(KeyPathsToIgnore)),
		EmptyFiles:       strings.ToLower(v.GetString(KeyEmptyFiles)),
		IDStyle:          strings.ToLower(v.GetString(KeyIDStyle)),
		OutputJSONDir:    v.GetString(KeyOutputDir),
		OutputJSONFile:   v.GetString(KeyOutputFile),
		StoreDriver:      strings.ToLower(v.GetString(KeyStoreDriver)),
		StoreDSN:         v.GetString(KeyStoreDSN),
		LogFilename:      v.GetString(KeyLogFilename),
		LogLevel:         v.GetString(KeyLogLevel),
		Flags:            flags,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings
func (c *Config) Validate() error {
	switch c.EmptyFiles {
	case EmptyPrune, EmptyKeep:
	default:
		return fmt.Errorf("invalid %s %q (want %s or %s)", KeyEmptyFiles, c.EmptyFiles, EmptyPrune, EmptyKeep)
	}
	switch c.IDStyle {
	case IDPath, IDComposite:
	default:
		return fmt.Errorf("invalid %s %q (want %s or %s)", KeyIDStyle, c.IDStyle, IDPath, IDComposite)
	}
	switch c.StoreDriver {
	case StoreJSON, StoreSQLite, StoreMySQL:
	default:
		return fmt.Errorf("invalid %s %q", KeyStoreDriver, c.StoreDriver)
	}
	if c.StoreDriver == StoreMySQL && c.StoreDSN == "" {
		return fmt.Errorf("%s is required for the %s store", KeyStoreDSN, StoreMySQL)
	}
	return nil
}

// GetTestPath returns the test path, using flag if provided
func (c *Config) GetTestPath() string {
	if c.Flags.TestPath != "" {
		// If TestPath is provided, make it relative to the project if it's not absolute
		if filepath.IsAbs(c.Flags.TestPath) {
			return c.Flags.TestPath
		}
		return filepath.Join(c.ProjectPath, c.Flags.TestPath)
	}

	if filepath.IsAbs(c.TestPath) {
		return c.TestPath
	}
	return filepath.Join(c.ProjectPath, c.TestPath)
}

// GetOutputPath returns the absolute path of the last-run JSON file so run and faills agree regardless of cwd
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetStoreDSN returns the history store DSN, defaulting sqlite to a file next to the JSON output
func (c *Config) GetStoreDSN() string {
	if c.StoreDSN != "" || c.StoreDriver != StoreSQLite {
		return c.StoreDSN
	}
	return filepath.Join(filepath.Dir(c.GetOutputPath()), "history.db")
}

// splitList accepts both list values and comma separated strings
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
