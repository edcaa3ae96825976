package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_GetTestPath(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected string
	}{
		{
			name: "default path",
			config: &Config{
				ProjectPath: ".",
				TestPath:    ".",
			},
			expected: ".",
		},
		{
			name: "configured test path",
			config: &Config{
				ProjectPath: "/project",
				TestPath:    "test",
			},
			expected: "/project/test",
		},
		{
			name: "with test path flag",
			config: &Config{
				ProjectPath: "/project",
				TestPath:    ".",
				Flags: Flags{
					TestPath: "test/unit",
				},
			},
			expected: "/project/test/unit",
		},
		{
			name: "absolute test path",
			config: &Config{
				ProjectPath: "/project",
				TestPath:    ".",
				Flags: Flags{
					TestPath: "/absolute/path",
				},
			},
			expected: "/absolute/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.GetTestPath())
		})
	}
}

func TestNew(t *testing.T) {
	cfg := New()

	assert.Equal(t, DefaultProjectPath, cfg.ProjectPath)
	assert.Equal(t, DefaultVerbosity, cfg.Verbosity)
	assert.Equal(t, DefaultEmptyFiles, cfg.EmptyFiles)
	assert.Equal(t, DefaultIDStyle, cfg.IDStyle)
	assert.Equal(t, DefaultPathsToIgnore, cfg.PathsToIgnore)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	yaml := "verbosity: -vvvv\nexclude:\n  contracts:\n    - BaseTest\ndiscovery:\n  empty_files: keep\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ftr.yaml"), []byte(yaml), 0o644))

	t.Run("reads project config file", func(t *testing.T) {
		v := NewViper()
		v.Set(KeyProjectPath, dir)

		cfg, err := Load(v, Flags{})
		require.NoError(t, err)
		assert.Equal(t, "-vvvv", cfg.Verbosity)
		assert.Equal(t, []string{"BaseTest"}, cfg.ExcludeContracts)
		assert.Equal(t, EmptyKeep, cfg.EmptyFiles)
		assert.Equal(t, DefaultIDStyle, cfg.IDStyle)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("FTR_EXCLUDE_TESTS", "testSkip, testFlaky")
		t.Setenv("FTR_VERBOSITY", "-v")
		v := NewViper()
		v.Set(KeyProjectPath, dir)

		cfg, err := Load(v, Flags{})
		require.NoError(t, err)
		assert.Equal(t, "-v", cfg.Verbosity)
		assert.Equal(t, []string{"testSkip", "testFlaky"}, cfg.ExcludeTests)
	})

	t.Run("rejects unknown policy", func(t *testing.T) {
		v := NewViper()
		v.Set(KeyProjectPath, dir)
		v.Set(KeyIDStyle, "bogus")

		_, err := Load(v, Flags{})
		assert.Error(t, err)
	})
}

func TestConfig_GetStoreDSN(t *testing.T) {
	cfg := New()
	cfg.ProjectPath = "/project"

	assert.Empty(t, cfg.GetStoreDSN())

	cfg.StoreDriver = StoreSQLite
	assert.Equal(t, "/project/cache/ftr/history.db", cfg.GetStoreDSN())

	cfg.StoreDSN = "file:custom.db"
	assert.Equal(t, "file:custom.db", cfg.GetStoreDSN())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a,b", " c ", ""}))
	assert.Empty(t, splitList(nil))
}
