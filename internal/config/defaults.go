package config

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultTestPath is the default test path, relative to the project
	DefaultTestPath = "."
	// DefaultForgePath is the forge binary looked up on PATH
	DefaultForgePath = "forge"
	// DefaultVerbosity is the verbosity flag passed to every forge invocation
	DefaultVerbosity = "-vv"
	// DefaultProjectMarker marks the directory forge must run in
	DefaultProjectMarker = "foundry.toml"
	// DefaultTestPattern selects test sources, matched against slash paths relative to the scan root
	DefaultTestPattern = "**/*.t.sol"
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "test-results.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = "cache/ftr"
	// DefaultStoreDriver keeps only the JSON file of the last run
	DefaultStoreDriver = StoreJSON
	// DefaultEmptyFiles drops files and contracts without surviving tests
	DefaultEmptyFiles = EmptyPrune
	// DefaultIDStyle is the node id layout for contracts and tests
	DefaultIDStyle = IDPath
	// DefaultLogLevel is the default slog level name
	DefaultLogLevel = "info"

	// EnvPrefix prefixes every environment override, e.g. FTR_VERBOSITY
	EnvPrefix = "FTR"
	// ConfigName is the config file base name looked up in the project directory
	ConfigName = ".ftr"
)

// Empty-file policies
const (
	EmptyPrune = "prune"
	EmptyKeep  = "keep"
)

// Node id styles
const (
	IDPath      = "path"
	IDComposite = "composite"
)

// Store drivers
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
)

// DefaultPathsToIgnore are directory name suffixes never descended into
var DefaultPathsToIgnore = []string{
	"lib",
	"node_modules",
}
