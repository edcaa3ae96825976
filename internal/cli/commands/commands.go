package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ftr/internal/cli"
	"ftr/internal/config"
)

// Commands holds all CLI commands
type Commands struct {
	viper   *viper.Viper
	deps    *Deps
	Run     *RunCommand
	List    *ListCommand
	Migrate *MigrateCommand
	Faills  *FaillsCommand
	History *HistoryCommand
}

// NewCommands creates all commands. Their dependencies are filled in by the
// root command's pre-run hook once flags are parsed.
func NewCommands(v *viper.Viper) *Commands {
	deps := &Deps{}
	return &Commands{
		viper:   v,
		deps:    deps,
		Run:     NewRunCommand(deps),
		List:    NewListCommand(deps),
		Migrate: NewMigrateCommand(deps),
		Faills:  NewFaillsCommand(deps),
		History: NewHistoryCommand(deps),
	}
}

// persistent flags bound to config keys
var boundFlags = map[string]string{
	"project":     config.KeyProjectPath,
	"forge":       config.KeyForgePath,
	"verbosity":   config.KeyVerbosity,
	"store":       config.KeyStoreDriver,
	"store-dsn":   config.KeyStoreDSN,
	"empty-files": config.KeyEmptyFiles,
	"ids":         config.KeyIDStyle,
	"log-file":    config.KeyLogFilename,
	"log-level":   config.KeyLogLevel,
}

// bindFlags lets the persistent flags override the matching config keys when set
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range boundFlags {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("flag --%s is not defined", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags) error {
	pf := rootCmd.PersistentFlags()
	pf.StringP("project", "P", config.DefaultProjectPath, "Path to the Foundry project")
	pf.String("forge", config.DefaultForgePath, "forge binary to run")
	pf.String("verbosity", config.DefaultVerbosity, "Verbosity flags passed to forge test")
	pf.String("store", config.DefaultStoreDriver, "Result store: json, sqlite or mysql")
	pf.String("store-dsn", "", "DSN of the sqlite or mysql run history")
	pf.String("empty-files", config.DefaultEmptyFiles, "Files without tests: prune or keep")
	pf.String("ids", config.DefaultIDStyle, "Contract and test id style: path or composite")
	pf.String("log-file", "", "Write logs to this file instead of stderr")
	pf.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	if err := bindFlags(c.viper, pf); err != nil {
		return err
	}

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return c.deps.Init(c.viper, flags.ToConfigFlags(), os.Stdout)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return c.deps.Close()
	}

	// Run command
	runCmd := &cobra.Command{
		Use:   "run [selector...]",
		Short: "Run Foundry tests",
		Long: `Run forge test for the whole project or for selected directories, files, contracts or tests.
A selector is a node id or path[:Contract[::test]], e.g. test/Counter.t.sol:CounterTest::testIncrement.`,
		RunE: c.Run.Execute,
	}
	runCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where test detection should start")
	runCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter test files by name pattern (supports wildcards, e.g., '*Vault*')")
	runCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Skip the remaining selections after the first test failure")
	runCmd.Flags().BoolVar(&flags.OnlyFailed, "failed", false, "Run only tests that failed in the last run")
	runCmd.Flags().BoolVar(&flags.OpenFaills, "open-faills", false, "Open the faills viewer when the run finishes with failures")
	runCmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Print the forge transcript and every result")
	runCmd.Flags().StringSliceVarP(&flags.Exclude, "exclude", "x", nil, "Selectors to leave out of the run")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered tests",
		Long:  "Scan and list all Foundry tests without executing them",
		RunE:  c.List.Execute,
	}
	listCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter test files by name pattern (supports wildcards, e.g., '*Vault*')")
	listCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where test detection should start")
	listCmd.Flags().BoolVarP(&flags.TestCases, "test-cases", "c", false, "List contracts and tests under each file")
	rootCmd.AddCommand(listCmd)

	// Migrate command
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create and migrate the run history database",
		Long:  "Create the sqlite or mysql run history database if needed and apply pending schema steps",
		RunE:  c.Migrate.Execute,
	}
	rootCmd.AddCommand(migrateCmd)

	// Faills command
	faillsCmd := &cobra.Command{
		Use:   "faills",
		Short: "View test failures interactively",
		Long:  "Display test failures from the last test run in an interactive viewer",
		RunE:  c.Faills.Execute,
	}
	rootCmd.AddCommand(faillsCmd)

	// History command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long:  "List the most recent runs recorded in the sqlite or mysql run history",
		RunE:  c.History.Execute,
	}
	historyCmd.Flags().IntVarP(&flags.HistoryLimit, "limit", "n", 20, "Number of runs to show")
	c.History.limit = &flags.HistoryLimit
	rootCmd.AddCommand(historyCmd)

	return nil
}
