package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ftr/internal/cli"
	"ftr/internal/cli/commands"
	"ftr/internal/config"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "ftr",
		Short:   "Foundry test runner",
		Long:    `Discover the contracts and tests of a Foundry project, run forge test on any selection of them and browse the failures.`,
		Version: version,
	}

	// Viper carries defaults, .ftr.yaml, FTR_* environment and bound flags
	v := config.NewViper()

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	cmds := commands.NewCommands(v)
	if err := cmds.Register(rootCmd, &flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, commands.ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
