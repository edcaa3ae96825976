package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ftr/internal/migration"
	"ftr/internal/ui"
)

// MigrateCommand handles the migrate command
type MigrateCommand struct {
	deps *Deps
}

// NewMigrateCommand creates a new MigrateCommand
func NewMigrateCommand(deps *Deps) *MigrateCommand {
	return &MigrateCommand{deps: deps}
}

// Execute runs the command
func (mc *MigrateCommand) Execute(cmd *cobra.Command, args []string) error {
	d := mc.deps
	out := d.Out
	if !d.HasHistory() {
		color.New(color.FgYellow).Fprintf(out, "The %s store keeps no history; nothing to migrate\n", d.Config.StoreDriver)
		return nil
	}

	cyan := color.New(color.FgCyan)
	cyan.Fprintln(out, "╔════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(out, "║                Migrating Run History Schema                ║")
	cyan.Fprintln(out, "╚════════════════════════════════════════════════════════════╝")
	color.New(color.FgWhite).Fprintf(out, "Driver: %s | Schema steps: %d\n\n", d.Config.StoreDriver, migration.Steps())

	bar := ui.NewProgressBar(migration.Steps(), "Migrating")
	db, applied, err := d.OpenHistoryDB(cmd.Context(), bar)
	if err != nil {
		return err
	}
	defer db.Close()
	bar.Finish()

	if applied == 0 {
		color.New(color.FgGreen).Fprintln(out, "✓ History schema is up to date")
	} else {
		color.New(color.FgGreen).Fprintf(out, "✓ Applied %d schema step(s)\n", applied)
	}
	return nil
}
