package commands

import (
	"github.com/spf13/cobra"
)

// HistoryCommand handles the history command
type HistoryCommand struct {
	deps  *Deps
	limit *int
}

// NewHistoryCommand creates a new HistoryCommand
func NewHistoryCommand(deps *Deps) *HistoryCommand {
	return &HistoryCommand{deps: deps}
}

// Execute runs the command
func (hc *HistoryCommand) Execute(cmd *cobra.Command, args []string) error {
	limit := 20
	if hc.limit != nil && *hc.limit > 0 {
		limit = *hc.limit
	}

	history, err := hc.deps.OpenHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	hc.deps.Formatter.PrintHistory(records)
	return nil
}
