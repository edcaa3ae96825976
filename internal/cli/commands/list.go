package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ftr/internal/domain"
	"ftr/internal/tree"
	"ftr/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	deps *Deps
}

// NewListCommand creates a new ListCommand
func NewListCommand(deps *Deps) *ListCommand {
	return &ListCommand{deps: deps}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	d := lc.deps
	controller := d.Controller
	if err := controller.Discover(cmd.Context(), domain.ReporterFunc(func(domain.Event) {})); err != nil {
		return err
	}
	forest := controller.Forest()

	if pattern := d.Config.Flags.NameFilter; pattern != "" {
		filterFiles(forest, d.Filter.FilterByName, pattern)
	}
	if len(forest.Files()) == 0 {
		color.New(color.FgYellow).Fprintln(d.Out, "No tests found")
		return nil
	}

	var failed map[string]struct{}
	if last, err := d.Storage.Load(); err == nil {
		failed = ui.FailedNodes(last)
	}
	d.Formatter.PrintTestList(forest, d.Config.Flags.TestCases, failed)
	return nil
}

// filterFiles drops every file whose path does not match pattern
func filterFiles(forest *tree.Forest, filter func([]string, string) []string, pattern string) {
	keep := matchingFiles(forest, filter, pattern)
	for _, f := range forest.Files() {
		if !keep[f.ID] {
			forest.Remove(f.ID)
		}
	}
}

// matchingFiles returns the ids of the files whose path matches pattern
func matchingFiles(forest *tree.Forest, filter func([]string, string) []string, pattern string) map[string]bool {
	files := forest.Files()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	matched := make(map[string]bool, len(files))
	for _, p := range filter(paths, pattern) {
		matched[tree.PathID(p)] = true
	}
	return matched
}
