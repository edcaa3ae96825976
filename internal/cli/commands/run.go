package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ftr/internal/domain"
	"ftr/internal/execution"
	"ftr/internal/storage"
	"ftr/internal/tree"
	"ftr/internal/ui"
)

// ErrTestsFailed is returned by run when any selected test failed or could not run
var ErrTestsFailed = errors.New("tests failed")

// RunCommand handles the run command
type RunCommand struct {
	deps *Deps
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(deps *Deps) *RunCommand {
	return &RunCommand{deps: deps}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output, err := rc.run(ctx, args)
	if err != nil || output == nil {
		return err
	}

	rc.deps.Formatter.PrintMetaStats(output)

	if rc.deps.Config.Flags.OpenFaills && len(output.Details) > 0 {
		if err := rc.deps.Viewer.View(output); err != nil {
			return err
		}
	}
	if output.Meta.FailedTests > 0 || output.Meta.ErroredNodes > 0 {
		return ErrTestsFailed
	}
	return nil
}

// run discovers, selects and executes tests and persists the results.
// It returns nil output when there was nothing to run.
func (rc *RunCommand) run(ctx context.Context, args []string) (*domain.TestResultsOutput, error) {
	d := rc.deps
	flags := d.Config.Flags
	controller := d.Controller
	forest := controller.Forest()
	quiet := domain.ReporterFunc(func(domain.Event) {})

	var previous *domain.TestResultsOutput
	if flags.OnlyFailed {
		loaded, err := d.Storage.Load()
		if err != nil {
			return nil, fmt.Errorf("no previous run to take failed tests from: %w", err)
		}
		previous = loaded
	}

	// Selectors and failed tests name contracts and tests, which only exist once files are read
	if len(args) > 0 || len(flags.Exclude) > 0 || flags.OnlyFailed {
		if err := controller.Discover(ctx, quiet); err != nil {
			return nil, err
		}
	} else if err := controller.Index(); err != nil {
		return nil, err
	}

	include, err := rc.selection(forest, args, previous)
	if err != nil {
		return nil, err
	}
	var exclude []string
	for _, selector := range flags.Exclude {
		n, err := forest.Find(selector)
		if err != nil {
			return nil, fmt.Errorf("exclude: %w", err)
		}
		exclude = append(exclude, n.ID)
	}
	if include != nil && len(include) == 0 {
		color.New(color.FgYellow).Fprintln(d.Out, "No tests to execute")
		return nil, nil
	}

	collector := storage.NewCollector(forest, d.Config.ProjectPath)
	console := ui.NewConsoleReporter(d.Out, flags.Verbose, true)
	rep := domain.MultiReporter(console, collector)

	d.Logger.Info("run started", "run", collector.RunID(), "selected", len(include))
	if err := controller.Run(ctx, execution.RunRequest{Include: include, Exclude: exclude, FailFast: flags.FailFast}, rep); err != nil {
		return nil, err
	}

	output := collector.Output()
	if flags.OnlyFailed {
		output = storage.MergeRerun(previous, output)
	}
	if err := d.Storage.Save(output); err != nil {
		return nil, fmt.Errorf("failed to save test results: %w", err)
	}
	if d.HasHistory() {
		if err := rc.record(ctx, output); err != nil {
			d.Logger.Warn("run not recorded in history", "error", err)
		}
	}
	return output, nil
}

// selection returns the ids to run; nil runs every top-level node
func (rc *RunCommand) selection(forest *tree.Forest, args []string, previous *domain.TestResultsOutput) ([]string, error) {
	d := rc.deps
	var include []string

	for _, selector := range args {
		n, err := forest.Find(selector)
		if err != nil {
			return nil, err
		}
		include = append(include, n.ID)
	}

	if previous != nil {
		include = []string{}
		for _, f := range previous.Details {
			if f.Resolved {
				continue
			}
			if _, ok := forest.Get(f.NodeID); ok {
				include = append(include, f.NodeID)
			} else {
				d.Logger.Warn("failed test no longer exists", "id", f.NodeID)
			}
		}
	}

	if pattern := d.Config.Flags.NameFilter; pattern != "" {
		matched := matchingFiles(forest, d.Filter.FilterByName, pattern)
		if include == nil {
			include = []string{}
			for _, f := range forest.Files() {
				if matched[f.ID] {
					include = append(include, f.ID)
				}
			}
		} else {
			kept := include[:0]
			for _, id := range include {
				if file, ok := fileOf(forest, id); ok && matched[file] {
					kept = append(kept, id)
				}
			}
			include = kept
		}
	}
	return include, nil
}

func fileOf(forest *tree.Forest, id string) (string, bool) {
	n, ok := forest.Get(id)
	if !ok {
		return "", false
	}
	if n.Kind == domain.KindFile {
		return n.ID, true
	}
	f, ok := forest.Ancestor(id, domain.KindFile)
	if !ok {
		return "", false
	}
	return f.ID, true
}

func (rc *RunCommand) record(ctx context.Context, output *domain.TestResultsOutput) error {
	history, err := rc.deps.OpenHistory(ctx)
	if err != nil {
		return err
	}
	defer history.Close()
	return history.Append(ctx, output)
}
