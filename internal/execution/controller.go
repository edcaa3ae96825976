package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ftr/internal/config"
	"ftr/internal/domain"
	"ftr/internal/parser"
	"ftr/internal/tree"
)

// State is the phase of a single node's run
type State int

const (
	StateIdle State = iota
	StateScoping
	StateRunning
	StateParsing
	StateCorrelating
	StateDone
)

func (s State) String() string {
	return [...]string{"idle", "scoping", "running", "parsing", "correlating", "done"}[s]
}

// Controller owns the forest and serializes discovery and runs against it.
// A second Run waits for the first to finish.
type Controller struct {
	mu         sync.Mutex
	config     *config.Config
	forest     *tree.Forest
	builder    *tree.Builder
	executor   Executor
	parser     parser.Parser
	correlator *parser.Correlator
	logger     *slog.Logger
}

// NewController creates a new Controller
func NewController(
	cfg *config.Config,
	forest *tree.Forest,
	builder *tree.Builder,
	executor Executor,
	resultParser parser.Parser,
	correlator *parser.Correlator,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		config:     cfg,
		forest:     forest,
		builder:    builder,
		executor:   executor,
		parser:     resultParser,
		correlator: correlator,
		logger:     logger,
	}
}

// Forest returns the controller's forest. Callers must not mutate it while a run is active.
func (c *Controller) Forest() *tree.Forest {
	return c.forest
}

// Discover scans the configured test path into the forest
func (c *Controller) Discover(ctx context.Context, rep domain.Reporter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	root := c.config.GetTestPath()
	rep.Report(domain.Event{Type: domain.EventDiscoveryStarted, Message: root})
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.builder.Discover(c.forest, root); err != nil {
		return fmt.Errorf("discover tests: %w", err)
	}
	c.logger.Debug("discovery finished", "root", root, "nodes", c.forest.Len(), "generation", c.forest.Generation())
	rep.Report(domain.Event{Type: domain.EventDiscoveryFinished, IDs: c.forest.Roots()})
	return nil
}

// Index registers the test files under the configured test path without reading them
func (c *Controller) Index() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builder.Index(c.forest, c.config.GetTestPath())
}

// UpdateFile rescans a file from new content, e.g. an unsaved editor buffer
func (c *Controller) UpdateFile(path, content string) (*domain.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builder.Apply(c.forest, path, content)
}

// RemoveFile drops a deleted file from the forest
func (c *Controller) RemoveFile(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forest.Remove(tree.PathID(path))
}

// Run resolves, queues and executes the requested nodes one forge invocation at a time.
// Cancelling ctx skips every node not yet started and kills the running forge process.
func (c *Controller) Run(ctx context.Context, req RunRequest, rep domain.Reporter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := c.collect(req)
	if err := c.resolve(ctx, q.unresolved); err != nil {
		return fmt.Errorf("resolve tests: %w", err)
	}
	c.split(q)
	for _, id := range q.items {
		n, _ := c.forest.Get(id)
		rep.Report(domain.Event{Type: domain.EventEnqueued, NodeID: id, Kind: n.Kind})
	}

	rep.Report(domain.Event{Type: domain.EventRunStarted, IDs: q.items})
	defer rep.Report(domain.Event{Type: domain.EventRunFinished})

	failed := false
	watch := domain.ReporterFunc(func(ev domain.Event) {
		if ev.Type == domain.EventFailed {
			failed = true
		}
		rep.Report(ev)
	})

	for _, id := range q.items {
		output(rep, id, "Running "+id)
		if ctx.Err() != nil {
			rep.Report(domain.Event{Type: domain.EventSkipped, NodeID: id})
		} else {
			n, _ := c.forest.Get(id)
			rep.Report(domain.Event{Type: domain.EventStarted, NodeID: id, Kind: n.Kind})
			c.runNode(ctx, n, watch)
		}
		output(rep, id, "Completed "+id)

		if failed && req.FailFast {
			cancel()
		}
	}
	return nil
}

// runNode takes one node through scoping, running, parsing and correlating
func (c *Controller) runNode(ctx context.Context, n *domain.Node, rep domain.Reporter) {
	state := StateScoping
	transition := func(next State) {
		c.logger.Debug("run state", "id", n.ID, "from", state, "to", next)
		state = next
	}

	scope := ScopeFor(c.forest, n)
	start := scope.Path
	if start == "" {
		start = c.forest.Root()
	}
	dir, err := FindProjectRoot(start, c.config.ProjectMarker)
	if err != nil {
		c.logger.Warn("cannot run tests", "id", n.ID, "error", err)
		rep.Report(domain.Event{Type: domain.EventSkipped, NodeID: n.ID, Kind: n.Kind, Message: err.Error()})
		transition(StateDone)
		return
	}
	inv := NewInvocation(c.config.ForgePath, c.config.Verbosity, scope, dir)

	transition(StateRunning)
	output(rep, n.ID, "Foundry command: "+inv.String())
	output(rep, n.ID, "Working directory: "+inv.Dir)
	begin := time.Now()
	res, err := c.executor.Run(ctx, inv)
	duration := time.Since(begin)

	if res.Stdout != "" {
		output(rep, n.ID, res.Stdout)
	}
	if res.Stderr != "" {
		output(rep, n.ID, res.Stderr)
	}
	if res.ExitCode != 0 {
		output(rep, n.ID, fmt.Sprintf("Foundry exited with code: %d", res.ExitCode))
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			rep.Report(domain.Event{Type: domain.EventSkipped, NodeID: n.ID, Kind: n.Kind, Message: "cancelled"})
		} else {
			c.logger.Warn("forge did not run", "id", n.ID, "error", err)
			rep.Report(domain.Event{Type: domain.EventErrored, NodeID: n.ID, Kind: n.Kind, Message: err.Error()})
		}
		transition(StateDone)
		return
	}

	transition(StateParsing)
	results := c.parser.Parse(res.Stdout)

	transition(StateCorrelating)
	c.correlator.Report(c.forest, n.ID, results, duration, rep)
	transition(StateDone)
}

func output(rep domain.Reporter, id, text string) {
	rep.Report(domain.Event{Type: domain.EventOutput, NodeID: id, Message: text})
}
