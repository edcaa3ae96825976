package execution

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftr/internal/config"
	"ftr/internal/discovery"
	"ftr/internal/domain"
	"ftr/internal/parser"
	"ftr/internal/tree"
)

const counterSource = `contract CounterTest is Test {
    function testIncrement() public {}

    function testSetNumber(uint256 x) public {}
}
`

const counterOutput = "Running 2 tests for test/Counter.t.sol:CounterTest\n" +
	"[PASS] testIncrement() (gas: 28334)\n" +
	"[FAIL. Reason: Assertion failed.] testSetNumber(uint256) (runs: 256, μ: 27553, ~: 28409)\n"

// recorder keeps every event it receives
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Report(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func (r *recorder) Of(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakeExecutor struct {
	calls  []Invocation
	result func(inv Invocation) (domain.ExecResult, error)
}

func (f *fakeExecutor) Run(_ context.Context, inv Invocation) (domain.ExecResult, error) {
	f.calls = append(f.calls, inv)
	if f.result == nil {
		return domain.ExecResult{Command: inv.Args, Dir: inv.Dir}, nil
	}
	return f.result(inv)
}

// slowExecutor tracks how many invocations run at the same time
type slowExecutor struct {
	mu     sync.Mutex
	delay  time.Duration
	active int
	peak   int
	calls  int
}

func (e *slowExecutor) Run(_ context.Context, inv Invocation) (domain.ExecResult, error) {
	e.mu.Lock()
	e.calls++
	e.active++
	e.peak = max(e.peak, e.active)
	e.mu.Unlock()

	time.Sleep(e.delay)

	e.mu.Lock()
	e.active--
	e.mu.Unlock()
	return domain.ExecResult{Command: inv.Args, Dir: inv.Dir}, nil
}

func stdout(out string, code int) func(Invocation) (domain.ExecResult, error) {
	return func(inv Invocation) (domain.ExecResult, error) {
		return domain.ExecResult{Command: inv.Args, Dir: inv.Dir, Stdout: out, ExitCode: code}, nil
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newController(t *testing.T, root string, exec Executor) *Controller {
	t.Helper()
	cfg := config.New()
	cfg.ProjectPath = root
	cfg.TestPath = root

	scanner := discovery.NewScanner(cfg.PathsToIgnore, cfg.TestPattern)
	p := discovery.NewParser(discovery.NewExclusions(nil, nil))
	builder := tree.NewBuilder(scanner, p, tree.Options{}, nil)
	return NewController(cfg, tree.NewForest(root), builder, exec, parser.NewForgeParser(nil), parser.NewCorrelator(nil), nil)
}

func outputs(rec *recorder) []string {
	var out []string
	for _, ev := range rec.Of(domain.EventOutput) {
		out = append(out, ev.Message)
	}
	return out
}

func TestController_Discover(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":          "",
		"test/Counter.t.sol":    counterSource,
		"lib/forge-std/X.t.sol": counterSource,
	})
	c := newController(t, root, &fakeExecutor{})
	rec := &recorder{}

	require.NoError(t, c.Discover(context.Background(), rec))

	finished := rec.Of(domain.EventDiscoveryFinished)
	require.Len(t, finished, 1)
	assert.Equal(t, []string{tree.PathID(filepath.Join(root, "test"))}, finished[0].IDs)

	_, ok := c.Forest().Get(tree.PathID(filepath.Join(root, "test", "Counter.t.sol")) + "/CounterTest/testIncrement")
	assert.True(t, ok)
}

func TestController_RunFile(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	exec := &fakeExecutor{result: stdout(counterOutput, 1)}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	fileID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
	rec := &recorder{}
	require.NoError(t, c.Run(context.Background(), RunRequest{Include: []string{fileID}}, rec))

	require.Len(t, exec.calls, 1)
	assert.Equal(t, root, exec.calls[0].Dir)
	assert.Equal(t, []string{"forge", "test", "-vv", "--color", "always", "--match-path", "**/Counter.t.sol"}, exec.calls[0].Args)

	passed := rec.Of(domain.EventPassed)
	require.Len(t, passed, 1)
	assert.Equal(t, fileID+"/CounterTest/testIncrement", passed[0].NodeID)

	failed := rec.Of(domain.EventFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, fileID+"/CounterTest/testSetNumber", failed[0].NodeID)
	assert.Equal(t, "Assertion failed.", failed[0].Message)
	require.NotNil(t, failed[0].Location)
	assert.Equal(t, 3, failed[0].Location.Range.Start.Line)

	lines := outputs(rec)
	require.NotEmpty(t, lines)
	assert.Equal(t, "Running "+fileID, lines[0])
	assert.Contains(t, lines, "Foundry exited with code: 1")
	assert.Equal(t, "Completed "+fileID, lines[len(lines)-1])

	events := rec.Events()
	assert.Equal(t, domain.EventEnqueued, events[0].Type)
	assert.Equal(t, domain.EventRunStarted, events[1].Type)
	assert.Equal(t, domain.EventRunFinished, events[len(events)-1].Type)
}

func TestController_RunCase(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	exec := &fakeExecutor{result: stdout(counterOutput, 1)}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	caseID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol")) + "/CounterTest/testIncrement"
	rec := &recorder{}
	require.NoError(t, c.Run(context.Background(), RunRequest{Include: []string{caseID}}, rec))

	require.Len(t, exec.calls, 1)
	args := strings.Join(exec.calls[0].Args, " ")
	assert.Contains(t, args, "--match-contract CounterTest")
	assert.Contains(t, args, "--match-test testIncrement")

	assert.Len(t, rec.Of(domain.EventPassed), 1)
	assert.Empty(t, rec.Of(domain.EventFailed), "results for other tests are not reported")
}

func TestController_RunResolvesLazyFiles(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
		"test/Empty.t.sol":   "contract EmptyTest is Test {}\n",
	})
	exec := &fakeExecutor{result: stdout(counterOutput, 1)}
	c := newController(t, root, exec)
	require.NoError(t, c.Index())

	testDir := tree.PathID(filepath.Join(root, "test"))
	rec := &recorder{}
	require.NoError(t, c.Run(context.Background(), RunRequest{Include: []string{testDir}}, rec))

	require.Len(t, exec.calls, 1, "a directory is run with a single invocation")
	assert.Contains(t, exec.calls[0].Args, "**/test/**")

	file, ok := c.Forest().Get(testDir + "/Counter.t.sol")
	require.True(t, ok)
	assert.True(t, file.Resolved)
	_, ok = c.Forest().Get(testDir + "/Empty.t.sol")
	assert.False(t, ok, "files without tests are pruned once resolved")

	assert.Len(t, rec.Of(domain.EventPassed), 1)
	assert.Len(t, rec.Of(domain.EventFailed), 1)
}

func TestController_RunExclude(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	exec := &fakeExecutor{}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	testDir := tree.PathID(filepath.Join(root, "test"))
	rec := &recorder{}
	require.NoError(t, c.Run(context.Background(), RunRequest{Exclude: []string{testDir}}, rec))

	assert.Empty(t, exec.calls)
	assert.Empty(t, rec.Of(domain.EventEnqueued))

	t.Run("single test", func(t *testing.T) {
		exec := &fakeExecutor{result: stdout(counterOutput, 1)}
		c := newController(t, root, exec)
		require.NoError(t, c.Discover(context.Background(), &recorder{}))

		fileID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
		excluded := fileID + "/CounterTest/testSetNumber"
		rec := &recorder{}
		req := RunRequest{Include: []string{fileID}, Exclude: []string{excluded}}
		require.NoError(t, c.Run(context.Background(), req, rec))

		require.Len(t, exec.calls, 1)
		args := strings.Join(exec.calls[0].Args, " ")
		assert.Contains(t, args, "--match-contract CounterTest")
		assert.Contains(t, args, "--match-test testIncrement")

		enqueued := rec.Of(domain.EventEnqueued)
		require.Len(t, enqueued, 1)
		assert.Equal(t, fileID+"/CounterTest/testIncrement", enqueued[0].NodeID)
		assert.Len(t, rec.Of(domain.EventPassed), 1)
		assert.Empty(t, rec.Of(domain.EventFailed))
	})

	t.Run("test in a lazy file", func(t *testing.T) {
		exec := &fakeExecutor{result: stdout(counterOutput, 1)}
		c := newController(t, root, exec)
		require.NoError(t, c.Index())

		fileID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
		rec := &recorder{}
		req := RunRequest{Include: []string{testDir}, Exclude: []string{fileID + "/CounterTest/testSetNumber"}}
		require.NoError(t, c.Run(context.Background(), req, rec))

		require.Len(t, exec.calls, 1)
		assert.Contains(t, exec.calls[0].Args, "testIncrement")
		assert.NotContains(t, exec.calls[0].Args, "**/test/**")
		assert.Empty(t, rec.Of(domain.EventFailed))
	})
}

func TestController_RunsSerialize(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	exec := &slowExecutor{delay: 20 * time.Millisecond}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	fileID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Run(context.Background(), RunRequest{Include: []string{fileID}}, &recorder{}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, exec.calls)
	assert.Equal(t, 1, exec.peak, "a second run waits for the first")
}

func TestController_RunCancelled(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	exec := &fakeExecutor{}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fileID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
	rec := &recorder{}
	require.NoError(t, c.Run(ctx, RunRequest{Include: []string{fileID}}, rec))

	assert.Empty(t, exec.calls)
	skipped := rec.Of(domain.EventSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, fileID, skipped[0].NodeID)
	assert.Empty(t, rec.Of(domain.EventStarted))
}

func TestController_RunCancelledWhileRunning(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	exec := &fakeExecutor{result: func(inv Invocation) (domain.ExecResult, error) {
		return domain.ExecResult{Command: inv.Args, ExitCode: -1, Signaled: true}, context.Canceled
	}}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	fileID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
	rec := &recorder{}
	require.NoError(t, c.Run(context.Background(), RunRequest{Include: []string{fileID}}, rec))

	require.Len(t, rec.Of(domain.EventSkipped), 1)
	assert.Empty(t, rec.Of(domain.EventErrored))
	assert.Empty(t, rec.Of(domain.EventPassed))
}

func TestController_RunLaunchError(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	exec := &fakeExecutor{result: func(inv Invocation) (domain.ExecResult, error) {
		return domain.ExecResult{Command: inv.Args}, errors.New("launch forge: executable file not found")
	}}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	fileID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
	rec := &recorder{}
	require.NoError(t, c.Run(context.Background(), RunRequest{Include: []string{fileID}}, rec))

	errored := rec.Of(domain.EventErrored)
	require.Len(t, errored, 1)
	assert.Contains(t, errored[0].Message, "executable file not found")
}

func TestController_RunWithoutProject(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"test/Counter.t.sol": counterSource,
	})
	exec := &fakeExecutor{}
	c := newController(t, root, exec)
	c.config.ProjectMarker = "ftr-missing-marker.toml"
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	fileID := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
	rec := &recorder{}
	require.NoError(t, c.Run(context.Background(), RunRequest{Include: []string{fileID}}, rec))

	assert.Empty(t, exec.calls)
	assert.Empty(t, rec.Of(domain.EventErrored))
	skipped := rec.Of(domain.EventSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, fileID, skipped[0].NodeID)
	assert.Equal(t, ErrNoProject.Error(), skipped[0].Message)
}

func TestController_RunFailFast(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
		"test/Other.t.sol":   counterSource,
	})
	exec := &fakeExecutor{result: stdout(counterOutput, 1)}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	first := tree.PathID(filepath.Join(root, "test", "Counter.t.sol"))
	second := tree.PathID(filepath.Join(root, "test", "Other.t.sol"))
	rec := &recorder{}
	req := RunRequest{Include: []string{first, second}, FailFast: true}
	require.NoError(t, c.Run(context.Background(), req, rec))

	require.Len(t, exec.calls, 1)
	skipped := rec.Of(domain.EventSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, second, skipped[0].NodeID)
}

func TestController_RunStaleNode(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	exec := &fakeExecutor{}
	c := newController(t, root, exec)
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	rec := &recorder{}
	require.NoError(t, c.Run(context.Background(), RunRequest{Include: []string{"/nowhere/Gone.t.sol"}}, rec))

	assert.Empty(t, exec.calls)
	assert.Empty(t, rec.Of(domain.EventEnqueued))
}

func TestController_UpdateAndRemoveFile(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"foundry.toml":       "",
		"test/Counter.t.sol": counterSource,
	})
	c := newController(t, root, &fakeExecutor{})
	require.NoError(t, c.Discover(context.Background(), &recorder{}))

	path := filepath.Join(root, "test", "Counter.t.sol")
	n, err := c.UpdateFile(path, "contract CounterTest is Test {\n    function testOnly() public {}\n}\n")
	require.NoError(t, err)
	require.NotNil(t, n)
	require.Len(t, n.Children, 1)
	assert.Len(t, c.Forest().Children(n.Children[0]), 1)

	assert.True(t, c.RemoveFile(path))
	assert.Equal(t, 0, c.Forest().Len())
}
