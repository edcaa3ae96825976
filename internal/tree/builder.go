package tree

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ftr/internal/discovery"
	"ftr/internal/domain"
)

// Options selects between the two historical discovery behaviours
type Options struct {
	// KeepEmpty registers files and contracts that have no surviving tests.
	// By default such files are treated as absent.
	KeepEmpty bool
	// CompositeIDs names contracts and tests <file>::<Contract>[::<test>]
	// instead of <file>/<Contract>[/<test>].
	CompositeIDs bool
}

// Builder turns scanned declarations into forest subtrees
type Builder struct {
	scanner *discovery.Scanner
	parser  *discovery.Parser
	opts    Options
	logger  *slog.Logger
}

// NewBuilder creates a new Builder
func NewBuilder(scanner *discovery.Scanner, parser *discovery.Parser, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{scanner: scanner, parser: parser, opts: opts, logger: logger}
}

// Discover walks root and materializes every test file that has surviving tests.
// Unreadable files are registered with their error set; siblings are still processed.
func (b *Builder) Discover(forest *Forest, root string) error {
	files, err := b.scanner.Scan(root)
	if err != nil {
		return err
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			b.MarkError(forest, path, err)
			continue
		}
		if _, err := b.Apply(forest, path, string(content)); err != nil {
			return err
		}
	}
	return nil
}

// Index registers every test file under root without reading it.
// Files are resolved later by Apply or MarkError.
func (b *Builder) Index(forest *Forest, root string) error {
	files, err := b.scanner.Scan(root)
	if err != nil {
		return err
	}
	for _, path := range files {
		if _, err := forest.EnsureFile(path); err != nil {
			return err
		}
	}
	return nil
}

// Apply rescans content for the file at path under a new generation and
// replaces that file's subtree wholesale. It returns the file node, or nil
// when the file has no surviving tests and empty files are pruned.
func (b *Builder) Apply(forest *Forest, path, content string) (*domain.Node, error) {
	generation := forest.NextGeneration()
	decls := b.parser.Parse(content)
	path = absPath(forest, path)
	fileID := PathID(path)

	nodes, cases := b.subtree(fileID, path, decls, generation)
	if cases == 0 && !b.opts.KeepEmpty {
		if forest.Remove(fileID) {
			b.logger.Debug("removed test file without tests", "file", fileID)
		}
		return nil, nil
	}

	file, err := forest.EnsureFile(path)
	if err != nil {
		return nil, err
	}
	file.Resolved = true
	file.Error = ""
	file.Generation = generation
	file.Range = fileRange(content)
	if err := forest.ReplaceChildren(file.ID, nodes); err != nil {
		return nil, err
	}
	b.logger.Debug("test file scanned", "file", file.ID, "generation", generation, "tests", cases)
	return file, nil
}

// subtree builds contract and test nodes in pre-order and counts the tests kept
func (b *Builder) subtree(fileID, path string, decls []domain.Declaration, generation uint64) ([]*domain.Node, int) {
	var (
		nodes   []*domain.Node
		current *domain.Node
		cases   int
	)
	seen := make(map[string]bool)

	flush := func(group *domain.Node, members []*domain.Node) {
		if group == nil || (len(members) == 0 && !b.opts.KeepEmpty) {
			return
		}
		nodes = append(nodes, group)
		nodes = append(nodes, members...)
		cases += len(members)
	}

	var members []*domain.Node
	for _, d := range decls {
		r := d.Range
		switch d.Kind {
		case domain.DeclGroup:
			flush(current, members)
			members = nil
			id := b.groupID(fileID, d.Name)
			if seen[id] {
				current = nil
				continue
			}
			seen[id] = true
			current = &domain.Node{
				ID: id, Kind: domain.KindGroup, Label: d.Name, Path: path,
				Range: &r, Generation: generation, Parent: fileID,
			}
		case domain.DeclCase:
			if current == nil || d.Group != current.Label {
				b.logger.Debug("test outside a contract ignored", "file", fileID, "test", d.Name)
				continue
			}
			id := b.caseID(fileID, current.Label, d.Name)
			if seen[id] {
				continue
			}
			seen[id] = true
			current.Children = append(current.Children, id)
			members = append(members, &domain.Node{
				ID: id, Kind: domain.KindCase, Label: d.Name, Path: path,
				Range: &r, Generation: generation, Parent: current.ID,
			})
		}
	}
	flush(current, members)
	return nodes, cases
}

func (b *Builder) groupID(fileID, group string) string {
	if b.opts.CompositeIDs {
		return fileID + "::" + group
	}
	return fileID + "/" + group
}

func (b *Builder) caseID(fileID, group, name string) string {
	if b.opts.CompositeIDs {
		return fileID + "::" + group + "::" + name
	}
	return fileID + "/" + group + "/" + name
}

// MarkError registers the file at path with a read error; its subtree is left as is
func (b *Builder) MarkError(forest *Forest, path string, err error) {
	b.logger.Warn("cannot read test file", "file", path, "error", err)
	n, ensureErr := forest.EnsureFile(path)
	if ensureErr != nil {
		return
	}
	n.Error = err.Error()
	n.Resolved = true
}

func absPath(forest *Forest, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(forest.Root(), path)
}

func fileRange(content string) *domain.Range {
	lines := strings.Split(content, "\n")
	last := len(lines) - 1
	return &domain.Range{
		End: domain.Position{Line: last, Character: len(lines[last])},
	}
}
