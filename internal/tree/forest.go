// Package tree owns the discovered test forest: directories, files, contracts and tests
// addressed by stable ids.
package tree

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"ftr/internal/domain"
)

// ErrNotFound is returned when an id or selector matches no node
var ErrNotFound = errors.New("node not found")

// Forest is an arena of nodes keyed by id. Children lists own nodes; parent ids
// are plain lookups used to walk from a test back to its contract and file.
// A Forest is not safe for concurrent mutation; its owner serializes access.
type Forest struct {
	root       string
	nodes      map[string]*domain.Node
	roots      []string
	generation uint64
}

// NewForest creates an empty forest for the project rooted at root.
// Directory chains for files start below root.
func NewForest(root string) *Forest {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Forest{
		root:  filepath.Clean(root),
		nodes: make(map[string]*domain.Node),
	}
}

// Root returns the absolute project root
func (f *Forest) Root() string {
	return f.root
}

// NextGeneration returns a new scan epoch; epochs only grow
func (f *Forest) NextGeneration() uint64 {
	f.generation++
	return f.generation
}

// Generation returns the most recent scan epoch
func (f *Forest) Generation() uint64 {
	return f.generation
}

// Len returns the number of nodes
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Get returns the node with the given id
func (f *Forest) Get(id string) (*domain.Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Roots returns the ids of the top-level nodes in discovery order
func (f *Forest) Roots() []string {
	out := make([]string, len(f.roots))
	copy(out, f.roots)
	return out
}

// Children returns the children of id in discovery order
func (f *Forest) Children(id string) []*domain.Node {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*domain.Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c, ok := f.nodes[cid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Ancestor returns the closest node of the given kind above id
func (f *Forest) Ancestor(id string, kind domain.Kind) (*domain.Node, bool) {
	n, ok := f.nodes[id]
	for ok && n.Parent != "" {
		n, ok = f.nodes[n.Parent]
		if ok && n.Kind == kind {
			return n, true
		}
	}
	return nil, false
}

// Walk visits id and its descendants depth first; returning false from fn skips the node's children
func (f *Forest) Walk(id string, fn func(n *domain.Node) bool) {
	n, ok := f.nodes[id]
	if !ok || !fn(n) {
		return
	}
	for _, cid := range n.Children {
		f.Walk(cid, fn)
	}
}

// Files returns every file node in discovery order
func (f *Forest) Files() []*domain.Node {
	var files []*domain.Node
	for _, id := range f.roots {
		f.Walk(id, func(n *domain.Node) bool {
			if n.Kind == domain.KindFile {
				files = append(files, n)
				return false
			}
			return n.Kind == domain.KindDirectory
		})
	}
	return files
}

// PathID returns the id of a directory or file path
func PathID(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// EnsureFile returns the file node for path, creating it and its directory chain when missing.
// New file nodes are unresolved: their content has not been scanned yet.
func (f *Forest) EnsureFile(path string) (*domain.Node, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%s is outside the project %s", path, f.root)
	}
	segments := strings.Split(rel, string(filepath.Separator))

	parent := ""
	current := f.root
	for i, segment := range segments {
		current = filepath.Join(current, segment)
		id := PathID(current)
		isFile := i == len(segments)-1

		n, ok := f.nodes[id]
		if !ok {
			kind := domain.KindDirectory
			if isFile {
				kind = domain.KindFile
			}
			n = &domain.Node{ID: id, Kind: kind, Label: segment, Path: current}
			f.attach(parent, n)
		} else if isFile && n.Kind != domain.KindFile {
			return nil, fmt.Errorf("%s is registered as a %s", id, n.Kind)
		}
		parent = id
		if isFile {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%s has no path segments", path)
}

// ReplaceChildren swaps the whole subtree below fileID for nodes.
// nodes are in pre-order with Parent and Children already linked; direct
// children of the file have Parent set to fileID.
func (f *Forest) ReplaceChildren(fileID string, nodes []*domain.Node) error {
	file, ok := f.nodes[fileID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	for _, cid := range file.Children {
		f.drop(cid)
	}
	file.Children = nil

	for _, n := range nodes {
		f.nodes[n.ID] = n
		if n.Parent == fileID {
			file.Children = append(file.Children, n.ID)
		}
	}
	return nil
}

// Remove deletes id with its subtree and prunes directories left without files
func (f *Forest) Remove(id string) bool {
	n, ok := f.nodes[id]
	if !ok {
		return false
	}
	parent := n.Parent
	f.detach(parent, id)
	f.drop(id)

	for parent != "" {
		p, ok := f.nodes[parent]
		if !ok || p.Kind != domain.KindDirectory || len(p.Children) > 0 {
			break
		}
		next := p.Parent
		f.detach(next, parent)
		delete(f.nodes, parent)
		parent = next
	}
	return true
}

func (f *Forest) attach(parent string, n *domain.Node) {
	n.Parent = parent
	f.nodes[n.ID] = n
	if parent == "" {
		f.roots = append(f.roots, n.ID)
		return
	}
	p := f.nodes[parent]
	p.Children = append(p.Children, n.ID)
}

func (f *Forest) detach(parent, id string) {
	if parent == "" {
		f.roots = without(f.roots, id)
		return
	}
	if p, ok := f.nodes[parent]; ok {
		p.Children = without(p.Children, id)
	}
}

// drop deletes id and its descendants from the arena without touching the parent
func (f *Forest) drop(id string) {
	n, ok := f.nodes[id]
	if !ok {
		return
	}
	for _, cid := range n.Children {
		f.drop(cid)
	}
	delete(f.nodes, id)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
