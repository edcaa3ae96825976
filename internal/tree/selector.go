package tree

import (
	"fmt"
	"path/filepath"
	"strings"

	"ftr/internal/domain"
)

// Find resolves a node id or a selector of the form path[:Contract[::test]].
// path matches a file or directory whose path ends with it.
func (f *Forest) Find(selector string) (*domain.Node, error) {
	if n, ok := f.nodes[selector]; ok {
		return n, nil
	}

	head, test, _ := strings.Cut(selector, "::")
	path, contract, _ := strings.Cut(head, ":")
	path = strings.TrimSuffix(filepath.ToSlash(path), "/")
	if path == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrNotFound)
	}

	var matches []*domain.Node
	for id, n := range f.nodes {
		if n.Kind != domain.KindFile && n.Kind != domain.KindDirectory {
			continue
		}
		if id == path || strings.HasSuffix(id, "/"+path) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	case 1:
	default:
		return nil, fmt.Errorf("selector %q is ambiguous: %d paths match", selector, len(matches))
	}

	node := matches[0]
	if contract == "" {
		if test != "" {
			return nil, fmt.Errorf("selector %q names a test without its contract", selector)
		}
		return node, nil
	}
	if node, ok := f.child(node, contract); ok {
		if test == "" {
			return node, nil
		}
		if tc, ok := f.child(node, test); ok {
			return tc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
}

func (f *Forest) child(n *domain.Node, label string) (*domain.Node, bool) {
	for _, c := range f.Children(n.ID) {
		if c.Label == label {
			return c, true
		}
	}
	return nil, false
}
