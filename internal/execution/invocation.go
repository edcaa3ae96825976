package execution

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"ftr/internal/domain"
	"ftr/internal/tree"
)

// ErrNoProject is returned when no ancestor directory holds the project marker
var ErrNoProject = errors.New("no foundry project found")

// Scope narrows a forge invocation. Empty fields add no filter.
type Scope struct {
	Path     string // file or directory the run is limited to
	Label    string // base name of Path as shown in the forest
	IsDir    bool
	Contract string
	Test     string
}

// ScopeFor derives the scope of a forest node
func ScopeFor(forest *tree.Forest, n *domain.Node) Scope {
	var s Scope
	switch n.Kind {
	case domain.KindDirectory:
		s.Path, s.Label, s.IsDir = n.Path, n.Label, true
		return s
	case domain.KindFile:
		s.Path, s.Label = n.Path, n.Label
		return s
	case domain.KindGroup:
		s.Contract = n.Label
	case domain.KindCase:
		s.Test = n.Label
		if g, ok := forest.Ancestor(n.ID, domain.KindGroup); ok {
			s.Contract = g.Label
		}
	}
	if f, ok := forest.Ancestor(n.ID, domain.KindFile); ok {
		s.Path, s.Label = f.Path, f.Label
	}
	return s
}

// Invocation is a forge command line and the directory it runs in
type Invocation struct {
	Args []string
	Dir  string
}

// String renders the invocation for transcripts
func (i Invocation) String() string {
	quoted := make([]string, len(i.Args))
	for n, arg := range i.Args {
		if strings.ContainsAny(arg, " *\"") {
			arg = `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
		}
		quoted[n] = arg
	}
	return strings.Join(quoted, " ")
}

// NewInvocation builds `forge test` arguments for scope. Filters are additive:
// every known part of the scope adds its own flag.
func NewInvocation(forgePath, verbosity string, scope Scope, dir string) Invocation {
	args := []string{forgePath, "test"}
	args = append(args, strings.Fields(verbosity)...)
	args = append(args, "--color", "always")

	if scope.Label != "" {
		pattern := "**/" + scope.Label
		if scope.IsDir {
			pattern += "/**"
		}
		args = append(args, "--match-path", pattern)
	}
	if scope.Contract != "" {
		args = append(args, "--match-contract", scope.Contract)
	}
	if scope.Test != "" {
		args = append(args, "--match-test", scope.Test)
	}
	return Invocation{Args: args, Dir: dir}
}

// FindProjectRoot walks up from start to the closest directory containing marker
func FindProjectRoot(start, marker string) (string, error) {
	if start == "" {
		return "", ErrNoProject
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProject
		}
		dir = parent
	}
}
