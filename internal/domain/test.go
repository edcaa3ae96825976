package domain

// Kind identifies the level of a node in the test forest
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
	KindGroup
	KindCase
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindGroup:
		return "contract"
	case KindCase:
		return "test"
	}
	return "unknown"
}

// IsSuite reports whether the node aggregates other nodes
func (k Kind) IsSuite() bool {
	return k != KindCase
}

// Position is a 0-based line/column position within a source file
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a navigable span within a source file
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// DeclarationKind is the kind of a scanned declaration
type DeclarationKind int

const (
	DeclGroup DeclarationKind = iota
	DeclCase
)

// Declaration is a single group or case found by the source parser.
// Group is the name of the most recent group declared above a case, empty
// when the case precedes every group declaration.
type Declaration struct {
	Kind  DeclarationKind
	Name  string
	Group string
	Range Range
}

// Node is a single entry of the test forest.
// Children are owned by the node; Parent is a lookup key only.
type Node struct {
	ID         string
	Kind       Kind
	Label      string
	Path       string // file-system path of the directory or file the node lives in
	Range      *Range
	Generation uint64
	Children   []string
	Parent     string
	Resolved   bool   // file content has been scanned at least once
	Error      string // set when the file content could not be read
}
