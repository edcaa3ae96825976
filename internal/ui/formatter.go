package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"ftr/internal/config"
	"ftr/internal/domain"
	"ftr/internal/storage"
	"ftr/internal/tree"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
)

// Formatter formats and displays output
type Formatter struct {
	config *config.Config
	out    io.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(cfg *config.Config, out io.Writer) *Formatter {
	return &Formatter{config: cfg, out: out}
}

// FailedNodes returns the ids marked [F] in listings: every unresolved failed
// test of output together with its file.
func FailedNodes(output *domain.TestResultsOutput) map[string]struct{} {
	failed := make(map[string]struct{})
	if output == nil {
		return failed
	}
	for _, f := range output.Details {
		if f.Resolved {
			continue
		}
		failed[f.NodeID] = struct{}{}
		if f.FilePath != "" {
			failed[tree.PathID(f.FilePath)] = struct{}{}
		}
	}
	return failed
}

// PrintTestList prints the test files of the forest, optionally with their contracts and tests.
// Nodes in failed are marked with [F] in red.
func (f *Formatter) PrintTestList(forest *tree.Forest, showTestCases bool, failed map[string]struct{}) {
	files := forest.Files()
	cases := 0
	for _, file := range files {
		forest.Walk(file.ID, func(n *domain.Node) bool {
			if n.Kind == domain.KindCase {
				cases++
			}
			return true
		})
	}

	if showTestCases {
		green.Fprintf(f.out, "Found %d test file(s) with %d test(s):\n\n", len(files), cases)
	} else {
		green.Fprintf(f.out, "Found %d test file(s):\n\n", len(files))
	}

	for i, file := range files {
		isLastFile := i == len(files)-1
		connector, indent := "├── ", "│   "
		if isLastFile {
			connector, indent = "└── ", "    "
		}

		line := f.relPath(file.Path) + failMark(failed, file.ID)
		if file.Error != "" {
			line += " " + red.Sprintf("(unreadable: %s)", file.Error)
		}
		cyan.Fprintf(f.out, "%s%s\n", connector, line)

		if showTestCases {
			f.printChildren(forest, file.ID, indent, failed)
			if !isLastFile {
				fmt.Fprintln(f.out)
			}
		}
	}
}

func (f *Formatter) printChildren(forest *tree.Forest, id, prefix string, failed map[string]struct{}) {
	children := forest.Children(id)
	if len(children) == 0 {
		fmt.Fprintf(f.out, "%s└── %s\n", prefix, red.Sprint("(no tests found)"))
		return
	}
	for i, n := range children {
		connector, indent := "├── ", "│   "
		if i == len(children)-1 {
			connector, indent = "└── ", "    "
		}

		switch n.Kind {
		case domain.KindGroup:
			mark := ""
			for _, c := range n.Children {
				if _, ok := failed[c]; ok {
					mark = " " + red.Sprint("[F]")
					break
				}
			}
			fmt.Fprintf(f.out, "%s%s%s%s\n", prefix, connector, white.Sprint(n.Label), mark)
			f.printChildren(forest, n.ID, prefix+indent, failed)
		default:
			fmt.Fprintf(f.out, "%s%s%s%s\n", prefix, connector, yellow.Sprint(n.Label), failMark(failed, n.ID))
		}
	}
}

func failMark(failed map[string]struct{}, id string) string {
	if _, ok := failed[id]; ok {
		return " " + red.Sprint("[F]")
	}
	return ""
}

func (f *Formatter) relPath(path string) string {
	if rel, err := filepath.Rel(f.config.ProjectPath, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// PrintMetaStats displays the statistics of a run followed by its failures
func (f *Formatter) PrintMetaStats(output *domain.TestResultsOutput) {
	meta := output.Meta

	fmt.Fprintln(f.out)
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(f.out, "║                    Test Execution Statistics                  ║")
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")

	table := tablewriter.NewWriter(f.out)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.AppendBulk([][]string{
		{"Selected", strconv.Itoa(meta.Selected)},
		{"Passed Tests", green.Sprint(meta.PassedTests)},
		{"Failed Tests", red.Sprint(meta.FailedTests)},
		{"Skipped", yellow.Sprint(meta.SkippedNodes)},
		{"Errored", red.Sprint(meta.ErroredNodes)},
		{"Duration", fmt.Sprintf("%.2fs", meta.DurationSeconds)},
		{"Run ID", meta.RunID},
		{"Timestamp", meta.Timestamp},
	})
	table.Render()

	fmt.Fprintln(f.out)
	switch {
	case meta.FailedTests == 0 && meta.ErroredNodes == 0:
		green.Fprintln(f.out, "✓ All tests passed!")
	case meta.FailedTests == 0:
		red.Fprintf(f.out, "✗ forge could not run %d selection(s)\n", meta.ErroredNodes)
	default:
		red.Fprintf(f.out, "✗ %d test(s) failed\n\n", meta.FailedTests)
		f.printFailedTestsTree(output.Details)
	}
}

// treeNode is a directory or file in the failures tree
type treeNode struct {
	name     string
	children map[string]*treeNode
	failures []domain.TestFailure
	isFile   bool
}

// printFailedTestsTree prints failed tests grouped under their directories and files
func (f *Formatter) printFailedTestsTree(failures []domain.TestFailure) {
	root := &treeNode{children: make(map[string]*treeNode)}
	for _, failure := range failures {
		parts := strings.Split(f.relPath(failure.FilePath), "/")
		current := root
		for i, part := range parts {
			if part == "" || part == "." {
				continue
			}
			next, ok := current.children[part]
			if !ok {
				next = &treeNode{name: part, children: make(map[string]*treeNode), isFile: i == len(parts)-1}
				current.children[part] = next
			}
			current = next
		}
		current.failures = append(current.failures, failure)
	}
	f.printTreeNode(root, "")
}

func (f *Formatter) printTreeNode(node *treeNode, prefix string) {
	keys := make([]string, 0, len(node.children))
	for key := range node.children {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		child := node.children[key]
		connector, indent := "├── ", "│   "
		if i == len(keys)-1 {
			connector, indent = "└── ", "    "
		}

		if child.isFile {
			yellow.Fprintf(f.out, "%s%s%s\n", prefix, connector, child.name)
		} else {
			cyan.Fprintf(f.out, "%s%s%s\n", prefix, connector, child.name)
		}
		for j, failure := range child.failures {
			caseConnector := "├── "
			if j == len(child.failures)-1 && len(child.children) == 0 {
				caseConnector = "└── "
			}
			name := failure.TestName
			if failure.ContractName != "" {
				name = failure.ContractName + "::" + name
			}
			red.Fprintf(f.out, "%s%s%s\n", prefix+indent, caseConnector, name)
		}
		f.printTreeNode(child, prefix+indent)
	}
}

// PrintHistory prints recorded runs, most recent first
func (f *Formatter) PrintHistory(records []storage.RunRecord) {
	if len(records) == 0 {
		yellow.Fprintln(f.out, "No runs recorded yet")
		return
	}

	table := tablewriter.NewWriter(f.out)
	table.SetHeader([]string{"Started", "Run ID", "Selected", "Passed", "Failed", "Skipped", "Errored", "Duration"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	for _, r := range records {
		table.Append([]string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.RunID,
			strconv.Itoa(r.Selected),
			strconv.Itoa(r.Passed),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Errored),
			r.Duration.String(),
		})
	}
	table.Render()
}
