package discovery

import (
	"strings"

	"ftr/internal/domain"
)

// Lexical markers recognised in Solidity test sources
const (
	GroupKeyword = "contract"
	SuiteMarker  = "Test"
	CaseKeyword  = "function"
	CaseMarker   = "test"
)

// Parser extracts contract and test declarations from Solidity source text.
// It does not track braces: a test belongs to the closest contract declared above it.
type Parser struct {
	exclusions Exclusions
}

// NewParser creates a new Parser applying the given exclusions
func NewParser(exclusions Exclusions) *Parser {
	return &Parser{exclusions: exclusions}
}

// Parse scans text line by line and returns declarations in document order.
// Tests of an excluded contract are dropped along with it.
func (p *Parser) Parse(text string) []domain.Declaration {
	var decls []domain.Declaration
	currentGroup := ""
	groupExcluded := false

	for i, line := range strings.Split(text, "\n") {
		if name, ok := groupName(line); ok {
			if p.exclusions.ExcludesGroup(name) {
				currentGroup, groupExcluded = "", true
				continue
			}
			currentGroup, groupExcluded = name, false
			decls = append(decls, domain.Declaration{
				Kind:  domain.DeclGroup,
				Name:  name,
				Range: lineRange(i, line, name),
			})
			continue
		}

		name, ok := caseName(line)
		if !ok || groupExcluded || p.exclusions.ExcludesCase(name) {
			continue
		}
		decls = append(decls, domain.Declaration{
			Kind:  domain.DeclCase,
			Name:  name,
			Group: currentGroup,
			Range: lineRange(i, line, name),
		})
	}

	return decls
}

// groupName reports the contract name when the line declares a test suite.
// The line must contain both markers; the name is the token after the keyword.
func groupName(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.Contains(trimmed, GroupKeyword) || !strings.Contains(trimmed, SuiteMarker) {
		return "", false
	}
	tokens := strings.Fields(trimmed)
	for i := 0; i < len(tokens)-1; i++ {
		if tokens[i] != GroupKeyword {
			continue
		}
		name := tokens[i+1]
		if idx := strings.IndexAny(name, "{("); idx >= 0 {
			name = name[:idx]
		}
		if name != "" {
			return name, true
		}
	}
	return "", false
}

// caseName reports the test name when the line declares a test function
func caseName(line string) (string, bool) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 || tokens[0] != CaseKeyword || !strings.HasPrefix(tokens[1], CaseMarker) {
		return "", false
	}
	name, _, _ := strings.Cut(tokens[1], "(")
	return name, true
}

func lineRange(line int, text, name string) domain.Range {
	col := strings.Index(text, name)
	if col < 0 {
		col = 0
	}
	return domain.Range{
		Start: domain.Position{Line: line, Character: col},
		End:   domain.Position{Line: line, Character: col + len(name)},
	}
}
