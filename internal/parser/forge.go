package parser

import (
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"ftr/internal/domain"
)

// FailingTestsMarker starts forge's recap of failures; nothing after it is new
const FailingTestsMarker = "Failing tests:"

var (
	// [PASS] testA() (gas: 1234)
	// [FAIL. Reason: revert] testB() (gas: 1234)
	// [FAIL: revert] testB() (gas: 1234)
	resultRe = regexp.MustCompile(`\[(PASS|FAIL(?:\. Reason: (.+)|: (.+))?)\] ([^(]+)\(`)
	// Running 2 tests for test/Foo.t.sol:FooTest
	// Ran 2 tests for test/Foo.t.sol:FooTest
	sectionRe = regexp.MustCompile(`(?:Running|Ran) \d+ tests? for (.+):(\S+)`)
)

// ForgeParser parses `forge test` output
type ForgeParser struct {
	logger *slog.Logger
}

// NewForgeParser creates a new ForgeParser
func NewForgeParser(logger *slog.Logger) *ForgeParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForgeParser{logger: logger}
}

// Parse strips colors and collects every result line that follows a section header.
// Lines it does not recognise are skipped; parsing stops at the failing tests recap.
func (p *ForgeParser) Parse(output string) domain.ResultTable {
	results := make(domain.ResultTable)
	var filename, displayPath, contract string

	for _, line := range strings.Split(ansi.Strip(output), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == FailingTestsMarker {
			break
		}

		if m := sectionRe.FindStringSubmatch(line); m != nil {
			displayPath = m[1]
			filename = path.Base(displayPath)
			contract = m[2]
			p.logger.Debug("parsing results: found section", "path", displayPath, "contract", contract)
			continue
		}

		if filename == "" || contract == "" {
			continue
		}
		m := resultRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		outcome := domain.Outcome{DisplayPath: displayPath}
		if m[1] != "PASS" {
			outcome.Failed = true
			outcome.FailMessage = m[2] + m[3]
		}
		name := strings.TrimSpace(m[4])
		results.Add(filename, contract, name, outcome)
		p.logger.Debug("parsing results: found result", "file", filename, "contract", contract, "test", name, "failed", outcome.Failed)
	}

	p.logger.Debug("parsing results: done", "results", results.Len())
	return results
}
