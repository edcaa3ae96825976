package parser

import "ftr/internal/domain"

// Parser turns raw tool output into a result table
type Parser interface {
	Parse(output string) domain.ResultTable
}
