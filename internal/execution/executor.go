package execution

import (
	"context"

	"ftr/internal/domain"
)

// Executor runs a single forge invocation to completion
type Executor interface {
	Run(ctx context.Context, inv Invocation) (domain.ExecResult, error)
}
