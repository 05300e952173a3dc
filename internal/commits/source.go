package commits

import (
	"context"

	"github.com/temirov/treediff/internal/shared"
)

// LogSource streams the commit history of one sub-project through ParseOptions and visit.
type LogSource interface {
	Stream(executionContext context.Context, subProject shared.SubProject, options ParseOptions, visit func(shared.CommitRecord) error) (ParseStatistics, error)
}

// Backend names a LogSource implementation.
type Backend string

// Supported backends.
const (
	BackendCommand Backend = "cli"
	BackendGoGit   Backend = "go-git"
)
