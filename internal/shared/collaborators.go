package shared

import (
	"context"
	"io/fs"

	"github.com/temirov/treediff/internal/execshell"
)

// FileSystem exposes the filesystem operations required by manifest resolution and storage.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Abs(path string) (string, error)
	ReadFile(path string) ([]byte, error)
	MkdirAll(path string, permissions fs.FileMode) error
}

// RepositoryState describes what a probe found at a sub-project path.
type RepositoryState int

// Repository states reported by RepositoryProbe.
const (
	RepositoryStatePresent RepositoryState = iota
	RepositoryStateMissing
	RepositoryStateNotDirectory
	RepositoryStateNotRepository
)

// RepositoryProbe classifies a directory before its history is read.
type RepositoryProbe interface {
	Inspect(path string) (RepositoryState, error)
}

// GitExecutor exposes the ability to run git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}
