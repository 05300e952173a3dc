package dependencies

import (
	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/execshell"
	"github.com/temirov/treediff/internal/repos/discovery"
	"github.com/temirov/treediff/internal/repos/filesystem"
	"github.com/temirov/treediff/internal/shared"
)

// ResolveFileSystem returns the provided filesystem or an OS-backed default.
func ResolveFileSystem(existing shared.FileSystem) shared.FileSystem {
	if existing != nil {
		return existing
	}
	return filesystem.OSFileSystem{}
}

// ResolveRepositoryProbe returns the provided probe or one reading through fileSystem.
func ResolveRepositoryProbe(existing shared.RepositoryProbe, fileSystem shared.FileSystem) shared.RepositoryProbe {
	if existing != nil {
		return existing
	}
	return discovery.NewFilesystemRepositoryProbe(ResolveFileSystem(fileSystem))
}

// ResolveGitExecutor returns the provided executor or constructs a shell-backed default.
func ResolveGitExecutor(existing shared.GitExecutor, logger *zap.Logger, observers ...execshell.CommandEventObserver) (shared.GitExecutor, error) {
	if existing != nil {
		return existing, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	commandRunner := execshell.NewOSCommandRunner()
	shellExecutor, creationError := execshell.NewShellExecutor(logger, commandRunner, observers...)
	if creationError != nil {
		return nil, creationError
	}
	return shellExecutor, nil
}
