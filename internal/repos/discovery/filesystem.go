package discovery

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/temirov/treediff/internal/shared"
)

const gitMetadataEntryNameConstant = ".git"

// FilesystemRepositoryProbe inspects sub-project directories on disk.
type FilesystemRepositoryProbe struct {
	fileSystem shared.FileSystem
}

// NewFilesystemRepositoryProbe constructs a probe reading through the provided filesystem.
func NewFilesystemRepositoryProbe(fileSystem shared.FileSystem) *FilesystemRepositoryProbe {
	return &FilesystemRepositoryProbe{fileSystem: fileSystem}
}

// Inspect reports whether the path exists, is a directory, and carries a .git entry.
// A .git file (worktree or submodule link) counts as repository metadata.
func (probe *FilesystemRepositoryProbe) Inspect(path string) (shared.RepositoryState, error) {
	directoryInfo, statError := probe.fileSystem.Stat(path)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return shared.RepositoryStateMissing, nil
		}
		return shared.RepositoryStateMissing, statError
	}
	if !directoryInfo.IsDir() {
		return shared.RepositoryStateNotDirectory, nil
	}

	_, metadataError := probe.fileSystem.Stat(filepath.Join(path, gitMetadataEntryNameConstant))
	if metadataError != nil {
		if errors.Is(metadataError, fs.ErrNotExist) {
			return shared.RepositoryStateNotRepository, nil
		}
		return shared.RepositoryStateNotRepository, metadataError
	}
	return shared.RepositoryStatePresent, nil
}
