package discovery_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/treediff/internal/repos/discovery"
	"github.com/temirov/treediff/internal/repos/filesystem"
	"github.com/temirov/treediff/internal/shared"
)

const (
	repositoryDirectoryNameConstant        = "platform_build"
	plainDirectoryNameConstant             = "prebuilts"
	worktreeDirectoryNameConstant          = "external_worktree"
	regularFileNameConstant                = "README"
	missingDirectoryNameConstant           = "removed_project"
	gitMetadataEntryNameConstant           = ".git"
	repositoryDirectoryPermissionsConstant = 0o755
	regularFilePermissionsConstant         = 0o644
)

func TestFilesystemRepositoryProbeInspect(testFramework *testing.T) {
	temporaryRootDirectory := testFramework.TempDir()

	require.NoError(testFramework, os.MkdirAll(filepath.Join(temporaryRootDirectory, repositoryDirectoryNameConstant, gitMetadataEntryNameConstant), repositoryDirectoryPermissionsConstant))
	require.NoError(testFramework, os.MkdirAll(filepath.Join(temporaryRootDirectory, plainDirectoryNameConstant), repositoryDirectoryPermissionsConstant))
	require.NoError(testFramework, os.MkdirAll(filepath.Join(temporaryRootDirectory, worktreeDirectoryNameConstant), repositoryDirectoryPermissionsConstant))
	require.NoError(testFramework, os.WriteFile(filepath.Join(temporaryRootDirectory, worktreeDirectoryNameConstant, gitMetadataEntryNameConstant), []byte("gitdir: ../.repo/projects/external.git\n"), regularFilePermissionsConstant))
	require.NoError(testFramework, os.WriteFile(filepath.Join(temporaryRootDirectory, regularFileNameConstant), []byte("notes"), regularFilePermissionsConstant))

	testCases := []struct {
		name          string
		relativePath  string
		expectedState shared.RepositoryState
	}{
		{name: "repository", relativePath: repositoryDirectoryNameConstant, expectedState: shared.RepositoryStatePresent},
		{name: "gitdir_file", relativePath: worktreeDirectoryNameConstant, expectedState: shared.RepositoryStatePresent},
		{name: "plain_directory", relativePath: plainDirectoryNameConstant, expectedState: shared.RepositoryStateNotRepository},
		{name: "regular_file", relativePath: regularFileNameConstant, expectedState: shared.RepositoryStateNotDirectory},
		{name: "missing", relativePath: missingDirectoryNameConstant, expectedState: shared.RepositoryStateMissing},
	}

	repositoryProbe := discovery.NewFilesystemRepositoryProbe(filesystem.OSFileSystem{})
	for _, testCase := range testCases {
		testFramework.Run(testCase.name, func(testFramework *testing.T) {
			state, inspectError := repositoryProbe.Inspect(filepath.Join(temporaryRootDirectory, testCase.relativePath))
			require.NoError(testFramework, inspectError)
			require.Equal(testFramework, testCase.expectedState, state)
		})
	}
}
