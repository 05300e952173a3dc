package manifest_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/treediff/internal/manifest"
	"github.com/temirov/treediff/internal/repos/filesystem"
	"github.com/temirov/treediff/internal/shared"
)

const (
	manifestDirectoryPermissionsConstant = 0o755
	manifestFilePermissionsConstant      = 0o644
	repoMetadataDirectoryNameConstant    = ".repo"
	manifestFileNameConstant             = "manifest.xml"
	includeDirectoryNameConstant         = "manifests"
)

func writeManifest(testInstance *testing.T, treeRoot string, relativePath string, contents string) {
	testInstance.Helper()
	absolutePath := filepath.Join(treeRoot, relativePath)
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(absolutePath), manifestDirectoryPermissionsConstant))
	require.NoError(testInstance, os.WriteFile(absolutePath, []byte(contents), manifestFilePermissionsConstant))
}

func TestResolverResolve(testInstance *testing.T) {
	testCases := []struct {
		name     string
		files    map[string]string
		expected []shared.SubProject
		warnings int
	}{
		{
			name: "remotes_default_and_paths",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<?xml version="1.0" encoding="UTF-8"?>
<manifest>
  <remote name="aosp" fetch="https://android.googlesource.com/" />
  <remote name="vendor" fetch="https://git.vendor.example/" />
  <default remote="aosp" revision="main" />
  <project name="platform/build" path="build/make" />
  <project name="platform/bionic" />
  <project name="vendor/hal" path="vendor/hal" remote="vendor" />
</manifest>`,
			},
			expected: []shared.SubProject{
				{Name: "platform/build", RelativePath: "build/make", RemoteName: "aosp", RemoteURL: "https://android.googlesource.com"},
				{Name: "platform/bionic", RelativePath: "platform/bionic", RemoteName: "aosp", RemoteURL: "https://android.googlesource.com"},
				{Name: "vendor/hal", RelativePath: "vendor/hal", RemoteName: "vendor", RemoteURL: "https://git.vendor.example"},
			},
		},
		{
			name: "unresolved_remote_skipped",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest>
  <remote name="aosp" fetch="https://android.googlesource.com" />
  <project name="platform/build" remote="aosp" />
  <project name="device/ghost" remote="missing" />
</manifest>`,
			},
			expected: []shared.SubProject{
				{Name: "platform/build", RelativePath: "platform/build", RemoteName: "aosp", RemoteURL: "https://android.googlesource.com"},
			},
			warnings: 1,
		},
		{
			name: "include_expands_in_place_and_remove_project",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest>
  <include name="default.xml" />
  <remove-project name="platform/obsolete" />
  <project name="local/tools" path="tools" />
</manifest>`,
				filepath.Join(repoMetadataDirectoryNameConstant, includeDirectoryNameConstant, "default.xml"): `<manifest>
  <remote name="aosp" fetch="https://android.googlesource.com" />
  <default remote="aosp" />
  <project name="platform/build" />
  <project name="platform/obsolete" />
  <include name="nested/extra.xml" />
</manifest>`,
				filepath.Join(repoMetadataDirectoryNameConstant, includeDirectoryNameConstant, "nested", "extra.xml"): `<manifest>
  <project name="platform/art" path="art" />
</manifest>`,
			},
			expected: []shared.SubProject{
				{Name: "platform/build", RelativePath: "platform/build", RemoteName: "aosp", RemoteURL: "https://android.googlesource.com"},
				{Name: "platform/art", RelativePath: "art", RemoteName: "aosp", RemoteURL: "https://android.googlesource.com"},
				{Name: "local/tools", RelativePath: "tools", RemoteName: "aosp", RemoteURL: "https://android.googlesource.com"},
			},
		},
		{
			name: "duplicate_project_keeps_first_position",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest>
  <project name="platform/build" path="old/build" />
  <project name="platform/art" />
  <project name="platform/build" path="build" />
</manifest>`,
			},
			expected: []shared.SubProject{
				{Name: "platform/build", RelativePath: "build"},
				{Name: "platform/art", RelativePath: "platform/art"},
			},
			warnings: 1,
		},
		{
			name: "trailing_comment_and_whitespace",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest>
  <project name="platform/build" path="build" />
</manifest>
<!-- generated by repo manifest -r -->

`,
			},
			expected: []shared.SubProject{
				{Name: "platform/build", RelativePath: "build"},
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			treeRoot := testInstance.TempDir()
			for relativePath, contents := range testCase.files {
				writeManifest(testInstance, treeRoot, relativePath, contents)
			}

			observedCore, observedLogs := observer.New(zapcore.WarnLevel)
			resolver := manifest.NewResolver(filesystem.OSFileSystem{}, zap.New(observedCore), "")

			subProjects, resolveError := resolver.Resolve(shared.TreeReference, treeRoot)
			require.NoError(testInstance, resolveError)

			expected := make([]shared.SubProject, 0, len(testCase.expected))
			for _, subProject := range testCase.expected {
				subProject.Tree = shared.TreeReference
				subProject.Path = filepath.Join(treeRoot, filepath.FromSlash(subProject.RelativePath))
				expected = append(expected, subProject)
			}
			require.Equal(testInstance, expected, subProjects)
			require.Equal(testInstance, testCase.warnings, observedLogs.Len())

			repeatedProjects, repeatError := resolver.Resolve(shared.TreeReference, treeRoot)
			require.NoError(testInstance, repeatError)
			require.Equal(testInstance, subProjects, repeatedProjects)
		})
	}
}

func TestResolverErrors(testInstance *testing.T) {
	testCases := []struct {
		name          string
		files         map[string]string
		expectedError error
	}{
		{
			name:          "missing_manifest",
			expectedError: manifest.ErrManifestNotFound,
		},
		{
			name: "malformed_markup",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest><project name="a">`,
			},
			expectedError: manifest.ErrManifestParse,
		},
		{
			name: "trailing_unclosed_markup",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest><project name="a" /></manifest><project name="b"`,
			},
			expectedError: manifest.ErrManifestParse,
		},
		{
			name: "trailing_second_root",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest><project name="a" /></manifest><manifest />`,
			},
			expectedError: manifest.ErrManifestParse,
		},
		{
			name: "trailing_text",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): "<manifest><project name=\"a\" /></manifest>\nleftover",
			},
			expectedError: manifest.ErrManifestParse,
		},
		{
			name: "project_without_name",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest><project path="a" /></manifest>`,
			},
			expectedError: manifest.ErrManifestParse,
		},
		{
			name: "remote_without_fetch",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest><remote name="aosp" /></manifest>`,
			},
			expectedError: manifest.ErrManifestParse,
		},
		{
			name: "missing_include",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<manifest><include name="absent.xml" /></manifest>`,
			},
			expectedError: manifest.ErrManifestParse,
		},
		{
			name: "include_cycle",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant):                 `<manifest><include name="loop.xml" /></manifest>`,
				filepath.Join(repoMetadataDirectoryNameConstant, includeDirectoryNameConstant, "loop.xml"): `<manifest><include name="loop.xml" /></manifest>`,
			},
			expectedError: manifest.ErrManifestParse,
		},
		{
			name: "wrong_root_element",
			files: map[string]string{
				filepath.Join(repoMetadataDirectoryNameConstant, manifestFileNameConstant): `<projects><project name="a" /></projects>`,
			},
			expectedError: manifest.ErrManifestParse,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			treeRoot := testInstance.TempDir()
			for relativePath, contents := range testCase.files {
				writeManifest(testInstance, treeRoot, relativePath, contents)
			}

			resolver := manifest.NewResolver(filesystem.OSFileSystem{}, zap.NewNop(), "")
			_, resolveError := resolver.Resolve(shared.TreeDerivative, treeRoot)
			require.ErrorIs(testInstance, resolveError, testCase.expectedError)
		})
	}
}

func TestResolverCustomManifestPath(testInstance *testing.T) {
	treeRoot := testInstance.TempDir()
	writeManifest(testInstance, treeRoot, filepath.Join("meta", "tree.xml"), `<manifest><project name="kernel/common" path="kernel" /></manifest>`)

	resolver := manifest.NewResolver(filesystem.OSFileSystem{}, nil, "meta/tree.xml")
	require.Equal(testInstance, filepath.Join(treeRoot, "meta", "tree.xml"), resolver.ManifestPath(treeRoot))

	subProjects, resolveError := resolver.Resolve(shared.TreeDerivative, treeRoot)
	require.NoError(testInstance, resolveError)
	require.Len(testInstance, subProjects, 1)
	require.Equal(testInstance, "kernel/common", subProjects[0].Name)
	require.Empty(testInstance, subProjects[0].RemoteURL)
	require.Equal(testInstance, shared.TreeDerivative, subProjects[0].Tree)
}
