package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/shared"
)

const (
	// DefaultManifestRelativePath is the repo-tool manifest location inside a tree root.
	DefaultManifestRelativePath = ".repo/manifest.xml"
	// MaximumIncludeDepth bounds nested include expansion.
	MaximumIncludeDepth = 8

	includeDirectoryNameConstant           = "manifests"
	fetchTrailingSeparatorConstant         = "/"
	missingAttributeReasonTemplateConstant = "<%s> element without %q attribute"
	includeDepthReasonTemplateConstant     = "include nesting deeper than %d at %q"
	includeMissingReasonTemplateConstant   = "included manifest %q not found"
	readFailureReasonTemplateConstant      = "read failed: %v"
	treeRootResolutionTemplateConstant     = "resolve tree root %s: %w"
	statFailureTemplateConstant            = "inspect manifest %s: %w"

	unresolvedRemoteMessageConstant = "Skipping project with unresolved remote"
	duplicateProjectMessageConstant = "Duplicate project declaration replaces earlier entry"
	unknownRemovalMessageConstant   = "remove-project names an undeclared project"
	manifestResolvedMessageConstant = "Resolved manifest"
	logFieldTreeConstant            = "tree"
	logFieldManifestConstant        = "manifest"
	logFieldProjectConstant         = "project"
	logFieldRemoteConstant          = "remote"
	logFieldSubProjectCountConstant = "sub_projects"
	logFieldSkippedProjectsConstant = "skipped_projects"
)

// Resolver parses tree manifests into sub-project descriptors.
type Resolver struct {
	fileSystem           shared.FileSystem
	logger               *zap.Logger
	manifestRelativePath string
}

// NewResolver constructs a Resolver. An empty manifest path selects DefaultManifestRelativePath.
func NewResolver(fileSystem shared.FileSystem, logger *zap.Logger, manifestRelativePath string) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	trimmedPath := strings.TrimSpace(manifestRelativePath)
	if len(trimmedPath) == 0 {
		trimmedPath = DefaultManifestRelativePath
	}
	return &Resolver{fileSystem: fileSystem, logger: logger, manifestRelativePath: filepath.FromSlash(trimmedPath)}
}

// ManifestPath returns the manifest file location for the tree root.
func (resolver *Resolver) ManifestPath(treeRoot string) string {
	if filepath.IsAbs(resolver.manifestRelativePath) {
		return resolver.manifestRelativePath
	}
	return filepath.Join(treeRoot, resolver.manifestRelativePath)
}

// Resolve parses the manifest of the tree rooted at treeRoot and returns its sub-projects in manifest order.
func (resolver *Resolver) Resolve(tree shared.Tree, treeRoot string) ([]shared.SubProject, error) {
	absoluteRoot, absError := resolver.fileSystem.Abs(treeRoot)
	if absError != nil {
		return nil, fmt.Errorf(treeRootResolutionTemplateConstant, treeRoot, absError)
	}

	manifestPath := resolver.ManifestPath(absoluteRoot)
	if _, statError := resolver.fileSystem.Stat(manifestPath); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return nil, ManifestNotFoundError{Path: manifestPath}
		}
		return nil, fmt.Errorf(statFailureTemplateConstant, manifestPath, statError)
	}

	state := newResolutionState()
	includeDirectory := filepath.Join(filepath.Dir(manifestPath), includeDirectoryNameConstant)
	if loadError := resolver.load(state, manifestPath, includeDirectory, 0); loadError != nil {
		return nil, loadError
	}

	subProjects := make([]shared.SubProject, 0, len(state.projects))
	skippedProjects := 0
	for _, declaration := range state.projects {
		if declaration.removed {
			continue
		}
		remoteName := declaration.remoteName
		if len(remoteName) == 0 {
			remoteName = state.defaultRemote
		}
		remoteURL := ""
		if len(remoteName) > 0 {
			fetchURL, known := state.remotes[remoteName]
			if !known {
				resolver.logger.Warn(
					unresolvedRemoteMessageConstant,
					zap.String(logFieldTreeConstant, string(tree)),
					zap.String(logFieldProjectConstant, declaration.name),
					zap.String(logFieldRemoteConstant, remoteName),
				)
				skippedProjects++
				continue
			}
			remoteURL = fetchURL
		}

		relativePath := filepath.Clean(filepath.FromSlash(declaration.path))
		subProjects = append(subProjects, shared.SubProject{
			Tree:         tree,
			Name:         declaration.name,
			Path:         filepath.Join(absoluteRoot, relativePath),
			RelativePath: filepath.ToSlash(relativePath),
			RemoteName:   remoteName,
			RemoteURL:    remoteURL,
		})
	}

	resolver.logger.Info(
		manifestResolvedMessageConstant,
		zap.String(logFieldTreeConstant, string(tree)),
		zap.String(logFieldManifestConstant, manifestPath),
		zap.Int(logFieldSubProjectCountConstant, len(subProjects)),
		zap.Int(logFieldSkippedProjectsConstant, skippedProjects),
	)

	return subProjects, nil
}

func (resolver *Resolver) load(state *resolutionState, manifestPath string, includeDirectory string, depth int) error {
	contents, readError := resolver.fileSystem.ReadFile(manifestPath)
	if readError != nil {
		return ManifestParseError{Path: manifestPath, Reason: fmt.Sprintf(readFailureReasonTemplateConstant, readError)}
	}

	document, decodeError := decodeDocument(contents)
	if decodeError != nil {
		return ManifestParseError{Path: manifestPath, Reason: decodeError.Error()}
	}

	for _, element := range document.Elements {
		switch element.XMLName.Local {
		case elementRemoteConstant:
			name, hasName := requiredAttribute(element, attributeNameConstant)
			if !hasName {
				return missingAttributeError(manifestPath, elementRemoteConstant, attributeNameConstant)
			}
			fetch, hasFetch := requiredAttribute(element, attributeFetchConstant)
			if !hasFetch {
				return missingAttributeError(manifestPath, elementRemoteConstant, attributeFetchConstant)
			}
			state.remotes[name] = strings.TrimRight(fetch, fetchTrailingSeparatorConstant)
		case elementDefaultConstant:
			if remoteName, hasRemote := requiredAttribute(element, attributeRemoteConstant); hasRemote {
				state.defaultRemote = remoteName
			}
		case elementProjectConstant:
			name, hasName := requiredAttribute(element, attributeNameConstant)
			if !hasName {
				return missingAttributeError(manifestPath, elementProjectConstant, attributeNameConstant)
			}
			path, hasPath := requiredAttribute(element, attributePathConstant)
			if !hasPath {
				path = name
			}
			remoteName, _ := requiredAttribute(element, attributeRemoteConstant)
			if state.declare(projectDeclaration{name: name, path: path, remoteName: remoteName}) {
				resolver.logger.Warn(
					duplicateProjectMessageConstant,
					zap.String(logFieldManifestConstant, manifestPath),
					zap.String(logFieldProjectConstant, name),
				)
			}
		case elementRemoveProjectConstant:
			name, hasName := requiredAttribute(element, attributeNameConstant)
			if !hasName {
				return missingAttributeError(manifestPath, elementRemoveProjectConstant, attributeNameConstant)
			}
			if !state.remove(name) {
				resolver.logger.Debug(
					unknownRemovalMessageConstant,
					zap.String(logFieldManifestConstant, manifestPath),
					zap.String(logFieldProjectConstant, name),
				)
			}
		case elementIncludeConstant:
			name, hasName := requiredAttribute(element, attributeNameConstant)
			if !hasName {
				return missingAttributeError(manifestPath, elementIncludeConstant, attributeNameConstant)
			}
			if depth+1 > MaximumIncludeDepth {
				return ManifestParseError{Path: manifestPath, Reason: fmt.Sprintf(includeDepthReasonTemplateConstant, MaximumIncludeDepth, name)}
			}
			includePath := filepath.Join(includeDirectory, filepath.FromSlash(name))
			if _, statError := resolver.fileSystem.Stat(includePath); statError != nil {
				return ManifestParseError{Path: manifestPath, Reason: fmt.Sprintf(includeMissingReasonTemplateConstant, name)}
			}
			if includeError := resolver.load(state, includePath, includeDirectory, depth+1); includeError != nil {
				return includeError
			}
		}
	}
	return nil
}

func requiredAttribute(element manifestElement, name string) (string, bool) {
	value, present := element.attribute(name)
	trimmed := strings.TrimSpace(value)
	if !present || len(trimmed) == 0 {
		return "", false
	}
	return trimmed, true
}

func missingAttributeError(manifestPath string, elementName string, attributeName string) error {
	return ManifestParseError{Path: manifestPath, Reason: fmt.Sprintf(missingAttributeReasonTemplateConstant, elementName, attributeName)}
}
