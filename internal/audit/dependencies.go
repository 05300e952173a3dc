package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/commits"
	"github.com/temirov/treediff/internal/execshell"
	"github.com/temirov/treediff/internal/manifest"
	"github.com/temirov/treediff/internal/repos/dependencies"
	"github.com/temirov/treediff/internal/scan"
	"github.com/temirov/treediff/internal/shared"
	"github.com/temirov/treediff/internal/store"
	"github.com/temirov/treediff/internal/utils/flags"
	pathutils "github.com/temirov/treediff/internal/utils/path"
)

const (
	unsupportedBackendTemplateConstant = "scan backend: %w"
	openStoreErrorTemplateConstant     = "unable to open store: %w"
)

// Collaborators overrides the default implementations wired by the commands.
type Collaborators struct {
	FileSystem            shared.FileSystem
	RepositoryProbe       shared.RepositoryProbe
	GitExecutor           shared.GitExecutor
	LogSource             commits.LogSource
	CommandEventsObserver execshell.CommandEventObserver
	Clock                 shared.Clock
	RunIDGenerator        RunIDGenerator
}

// openStore opens the configured database with a home-expanded path.
func openStore(executionContext context.Context, configuration CommandConfiguration, collaborators Collaborators, logger *zap.Logger) (*store.Store, error) {
	storePath := pathutils.NewHomeExpander().Expand(configuration.Store.Path)
	openedStore, openError := store.Open(executionContext, store.Options{
		Path:       storePath,
		Logger:     logger,
		Clock:      collaborators.Clock,
		FileSystem: dependencies.ResolveFileSystem(collaborators.FileSystem),
	})
	if openError != nil {
		return nil, fmt.Errorf(openStoreErrorTemplateConstant, openError)
	}
	return openedStore, nil
}

// buildService wires a Service over an opened store.
func buildService(configuration CommandConfiguration, collaborators Collaborators, persistence Persistence, logger *zap.Logger, onRunStarted RunObserver) (*Service, error) {
	fileSystem := dependencies.ResolveFileSystem(collaborators.FileSystem)

	logSource, sourceError := resolveLogSource(configuration, collaborators, logger)
	if sourceError != nil {
		return nil, sourceError
	}

	commitScanner := commits.NewScanner(
		dependencies.ResolveRepositoryProbe(collaborators.RepositoryProbe, fileSystem),
		logSource,
		commits.ScannerOptions{IdentifierKeys: configuration.Scan.IdentifierKeys, MaxCount: configuration.Scan.MaxCount},
		logger,
	)

	return NewService(ServiceOptions{
		Resolver:         manifest.NewResolver(fileSystem, logger, configuration.Manifest.Path),
		Scanner:          scan.NewOrchestrator(commitScanner, configuration.Scan.Workers, logger),
		Store:            persistence,
		Logger:           logger,
		Clock:            collaborators.Clock,
		SubscriberBuffer: configuration.Progress.Buffer,
		RunIDGenerator:   collaborators.RunIDGenerator,
		OnRunStarted:     onRunStarted,
	}), nil
}

func resolveLogSource(configuration CommandConfiguration, collaborators Collaborators, logger *zap.Logger) (commits.LogSource, error) {
	if collaborators.LogSource != nil {
		return collaborators.LogSource, nil
	}

	backend, backendError := flags.ParseChoice(configuration.Scan.Backend, []string{string(commits.BackendCommand), string(commits.BackendGoGit)})
	if backendError != nil {
		return nil, fmt.Errorf(unsupportedBackendTemplateConstant, backendError)
	}

	if commits.Backend(backend) == commits.BackendGoGit {
		return commits.NewGoGitLogSource(configuration.Scan.Timeout), nil
	}

	gitExecutor, executorError := dependencies.ResolveGitExecutor(collaborators.GitExecutor, logger, collaborators.CommandEventsObserver)
	if executorError != nil {
		return nil, executorError
	}
	return commits.NewCommandLogSource(gitExecutor, configuration.Scan.Timeout), nil
}
