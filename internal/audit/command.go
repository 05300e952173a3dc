package audit

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/treediff/internal/store"
	"github.com/temirov/treediff/internal/ui"
)

const (
	unexpectedArgumentsTemplateConstant = "%s does not accept positional arguments"
	storeCloseFailedMessageConstant     = "closing store failed"
	yamlIndentConstant                  = 2
)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the loaded audit configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the audit cobra commands with configurable dependencies.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider func() bool
	Collaborators                Collaborators
}

type storeAction func(executionContext context.Context, configuration CommandConfiguration, openedStore *store.Store, logger *zap.Logger) error

// Build constructs the scan, reanalyze, reset, commits, siblings, and quality commands.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	return []*cobra.Command{
		builder.buildScanCommand(),
		builder.buildReanalyzeCommand(),
		builder.buildResetCommand(),
		builder.buildCommitsCommand(),
		builder.buildSiblingsCommand(),
		builder.buildQualityCommand(),
	}, nil
}

func (builder *CommandBuilder) runWithStore(command *cobra.Command, arguments []string, configuration CommandConfiguration, action storeAction) (runError error) {
	if len(arguments) > 0 {
		return fmt.Errorf(unexpectedArgumentsTemplateConstant, command.Name())
	}

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}

	logger := builder.resolveLogger()
	openedStore, openError := openStore(executionContext, configuration, builder.Collaborators, logger)
	if openError != nil {
		return openError
	}
	defer func() {
		if closeError := openedStore.Close(); closeError != nil {
			logger.Warn(storeCloseFailedMessageConstant, zap.Error(closeError))
			runError = errors.Join(runError, closeError)
		}
	}()

	return action(executionContext, configuration, openedStore, logger)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}

// resolveCollaborators attaches a console command renderer when human-readable logging is enabled.
func (builder *CommandBuilder) resolveCollaborators(logger *zap.Logger) Collaborators {
	collaborators := builder.Collaborators
	if collaborators.CommandEventsObserver != nil || builder.HumanReadableLoggingProvider == nil {
		return collaborators
	}
	if builder.HumanReadableLoggingProvider() {
		collaborators.CommandEventsObserver = ui.NewConsoleCommandEventLogger(logger)
	}
	return collaborators
}

func writeYAML(writer io.Writer, value any) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(yamlIndentConstant)
	if encodeError := encoder.Encode(value); encodeError != nil {
		return encodeError
	}
	return encoder.Close()
}
