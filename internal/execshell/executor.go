package execshell

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

const (
	logFieldCommandConstant          = "command"
	logFieldArgumentsConstant        = "arguments"
	logFieldWorkingDirectoryConstant = "working_directory"
	logFieldExitCodeConstant         = "exit_code"
	logFieldOutputBytesConstant      = "output_bytes"
)

// ShellExecutor runs external commands with structured logging and observer notifications.
type ShellExecutor struct {
	logger    *zap.Logger
	runner    CommandRunner
	observers []CommandEventObserver
	formatter CommandMessageFormatter
}

// NewShellExecutor constructs a ShellExecutor around the provided runner.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, observers ...CommandEventObserver) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	activeObservers := make([]CommandEventObserver, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			activeObservers = append(activeObservers, observer)
		}
	}

	return &ShellExecutor{logger: logger, runner: runner, observers: activeObservers}, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// Execute runs the command, applying its timeout and classifying failures.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	runContext := executionContext
	if command.Details.Timeout > 0 {
		var cancel context.CancelFunc
		runContext, cancel = context.WithTimeout(executionContext, command.Details.Timeout)
		defer cancel()
	}

	executor.logger.Debug(
		executor.formatter.BuildStartedMessage(command),
		zap.String(logFieldCommandConstant, string(command.Name)),
		zap.String(logFieldArgumentsConstant, strings.Join(command.Details.Arguments, commandArgumentsLabelSeparatorConstant)),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	)
	executor.notifyStarted(command)

	executionResult, runError := executor.runner.Run(runContext, command)
	if runError != nil {
		classifiedError := classifyRunError(runContext, command, runError)
		executor.logger.Warn(
			executor.formatter.BuildExecutionFailureMessage(command, classifiedError),
			zap.String(logFieldCommandConstant, string(command.Name)),
			zap.Error(classifiedError),
		)
		executor.notifyExecutionFailed(command, classifiedError)
		return ExecutionResult{}, classifiedError
	}

	executor.notifyCompleted(command, executionResult)

	if executionResult.ExitCode != 0 {
		executor.logger.Warn(
			executor.formatter.BuildFailureMessage(command, executionResult),
			zap.String(logFieldCommandConstant, string(command.Name)),
			zap.Int(logFieldExitCodeConstant, executionResult.ExitCode),
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logger.Debug(
		executor.formatter.BuildSuccessMessage(command),
		zap.String(logFieldCommandConstant, string(command.Name)),
		zap.Int(logFieldOutputBytesConstant, len(executionResult.StandardOutput)),
	)

	return executionResult, nil
}

func classifyRunError(runContext context.Context, command ShellCommand, runError error) error {
	if errors.Is(runError, context.DeadlineExceeded) || errors.Is(runContext.Err(), context.DeadlineExceeded) {
		return CommandTimeoutError{Command: command, Timeout: command.Details.Timeout}
	}
	if contextError := runContext.Err(); contextError != nil && !errors.Is(runError, contextError) {
		return CommandExecutionError{Command: command, Cause: errors.Join(contextError, runError)}
	}
	return CommandExecutionError{Command: command, Cause: runError}
}

func (executor *ShellExecutor) notifyStarted(command ShellCommand) {
	for _, observer := range executor.observers {
		observer.CommandStarted(command)
	}
}

func (executor *ShellExecutor) notifyCompleted(command ShellCommand, result ExecutionResult) {
	for _, observer := range executor.observers {
		observer.CommandCompleted(command, result)
	}
}

func (executor *ShellExecutor) notifyExecutionFailed(command ShellCommand, failure error) {
	for _, observer := range executor.observers {
		observer.CommandExecutionFailed(command, failure)
	}
}
