package execshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	gitCommandNameConstant                    = "git"
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	runnerNotConfiguredMessageConstant        = "shell executor command runner not configured"
	commandFailedErrorTemplateConstant        = "%s exited with code %d"
	commandFailedStderrTemplateConstant       = "%s exited with code %d: %s"
	commandExecutionErrorTemplateConstant     = "%s could not be executed: %v"
	commandTimeoutErrorTemplateConstant       = "%s did not finish within %s"
	commandTimeoutNoLimitTemplateConstant     = "%s did not finish before its deadline"
	commandLabelWithArgumentsTemplateConstant = "%s %s"
	standardErrorExcerptLimitConstant         = 512
	standardErrorTruncationSuffixConstant     = "..."
	commandArgumentsLabelSeparatorConstant    = " "
)

// CommandName identifies an external executable.
type CommandName string

// Supported executables.
const (
	CommandGit CommandName = CommandName(gitCommandNameConstant)
)

// CommandDetails describes a single tool invocation.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	Timeout              time.Duration
	// StandardOutputWriter receives standard output while the process runs.
	// When set, ExecutionResult.StandardOutput stays empty.
	StandardOutputWriter io.Writer
}

// ShellCommand combines an executable with invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outcome of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

var (
	// ErrLoggerNotConfigured indicates the executor was constructed without a logger.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the executor was constructed without a runner.
	ErrCommandRunnerNotConfigured = errors.New(runnerNotConfiguredMessageConstant)
)

// CommandFailedError reports a process that ran to completion with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failedError CommandFailedError) Error() string {
	standardErrorExcerpt := excerptStandardError(failedError.Result.StandardError)
	if len(standardErrorExcerpt) == 0 {
		return fmt.Sprintf(commandFailedErrorTemplateConstant, commandLabel(failedError.Command), failedError.Result.ExitCode)
	}
	return fmt.Sprintf(commandFailedStderrTemplateConstant, commandLabel(failedError.Command), failedError.Result.ExitCode, standardErrorExcerpt)
}

// CommandExecutionError reports a process that could not be started or awaited.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, commandLabel(executionError.Command), executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// CommandTimeoutError reports a process terminated because its deadline elapsed.
type CommandTimeoutError struct {
	Command ShellCommand
	Timeout time.Duration
}

// Error describes the timeout.
func (timeoutError CommandTimeoutError) Error() string {
	if timeoutError.Timeout <= 0 {
		return fmt.Sprintf(commandTimeoutNoLimitTemplateConstant, commandLabel(timeoutError.Command))
	}
	return fmt.Sprintf(commandTimeoutErrorTemplateConstant, commandLabel(timeoutError.Command), timeoutError.Timeout)
}

// Is reports whether the target is context.DeadlineExceeded.
func (timeoutError CommandTimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

func commandLabel(command ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return string(command.Name)
	}
	firstArgument := command.Details.Arguments[0]
	return fmt.Sprintf(commandLabelWithArgumentsTemplateConstant, command.Name, firstArgument)
}

func excerptStandardError(standardError string) string {
	trimmed := trimWhitespace(standardError)
	if len(trimmed) <= standardErrorExcerptLimitConstant {
		return trimmed
	}
	return trimmed[:standardErrorExcerptLimitConstant] + standardErrorTruncationSuffixConstant
}
