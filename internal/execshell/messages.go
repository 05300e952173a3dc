package execshell

import (
	"fmt"
	"strings"
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	defaultWorkingDirectoryLabelConstant    = "current directory"

	gitLogSubcommandNameConstant      = "log"
	gitRevParseSubcommandNameConstant = "rev-parse"
	gitWorkTreeFlagConstant           = "--is-inside-work-tree"

	gitLogStartTemplateConstant            = "Reading commit history of %s"
	gitLogSuccessTemplateConstant          = "Read commit history of %s"
	gitLogFailureTemplateConstant          = "Failed to read commit history of %s (exit code %d%s)"
	gitLogExecutionFailureTemplateConstant = "Unable to read commit history of %s: %s"

	gitWorkTreeStartTemplateConstant            = "Checking repository at %s"
	gitWorkTreeSuccessTemplateConstant          = "%s is a Git repository"
	gitWorkTreeFailureTemplateConstant          = "Could not confirm %s is a Git repository (exit code %d%s)"
	gitWorkTreeExecutionFailureTemplateConstant = "Could not check %s: %s"
)

type messageKind int

const (
	messageKindGenericConstant messageKind = iota
	messageKindGitLogConstant
	messageKindGitWorkTreeConstant
)

// CommandMessageFormatter renders human-readable descriptions of command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command that is about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	directory := workingDirectoryLabel(command)
	switch classifyCommand(command) {
	case messageKindGitLogConstant:
		return fmt.Sprintf(gitLogStartTemplateConstant, directory)
	case messageKindGitWorkTreeConstant:
		return fmt.Sprintf(gitWorkTreeStartTemplateConstant, directory)
	default:
		return fmt.Sprintf(genericStartTemplateConstant, describeCommand(command))
	}
}

// BuildSuccessMessage describes a command that exited successfully.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	directory := workingDirectoryLabel(command)
	switch classifyCommand(command) {
	case messageKindGitLogConstant:
		return fmt.Sprintf(gitLogSuccessTemplateConstant, directory)
	case messageKindGitWorkTreeConstant:
		return fmt.Sprintf(gitWorkTreeSuccessTemplateConstant, directory)
	default:
		return fmt.Sprintf(genericSuccessTemplateConstant, describeCommand(command))
	}
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	directory := workingDirectoryLabel(command)
	standardErrorSuffix := formatStandardErrorSuffix(result.StandardError)
	switch classifyCommand(command) {
	case messageKindGitLogConstant:
		return fmt.Sprintf(gitLogFailureTemplateConstant, directory, result.ExitCode, standardErrorSuffix)
	case messageKindGitWorkTreeConstant:
		return fmt.Sprintf(gitWorkTreeFailureTemplateConstant, directory, result.ExitCode, standardErrorSuffix)
	default:
		return fmt.Sprintf(genericFailureTemplateConstant, describeCommand(command), result.ExitCode, standardErrorSuffix)
	}
}

// BuildExecutionFailureMessage describes a command that could not produce a result.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	failureText := unknownFailureMessageConstant
	if failure != nil {
		failureText = failure.Error()
	}
	directory := workingDirectoryLabel(command)
	switch classifyCommand(command) {
	case messageKindGitLogConstant:
		return fmt.Sprintf(gitLogExecutionFailureTemplateConstant, directory, failureText)
	case messageKindGitWorkTreeConstant:
		return fmt.Sprintf(gitWorkTreeExecutionFailureTemplateConstant, directory, failureText)
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, describeCommand(command), failureText)
	}
}

func classifyCommand(command ShellCommand) messageKind {
	if command.Name != CommandGit || len(command.Details.Arguments) == 0 {
		return messageKindGenericConstant
	}
	switch command.Details.Arguments[0] {
	case gitLogSubcommandNameConstant:
		return messageKindGitLogConstant
	case gitRevParseSubcommandNameConstant:
		for _, argument := range command.Details.Arguments[1:] {
			if argument == gitWorkTreeFlagConstant {
				return messageKindGitWorkTreeConstant
			}
		}
	}
	return messageKindGenericConstant
}

func describeCommand(command ShellCommand) string {
	label := commandLabel(command)
	if len(command.Details.WorkingDirectory) == 0 {
		return label
	}
	return label + fmt.Sprintf(workingDirectorySuffixTemplateConstant, command.Details.WorkingDirectory)
}

func workingDirectoryLabel(command ShellCommand) string {
	trimmed := trimWhitespace(command.Details.WorkingDirectory)
	if len(trimmed) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmed
}

func formatStandardErrorSuffix(standardError string) string {
	excerpt := excerptStandardError(standardError)
	if len(excerpt) == 0 {
		return ""
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, excerpt)
}

func trimWhitespace(value string) string {
	return strings.TrimSpace(value)
}
