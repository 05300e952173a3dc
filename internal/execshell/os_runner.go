package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"time"
)

const (
	environmentAssignmentSeparatorConstant = "="
	processWaitDelayConstant               = 5 * time.Second
)

// OSCommandRunner starts real processes through os/exec.
type OSCommandRunner struct{}

// NewOSCommandRunner constructs an OSCommandRunner.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// Run waits for the process and captures both output streams in memory, unless
// the details route standard output to their own writer.
// A non-zero exit is a result, not an error. When executionContext ends first
// the process is killed and the context error is returned.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	var standardOutput bytes.Buffer
	var standardError bytes.Buffer

	process := buildProcess(executionContext, command)
	process.Stdout = &standardOutput
	if command.Details.StandardOutputWriter != nil {
		process.Stdout = command.Details.StandardOutputWriter
	}
	process.Stderr = &standardError

	runError := process.Run()
	if contextError := executionContext.Err(); contextError != nil {
		return ExecutionResult{}, contextError
	}

	result := ExecutionResult{StandardOutput: standardOutput.String(), StandardError: standardError.String()}
	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if !errors.As(runError, &exitError) {
		return ExecutionResult{}, runError
	}
	result.ExitCode = exitError.ExitCode()
	return result, nil
}

func buildProcess(executionContext context.Context, command ShellCommand) *exec.Cmd {
	process := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	process.WaitDelay = processWaitDelayConstant
	process.Dir = command.Details.WorkingDirectory
	if len(command.Details.EnvironmentVariables) > 0 {
		process.Env = append(os.Environ(), environmentAssignments(command.Details.EnvironmentVariables)...)
	}
	if len(command.Details.StandardInput) > 0 {
		process.Stdin = bytes.NewReader(command.Details.StandardInput)
	}
	return process
}

// environmentAssignments renders KEY=value pairs in key order.
func environmentAssignments(variables map[string]string) []string {
	keys := make([]string, 0, len(variables))
	for key := range variables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	assignments := make([]string, 0, len(keys))
	for _, key := range keys {
		assignments = append(assignments, key+environmentAssignmentSeparatorConstant+variables[key])
	}
	return assignments
}
