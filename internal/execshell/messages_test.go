package execshell_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/treediff/internal/execshell"
)

func TestCommandMessageFormatter(testInstance *testing.T) {
	logCommand := execshell.ShellCommand{
		Name:    execshell.CommandGit,
		Details: execshell.CommandDetails{Arguments: []string{"log", "--no-color"}, WorkingDirectory: "/trees/ref/kernel"},
	}
	workTreeCommand := execshell.ShellCommand{
		Name:    execshell.CommandGit,
		Details: execshell.CommandDetails{Arguments: []string{"rev-parse", "--is-inside-work-tree"}, WorkingDirectory: "/trees/ref/kernel"},
	}
	genericCommand := execshell.ShellCommand{
		Name:    execshell.CommandGit,
		Details: execshell.CommandDetails{Arguments: []string{"status"}},
	}

	testCases := []struct {
		name     string
		render   func(execshell.CommandMessageFormatter) string
		expected string
	}{
		{
			name: "log_started",
			render: func(formatter execshell.CommandMessageFormatter) string {
				return formatter.BuildStartedMessage(logCommand)
			},
			expected: "Reading commit history of /trees/ref/kernel",
		},
		{
			name: "log_failure_with_stderr",
			render: func(formatter execshell.CommandMessageFormatter) string {
				return formatter.BuildFailureMessage(logCommand, execshell.ExecutionResult{ExitCode: 128, StandardError: "fatal: bad object\n"})
			},
			expected: "Failed to read commit history of /trees/ref/kernel (exit code 128: fatal: bad object)",
		},
		{
			name: "work_tree_success",
			render: func(formatter execshell.CommandMessageFormatter) string {
				return formatter.BuildSuccessMessage(workTreeCommand)
			},
			expected: "/trees/ref/kernel is a Git repository",
		},
		{
			name: "generic_execution_failure",
			render: func(formatter execshell.CommandMessageFormatter) string {
				return formatter.BuildExecutionFailureMessage(genericCommand, errors.New("boom"))
			},
			expected: "git status failed: boom",
		},
		{
			name: "generic_started",
			render: func(formatter execshell.CommandMessageFormatter) string {
				return formatter.BuildStartedMessage(genericCommand)
			},
			expected: "Running git status",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, testCase.render(execshell.CommandMessageFormatter{}))
		})
	}
}
