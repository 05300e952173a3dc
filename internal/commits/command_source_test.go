package commits_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/treediff/internal/commits"
	"github.com/temirov/treediff/internal/execshell"
	"github.com/temirov/treediff/internal/shared"
)

type scriptedGitExecutor struct {
	responses []scriptedResponse
	calls     []execshell.CommandDetails
}

type scriptedResponse struct {
	result execshell.ExecutionResult
	err    error
}

func (executor *scriptedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.calls = append(executor.calls, details)
	if len(executor.responses) == 0 {
		return execshell.ExecutionResult{}, errors.New("unexpected git invocation")
	}
	response := executor.responses[0]
	executor.responses = executor.responses[1:]
	if details.StandardOutputWriter != nil {
		_, _ = io.WriteString(details.StandardOutputWriter, response.result.StandardOutput)
		response.result.StandardOutput = ""
	}
	return response.result, response.err
}

// pacedGitExecutor writes each chunk only after the previous one was consumed.
type pacedGitExecutor struct {
	chunks   []string
	consumed chan struct{}
}

func (executor *pacedGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	for index, chunk := range executor.chunks {
		if _, writeError := io.WriteString(details.StandardOutputWriter, chunk); writeError != nil {
			return execshell.ExecutionResult{}, writeError
		}
		if index == len(executor.chunks)-1 {
			break
		}
		select {
		case <-executor.consumed:
		case <-time.After(5 * time.Second):
			return execshell.ExecutionResult{}, errors.New("output was not consumed while the command ran")
		}
	}
	return execshell.ExecutionResult{}, nil
}

func failedCommand(exitCode int) error {
	return execshell.CommandFailedError{Result: execshell.ExecutionResult{ExitCode: exitCode}}
}

func TestLogArguments(testInstance *testing.T) {
	require.Equal(testInstance, []string{"log", "--no-color", commits.LogPrettyFormat}, commits.LogArguments(0))
	require.Equal(testInstance, []string{"log", "--no-color", commits.LogPrettyFormat, "-n", "25"}, commits.LogArguments(25))
}

func TestCommandLogSourceStream(testInstance *testing.T) {
	subProject := shared.SubProject{Tree: shared.TreeReference, Name: "platform/art", Path: "/trees/ref/art"}
	output := logRecord("h1", "Jane", "jane@example.com", "2024-01-01T00:00:00Z", "Add feature", "Add feature\n\nChange-Id: Iaaa\n")
	secondOutput := logRecord("h2", "Jane", "jane@example.com", "2024-01-02T00:00:00Z", "Fix feature", "Fix feature\n\nChange-Id: Ibbb\n")

	testCases := []struct {
		name            string
		responses       []scriptedResponse
		expectedRecords int
		stopAfter       int
		expectedCalls   int
		expectedError   error
	}{
		{
			name:            "success",
			responses:       []scriptedResponse{{result: execshell.ExecutionResult{StandardOutput: output}}},
			expectedRecords: 1,
			expectedCalls:   1,
		},
		{
			name:          "empty_repository",
			responses:     []scriptedResponse{{err: failedCommand(128)}, {err: failedCommand(1)}},
			expectedCalls: 2,
		},
		{
			name:          "log_failure_with_head",
			responses:     []scriptedResponse{{err: failedCommand(128)}, {}},
			expectedCalls: 2,
			expectedError: commits.ErrProcessFailure,
		},
		{
			name:            "stop_before_output_ends",
			responses:       []scriptedResponse{{result: execshell.ExecutionResult{StandardOutput: output + secondOutput}, err: failedCommand(141)}},
			stopAfter:       1,
			expectedRecords: 1,
			expectedCalls:   1,
		},
		{
			name:            "failure_after_partial_output",
			responses:       []scriptedResponse{{result: execshell.ExecutionResult{StandardOutput: output}, err: failedCommand(128)}, {}},
			expectedRecords: 1,
			expectedCalls:   2,
			expectedError:   commits.ErrProcessFailure,
		},
		{
			name:          "timeout",
			responses:     []scriptedResponse{{err: execshell.CommandTimeoutError{Timeout: time.Second}}},
			expectedCalls: 1,
			expectedError: commits.ErrScanTimeout,
		},
		{
			name:          "spawn_failure",
			responses:     []scriptedResponse{{err: execshell.CommandExecutionError{Cause: errors.New("exec: not found")}}},
			expectedCalls: 1,
			expectedError: commits.ErrProcessFailure,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &scriptedGitExecutor{responses: testCase.responses}
			source := commits.NewCommandLogSource(executor, time.Minute)

			var records []shared.CommitRecord
			_, streamError := source.Stream(context.Background(), subProject, defaultParseOptions(), func(record shared.CommitRecord) error {
				records = append(records, record)
				if testCase.stopAfter > 0 && len(records) >= testCase.stopAfter {
					return commits.ErrStopIteration
				}
				return nil
			})

			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, streamError, testCase.expectedError)
			} else {
				require.NoError(testInstance, streamError)
			}
			require.Len(testInstance, records, testCase.expectedRecords)
			require.Len(testInstance, executor.calls, testCase.expectedCalls)
			require.Equal(testInstance, subProject.Path, executor.calls[0].WorkingDirectory)
			require.Equal(testInstance, time.Minute, executor.calls[0].Timeout)
		})
	}
}

func TestCommandLogSourceCancellation(testInstance *testing.T) {
	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	executor := &scriptedGitExecutor{responses: []scriptedResponse{{err: execshell.CommandExecutionError{Cause: context.Canceled}}}}
	source := commits.NewCommandLogSource(executor, 0)
	_, streamError := source.Stream(executionContext, shared.SubProject{Path: "/trees/der/kernel"}, defaultParseOptions(), func(shared.CommitRecord) error { return nil })

	require.ErrorIs(testInstance, streamError, context.Canceled)
	require.NotErrorIs(testInstance, streamError, commits.ErrProcessFailure)
}

func TestCommandLogSourceParsesWhileCommandRuns(testInstance *testing.T) {
	firstRecord := logRecord("h1", "Jane", "jane@example.com", "2024-01-01T00:00:00Z", "Add feature", "Add feature\n\nChange-Id: Iaaa\n")
	secondRecord := logRecord("h2", "Jane", "jane@example.com", "2024-01-02T00:00:00Z", "Fix feature", "Fix feature\n\nChange-Id: Ibbb\n")
	consumed := make(chan struct{}, 1)
	executor := &pacedGitExecutor{
		chunks:   []string{firstRecord + recordSeparatorConstant, strings.TrimPrefix(secondRecord, recordSeparatorConstant)},
		consumed: consumed,
	}
	source := commits.NewCommandLogSource(executor, 0)

	var hashes []string
	statistics, streamError := source.Stream(context.Background(), shared.SubProject{Path: "/trees/der/art"}, defaultParseOptions(), func(record shared.CommitRecord) error {
		hashes = append(hashes, record.Hash)
		select {
		case consumed <- struct{}{}:
		default:
		}
		return nil
	})
	require.NoError(testInstance, streamError)
	require.Equal(testInstance, []string{"h1", "h2"}, hashes)
	require.Equal(testInstance, 2, statistics.Records)
}
