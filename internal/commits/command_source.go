package commits

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/temirov/treediff/internal/execshell"
	"github.com/temirov/treediff/internal/shared"
)

const (
	gitLogSubcommandConstant      = "log"
	gitNoColorFlagConstant        = "--no-color"
	gitMaxCountFlagConstant       = "-n"
	gitRevParseSubcommandConstant = "rev-parse"
	gitVerifyFlagConstant         = "--verify"
	gitQuietFlagConstant          = "--quiet"
	gitHeadReferenceConstant      = "HEAD"
)

// LogArguments builds the git log invocation understood by ParseLog.
func LogArguments(maxCount int) []string {
	arguments := []string{gitLogSubcommandConstant, gitNoColorFlagConstant, LogPrettyFormat}
	if maxCount > 0 {
		arguments = append(arguments, gitMaxCountFlagConstant, strconv.Itoa(maxCount))
	}
	return arguments
}

// CommandLogSource reads history by invoking the git binary.
type CommandLogSource struct {
	executor shared.GitExecutor
	timeout  time.Duration
}

// NewCommandLogSource constructs a git-binary source with a per-project timeout; zero disables the timeout.
func NewCommandLogSource(executor shared.GitExecutor, timeout time.Duration) *CommandLogSource {
	return &CommandLogSource{executor: executor, timeout: timeout}
}

// Stream runs git log in the sub-project directory and parses its output as it arrives.
// When parsing stops before the output ends, the process is abandoned and its exit ignored.
func (source *CommandLogSource) Stream(executionContext context.Context, subProject shared.SubProject, options ParseOptions, visit func(shared.CommitRecord) error) (ParseStatistics, error) {
	outputReader, outputWriter := io.Pipe()
	trackedOutput := &endTrackingReader{reader: outputReader}
	parseDone := make(chan logParseOutcome, 1)
	go func() {
		statistics, parseError := ParseLog(trackedOutput, options, visit)
		outputReader.CloseWithError(errLogParseStopped)
		parseDone <- logParseOutcome{statistics: statistics, parseError: parseError, reachedEnd: trackedOutput.reachedEnd}
	}()

	_, executionError := source.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            LogArguments(options.MaxCount),
		WorkingDirectory:     subProject.Path,
		Timeout:              source.timeout,
		StandardOutputWriter: outputWriter,
	})
	if executionError != nil {
		outputWriter.CloseWithError(errLogCommandEnded)
	} else {
		outputWriter.Close()
	}
	outcome := <-parseDone

	if outcome.parseError != nil && !errors.Is(outcome.parseError, errLogCommandEnded) {
		return outcome.statistics, outcome.parseError
	}
	if outcome.parseError == nil && !outcome.reachedEnd {
		return outcome.statistics, nil
	}
	if executionError != nil {
		var failedError execshell.CommandFailedError
		if errors.As(executionError, &failedError) && source.isEmptyRepository(executionContext, subProject) {
			return ParseStatistics{}, nil
		}
		return outcome.statistics, source.translateError(executionContext, subProject, executionError)
	}
	return outcome.statistics, nil
}

var (
	errLogCommandEnded = errors.New("git log ended with an error")
	errLogParseStopped = errors.New("git log output no longer read")
)

type logParseOutcome struct {
	statistics ParseStatistics
	parseError error
	reachedEnd bool
}

// endTrackingReader records whether the parser consumed the whole output.
type endTrackingReader struct {
	reader     io.Reader
	reachedEnd bool
}

func (tracking *endTrackingReader) Read(buffer []byte) (int, error) {
	readCount, readError := tracking.reader.Read(buffer)
	if errors.Is(readError, io.EOF) {
		tracking.reachedEnd = true
	}
	return readCount, readError
}

// isEmptyRepository reports whether HEAD does not resolve, which git log treats as a failure.
func (source *CommandLogSource) isEmptyRepository(executionContext context.Context, subProject shared.SubProject) bool {
	_, verifyError := source.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitVerifyFlagConstant, gitQuietFlagConstant, gitHeadReferenceConstant},
		WorkingDirectory: subProject.Path,
		Timeout:          source.timeout,
	})
	var failedError execshell.CommandFailedError
	return errors.As(verifyError, &failedError) && failedError.Result.ExitCode == 1
}

func (source *CommandLogSource) translateError(executionContext context.Context, subProject shared.SubProject, executionError error) error {
	var timeoutError execshell.CommandTimeoutError
	if errors.As(executionError, &timeoutError) {
		if contextError := executionContext.Err(); contextError != nil {
			return contextError
		}
		return ScanTimeoutError{Path: subProject.Path, Timeout: source.timeout}
	}
	if contextError := executionContext.Err(); contextError != nil {
		return contextError
	}
	return ProcessFailureError{Path: subProject.Path, Cause: executionError}
}
