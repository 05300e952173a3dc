package commits

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/temirov/treediff/internal/shared"
)

const subjectLineJoinerConstant = " "

// GoGitLogSource reads history in process without spawning git.
type GoGitLogSource struct {
	timeout time.Duration
}

// NewGoGitLogSource constructs an in-process source with a per-project timeout; zero disables the timeout.
func NewGoGitLogSource(timeout time.Duration) *GoGitLogSource {
	return &GoGitLogSource{timeout: timeout}
}

// Stream walks history from HEAD in committer-time order.
// A repository without HEAD yields no records.
func (source *GoGitLogSource) Stream(executionContext context.Context, subProject shared.SubProject, options ParseOptions, visit func(shared.CommitRecord) error) (ParseStatistics, error) {
	runContext := executionContext
	if source.timeout > 0 {
		var cancel context.CancelFunc
		runContext, cancel = context.WithTimeout(executionContext, source.timeout)
		defer cancel()
	}

	repository, openError := git.PlainOpenWithOptions(subProject.Path, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if openError != nil {
		if errors.Is(openError, git.ErrRepositoryNotExists) {
			return ParseStatistics{}, NotRepositoryError{Path: subProject.Path}
		}
		return ParseStatistics{}, ProcessFailureError{Path: subProject.Path, Cause: openError}
	}

	headReference, headError := repository.Head()
	if headError != nil {
		if errors.Is(headError, plumbing.ErrReferenceNotFound) {
			return ParseStatistics{}, nil
		}
		return ParseStatistics{}, ProcessFailureError{Path: subProject.Path, Cause: headError}
	}

	commitIterator, logError := repository.Log(&git.LogOptions{From: headReference.Hash(), Order: git.LogOrderCommitterTime})
	if logError != nil {
		return ParseStatistics{}, ProcessFailureError{Path: subProject.Path, Cause: logError}
	}
	defer commitIterator.Close()

	var statistics ParseStatistics
	var visitError error
	iterationError := commitIterator.ForEach(func(commit *object.Commit) error {
		if contextError := runContext.Err(); contextError != nil {
			return contextError
		}
		if options.MaxCount > 0 && statistics.Records >= options.MaxCount {
			return storer.ErrStop
		}
		message := strings.TrimRight(commit.Message, recordTrailingCharsConstant)
		record := buildRecord(options, commit.Hash.String(), commit.Author.Name, commit.Author.Email, commit.Author.When, subjectOf(message), message)
		statistics.Records++
		if callbackError := visit(record); callbackError != nil {
			if errors.Is(callbackError, ErrStopIteration) {
				return storer.ErrStop
			}
			visitError = callbackError
			return callbackError
		}
		return nil
	})

	switch {
	case iterationError == nil:
		return statistics, nil
	case visitError != nil:
		return statistics, visitError
	case executionContext.Err() != nil:
		return statistics, executionContext.Err()
	case errors.Is(runContext.Err(), context.DeadlineExceeded):
		return statistics, ScanTimeoutError{Path: subProject.Path, Timeout: source.timeout}
	default:
		return statistics, ProcessFailureError{Path: subProject.Path, Cause: iterationError}
	}
}

// subjectOf joins the first paragraph of a message into one line.
func subjectOf(message string) string {
	paragraph, _, _ := strings.Cut(message, "\n\n")
	lines := strings.Split(paragraph, "\n")
	trimmedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) > 0 {
			trimmedLines = append(trimmedLines, trimmed)
		}
	}
	return strings.Join(trimmedLines, subjectLineJoinerConstant)
}
