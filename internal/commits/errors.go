package commits

import (
	"errors"
	"fmt"
	"time"
)

const (
	projectPathMissingMessageConstant  = "project path missing"
	notRepositoryMessageConstant       = "not a version control repository"
	scanTimeoutMessageConstant         = "scan timeout"
	processFailureMessageConstant      = "history process failure"
	projectPathMissingTemplateConstant = "project path missing: %s"
	notDirectoryTemplateConstant       = "project path is not a directory: %s"
	notRepositoryTemplateConstant      = "not a version control repository: %s"
	scanTimeoutTemplateConstant        = "history of %s not read within %s"
	processFailureTemplateConstant     = "history of %s could not be read: %v"
)

var (
	// ErrProjectPathMissing matches ProjectPathMissingError.
	ErrProjectPathMissing = errors.New(projectPathMissingMessageConstant)
	// ErrNotRepository matches NotRepositoryError.
	ErrNotRepository = errors.New(notRepositoryMessageConstant)
	// ErrScanTimeout matches ScanTimeoutError.
	ErrScanTimeout = errors.New(scanTimeoutMessageConstant)
	// ErrProcessFailure matches ProcessFailureError.
	ErrProcessFailure = errors.New(processFailureMessageConstant)
	// ErrStopIteration ends a parse early without reporting a failure.
	ErrStopIteration = errors.New("stop iteration")
)

// ProjectPathMissingError reports a sub-project directory that does not exist or is not a directory.
type ProjectPathMissingError struct {
	Path         string
	NotDirectory bool
}

// Error describes the missing path.
func (missingError ProjectPathMissingError) Error() string {
	if missingError.NotDirectory {
		return fmt.Sprintf(notDirectoryTemplateConstant, missingError.Path)
	}
	return fmt.Sprintf(projectPathMissingTemplateConstant, missingError.Path)
}

// Is reports whether the target is ErrProjectPathMissing.
func (missingError ProjectPathMissingError) Is(target error) bool {
	return target == ErrProjectPathMissing
}

// NotRepositoryError reports a directory without repository metadata.
type NotRepositoryError struct {
	Path string
}

// Error describes the directory.
func (repositoryError NotRepositoryError) Error() string {
	return fmt.Sprintf(notRepositoryTemplateConstant, repositoryError.Path)
}

// Is reports whether the target is ErrNotRepository.
func (repositoryError NotRepositoryError) Is(target error) bool {
	return target == ErrNotRepository
}

// ScanTimeoutError reports history extraction that exceeded its deadline.
type ScanTimeoutError struct {
	Path    string
	Timeout time.Duration
}

// Error describes the timeout.
func (timeoutError ScanTimeoutError) Error() string {
	return fmt.Sprintf(scanTimeoutTemplateConstant, timeoutError.Path, timeoutError.Timeout)
}

// Is reports whether the target is ErrScanTimeout.
func (timeoutError ScanTimeoutError) Is(target error) bool {
	return target == ErrScanTimeout
}

// ProcessFailureError reports a failed history process or library read.
type ProcessFailureError struct {
	Path  string
	Cause error
}

// Error describes the failure.
func (failureError ProcessFailureError) Error() string {
	return fmt.Sprintf(processFailureTemplateConstant, failureError.Path, failureError.Cause)
}

// Is reports whether the target is ErrProcessFailure.
func (failureError ProcessFailureError) Is(target error) bool {
	return target == ErrProcessFailure
}

// Unwrap exposes the underlying cause.
func (failureError ProcessFailureError) Unwrap() error {
	return failureError.Cause
}
