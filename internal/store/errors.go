package store

import "errors"

var (
	// ErrRunAlreadyInProgress indicates another scan or reanalyze holds the run lock.
	ErrRunAlreadyInProgress = errors.New("run already in progress")
	// ErrCommitNotFound indicates no commit matches the requested tree and hash.
	ErrCommitNotFound = errors.New("commit not found")
	// ErrStorePathRequired indicates the store was opened without a database path.
	ErrStorePathRequired = errors.New("store path required")
)
