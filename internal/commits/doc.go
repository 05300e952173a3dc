// Package commits extracts commit records from sub-project histories.
//
// ParseLog is a pure streaming parser over the delimited git log format
// produced by LogArguments. LogSource adapters feed it from the git binary
// (CommandLogSource) or read history in process through go-git
// (GoGitLogSource). Scanner validates the sub-project directory before
// delegating to the configured source.
package commits
