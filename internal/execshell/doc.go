// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging and timeouts via ShellExecutor, exposes
// OSCommandRunner for default process execution, and keeps process invocation
// behind the CommandRunner interface so history extraction can be exercised
// with recorded output instead of a real git binary.
package execshell
