// Package cli builds the treediff command-line application.
//
// It layers embedded defaults, an optional config.yaml, and TREEDIFF_*
// environment variables into one configuration, creates the zap logger, and
// mounts the audit commands (scan, reanalyze, reset, commits, siblings,
// quality) on a Cobra root command.
package cli
