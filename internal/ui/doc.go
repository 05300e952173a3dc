// Package ui renders command lifecycle events and scan progress for console users
// while detailed telemetry continues to flow through structured loggers.
package ui
