// Package audit drives tree audits: scanning both trees, reconciling the persisted
// commits, and publishing progress while a run is active.
//
// It exposes Service for programmatic use and CommandBuilder for wiring the scan,
// reanalyze, reset, commits, siblings, and quality Cobra commands.
package audit
