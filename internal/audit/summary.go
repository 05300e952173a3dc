package audit

import (
	"github.com/temirov/treediff/internal/shared"
)

// ScanRequest names the two tree roots to audit.
type ScanRequest struct {
	ReferencePath  string
	DerivativePath string
	Reset          bool
}

// TreeSummary reports the persisted state of one tree after a run.
type TreeSummary struct {
	Root        string                     `yaml:"root,omitempty"`
	SubProjects int                        `yaml:"sub_projects"`
	Commits     int                        `yaml:"commits"`
	Identifiers int                        `yaml:"identifiers"`
	Skipped     []shared.SkippedSubProject `yaml:"skipped,omitempty"`
	Error       string                     `yaml:"error,omitempty"`
}

// ScanSummary is returned by Scan and Reanalyze.
// It carries no run identifiers or timings, so unchanged input yields an identical summary.
type ScanSummary struct {
	Reference      TreeSummary                   `yaml:"reference"`
	Derivative     TreeSummary                   `yaml:"derivative"`
	Shared         int                           `yaml:"shared"`
	ReferenceOnly  int                           `yaml:"reference_only"`
	DerivativeOnly int                           `yaml:"derivative_only"`
	Classified     map[shared.Classification]int `yaml:"classified,omitempty"`
}

// Tree returns a pointer to the summary of the requested tree.
func (summary *ScanSummary) Tree(tree shared.Tree) *TreeSummary {
	if tree == shared.TreeDerivative {
		return &summary.Derivative
	}
	return &summary.Reference
}
