package progress

// Stage names a phase of a scan run.
type Stage string

// Stages in forward order; StageCompleted and StageError are terminal.
const (
	StageIdle            Stage = "idle"
	StageInitializing    Stage = "initializing"
	StageManifestParsing Stage = "manifest_parsing"
	StageGitScanning     Stage = "git_scanning"
	StageDiffAnalysis    Stage = "diff_analysis"
	StageCompleted       Stage = "completed"
	StageError           Stage = "error"
)

var stageOrder = map[Stage]int{
	StageIdle:            0,
	StageInitializing:    1,
	StageManifestParsing: 2,
	StageGitScanning:     3,
	StageDiffAnalysis:    4,
	StageCompleted:       5,
	StageError:           5,
}

// Terminal reports whether no further snapshots follow this stage.
func (stage Stage) Terminal() bool {
	return stage == StageCompleted || stage == StageError
}

// Known reports whether the stage is one of the defined values.
func (stage Stage) Known() bool {
	_, known := stageOrder[stage]
	return known
}

func (stage Stage) precedes(other Stage) bool {
	return stageOrder[stage] < stageOrder[other]
}
