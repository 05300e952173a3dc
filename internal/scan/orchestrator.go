package scan

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/treediff/internal/shared"
)

const (
	// DefaultWorkers is the worker pool size used when none is configured.
	DefaultWorkers = 4

	cancelledErrorTemplateConstant   = "%w: %w"
	skippedSubProjectMessageConstant = "Skipping sub-project"
	treeScannedMessageConstant       = "Scanned tree"
	logFieldTreeConstant             = "tree"
	logFieldSubProjectConstant       = "sub_project"
	logFieldPathConstant             = "path"
	logFieldReasonConstant           = "reason"
	logFieldSubProjectsConstant      = "sub_projects"
	logFieldCommitsConstant          = "commits"
	logFieldSkippedConstant          = "skipped"
	logFieldWorkersConstant          = "workers"
)

// ErrCancelled reports a tree scan stopped by context cancellation.
var ErrCancelled = errors.New("scan cancelled")

// SubProjectScanner extracts all commit records of one sub-project.
type SubProjectScanner interface {
	Collect(executionContext context.Context, subProject shared.SubProject) ([]shared.CommitRecord, error)
}

// ProgressEvent reports one finished sub-project with running totals for its tree.
type ProgressEvent struct {
	Tree       shared.Tree
	SubProject string
	Completed  int
	Total      int
	Commits    int
	Skipped    bool
}

// ProgressFunc receives progress events from the aggregator goroutine, one at a time.
type ProgressFunc func(ProgressEvent)

// TreeResult gathers the outcome of scanning one tree.
type TreeResult struct {
	Tree        shared.Tree
	SubProjects []shared.SubProject
	Records     []shared.CommitRecord
	Skipped     []shared.SkippedSubProject
}

// Orchestrator scans the sub-projects of a tree concurrently.
type Orchestrator struct {
	scanner SubProjectScanner
	workers int
	logger  *zap.Logger
}

// NewOrchestrator constructs an orchestrator; non-positive workers select DefaultWorkers.
func NewOrchestrator(scanner SubProjectScanner, workers int, logger *zap.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{scanner: scanner, workers: workers, logger: logger}
}

type subProjectOutcome struct {
	index      int
	subProject shared.SubProject
	records    []shared.CommitRecord
	scanError  error
}

// ScanTree scans every sub-project and returns records in manifest order.
// Failed sub-projects are reported in TreeResult.Skipped and never abort the tree.
// On cancellation no result is returned and the error matches ErrCancelled.
func (orchestrator *Orchestrator) ScanTree(executionContext context.Context, tree shared.Tree, subProjects []shared.SubProject, onProgress ProgressFunc) (TreeResult, error) {
	outcomes := make(chan subProjectOutcome)
	collected := make([]subProjectOutcome, len(subProjects))
	aggregationDone := make(chan struct{})

	go func() {
		defer close(aggregationDone)
		completed := 0
		commitTotal := 0
		for outcome := range outcomes {
			collected[outcome.index] = outcome
			completed++
			commitTotal += len(outcome.records)
			if onProgress != nil {
				onProgress(ProgressEvent{
					Tree:       tree,
					SubProject: outcome.subProject.Name,
					Completed:  completed,
					Total:      len(subProjects),
					Commits:    commitTotal,
					Skipped:    outcome.scanError != nil,
				})
			}
		}
	}()

	var workerGroup errgroup.Group
	workerGroup.SetLimit(orchestrator.workers)
	for index, subProject := range subProjects {
		if executionContext.Err() != nil {
			break
		}
		workerGroup.Go(func() error {
			records, scanError := orchestrator.scanner.Collect(executionContext, subProject)
			outcomes <- subProjectOutcome{index: index, subProject: subProject, records: records, scanError: scanError}
			return nil
		})
	}
	_ = workerGroup.Wait()
	close(outcomes)
	<-aggregationDone

	if executionContext.Err() != nil {
		return TreeResult{}, fmt.Errorf(cancelledErrorTemplateConstant, ErrCancelled, context.Cause(executionContext))
	}

	result := TreeResult{Tree: tree, SubProjects: subProjects}
	for _, outcome := range collected {
		if outcome.scanError != nil {
			orchestrator.logger.Warn(
				skippedSubProjectMessageConstant,
				zap.String(logFieldTreeConstant, string(tree)),
				zap.String(logFieldSubProjectConstant, outcome.subProject.Name),
				zap.String(logFieldPathConstant, outcome.subProject.Path),
				zap.String(logFieldReasonConstant, outcome.scanError.Error()),
			)
			result.Skipped = append(result.Skipped, shared.SkippedSubProject{
				Tree:   tree,
				Name:   outcome.subProject.Name,
				Path:   outcome.subProject.Path,
				Reason: outcome.scanError.Error(),
			})
			continue
		}
		result.Records = append(result.Records, outcome.records...)
	}

	orchestrator.logger.Info(
		treeScannedMessageConstant,
		zap.String(logFieldTreeConstant, string(tree)),
		zap.Int(logFieldSubProjectsConstant, len(subProjects)),
		zap.Int(logFieldCommitsConstant, len(result.Records)),
		zap.Int(logFieldSkippedConstant, len(result.Skipped)),
		zap.Int(logFieldWorkersConstant, orchestrator.workers),
	)
	return result, nil
}
