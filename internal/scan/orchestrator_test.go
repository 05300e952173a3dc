package scan_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/commits"
	"github.com/temirov/treediff/internal/scan"
	"github.com/temirov/treediff/internal/shared"
)

type scriptedScanner struct {
	records     map[string][]shared.CommitRecord
	failures    map[string]error
	delay       time.Duration
	active      atomic.Int32
	peak        atomic.Int32
	invocations atomic.Int32
}

func (scanner *scriptedScanner) Collect(executionContext context.Context, subProject shared.SubProject) ([]shared.CommitRecord, error) {
	scanner.invocations.Add(1)
	current := scanner.active.Add(1)
	defer scanner.active.Add(-1)
	for {
		peak := scanner.peak.Load()
		if current <= peak || scanner.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	if scanner.delay > 0 {
		select {
		case <-time.After(scanner.delay):
		case <-executionContext.Done():
			return nil, executionContext.Err()
		}
	}
	if failure, failed := scanner.failures[subProject.Name]; failed {
		return nil, failure
	}
	return scanner.records[subProject.Name], nil
}

func subProjectsNamed(names ...string) []shared.SubProject {
	subProjects := make([]shared.SubProject, 0, len(names))
	for _, name := range names {
		subProjects = append(subProjects, shared.SubProject{Tree: shared.TreeDerivative, Name: name, Path: "/der/" + name})
	}
	return subProjects
}

func TestScanTreeCollectsInManifestOrderAndSkipsFailures(testInstance *testing.T) {
	scanner := &scriptedScanner{
		records: map[string][]shared.CommitRecord{
			"alpha": {{Hash: "a1"}, {Hash: "a2"}},
			"gamma": {{Hash: "g1"}},
		},
		failures: map[string]error{
			"beta": commits.ProjectPathMissingError{Path: "/der/beta"},
		},
	}
	orchestrator := scan.NewOrchestrator(scanner, 2, zap.NewNop())

	var events []scan.ProgressEvent
	var eventsMutex sync.Mutex
	result, scanError := orchestrator.ScanTree(context.Background(), shared.TreeDerivative, subProjectsNamed("alpha", "beta", "gamma"), func(event scan.ProgressEvent) {
		eventsMutex.Lock()
		defer eventsMutex.Unlock()
		events = append(events, event)
	})
	require.NoError(testInstance, scanError)

	hashes := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		hashes = append(hashes, record.Hash)
	}
	require.Equal(testInstance, []string{"a1", "a2", "g1"}, hashes)
	require.Len(testInstance, result.SubProjects, 3)
	require.Equal(testInstance, []shared.SkippedSubProject{{
		Tree:   shared.TreeDerivative,
		Name:   "beta",
		Path:   "/der/beta",
		Reason: "project path missing: /der/beta",
	}}, result.Skipped)

	require.Len(testInstance, events, 3)
	for index, event := range events {
		require.Equal(testInstance, index+1, event.Completed)
		require.Equal(testInstance, 3, event.Total)
	}
	require.Equal(testInstance, 3, events[2].Commits)
}

func TestScanTreeBoundsConcurrency(testInstance *testing.T) {
	names := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8"}
	scanner := &scriptedScanner{delay: 10 * time.Millisecond}
	orchestrator := scan.NewOrchestrator(scanner, 3, nil)

	_, scanError := orchestrator.ScanTree(context.Background(), shared.TreeReference, subProjectsNamed(names...), nil)
	require.NoError(testInstance, scanError)
	require.Equal(testInstance, int32(len(names)), scanner.invocations.Load())
	require.LessOrEqual(testInstance, scanner.peak.Load(), int32(3))
}

func TestScanTreeCancellation(testInstance *testing.T) {
	scanner := &scriptedScanner{delay: time.Second}
	orchestrator := scan.NewOrchestrator(scanner, 1, nil)

	executionContext, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	started := time.Now()
	result, scanError := orchestrator.ScanTree(executionContext, shared.TreeReference, subProjectsNamed("a", "b", "c", "d"), nil)
	require.ErrorIs(testInstance, scanError, scan.ErrCancelled)
	require.ErrorIs(testInstance, scanError, context.Canceled)
	require.Empty(testInstance, result.Records)
	require.Less(testInstance, time.Since(started), 900*time.Millisecond)
	require.Less(testInstance, scanner.invocations.Load(), int32(4))
}

func TestScanTreeEmpty(testInstance *testing.T) {
	orchestrator := scan.NewOrchestrator(&scriptedScanner{}, 0, nil)
	result, scanError := orchestrator.ScanTree(context.Background(), shared.TreeReference, nil, nil)
	require.NoError(testInstance, scanError)
	require.Empty(testInstance, result.Records)
	require.Empty(testInstance, result.Skipped)
	require.False(testInstance, errors.Is(scanError, scan.ErrCancelled))
}
