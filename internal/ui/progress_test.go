package ui_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/treediff/internal/progress"
	"github.com/temirov/treediff/internal/ui"
)

func TestFormatSnapshot(testInstance *testing.T) {
	testCases := []struct {
		name     string
		snapshot progress.Snapshot
		expected string
	}{
		{
			name:     "scanning_with_item",
			snapshot: progress.Snapshot{Stage: progress.StageGitScanning, Percentage: 45, Message: "scanned build (3/6)", CurrentItem: "reference/build"},
			expected: "[ 45.0%] git_scanning     scanned build (3/6) (reference/build)",
		},
		{
			name:     "item_already_in_message",
			snapshot: progress.Snapshot{Stage: progress.StageManifestParsing, Percentage: 2, Message: "parsing /srv/reference", CurrentItem: "/srv/reference"},
			expected: "[  2.0%] manifest_parsing parsing /srv/reference",
		},
		{
			name:     "cancelled",
			snapshot: progress.Snapshot{Stage: progress.StageError, Percentage: 30, Message: "cancelled: context canceled", Cancelled: true},
			expected: "[ 30.0%] error            cancelled: context canceled [cancelled]",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, ui.FormatSnapshot(testCase.snapshot))
		})
	}
}

func TestProgressPrinterFollowPrintsUntilTerminal(testInstance *testing.T) {
	publisher := progress.NewPublisher("run-1", progress.Options{SubscriberBuffer: 16})
	subscription := publisher.Subscribe()

	publisher.Update(progress.Update{Stage: progress.StageInitializing, Percentage: 1, Message: "starting scan"})
	publisher.Update(progress.Update{Stage: progress.StageGitScanning, Percentage: 40, Message: "scanned build (1/2)"})
	publisher.Cancel(context.Canceled)

	var output bytes.Buffer
	last := ui.NewProgressPrinter(&output).Follow(subscription)

	require.Equal(testInstance, progress.StageError, last.Stage)
	require.True(testInstance, last.Cancelled)

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(testInstance, lines, 4)
	require.Contains(testInstance, lines[0], string(progress.StageIdle))
	require.Contains(testInstance, lines[2], "scanned build (1/2)")
	require.Contains(testInstance, lines[3], "[cancelled]")
}

func TestProgressPrinterReportsDroppedSnapshots(testInstance *testing.T) {
	publisher := progress.NewPublisher("run-2", progress.Options{SubscriberBuffer: 1})
	subscription := publisher.Subscribe()

	publisher.Update(progress.Update{Stage: progress.StageInitializing, Percentage: 1})
	publisher.Update(progress.Update{Stage: progress.StageGitScanning, Percentage: 50})
	publisher.Complete("")

	var output bytes.Buffer
	last := ui.NewProgressPrinter(&output).Follow(subscription)

	require.Equal(testInstance, progress.StageCompleted, last.Stage)
	require.Contains(testInstance, output.String(), "3 progress updates skipped")
}
