package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/temirov/treediff/internal/progress"
)

const (
	snapshotLineTemplateConstant      = "[%5.1f%%] %-16s %s"
	currentItemSuffixTemplateConstant = " (%s)"
	cancelledSuffixConstant           = " [cancelled]"
	droppedSnapshotsTemplateConstant  = "%d progress updates skipped\n"
	lineTerminatorConstant            = "\n"
)

// FormatSnapshot renders a snapshot as one console line without a trailing newline.
func FormatSnapshot(snapshot progress.Snapshot) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(snapshotLineTemplateConstant, snapshot.Percentage, snapshot.Stage, snapshot.Message))
	if len(snapshot.CurrentItem) > 0 && !strings.Contains(snapshot.Message, snapshot.CurrentItem) {
		builder.WriteString(fmt.Sprintf(currentItemSuffixTemplateConstant, snapshot.CurrentItem))
	}
	if snapshot.Cancelled {
		builder.WriteString(cancelledSuffixConstant)
	}
	return builder.String()
}

// ProgressPrinter writes every received snapshot of a subscription to a writer.
type ProgressPrinter struct {
	writer io.Writer
}

// NewProgressPrinter constructs a printer writing to writer; a nil writer discards output.
func NewProgressPrinter(writer io.Writer) *ProgressPrinter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressPrinter{writer: writer}
}

// Follow prints snapshots until the subscription closes and returns the last one received.
func (printer *ProgressPrinter) Follow(subscription *progress.Subscription) progress.Snapshot {
	var last progress.Snapshot
	for snapshot := range subscription.Events() {
		last = snapshot
		fmt.Fprint(printer.writer, FormatSnapshot(snapshot)+lineTerminatorConstant)
	}
	if dropped := subscription.Dropped(); dropped > 0 {
		fmt.Fprintf(printer.writer, droppedSnapshotsTemplateConstant, dropped)
	}
	return last
}
