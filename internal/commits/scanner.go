package commits

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/shared"
)

const (
	scanCompletedMessageConstant    = "Scanned sub-project history"
	malformedRecordsMessageConstant = "Skipped malformed history records"
	logFieldTreeConstant            = "tree"
	logFieldProjectConstant         = "project"
	logFieldRecordsConstant         = "records"
	logFieldMalformedConstant       = "malformed"
)

// ScannerOptions configures identifier extraction and history bounds.
type ScannerOptions struct {
	IdentifierKeys []string
	MaxCount       int
}

// Scanner extracts commit records from validated sub-project directories.
type Scanner struct {
	probe      shared.RepositoryProbe
	source     LogSource
	identifier TrailerExtractor
	reviewedOn TrailerExtractor
	maxCount   int
	logger     *zap.Logger
}

// NewScanner constructs a Scanner. Without identifier keys the Change-Id trailer is used.
func NewScanner(probe shared.RepositoryProbe, source LogSource, options ScannerOptions, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	identifierExtractor := NewTrailerExtractor(options.IdentifierKeys...)
	if len(identifierExtractor.Keys) == 0 {
		identifierExtractor = NewTrailerExtractor(ChangeIDTrailerKey)
	}
	return &Scanner{
		probe:      probe,
		source:     source,
		identifier: identifierExtractor,
		reviewedOn: NewTrailerExtractor(ReviewedOnTrailerKey),
		maxCount:   options.MaxCount,
		logger:     logger,
	}
}

// Scan streams the sub-project's commit records to visit.
func (scanner *Scanner) Scan(executionContext context.Context, subProject shared.SubProject, visit func(shared.CommitRecord) error) (ParseStatistics, error) {
	if validationError := scanner.validate(subProject); validationError != nil {
		return ParseStatistics{}, validationError
	}

	statistics, streamError := scanner.source.Stream(executionContext, subProject, ParseOptions{
		Tree:       subProject.Tree,
		Project:    subProject.Name,
		MaxCount:   scanner.maxCount,
		Identifier: scanner.identifier,
		ReviewedOn: scanner.reviewedOn,
	}, visit)
	if streamError != nil {
		return statistics, streamError
	}

	if statistics.Malformed > 0 {
		scanner.logger.Warn(
			malformedRecordsMessageConstant,
			zap.String(logFieldTreeConstant, string(subProject.Tree)),
			zap.String(logFieldProjectConstant, subProject.Name),
			zap.Int(logFieldMalformedConstant, statistics.Malformed),
		)
	}
	scanner.logger.Debug(
		scanCompletedMessageConstant,
		zap.String(logFieldTreeConstant, string(subProject.Tree)),
		zap.String(logFieldProjectConstant, subProject.Name),
		zap.Int(logFieldRecordsConstant, statistics.Records),
	)
	return statistics, nil
}

// Collect gathers all records of the sub-project into a slice.
func (scanner *Scanner) Collect(executionContext context.Context, subProject shared.SubProject) ([]shared.CommitRecord, error) {
	var records []shared.CommitRecord
	_, scanError := scanner.Scan(executionContext, subProject, func(record shared.CommitRecord) error {
		records = append(records, record)
		return nil
	})
	if scanError != nil {
		return nil, scanError
	}
	return records, nil
}

func (scanner *Scanner) validate(subProject shared.SubProject) error {
	state, inspectError := scanner.probe.Inspect(subProject.Path)
	if inspectError != nil {
		return ProcessFailureError{Path: subProject.Path, Cause: inspectError}
	}
	switch state {
	case shared.RepositoryStateMissing:
		return ProjectPathMissingError{Path: subProject.Path}
	case shared.RepositoryStateNotDirectory:
		return ProjectPathMissingError{Path: subProject.Path, NotDirectory: true}
	case shared.RepositoryStateNotRepository:
		return NotRepositoryError{Path: subProject.Path}
	default:
		return nil
	}
}
