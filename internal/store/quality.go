package store

import (
	"context"
	"fmt"

	"github.com/temirov/treediff/internal/shared"
)

const (
	// DefaultDuplicateIdentifierLimit bounds the identifiers listed in a quality report.
	DefaultDuplicateIdentifierLimit = 20

	treeQualityQueryConstant = `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN author = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN authored_at = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN subject = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN change_id IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN classification = '' THEN 1 ELSE 0 END), 0)
		FROM commits WHERE tree = ?`
	duplicateIdentifierCountQueryConstant = `SELECT COUNT(*) FROM (
			SELECT change_id FROM commits WHERE change_id IS NOT NULL
			GROUP BY change_id HAVING COUNT(*) > 1)`
	duplicateIdentifierQueryConstant = `SELECT change_id,
			SUM(CASE WHEN tree = 'reference' THEN 1 ELSE 0 END),
			SUM(CASE WHEN tree = 'derivative' THEN 1 ELSE 0 END)
		FROM commits WHERE change_id IS NOT NULL
		GROUP BY change_id HAVING COUNT(*) > 1
		ORDER BY COUNT(*) DESC, change_id LIMIT ?`

	qualityErrorTemplateConstant = "quality report: %w"
)

// TreeQuality counts incomplete records of one tree.
type TreeQuality struct {
	Tree              shared.Tree `yaml:"tree"`
	Commits           int         `yaml:"commits"`
	EmptyAuthor       int         `yaml:"empty_author"`
	EmptyDate         int         `yaml:"empty_date"`
	EmptySubject      int         `yaml:"empty_subject"`
	MissingIdentifier int         `yaml:"missing_identifier"`
	Unclassified      int         `yaml:"unclassified"`
}

// IdentifierHashes reports an identifier carried by more than one commit.
type IdentifierHashes struct {
	Identifier string `yaml:"change_id"`
	Reference  int    `yaml:"reference"`
	Derivative int    `yaml:"derivative"`
}

// QualityReport summarizes data completeness and multi-hash identifiers.
type QualityReport struct {
	Trees                    []TreeQuality      `yaml:"trees"`
	MultiHashIdentifierCount int                `yaml:"multi_hash_identifier_count"`
	MultiHashIdentifiers     []IdentifierHashes `yaml:"multi_hash_identifiers,omitempty"`
}

// QualityReport inspects stored commits for missing fields and identifiers shared by several hashes.
func (store *Store) QualityReport(executionContext context.Context, identifierLimit int) (QualityReport, error) {
	if identifierLimit <= 0 {
		identifierLimit = DefaultDuplicateIdentifierLimit
	}

	var report QualityReport
	for _, tree := range shared.Trees() {
		treeQuality := TreeQuality{Tree: tree}
		if scanError := store.database.QueryRowContext(executionContext, treeQualityQueryConstant, string(tree)).Scan(
			&treeQuality.Commits,
			&treeQuality.EmptyAuthor,
			&treeQuality.EmptyDate,
			&treeQuality.EmptySubject,
			&treeQuality.MissingIdentifier,
			&treeQuality.Unclassified,
		); scanError != nil {
			return QualityReport{}, fmt.Errorf(qualityErrorTemplateConstant, scanError)
		}
		report.Trees = append(report.Trees, treeQuality)
	}

	if scanError := store.database.QueryRowContext(executionContext, duplicateIdentifierCountQueryConstant).Scan(&report.MultiHashIdentifierCount); scanError != nil {
		return QualityReport{}, fmt.Errorf(qualityErrorTemplateConstant, scanError)
	}

	rows, queryError := store.database.QueryContext(executionContext, duplicateIdentifierQueryConstant, identifierLimit)
	if queryError != nil {
		return QualityReport{}, fmt.Errorf(qualityErrorTemplateConstant, queryError)
	}
	defer rows.Close()
	for rows.Next() {
		var identifierHashes IdentifierHashes
		if scanError := rows.Scan(&identifierHashes.Identifier, &identifierHashes.Reference, &identifierHashes.Derivative); scanError != nil {
			return QualityReport{}, fmt.Errorf(qualityErrorTemplateConstant, scanError)
		}
		report.MultiHashIdentifiers = append(report.MultiHashIdentifiers, identifierHashes)
	}
	if rowsError := rows.Err(); rowsError != nil {
		return QualityReport{}, fmt.Errorf(qualityErrorTemplateConstant, rowsError)
	}
	return report, nil
}
