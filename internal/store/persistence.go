package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/reconcile"
	"github.com/temirov/treediff/internal/shared"
)

const (
	upsertSubProjectStatementConstant = `INSERT INTO sub_projects (tree, name, path, relative_path, remote_name, remote_url, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tree, name) DO UPDATE SET
			path = excluded.path,
			relative_path = excluded.relative_path,
			remote_name = excluded.remote_name,
			remote_url = excluded.remote_url,
			updated_at = excluded.updated_at`
	upsertCommitStatementConstant = `INSERT INTO commits (tree, project, hash, change_id, reviewed_on, author, author_email, authored_at, subject, message, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tree, hash) DO UPDATE SET
			project = excluded.project,
			change_id = excluded.change_id,
			reviewed_on = excluded.reviewed_on,
			author = excluded.author,
			author_email = excluded.author_email,
			authored_at = excluded.authored_at,
			subject = excluded.subject,
			message = excluded.message,
			scanned_at = excluded.scanned_at`
	loadRecordsQueryConstant             = `SELECT tree, hash, COALESCE(change_id, '') FROM commits ORDER BY tree, hash`
	clearClassificationStatementConstant = `UPDATE commits SET classification = ''`
	applyClassificationStatementConstant = `UPDATE commits SET classification = ? WHERE tree = ? AND hash = ?`
	countSubProjectsQueryConstant        = `SELECT COUNT(*) FROM sub_projects WHERE tree = ?`
	countCommitsQueryConstant            = `SELECT COUNT(*) FROM commits WHERE tree = ?`
	countIdentifiersQueryConstant        = `SELECT COUNT(DISTINCT change_id) FROM commits WHERE tree = ? AND change_id IS NOT NULL`
	countClassificationsQueryConstant    = `SELECT classification, COUNT(*) FROM commits WHERE classification <> '' GROUP BY classification`

	persistTreeErrorTemplateConstant     = "persist %s tree: %w"
	applyClassificationsTemplateConstant = "apply classifications: %w"
	loadRecordsErrorTemplateConstant     = "load reconciliation records: %w"
	countErrorTemplateConstant           = "count %s: %w"
	resetErrorTemplateConstant           = "reset store: %w"

	persistedTreeMessageConstant        = "Persisted tree"
	appliedMessageConstant              = "Applied classifications"
	resetMessageConstant                = "Reset scan data"
	logFieldTreeConstant                = "tree"
	logFieldSubProjectsConstant         = "sub_projects"
	logFieldCommitsConstant             = "commits"
	logFieldUpdatesConstant             = "updates"
	countSubjectSubProjectsConstant     = "sub-projects"
	countSubjectCommitsConstant         = "commits"
	countSubjectIdentifiersConstant     = "identifiers"
	countSubjectClassificationsConstant = "classifications"
)

var resetStatements = []string{
	`DELETE FROM commit_categories`,
	`DELETE FROM commits`,
	`DELETE FROM sub_projects`,
}

// PersistTree upserts the tree's sub-projects and commit records in one transaction.
// Existing classifications and category links are left untouched.
func (store *Store) PersistTree(executionContext context.Context, tree shared.Tree, subProjects []shared.SubProject, records []shared.CommitRecord) error {
	scannedAt := formatTimestamp(store.clock.Now())

	persistError := store.WithTx(executionContext, func(transaction *sql.Tx) error {
		subProjectStatement, prepareError := transaction.PrepareContext(executionContext, upsertSubProjectStatementConstant)
		if prepareError != nil {
			return prepareError
		}
		defer subProjectStatement.Close()

		for _, subProject := range subProjects {
			if _, execError := subProjectStatement.ExecContext(
				executionContext,
				string(tree), subProject.Name, subProject.Path, subProject.RelativePath,
				subProject.RemoteName, subProject.RemoteURL, scannedAt,
			); execError != nil {
				return execError
			}
		}

		commitStatement, prepareCommitError := transaction.PrepareContext(executionContext, upsertCommitStatementConstant)
		if prepareCommitError != nil {
			return prepareCommitError
		}
		defer commitStatement.Close()

		for _, record := range records {
			if _, execError := commitStatement.ExecContext(
				executionContext,
				string(tree), record.Project, record.Hash, nullableString(record.Identifier), record.ReviewedOn,
				record.Author, record.AuthorEmail, formatTimestamp(record.AuthoredAt), record.Subject, record.Message, scannedAt,
			); execError != nil {
				return execError
			}
		}
		return nil
	})
	if persistError != nil {
		return fmt.Errorf(persistTreeErrorTemplateConstant, tree, persistError)
	}

	store.logger.Info(
		persistedTreeMessageConstant,
		zap.String(logFieldTreeConstant, string(tree)),
		zap.Int(logFieldSubProjectsConstant, len(subProjects)),
		zap.Int(logFieldCommitsConstant, len(records)),
	)
	return nil
}

// LoadReconciliationRecords returns the tree, hash, and identifier of every stored commit.
func (store *Store) LoadReconciliationRecords(executionContext context.Context) ([]reconcile.Record, error) {
	rows, queryError := store.database.QueryContext(executionContext, loadRecordsQueryConstant)
	if queryError != nil {
		return nil, fmt.Errorf(loadRecordsErrorTemplateConstant, queryError)
	}
	defer rows.Close()

	var records []reconcile.Record
	for rows.Next() {
		var treeValue string
		var record reconcile.Record
		if scanError := rows.Scan(&treeValue, &record.Hash, &record.Identifier); scanError != nil {
			return nil, fmt.Errorf(loadRecordsErrorTemplateConstant, scanError)
		}
		record.Tree = shared.Tree(treeValue)
		records = append(records, record)
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, fmt.Errorf(loadRecordsErrorTemplateConstant, rowsError)
	}
	return records, nil
}

// ApplyClassifications clears every classification and writes the provided ones in one transaction.
func (store *Store) ApplyClassifications(executionContext context.Context, updates []reconcile.ClassificationUpdate) error {
	applyError := store.WithTx(executionContext, func(transaction *sql.Tx) error {
		if _, clearError := transaction.ExecContext(executionContext, clearClassificationStatementConstant); clearError != nil {
			return clearError
		}
		statement, prepareError := transaction.PrepareContext(executionContext, applyClassificationStatementConstant)
		if prepareError != nil {
			return prepareError
		}
		defer statement.Close()

		for _, update := range updates {
			if _, execError := statement.ExecContext(executionContext, string(update.Classification), string(update.Key.Tree), update.Key.Hash); execError != nil {
				return execError
			}
		}
		return nil
	})
	if applyError != nil {
		return fmt.Errorf(applyClassificationsTemplateConstant, applyError)
	}
	store.logger.Info(appliedMessageConstant, zap.Int(logFieldUpdatesConstant, len(updates)))
	return nil
}

// CountSubProjects returns the number of stored sub-projects of the tree.
func (store *Store) CountSubProjects(executionContext context.Context, tree shared.Tree) (int, error) {
	return store.countForTree(executionContext, countSubProjectsQueryConstant, countSubjectSubProjectsConstant, tree)
}

// CountCommits returns the number of stored commits of the tree.
func (store *Store) CountCommits(executionContext context.Context, tree shared.Tree) (int, error) {
	return store.countForTree(executionContext, countCommitsQueryConstant, countSubjectCommitsConstant, tree)
}

// CountIdentifiers returns the number of distinct identifiers stored for the tree.
func (store *Store) CountIdentifiers(executionContext context.Context, tree shared.Tree) (int, error) {
	return store.countForTree(executionContext, countIdentifiersQueryConstant, countSubjectIdentifiersConstant, tree)
}

// CountClassifications returns the number of commits per assigned classification.
func (store *Store) CountClassifications(executionContext context.Context) (map[shared.Classification]int, error) {
	rows, queryError := store.database.QueryContext(executionContext, countClassificationsQueryConstant)
	if queryError != nil {
		return nil, fmt.Errorf(countErrorTemplateConstant, countSubjectClassificationsConstant, queryError)
	}
	defer rows.Close()

	counts := make(map[shared.Classification]int)
	for rows.Next() {
		var classification string
		var count int
		if scanError := rows.Scan(&classification, &count); scanError != nil {
			return nil, fmt.Errorf(countErrorTemplateConstant, countSubjectClassificationsConstant, scanError)
		}
		counts[shared.Classification(classification)] = count
	}
	if rowsError := rows.Err(); rowsError != nil {
		return nil, fmt.Errorf(countErrorTemplateConstant, countSubjectClassificationsConstant, rowsError)
	}
	return counts, nil
}

// Reset removes commits, category links, and sub-projects; categories are kept.
func (store *Store) Reset(executionContext context.Context) error {
	resetError := store.WithTx(executionContext, func(transaction *sql.Tx) error {
		for _, statement := range resetStatements {
			if _, execError := transaction.ExecContext(executionContext, statement); execError != nil {
				return execError
			}
		}
		return nil
	})
	if resetError != nil {
		return fmt.Errorf(resetErrorTemplateConstant, resetError)
	}
	store.logger.Info(resetMessageConstant)
	return nil
}

func (store *Store) countForTree(executionContext context.Context, query string, subject string, tree shared.Tree) (int, error) {
	var count int
	if scanError := store.database.QueryRowContext(executionContext, query, string(tree)).Scan(&count); scanError != nil {
		return 0, fmt.Errorf(countErrorTemplateConstant, subject, scanError)
	}
	return count, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: len(value) > 0}
}

func formatTimestamp(instant time.Time) string {
	if instant.IsZero() {
		return ""
	}
	return instant.UTC().Format(time.RFC3339)
}

func parseTimestamp(value string) time.Time {
	parsed, parseError := time.Parse(time.RFC3339, value)
	if parseError != nil {
		return time.Time{}
	}
	return parsed
}
