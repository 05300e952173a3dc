package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temirov/treediff/internal/shared"
)

const (
	// DefaultListLimit bounds ListCommits when no limit is given.
	DefaultListLimit = 100
	// MaximumListLimit caps a single ListCommits page.
	MaximumListLimit = 5000

	commitViewColumnsConstant = `c.id, c.tree, c.project, c.hash, COALESCE(c.change_id, ''), c.reviewed_on,
		c.author, c.author_email, c.authored_at, c.subject, c.message, c.classification,
		COALESCE(sp.remote_url, '')`
	commitViewFromConstant = ` FROM commits c
		LEFT JOIN sub_projects sp ON sp.tree = c.tree AND sp.name = c.project`
	listOrderClauseConstant         = ` ORDER BY c.authored_at DESC, c.id DESC LIMIT ? OFFSET ?`
	siblingOrderClauseConstant      = ` ORDER BY c.tree, c.hash`
	categoriesQueryTemplateConstant = `SELECT cc.commit_id, cat.name FROM commit_categories cc
		JOIN categories cat ON cat.id = cc.category_id
		WHERE cc.commit_id IN (%s) ORDER BY cat.name`
	identifierLookupQueryConstant = `SELECT COALESCE(change_id, '') FROM commits WHERE tree = ? AND hash = ?`
	likePatternTemplateConstant   = "%%%s%%"
	placeholderConstant           = "?"
	placeholderSeparatorConstant  = ", "
	conditionJoinerConstant       = " AND "
	whereKeywordConstant          = " WHERE "

	listCommitsErrorTemplateConstant = "list commits: %w"
	siblingsErrorTemplateConstant    = "list siblings of %s/%s: %w"
)

// CommitFilter narrows ListCommits. Empty fields do not filter.
type CommitFilter struct {
	Tree           shared.Tree
	Project        string
	Author         string
	Search         string
	Category       string
	Classification shared.Classification
	Identifier     string
	Limit          int
	Offset         int
}

// CommitView is a stored commit enriched with its browsable URL and category names.
type CommitView struct {
	ID             int64                 `yaml:"id"`
	Tree           shared.Tree           `yaml:"tree"`
	Project        string                `yaml:"project"`
	Hash           string                `yaml:"hash"`
	Identifier     string                `yaml:"change_id,omitempty"`
	ReviewedOn     string                `yaml:"reviewed_on,omitempty"`
	Author         string                `yaml:"author"`
	AuthorEmail    string                `yaml:"author_email,omitempty"`
	AuthoredAt     time.Time             `yaml:"authored_at"`
	Subject        string                `yaml:"subject"`
	Message        string                `yaml:"-"`
	Classification shared.Classification `yaml:"classification"`
	URL            string                `yaml:"url,omitempty"`
	Categories     []string              `yaml:"categories,omitempty"`
}

// ListCommits returns stored commits matching the filter, newest first.
func (store *Store) ListCommits(executionContext context.Context, filter CommitFilter) ([]CommitView, error) {
	var conditions []string
	var arguments []any

	if len(filter.Tree) > 0 {
		conditions = append(conditions, "c.tree = ?")
		arguments = append(arguments, string(filter.Tree))
	}
	if len(filter.Project) > 0 {
		conditions = append(conditions, "c.project = ?")
		arguments = append(arguments, filter.Project)
	}
	if len(filter.Author) > 0 {
		conditions = append(conditions, "(c.author LIKE ? OR c.author_email LIKE ?)")
		authorPattern := fmt.Sprintf(likePatternTemplateConstant, filter.Author)
		arguments = append(arguments, authorPattern, authorPattern)
	}
	if len(filter.Search) > 0 {
		conditions = append(conditions, "(c.subject LIKE ? OR c.message LIKE ? OR c.hash LIKE ? OR c.change_id LIKE ?)")
		searchPattern := fmt.Sprintf(likePatternTemplateConstant, filter.Search)
		arguments = append(arguments, searchPattern, searchPattern, searchPattern, searchPattern)
	}
	if len(filter.Category) > 0 {
		conditions = append(conditions, `c.id IN (SELECT cc.commit_id FROM commit_categories cc
			JOIN categories cat ON cat.id = cc.category_id WHERE cat.name = ?)`)
		arguments = append(arguments, filter.Category)
	}
	if len(filter.Classification) > 0 {
		conditions = append(conditions, "c.classification = ?")
		arguments = append(arguments, string(filter.Classification))
	}
	if len(filter.Identifier) > 0 {
		conditions = append(conditions, "c.change_id = ?")
		arguments = append(arguments, filter.Identifier)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaximumListLimit {
		limit = MaximumListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(commitViewColumnsConstant)
	queryBuilder.WriteString(commitViewFromConstant)
	if len(conditions) > 0 {
		queryBuilder.WriteString(whereKeywordConstant)
		queryBuilder.WriteString(strings.Join(conditions, conditionJoinerConstant))
	}
	queryBuilder.WriteString(listOrderClauseConstant)
	arguments = append(arguments, limit, offset)

	views, queryError := store.queryCommitViews(executionContext, queryBuilder.String(), arguments...)
	if queryError != nil {
		return nil, fmt.Errorf(listCommitsErrorTemplateConstant, queryError)
	}
	return views, nil
}

// Siblings returns the other stored commits sharing the identifier of the given commit.
func (store *Store) Siblings(executionContext context.Context, tree shared.Tree, hash string) ([]CommitView, error) {
	var identifier string
	lookupError := store.database.QueryRowContext(executionContext, identifierLookupQueryConstant, string(tree), hash).Scan(&identifier)
	if errors.Is(lookupError, sql.ErrNoRows) {
		return nil, fmt.Errorf(siblingsErrorTemplateConstant, tree, hash, ErrCommitNotFound)
	}
	if lookupError != nil {
		return nil, fmt.Errorf(siblingsErrorTemplateConstant, tree, hash, lookupError)
	}
	if len(identifier) == 0 {
		return []CommitView{}, nil
	}

	query := "SELECT " + commitViewColumnsConstant + commitViewFromConstant +
		" WHERE c.change_id = ? AND NOT (c.tree = ? AND c.hash = ?)" + siblingOrderClauseConstant
	views, queryError := store.queryCommitViews(executionContext, query, identifier, string(tree), hash)
	if queryError != nil {
		return nil, fmt.Errorf(siblingsErrorTemplateConstant, tree, hash, queryError)
	}
	return views, nil
}

func (store *Store) queryCommitViews(executionContext context.Context, query string, arguments ...any) ([]CommitView, error) {
	rows, queryError := store.database.QueryContext(executionContext, query, arguments...)
	if queryError != nil {
		return nil, queryError
	}

	views := make([]CommitView, 0)
	for rows.Next() {
		var view CommitView
		var treeValue, authoredAt, classification, remoteURL string
		if scanError := rows.Scan(
			&view.ID, &treeValue, &view.Project, &view.Hash, &view.Identifier, &view.ReviewedOn,
			&view.Author, &view.AuthorEmail, &authoredAt, &view.Subject, &view.Message, &classification,
			&remoteURL,
		); scanError != nil {
			rows.Close()
			return nil, scanError
		}
		view.Tree = shared.Tree(treeValue)
		view.AuthoredAt = parseTimestamp(authoredAt)
		view.Classification = shared.Classification(classification)
		view.URL = view.ReviewedOn
		if len(view.URL) == 0 {
			view.URL = shared.BuildCommitURL(remoteURL, view.Project, view.Hash)
		}
		views = append(views, view)
	}
	rowsError := rows.Err()
	rows.Close()
	if rowsError != nil {
		return nil, rowsError
	}

	if categoriesError := store.attachCategories(executionContext, views); categoriesError != nil {
		return nil, categoriesError
	}
	return views, nil
}

func (store *Store) attachCategories(executionContext context.Context, views []CommitView) error {
	if len(views) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(views))
	arguments := make([]any, 0, len(views))
	positions := make(map[int64]int, len(views))
	for index, view := range views {
		placeholders = append(placeholders, placeholderConstant)
		arguments = append(arguments, view.ID)
		positions[view.ID] = index
	}

	rows, queryError := store.database.QueryContext(executionContext, fmt.Sprintf(categoriesQueryTemplateConstant, strings.Join(placeholders, placeholderSeparatorConstant)), arguments...)
	if queryError != nil {
		return queryError
	}
	defer rows.Close()

	for rows.Next() {
		var commitID int64
		var categoryName string
		if scanError := rows.Scan(&commitID, &categoryName); scanError != nil {
			return scanError
		}
		position := positions[commitID]
		views[position].Categories = append(views[position].Categories, categoryName)
	}
	return rows.Err()
}
