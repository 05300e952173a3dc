package store

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sub_projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tree TEXT NOT NULL CHECK (tree IN ('reference', 'derivative')),
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		relative_path TEXT NOT NULL DEFAULT '',
		remote_name TEXT NOT NULL DEFAULT '',
		remote_url TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		UNIQUE (tree, name)
	)`,
	`CREATE TABLE IF NOT EXISTS commits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tree TEXT NOT NULL CHECK (tree IN ('reference', 'derivative')),
		project TEXT NOT NULL,
		hash TEXT NOT NULL,
		change_id TEXT,
		reviewed_on TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		author_email TEXT NOT NULL DEFAULT '',
		authored_at TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL DEFAULT '' CHECK (classification IN ('', 'shared', 'reference_only', 'derivative_only')),
		scanned_at TEXT NOT NULL,
		UNIQUE (tree, hash)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commits_change_id ON commits(change_id)`,
	`CREATE INDEX IF NOT EXISTS idx_commits_classification ON commits(classification)`,
	`CREATE INDEX IF NOT EXISTS idx_commits_project ON commits(tree, project)`,
	`CREATE INDEX IF NOT EXISTS idx_commits_author ON commits(author)`,
	`CREATE INDEX IF NOT EXISTS idx_commits_authored_at ON commits(authored_at)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		is_default INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS commit_categories (
		commit_id INTEGER NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
		category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		PRIMARY KEY (commit_id, category_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commit_categories_category ON commit_categories(category_id)`,
}
