package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	_ "modernc.org/sqlite"

	"github.com/temirov/treediff/internal/shared"
)

const (
	sqliteDriverNameConstant               = "sqlite"
	databaseDirectoryPermissionsConstant   = 0o755
	openDatabaseErrorTemplateConstant      = "open database %s: %w"
	createDirectoryErrorTemplateConstant   = "create database directory %s: %w"
	pragmaErrorTemplateConstant            = "apply %q: %w"
	schemaErrorTemplateConstant            = "initialize schema: %w"
	beginTransactionErrorTemplateConstant  = "begin transaction: %w"
	commitTransactionErrorTemplateConstant = "commit transaction: %w"
	rollbackFailedMessageConstant          = "Transaction rollback failed"
	storeOpenedMessageConstant             = "Opened store"
	logFieldPathConstant                   = "path"
	logFieldRollbackErrorConstant          = "rollback_error"
	inMemoryPathConstant                   = ":memory:"
)

var connectionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// Options configures Open.
type Options struct {
	Path       string
	Logger     *zap.Logger
	Clock      shared.Clock
	FileSystem shared.FileSystem
}

// Store is the SQLite-backed persistence gateway.
type Store struct {
	database *sql.DB
	logger   *zap.Logger
	clock    shared.Clock
	path     string
	runLock  *semaphore.Weighted
}

// Open creates or opens the database at options.Path and applies the schema.
func Open(executionContext context.Context, options Options) (*Store, error) {
	if len(options.Path) == 0 {
		return nil, ErrStorePathRequired
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := options.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}

	if options.Path != inMemoryPathConstant && options.FileSystem != nil {
		directory := filepath.Dir(options.Path)
		if directoryError := options.FileSystem.MkdirAll(directory, databaseDirectoryPermissionsConstant); directoryError != nil {
			return nil, fmt.Errorf(createDirectoryErrorTemplateConstant, directory, directoryError)
		}
	}

	database, openError := sql.Open(sqliteDriverNameConstant, options.Path)
	if openError != nil {
		return nil, fmt.Errorf(openDatabaseErrorTemplateConstant, options.Path, openError)
	}
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)
	database.SetConnMaxLifetime(0)

	for _, pragma := range connectionPragmas {
		if _, pragmaError := database.ExecContext(executionContext, pragma); pragmaError != nil {
			database.Close()
			return nil, fmt.Errorf(pragmaErrorTemplateConstant, pragma, pragmaError)
		}
	}

	openedStore := &Store{
		database: database,
		logger:   logger,
		clock:    clock,
		path:     options.Path,
		runLock:  semaphore.NewWeighted(1),
	}

	if schemaError := openedStore.WithTx(executionContext, func(transaction *sql.Tx) error {
		for _, statement := range schemaStatements {
			if _, statementError := transaction.ExecContext(executionContext, statement); statementError != nil {
				return statementError
			}
		}
		return nil
	}); schemaError != nil {
		database.Close()
		return nil, fmt.Errorf(schemaErrorTemplateConstant, schemaError)
	}

	logger.Debug(storeOpenedMessageConstant, zap.String(logFieldPathConstant, options.Path))
	return openedStore, nil
}

// Close releases the database connection.
func (store *Store) Close() error {
	if store.database == nil {
		return nil
	}
	return store.database.Close()
}

// Path returns the database location.
func (store *Store) Path() string {
	return store.path
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (store *Store) WithTx(executionContext context.Context, fn func(*sql.Tx) error) error {
	transaction, beginError := store.database.BeginTx(executionContext, nil)
	if beginError != nil {
		return fmt.Errorf(beginTransactionErrorTemplateConstant, beginError)
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			_ = transaction.Rollback()
			panic(recovered)
		}
	}()

	if callbackError := fn(transaction); callbackError != nil {
		if rollbackError := transaction.Rollback(); rollbackError != nil {
			store.logger.Error(rollbackFailedMessageConstant, zap.Error(callbackError), zap.NamedError(logFieldRollbackErrorConstant, rollbackError))
		}
		return callbackError
	}

	if commitError := transaction.Commit(); commitError != nil {
		return fmt.Errorf(commitTransactionErrorTemplateConstant, commitError)
	}
	return nil
}

// AcquireRun takes the store's run lock without waiting.
// The returned release function is idempotent.
func (store *Store) AcquireRun() (func(), error) {
	if !store.runLock.TryAcquire(1) {
		return nil, ErrRunAlreadyInProgress
	}
	var releaseOnce sync.Once
	return func() {
		releaseOnce.Do(func() {
			store.runLock.Release(1)
		})
	}, nil
}
