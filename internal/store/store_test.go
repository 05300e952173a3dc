package store_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/treediff/internal/reconcile"
	"github.com/temirov/treediff/internal/repos/filesystem"
	"github.com/temirov/treediff/internal/shared"
	"github.com/temirov/treediff/internal/store"
)

type fixedClock struct {
	instant time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.instant
}

func openTestStore(testInstance *testing.T) *store.Store {
	testInstance.Helper()
	openedStore, openError := store.Open(context.Background(), store.Options{
		Path:       filepath.Join(testInstance.TempDir(), "state", "treediff.db"),
		Clock:      fixedClock{instant: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		FileSystem: filesystem.OSFileSystem{},
	})
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() {
		require.NoError(testInstance, openedStore.Close())
	})
	return openedStore
}

func referenceFixture() ([]shared.SubProject, []shared.CommitRecord) {
	subProjects := []shared.SubProject{
		{Tree: shared.TreeReference, Name: "platform/build", Path: "/ref/build", RelativePath: "build", RemoteName: "aosp", RemoteURL: "https://android.googlesource.com"},
	}
	records := []shared.CommitRecord{
		{Tree: shared.TreeReference, Project: "platform/build", Hash: "r1", Identifier: "I1", Author: "Jane", AuthorEmail: "jane@example.com", AuthoredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Subject: "Add build rule", Message: "Add build rule\n\nChange-Id: I1"},
		{Tree: shared.TreeReference, Project: "platform/build", Hash: "r2", Identifier: "I2", Author: "John", AuthoredAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Subject: "Fix lint", ReviewedOn: "https://review.example.com/c/2"},
	}
	return subProjects, records
}

func derivativeFixture() ([]shared.SubProject, []shared.CommitRecord) {
	subProjects := []shared.SubProject{
		{Tree: shared.TreeDerivative, Name: "platform/build", Path: "/der/build", RelativePath: "build"},
	}
	records := []shared.CommitRecord{
		{Tree: shared.TreeDerivative, Project: "platform/build", Hash: "d2", Identifier: "I2", Author: "John", AuthoredAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Subject: "Fix lint"},
		{Tree: shared.TreeDerivative, Project: "platform/build", Hash: "d3", Identifier: "I3", Author: "Vendor", AuthoredAt: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), Subject: "Vendor tweak"},
		{Tree: shared.TreeDerivative, Project: "platform/build", Hash: "d4", Author: "", Subject: ""},
	}
	return subProjects, records
}

func persistFixtures(testInstance *testing.T, openedStore *store.Store) {
	testInstance.Helper()
	referenceProjects, referenceRecords := referenceFixture()
	derivativeProjects, derivativeRecords := derivativeFixture()
	require.NoError(testInstance, openedStore.PersistTree(context.Background(), shared.TreeReference, referenceProjects, referenceRecords))
	require.NoError(testInstance, openedStore.PersistTree(context.Background(), shared.TreeDerivative, derivativeProjects, derivativeRecords))
}

func classify(testInstance *testing.T, openedStore *store.Store) reconcile.Result {
	testInstance.Helper()
	records, loadError := openedStore.LoadReconciliationRecords(context.Background())
	require.NoError(testInstance, loadError)
	result := reconcile.Reconcile(records)
	require.NoError(testInstance, openedStore.ApplyClassifications(context.Background(), result.Updates()))
	return result
}

func assignCategory(testInstance *testing.T, openedStore *store.Store, tree shared.Tree, hash string, category string) {
	testInstance.Helper()
	require.NoError(testInstance, openedStore.WithTx(context.Background(), func(transaction *sql.Tx) error {
		if _, insertError := transaction.Exec(`INSERT OR IGNORE INTO categories (name) VALUES (?)`, category); insertError != nil {
			return insertError
		}
		_, linkError := transaction.Exec(`INSERT INTO commit_categories (commit_id, category_id)
			SELECT c.id, cat.id FROM commits c, categories cat WHERE c.tree = ? AND c.hash = ? AND cat.name = ?`, string(tree), hash, category)
		return linkError
	}))
}

func TestPersistTreeIsIdempotent(testInstance *testing.T) {
	openedStore := openTestStore(testInstance)
	persistFixtures(testInstance, openedStore)
	classify(testInstance, openedStore)
	persistFixtures(testInstance, openedStore)

	referenceCommits, countError := openedStore.CountCommits(context.Background(), shared.TreeReference)
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 2, referenceCommits)

	derivativeCommits, derivativeError := openedStore.CountCommits(context.Background(), shared.TreeDerivative)
	require.NoError(testInstance, derivativeError)
	require.Equal(testInstance, 3, derivativeCommits)

	subProjects, subProjectError := openedStore.CountSubProjects(context.Background(), shared.TreeDerivative)
	require.NoError(testInstance, subProjectError)
	require.Equal(testInstance, 1, subProjects)

	identifiers, identifierError := openedStore.CountIdentifiers(context.Background(), shared.TreeDerivative)
	require.NoError(testInstance, identifierError)
	require.Equal(testInstance, 2, identifiers)

	classifications, classificationError := openedStore.CountClassifications(context.Background())
	require.NoError(testInstance, classificationError)
	require.Equal(testInstance, map[shared.Classification]int{
		shared.ClassificationShared:         2,
		shared.ClassificationReferenceOnly:  1,
		shared.ClassificationDerivativeOnly: 2,
	}, classifications)
}

func TestCrossTreeDuplicateHashesAreDistinctRecords(testInstance *testing.T) {
	openedStore := openTestStore(testInstance)
	record := shared.CommitRecord{Project: "kernel", Hash: "same", Identifier: "Ik"}

	referenceRecord := record
	referenceRecord.Tree = shared.TreeReference
	derivativeRecord := record
	derivativeRecord.Tree = shared.TreeDerivative

	require.NoError(testInstance, openedStore.PersistTree(context.Background(), shared.TreeReference, nil, []shared.CommitRecord{referenceRecord}))
	require.NoError(testInstance, openedStore.PersistTree(context.Background(), shared.TreeDerivative, nil, []shared.CommitRecord{derivativeRecord}))

	records, loadError := openedStore.LoadReconciliationRecords(context.Background())
	require.NoError(testInstance, loadError)
	require.Len(testInstance, records, 2)
}

func TestListCommitsFiltersAndEnrichment(testInstance *testing.T) {
	openedStore := openTestStore(testInstance)
	persistFixtures(testInstance, openedStore)
	classify(testInstance, openedStore)
	assignCategory(testInstance, openedStore, shared.TreeReference, "r1", "security")
	persistFixtures(testInstance, openedStore)

	allViews, listError := openedStore.ListCommits(context.Background(), store.CommitFilter{})
	require.NoError(testInstance, listError)
	require.Len(testInstance, allViews, 5)

	referenceViews, referenceError := openedStore.ListCommits(context.Background(), store.CommitFilter{Tree: shared.TreeReference})
	require.NoError(testInstance, referenceError)
	require.Len(testInstance, referenceViews, 2)
	require.Equal(testInstance, "r2", referenceViews[0].Hash)
	require.Equal(testInstance, "https://review.example.com/c/2", referenceViews[0].URL)
	require.Equal(testInstance, "https://android.googlesource.com/platform/build/commit/r1", referenceViews[1].URL)
	require.Equal(testInstance, []string{"security"}, referenceViews[1].Categories)
	require.Equal(testInstance, shared.ClassificationReferenceOnly, referenceViews[1].Classification)

	categoryViews, categoryError := openedStore.ListCommits(context.Background(), store.CommitFilter{Category: "security"})
	require.NoError(testInstance, categoryError)
	require.Len(testInstance, categoryViews, 1)

	searchViews, searchError := openedStore.ListCommits(context.Background(), store.CommitFilter{Search: "lint", Tree: shared.TreeDerivative})
	require.NoError(testInstance, searchError)
	require.Len(testInstance, searchViews, 1)
	require.Empty(testInstance, searchViews[0].URL)

	authorViews, authorError := openedStore.ListCommits(context.Background(), store.CommitFilter{Author: "jane@"})
	require.NoError(testInstance, authorError)
	require.Len(testInstance, authorViews, 1)

	sharedViews, sharedError := openedStore.ListCommits(context.Background(), store.CommitFilter{Classification: shared.ClassificationShared})
	require.NoError(testInstance, sharedError)
	require.Len(testInstance, sharedViews, 2)

	pagedViews, pagedError := openedStore.ListCommits(context.Background(), store.CommitFilter{Limit: 2, Offset: 4})
	require.NoError(testInstance, pagedError)
	require.Len(testInstance, pagedViews, 1)
}

func TestSiblings(testInstance *testing.T) {
	openedStore := openTestStore(testInstance)
	persistFixtures(testInstance, openedStore)

	siblings, siblingsError := openedStore.Siblings(context.Background(), shared.TreeReference, "r2")
	require.NoError(testInstance, siblingsError)
	require.Len(testInstance, siblings, 1)
	require.Equal(testInstance, shared.TreeDerivative, siblings[0].Tree)
	require.Equal(testInstance, "d2", siblings[0].Hash)

	lonely, lonelyError := openedStore.Siblings(context.Background(), shared.TreeDerivative, "d4")
	require.NoError(testInstance, lonelyError)
	require.Empty(testInstance, lonely)

	_, missingError := openedStore.Siblings(context.Background(), shared.TreeDerivative, "absent")
	require.ErrorIs(testInstance, missingError, store.ErrCommitNotFound)
}

func TestResetKeepsCategories(testInstance *testing.T) {
	openedStore := openTestStore(testInstance)
	persistFixtures(testInstance, openedStore)
	assignCategory(testInstance, openedStore, shared.TreeDerivative, "d3", "vendor")

	require.NoError(testInstance, openedStore.Reset(context.Background()))

	for _, tree := range shared.Trees() {
		commitCount, countError := openedStore.CountCommits(context.Background(), tree)
		require.NoError(testInstance, countError)
		require.Zero(testInstance, commitCount)
		subProjectCount, subProjectError := openedStore.CountSubProjects(context.Background(), tree)
		require.NoError(testInstance, subProjectError)
		require.Zero(testInstance, subProjectCount)
	}

	var categoryCount, linkCount int
	require.NoError(testInstance, openedStore.WithTx(context.Background(), func(transaction *sql.Tx) error {
		if scanError := transaction.QueryRow(`SELECT COUNT(*) FROM categories`).Scan(&categoryCount); scanError != nil {
			return scanError
		}
		return transaction.QueryRow(`SELECT COUNT(*) FROM commit_categories`).Scan(&linkCount)
	}))
	require.Equal(testInstance, 1, categoryCount)
	require.Zero(testInstance, linkCount)
}

func TestQualityReport(testInstance *testing.T) {
	openedStore := openTestStore(testInstance)
	persistFixtures(testInstance, openedStore)

	report, reportError := openedStore.QualityReport(context.Background(), 0)
	require.NoError(testInstance, reportError)
	require.Equal(testInstance, []store.TreeQuality{
		{Tree: shared.TreeReference, Commits: 2, Unclassified: 2},
		{Tree: shared.TreeDerivative, Commits: 3, EmptyAuthor: 1, EmptyDate: 1, EmptySubject: 1, MissingIdentifier: 1, Unclassified: 3},
	}, report.Trees)
	require.Equal(testInstance, 1, report.MultiHashIdentifierCount)
	require.Equal(testInstance, []store.IdentifierHashes{{Identifier: "I2", Reference: 1, Derivative: 1}}, report.MultiHashIdentifiers)
}

func TestWithTxRollsBack(testInstance *testing.T) {
	openedStore := openTestStore(testInstance)
	persistFixtures(testInstance, openedStore)

	rollbackCause := errors.New("abort")
	transactionError := openedStore.WithTx(context.Background(), func(transaction *sql.Tx) error {
		if _, deleteError := transaction.Exec(`DELETE FROM commits`); deleteError != nil {
			return deleteError
		}
		return rollbackCause
	})
	require.ErrorIs(testInstance, transactionError, rollbackCause)

	commitCount, countError := openedStore.CountCommits(context.Background(), shared.TreeReference)
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 2, commitCount)
}

func TestAcquireRun(testInstance *testing.T) {
	openedStore := openTestStore(testInstance)

	release, acquireError := openedStore.AcquireRun()
	require.NoError(testInstance, acquireError)

	_, secondError := openedStore.AcquireRun()
	require.ErrorIs(testInstance, secondError, store.ErrRunAlreadyInProgress)

	release()
	release()

	releaseAgain, reacquireError := openedStore.AcquireRun()
	require.NoError(testInstance, reacquireError)
	releaseAgain()
}

func TestOpenRequiresPath(testInstance *testing.T) {
	_, openError := store.Open(context.Background(), store.Options{})
	require.ErrorIs(testInstance, openError, store.ErrStorePathRequired)
}
