package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/progress"
	"github.com/temirov/treediff/internal/reconcile"
	"github.com/temirov/treediff/internal/scan"
	"github.com/temirov/treediff/internal/shared"
)

const (
	initializingStartPercentConstant = 0
	initializingEndPercentConstant   = 2
	manifestStartPercentConstant     = 2
	manifestEndPercentConstant       = 5
	scanningStartPercentConstant     = 5
	scanningEndPercentConstant       = 85
	analysisStartPercentConstant     = 85
	analysisLoadedPercentConstant    = 90
	analysisEndPercentConstant       = 99

	startingScanMessageConstant          = "starting scan"
	startingReanalysisMessageConstant    = "starting reanalysis"
	resettingStoreMessageConstant        = "clearing persisted commits"
	parsingManifestTemplateConstant      = "parsing %s manifest"
	scanningSubProjectTemplateConstant   = "scanned %s (%d/%d)"
	scanningStartedMessageConstant       = "scanning sub-projects"
	persistingTreeTemplateConstant       = "persisting %s commits"
	analysisStartedMessageConstant       = "reconciling commits"
	analysisLoadedTemplateConstant       = "classifying %d commits"
	scanCompletedTemplateConstant        = "scan completed: %d shared, %d reference only, %d derivative only"
	reanalysisCompletedTemplateConstant  = "reanalysis completed: %d shared, %d reference only, %d derivative only"
	currentItemTemplateConstant          = "%s/%s"
	treeErrorTemplateConstant            = "%s tree: %w"
	cancelledErrorTemplateConstant       = "%w: %w"
	resetErrorTemplateConstant           = "reset failed: %w"
	persistErrorTemplateConstant         = "persisting %s tree failed: %w"
	loadRecordsErrorTemplateConstant     = "loading commits failed: %w"
	applyClassificationsTemplateConstant = "writing classifications failed: %w"
	countErrorTemplateConstant           = "counting %s tree failed: %w"
	treePathRequiredMessageConstant      = "reference and derivative tree paths are required"
	runStartedLogMessageConstant         = "audit run started"
	runFinishedLogMessageConstant        = "audit run finished"
	runFailedLogMessageConstant          = "audit run failed"
	manifestFailedLogMessageConstant     = "manifest resolution failed; tree skipped"
	logFieldRunIDConstant                = "run_id"
	logFieldOperationConstant            = "operation"
	logFieldTreeConstant                 = "tree"
	logFieldRootConstant                 = "root"
	logFieldSharedConstant               = "shared"
	logFieldReferenceOnlyConstant        = "reference_only"
	logFieldDerivativeOnlyConstant       = "derivative_only"
	logFieldCancelledConstant            = "cancelled"
	operationScanConstant                = "scan"
	operationReanalyzeConstant           = "reanalyze"
	scanningPercentRangeConstant         = scanningEndPercentConstant - scanningStartPercentConstant
	manifestPercentRangeConstant         = manifestEndPercentConstant - manifestStartPercentConstant
)

// ErrTreePathRequired indicates a scan request without both tree roots.
var ErrTreePathRequired = errors.New(treePathRequiredMessageConstant)

// ManifestResolver turns a tree root into its ordered sub-projects.
type ManifestResolver interface {
	Resolve(tree shared.Tree, treeRoot string) ([]shared.SubProject, error)
}

// TreeScanner collects the commits of every sub-project in one tree.
type TreeScanner interface {
	ScanTree(executionContext context.Context, tree shared.Tree, subProjects []shared.SubProject, onProgress scan.ProgressFunc) (scan.TreeResult, error)
}

// Persistence is the storage surface used by audit runs.
type Persistence interface {
	AcquireRun() (func(), error)
	Reset(executionContext context.Context) error
	PersistTree(executionContext context.Context, tree shared.Tree, subProjects []shared.SubProject, records []shared.CommitRecord) error
	LoadReconciliationRecords(executionContext context.Context) ([]reconcile.Record, error)
	ApplyClassifications(executionContext context.Context, updates []reconcile.ClassificationUpdate) error
	CountSubProjects(executionContext context.Context, tree shared.Tree) (int, error)
	CountCommits(executionContext context.Context, tree shared.Tree) (int, error)
}

// RunIDGenerator produces identifiers for progress snapshots.
type RunIDGenerator func() string

// RunObserver receives a subscription attached before the first snapshot of a run.
type RunObserver func(subscription *progress.Subscription)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Resolver         ManifestResolver
	Scanner          TreeScanner
	Store            Persistence
	Logger           *zap.Logger
	Clock            shared.Clock
	SubscriberBuffer int
	RunIDGenerator   RunIDGenerator
	OnRunStarted     RunObserver
}

// Service runs scans and reanalyses one at a time and publishes their progress.
type Service struct {
	resolver         ManifestResolver
	scanner          TreeScanner
	store            Persistence
	logger           *zap.Logger
	clock            shared.Clock
	subscriberBuffer int
	runIDGenerator   RunIDGenerator
	onRunStarted     RunObserver

	mutex        sync.Mutex
	active       *progress.Publisher
	lastSnapshot progress.Snapshot
}

// NewService constructs a Service from its collaborators.
func NewService(options ServiceOptions) *Service {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := options.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	runIDGenerator := options.RunIDGenerator
	if runIDGenerator == nil {
		runIDGenerator = uuid.NewString
	}
	return &Service{
		resolver:         options.Resolver,
		scanner:          options.Scanner,
		store:            options.Store,
		logger:           logger,
		clock:            clock,
		subscriberBuffer: options.SubscriberBuffer,
		runIDGenerator:   runIDGenerator,
		onRunStarted:     options.OnRunStarted,
		lastSnapshot:     progress.Snapshot{Stage: progress.StageIdle, UpdatedAt: clock.Now()},
	}
}

// Scan resolves both manifests, scans every sub-project, persists the commits, and
// reconciles everything persisted. A manifest failure aborts only its tree; the
// returned error then joins the per-tree failures and the summary still describes
// what was persisted.
func (service *Service) Scan(executionContext context.Context, request ScanRequest) (ScanSummary, error) {
	roots := map[shared.Tree]string{
		shared.TreeReference:  strings.TrimSpace(request.ReferencePath),
		shared.TreeDerivative: strings.TrimSpace(request.DerivativePath),
	}
	if len(roots[shared.TreeReference]) == 0 || len(roots[shared.TreeDerivative]) == 0 {
		return ScanSummary{}, ErrTreePathRequired
	}

	release, acquireError := service.store.AcquireRun()
	if acquireError != nil {
		return ScanSummary{}, acquireError
	}
	defer release()

	publisher := service.beginRun(operationScanConstant)
	defer service.finishRun(publisher)

	publisher.Update(progress.Update{Stage: progress.StageInitializing, Percentage: initializingStartPercentConstant, Message: startingScanMessageConstant})
	if request.Reset {
		publisher.Update(progress.Update{Stage: progress.StageInitializing, Message: resettingStoreMessageConstant})
		if resetError := service.store.Reset(executionContext); resetError != nil {
			return ScanSummary{}, service.fail(executionContext, publisher, fmt.Errorf(resetErrorTemplateConstant, resetError))
		}
	}
	publisher.Update(progress.Update{Stage: progress.StageInitializing, Percentage: initializingEndPercentConstant, Message: startingScanMessageConstant})

	resolved, treeErrors := service.resolveManifests(publisher, roots)
	if executionContext.Err() != nil {
		return ScanSummary{}, service.fail(executionContext, publisher, fmt.Errorf(cancelledErrorTemplateConstant, scan.ErrCancelled, context.Cause(executionContext)))
	}

	summary := ScanSummary{}
	for _, tree := range shared.Trees() {
		summary.Tree(tree).Root = roots[tree]
	}

	totalSteps := 0
	for _, subProjects := range resolved {
		totalSteps += len(subProjects)
	}
	publisher.Update(progress.Update{Stage: progress.StageGitScanning, Percentage: scanningStartPercentConstant, Message: scanningStartedMessageConstant, TotalSteps: totalSteps})

	completedSteps := 0
	for _, tree := range shared.Trees() {
		subProjects, treeResolved := resolved[tree]
		if !treeResolved {
			continue
		}

		stepOffset := completedSteps
		treeResult, scanError := service.scanner.ScanTree(executionContext, tree, subProjects, func(event scan.ProgressEvent) {
			currentStep := stepOffset + event.Completed
			publisher.Update(progress.Update{
				Stage:       progress.StageGitScanning,
				Percentage:  scanningStartPercentConstant + scanningPercentRangeConstant*float64(currentStep)/float64(totalSteps),
				Message:     fmt.Sprintf(scanningSubProjectTemplateConstant, event.SubProject, currentStep, totalSteps),
				CurrentItem: fmt.Sprintf(currentItemTemplateConstant, event.Tree, event.SubProject),
				CurrentStep: currentStep,
				TotalSteps:  totalSteps,
			})
		})
		if scanError != nil {
			return ScanSummary{}, service.fail(executionContext, publisher, scanError)
		}
		completedSteps += len(subProjects)
		summary.Tree(tree).Skipped = treeResult.Skipped

		publisher.Update(progress.Update{Stage: progress.StageGitScanning, Message: fmt.Sprintf(persistingTreeTemplateConstant, tree)})
		if persistError := service.store.PersistTree(executionContext, tree, treeResult.SubProjects, treeResult.Records); persistError != nil {
			return ScanSummary{}, service.fail(executionContext, publisher, fmt.Errorf(persistErrorTemplateConstant, tree, persistError))
		}
	}

	analysisError := service.analyze(executionContext, publisher, &summary)
	if analysisError != nil {
		return ScanSummary{}, service.fail(executionContext, publisher, analysisError)
	}

	var joinedTreeErrors []error
	for _, tree := range shared.Trees() {
		if treeError := treeErrors[tree]; treeError != nil {
			summary.Tree(tree).Error = treeError.Error()
			joinedTreeErrors = append(joinedTreeErrors, treeError)
		}
	}
	if runError := errors.Join(joinedTreeErrors...); runError != nil {
		return summary, service.fail(executionContext, publisher, runError)
	}

	publisher.Complete(fmt.Sprintf(scanCompletedTemplateConstant, summary.Shared, summary.ReferenceOnly, summary.DerivativeOnly))
	service.logCompletion(publisher, summary)
	return summary, nil
}

// Reanalyze reconciles whatever is currently persisted without scanning.
// It is safe to call repeatedly and after an interrupted scan.
func (service *Service) Reanalyze(executionContext context.Context) (ScanSummary, error) {
	release, acquireError := service.store.AcquireRun()
	if acquireError != nil {
		return ScanSummary{}, acquireError
	}
	defer release()

	publisher := service.beginRun(operationReanalyzeConstant)
	defer service.finishRun(publisher)

	publisher.Update(progress.Update{Stage: progress.StageInitializing, Percentage: initializingEndPercentConstant, Message: startingReanalysisMessageConstant})

	summary := ScanSummary{}
	if analysisError := service.analyze(executionContext, publisher, &summary); analysisError != nil {
		return ScanSummary{}, service.fail(executionContext, publisher, analysisError)
	}

	publisher.Complete(fmt.Sprintf(reanalysisCompletedTemplateConstant, summary.Shared, summary.ReferenceOnly, summary.DerivativeOnly))
	service.logCompletion(publisher, summary)
	return summary, nil
}

// SubscribeProgress attaches to the active run. When no run is active the
// subscription delivers the last known snapshot and closes.
func (service *Service) SubscribeProgress() *progress.Subscription {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	if service.active != nil {
		return service.active.Subscribe()
	}
	return progress.NewClosedSubscription(service.lastSnapshot)
}

// LastSnapshot returns the most recent snapshot of the active or last finished run.
func (service *Service) LastSnapshot() progress.Snapshot {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	if service.active != nil {
		return service.active.Snapshot()
	}
	return service.lastSnapshot
}

func (service *Service) resolveManifests(publisher *progress.Publisher, roots map[shared.Tree]string) (map[shared.Tree][]shared.SubProject, map[shared.Tree]error) {
	resolved := make(map[shared.Tree][]shared.SubProject, len(roots))
	treeErrors := make(map[shared.Tree]error)

	trees := shared.Trees()
	for index, tree := range trees {
		publisher.Update(progress.Update{
			Stage:       progress.StageManifestParsing,
			Percentage:  manifestStartPercentConstant + manifestPercentRangeConstant*float64(index)/float64(len(trees)),
			Message:     fmt.Sprintf(parsingManifestTemplateConstant, tree),
			CurrentItem: roots[tree],
			CurrentStep: index + 1,
			TotalSteps:  len(trees),
		})

		subProjects, resolveError := service.resolver.Resolve(tree, roots[tree])
		if resolveError != nil {
			service.logger.Error(
				manifestFailedLogMessageConstant,
				zap.String(logFieldTreeConstant, string(tree)),
				zap.String(logFieldRootConstant, roots[tree]),
				zap.Error(resolveError),
			)
			treeErrors[tree] = fmt.Errorf(treeErrorTemplateConstant, tree, resolveError)
			continue
		}
		resolved[tree] = subProjects
	}

	publisher.Update(progress.Update{Stage: progress.StageManifestParsing, Percentage: manifestEndPercentConstant, Message: fmt.Sprintf(parsingManifestTemplateConstant, trees[len(trees)-1])})
	return resolved, treeErrors
}

// analyze reconciles persisted records, writes classifications back, and fills the summary counts.
func (service *Service) analyze(executionContext context.Context, publisher *progress.Publisher, summary *ScanSummary) error {
	publisher.Update(progress.Update{Stage: progress.StageDiffAnalysis, Percentage: analysisStartPercentConstant, Message: analysisStartedMessageConstant})

	records, loadError := service.store.LoadReconciliationRecords(executionContext)
	if loadError != nil {
		return fmt.Errorf(loadRecordsErrorTemplateConstant, loadError)
	}
	publisher.Update(progress.Update{Stage: progress.StageDiffAnalysis, Percentage: analysisLoadedPercentConstant, Message: fmt.Sprintf(analysisLoadedTemplateConstant, len(records))})

	result := reconcile.Reconcile(records)
	if applyError := service.store.ApplyClassifications(executionContext, result.Updates()); applyError != nil {
		return fmt.Errorf(applyClassificationsTemplateConstant, applyError)
	}

	summary.Shared = result.Counts.Shared
	summary.ReferenceOnly = result.Counts.ReferenceOnly
	summary.DerivativeOnly = result.Counts.DerivativeOnly
	summary.Classified = result.Counts.Classified
	summary.Reference.Identifiers = result.Counts.ReferenceIdentifiers
	summary.Derivative.Identifiers = result.Counts.DerivativeIdentifiers

	for _, tree := range shared.Trees() {
		subProjectCount, subProjectError := service.store.CountSubProjects(executionContext, tree)
		if subProjectError != nil {
			return fmt.Errorf(countErrorTemplateConstant, tree, subProjectError)
		}
		commitCount, commitError := service.store.CountCommits(executionContext, tree)
		if commitError != nil {
			return fmt.Errorf(countErrorTemplateConstant, tree, commitError)
		}
		summary.Tree(tree).SubProjects = subProjectCount
		summary.Tree(tree).Commits = commitCount
	}

	publisher.Update(progress.Update{Stage: progress.StageDiffAnalysis, Percentage: analysisEndPercentConstant, Message: analysisStartedMessageConstant})
	return nil
}

func (service *Service) beginRun(operation string) *progress.Publisher {
	publisher := progress.NewPublisher(service.runIDGenerator(), progress.Options{SubscriberBuffer: service.subscriberBuffer, Clock: service.clock})

	service.mutex.Lock()
	service.active = publisher
	service.mutex.Unlock()

	if service.onRunStarted != nil {
		service.onRunStarted(publisher.Subscribe())
	}

	service.logger.Info(
		runStartedLogMessageConstant,
		zap.String(logFieldRunIDConstant, publisher.Snapshot().RunID),
		zap.String(logFieldOperationConstant, operation),
	)
	return publisher
}

func (service *Service) finishRun(publisher *progress.Publisher) {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	service.lastSnapshot = publisher.Snapshot()
	if service.active == publisher {
		service.active = nil
	}
}

// fail ends the run in StageError. A run whose context ended, or whose error
// carries scan.ErrCancelled, is reported as cancelled whatever the cause.
func (service *Service) fail(executionContext context.Context, publisher *progress.Publisher, runError error) error {
	if executionContext.Err() != nil || errors.Is(runError, scan.ErrCancelled) {
		publisher.Cancel(runError)
	} else {
		publisher.Fail(runError)
	}
	snapshot := publisher.Snapshot()
	service.logger.Error(
		runFailedLogMessageConstant,
		zap.String(logFieldRunIDConstant, snapshot.RunID),
		zap.Bool(logFieldCancelledConstant, snapshot.Cancelled),
		zap.Error(runError),
	)
	return runError
}

func (service *Service) logCompletion(publisher *progress.Publisher, summary ScanSummary) {
	service.logger.Info(
		runFinishedLogMessageConstant,
		zap.String(logFieldRunIDConstant, publisher.Snapshot().RunID),
		zap.Int(logFieldSharedConstant, summary.Shared),
		zap.Int(logFieldReferenceOnlyConstant, summary.ReferenceOnly),
		zap.Int(logFieldDerivativeOnlyConstant, summary.DerivativeOnly),
	)
}
