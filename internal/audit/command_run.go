package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/commits"
	"github.com/temirov/treediff/internal/progress"
	"github.com/temirov/treediff/internal/store"
	"github.com/temirov/treediff/internal/ui"
	"github.com/temirov/treediff/internal/utils/flags"
)

const (
	scanCommandUseConstant              = "scan"
	scanCommandShortDescriptionConstant = "Scan the reference and derivative trees and classify every commit"
	scanCommandLongDescriptionConstant  = "scan resolves both tree manifests, reads the history of every sub-project, stores the commits, and classifies them as shared, reference only, or derivative only."
	reanalyzeCommandUseConstant         = "reanalyze"
	reanalyzeShortDescriptionConstant   = "Reclassify the stored commits without scanning"
	reanalyzeLongDescriptionConstant    = "reanalyze reruns reconciliation against whatever commits are stored, which also completes an interrupted scan."
	resetCommandUseConstant             = "reset"
	resetShortDescriptionConstant       = "Remove stored commits and sub-projects"
	resetLongDescriptionConstant        = "reset deletes every stored commit, sub-project, and category assignment. Category definitions are kept."
	scanFailedTemplateConstant          = "scan failed: %w"
	reanalyzeFailedTemplateConstant     = "reanalyze failed: %w"
	resetFailedTemplateConstant         = "reset failed: %w"
	resetCompletedMessageConstant       = "stored commits removed"
	flagReferenceNameConstant           = "reference"
	flagReferenceDescriptionConstant    = "Root directory of the reference tree"
	flagDerivativeNameConstant          = "derivative"
	flagDerivativeDescriptionConstant   = "Root directory of the derivative tree"
	flagResetNameConstant               = "reset"
	flagResetDescriptionConstant        = "Remove stored commits before scanning"
	flagWorkersNameConstant             = "workers"
	flagWorkersDescriptionConstant      = "Number of sub-projects scanned concurrently"
	flagMaxCountNameConstant            = "max-count"
	flagMaxCountDescriptionConstant     = "Maximum commits read per sub-project (0 reads all)"
	flagBackendNameConstant             = "backend"
	flagBackendDescriptionConstant      = "History reader"
	flagProgressNameConstant            = "progress"
	flagProgressDescriptionConstant     = "Print progress snapshots to standard error"
)

func (builder *CommandBuilder) buildScanCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   scanCommandUseConstant,
		Short: scanCommandShortDescriptionConstant,
		Long:  scanCommandLongDescriptionConstant,
		RunE:  builder.runScan,
	}

	defaults := DefaultCommandConfiguration()
	backendChoices := []string{string(commits.BackendCommand), string(commits.BackendGoGit)}
	command.Flags().String(flagReferenceNameConstant, "", flagReferenceDescriptionConstant)
	command.Flags().String(flagDerivativeNameConstant, "", flagDerivativeDescriptionConstant)
	command.Flags().Bool(flagResetNameConstant, false, flagResetDescriptionConstant)
	command.Flags().Int(flagWorkersNameConstant, defaults.Scan.Workers, flagWorkersDescriptionConstant)
	command.Flags().Int(flagMaxCountNameConstant, defaults.Scan.MaxCount, flagMaxCountDescriptionConstant)
	command.Flags().String(flagBackendNameConstant, defaults.Scan.Backend, flags.FormatChoiceUsage(defaults.Scan.Backend, backendChoices, flagBackendDescriptionConstant))
	command.Flags().Bool(flagProgressNameConstant, false, flagProgressDescriptionConstant)

	return command
}

func (builder *CommandBuilder) buildReanalyzeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   reanalyzeCommandUseConstant,
		Short: reanalyzeShortDescriptionConstant,
		Long:  reanalyzeLongDescriptionConstant,
		RunE:  builder.runReanalyze,
	}
	command.Flags().Bool(flagProgressNameConstant, false, flagProgressDescriptionConstant)
	return command
}

func (builder *CommandBuilder) buildResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   resetCommandUseConstant,
		Short: resetShortDescriptionConstant,
		Long:  resetLongDescriptionConstant,
		RunE:  builder.runReset,
	}
}

func (builder *CommandBuilder) runScan(command *cobra.Command, arguments []string) error {
	configuration := builder.applyScanFlags(command, builder.resolveConfiguration())

	referencePath, _ := command.Flags().GetString(flagReferenceNameConstant)
	derivativePath, _ := command.Flags().GetString(flagDerivativeNameConstant)
	resetRequested, _ := command.Flags().GetBool(flagResetNameConstant)
	request := ScanRequest{ReferencePath: referencePath, DerivativePath: derivativePath, Reset: resetRequested}

	return builder.runWithStore(command, arguments, configuration, func(executionContext context.Context, configuration CommandConfiguration, openedStore *store.Store, logger *zap.Logger) error {
		follower := builder.newProgressFollower(command)
		service, serviceError := buildService(configuration, builder.resolveCollaborators(logger), openedStore, logger, follower.observer())
		if serviceError != nil {
			return serviceError
		}

		summary, scanError := service.Scan(executionContext, request)
		follower.wait()
		if scanError != nil && summary.Reference.Root == "" {
			return fmt.Errorf(scanFailedTemplateConstant, scanError)
		}
		if writeError := writeYAML(command.OutOrStdout(), summary); writeError != nil {
			return writeError
		}
		if scanError != nil {
			return fmt.Errorf(scanFailedTemplateConstant, scanError)
		}
		return nil
	})
}

func (builder *CommandBuilder) runReanalyze(command *cobra.Command, arguments []string) error {
	return builder.runWithStore(command, arguments, builder.resolveConfiguration(), func(executionContext context.Context, configuration CommandConfiguration, openedStore *store.Store, logger *zap.Logger) error {
		follower := builder.newProgressFollower(command)
		service, serviceError := buildService(configuration, builder.resolveCollaborators(logger), openedStore, logger, follower.observer())
		if serviceError != nil {
			return serviceError
		}

		summary, reanalyzeError := service.Reanalyze(executionContext)
		follower.wait()
		if reanalyzeError != nil {
			return fmt.Errorf(reanalyzeFailedTemplateConstant, reanalyzeError)
		}
		return writeYAML(command.OutOrStdout(), summary)
	})
}

func (builder *CommandBuilder) runReset(command *cobra.Command, arguments []string) error {
	return builder.runWithStore(command, arguments, builder.resolveConfiguration(), func(executionContext context.Context, configuration CommandConfiguration, openedStore *store.Store, logger *zap.Logger) error {
		release, acquireError := openedStore.AcquireRun()
		if acquireError != nil {
			return fmt.Errorf(resetFailedTemplateConstant, acquireError)
		}
		defer release()

		if resetError := openedStore.Reset(executionContext); resetError != nil {
			return fmt.Errorf(resetFailedTemplateConstant, resetError)
		}
		logger.Info(resetCompletedMessageConstant)
		return nil
	})
}

// applyScanFlags overrides configuration values with explicitly set flags.
func (builder *CommandBuilder) applyScanFlags(command *cobra.Command, configuration CommandConfiguration) CommandConfiguration {
	updated := configuration
	if command.Flags().Changed(flagWorkersNameConstant) {
		updated.Scan.Workers, _ = command.Flags().GetInt(flagWorkersNameConstant)
	}
	if command.Flags().Changed(flagMaxCountNameConstant) {
		updated.Scan.MaxCount, _ = command.Flags().GetInt(flagMaxCountNameConstant)
	}
	if command.Flags().Changed(flagBackendNameConstant) {
		backendValue, _ := command.Flags().GetString(flagBackendNameConstant)
		updated.Scan.Backend = strings.TrimSpace(backendValue)
	}
	return updated.sanitize()
}

// progressFollower renders snapshots of one run while the command waits for it.
type progressFollower struct {
	printer   *ui.ProgressPrinter
	waitGroup sync.WaitGroup
}

func (builder *CommandBuilder) newProgressFollower(command *cobra.Command) *progressFollower {
	enabled, _ := command.Flags().GetBool(flagProgressNameConstant)
	if !enabled {
		return &progressFollower{}
	}
	return &progressFollower{printer: ui.NewProgressPrinter(command.ErrOrStderr())}
}

func (follower *progressFollower) observer() RunObserver {
	if follower.printer == nil {
		return nil
	}
	return func(subscription *progress.Subscription) {
		follower.waitGroup.Add(1)
		go func() {
			defer follower.waitGroup.Done()
			follower.printer.Follow(subscription)
		}()
	}
}

func (follower *progressFollower) wait() {
	follower.waitGroup.Wait()
}
