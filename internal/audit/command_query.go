package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/treediff/internal/shared"
	"github.com/temirov/treediff/internal/store"
	"github.com/temirov/treediff/internal/utils/flags"
)

const (
	commitsCommandUseConstant                 = "commits"
	commitsShortDescriptionConstant           = "List stored commits as YAML"
	commitsLongDescriptionConstant            = "commits lists stored commits newest first, filtered by tree, project, author, text, category, classification, or change identifier."
	siblingsCommandUseConstant                = "siblings"
	siblingsShortDescriptionConstant          = "List commits sharing a change identifier with the given commit"
	siblingsLongDescriptionConstant           = "siblings lists every other commit, in either tree, that carries the same change identifier as the selected commit."
	qualityCommandUseConstant                 = "quality"
	qualityShortDescriptionConstant           = "Report gaps in the stored commit data"
	qualityLongDescriptionConstant            = "quality counts commits with empty authors, dates, subjects, or identifiers and lists identifiers carried by more than one commit."
	listCommitsFailedTemplateConstant         = "listing commits failed: %w"
	siblingsFailedTemplateConstant            = "listing siblings failed: %w"
	qualityFailedTemplateConstant             = "quality report failed: %w"
	unsupportedClassificationTemplateConstant = "unsupported classification %q"
	hashRequiredMessageConstant               = "siblings requires --hash"
	flagTreeNameConstant                      = "tree"
	flagTreeDescriptionConstant               = "Tree to select"
	flagProjectNameConstant                   = "project"
	flagProjectDescriptionConstant            = "Sub-project name"
	flagAuthorNameConstant                    = "author"
	flagAuthorDescriptionConstant             = "Author name or email substring"
	flagSearchNameConstant                    = "search"
	flagSearchDescriptionConstant             = "Substring matched against subject, message, hash, and change identifier"
	flagCategoryNameConstant                  = "category"
	flagCategoryDescriptionConstant           = "Category name"
	flagClassificationNameConstant            = "classification"
	flagClassificationDescriptionConstant     = "Classification"
	flagChangeIDNameConstant                  = "change-id"
	flagChangeIDDescriptionConstant           = "Change identifier"
	flagLimitNameConstant                     = "limit"
	flagLimitDescriptionConstant              = "Maximum number of entries"
	flagOffsetNameConstant                    = "offset"
	flagOffsetDescriptionConstant             = "Number of commits to skip"
	flagHashNameConstant                      = "hash"
	flagHashDescriptionConstant               = "Commit hash"
	defaultSiblingsTreeConstant               = shared.TreeReference
	emptyChoiceConstant                       = ""
)

var errHashRequired = errors.New(hashRequiredMessageConstant)

func (builder *CommandBuilder) buildCommitsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commitsCommandUseConstant,
		Short: commitsShortDescriptionConstant,
		Long:  commitsLongDescriptionConstant,
		RunE:  builder.runCommits,
	}

	treeChoices := []string{string(shared.TreeReference), string(shared.TreeDerivative)}
	classificationChoices := []string{string(shared.ClassificationShared), string(shared.ClassificationReferenceOnly), string(shared.ClassificationDerivativeOnly)}
	command.Flags().String(flagTreeNameConstant, "", flags.FormatChoiceUsage(emptyChoiceConstant, treeChoices, flagTreeDescriptionConstant))
	command.Flags().String(flagProjectNameConstant, "", flagProjectDescriptionConstant)
	command.Flags().String(flagAuthorNameConstant, "", flagAuthorDescriptionConstant)
	command.Flags().String(flagSearchNameConstant, "", flagSearchDescriptionConstant)
	command.Flags().String(flagCategoryNameConstant, "", flagCategoryDescriptionConstant)
	command.Flags().String(flagClassificationNameConstant, "", flags.FormatChoiceUsage(emptyChoiceConstant, classificationChoices, flagClassificationDescriptionConstant))
	command.Flags().String(flagChangeIDNameConstant, "", flagChangeIDDescriptionConstant)
	command.Flags().Int(flagLimitNameConstant, store.DefaultListLimit, flagLimitDescriptionConstant)
	command.Flags().Int(flagOffsetNameConstant, 0, flagOffsetDescriptionConstant)

	return command
}

func (builder *CommandBuilder) buildSiblingsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   siblingsCommandUseConstant,
		Short: siblingsShortDescriptionConstant,
		Long:  siblingsLongDescriptionConstant,
		RunE:  builder.runSiblings,
	}

	treeChoices := []string{string(shared.TreeReference), string(shared.TreeDerivative)}
	command.Flags().String(flagTreeNameConstant, string(defaultSiblingsTreeConstant), flags.FormatChoiceUsage(string(defaultSiblingsTreeConstant), treeChoices, flagTreeDescriptionConstant))
	command.Flags().String(flagHashNameConstant, "", flagHashDescriptionConstant)

	return command
}

func (builder *CommandBuilder) buildQualityCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   qualityCommandUseConstant,
		Short: qualityShortDescriptionConstant,
		Long:  qualityLongDescriptionConstant,
		RunE:  builder.runQuality,
	}
	command.Flags().Int(flagLimitNameConstant, store.DefaultDuplicateIdentifierLimit, flagLimitDescriptionConstant)
	return command
}

func (builder *CommandBuilder) runCommits(command *cobra.Command, arguments []string) error {
	filter, filterError := parseCommitFilter(command)
	if filterError != nil {
		return filterError
	}

	return builder.runWithStore(command, arguments, builder.resolveConfiguration(), func(executionContext context.Context, configuration CommandConfiguration, openedStore *store.Store, logger *zap.Logger) error {
		views, listError := openedStore.ListCommits(executionContext, filter)
		if listError != nil {
			return fmt.Errorf(listCommitsFailedTemplateConstant, listError)
		}
		if views == nil {
			views = []store.CommitView{}
		}
		return writeYAML(command.OutOrStdout(), views)
	})
}

func (builder *CommandBuilder) runSiblings(command *cobra.Command, arguments []string) error {
	treeValue, _ := command.Flags().GetString(flagTreeNameConstant)
	tree, treeError := shared.ParseTree(treeValue)
	if treeError != nil {
		return treeError
	}
	hashValue, _ := command.Flags().GetString(flagHashNameConstant)
	hash := strings.TrimSpace(hashValue)
	if len(hash) == 0 {
		return errHashRequired
	}

	return builder.runWithStore(command, arguments, builder.resolveConfiguration(), func(executionContext context.Context, configuration CommandConfiguration, openedStore *store.Store, logger *zap.Logger) error {
		views, siblingsError := openedStore.Siblings(executionContext, tree, hash)
		if siblingsError != nil {
			return fmt.Errorf(siblingsFailedTemplateConstant, siblingsError)
		}
		if views == nil {
			views = []store.CommitView{}
		}
		return writeYAML(command.OutOrStdout(), views)
	})
}

func (builder *CommandBuilder) runQuality(command *cobra.Command, arguments []string) error {
	limit, _ := command.Flags().GetInt(flagLimitNameConstant)

	return builder.runWithStore(command, arguments, builder.resolveConfiguration(), func(executionContext context.Context, configuration CommandConfiguration, openedStore *store.Store, logger *zap.Logger) error {
		report, reportError := openedStore.QualityReport(executionContext, limit)
		if reportError != nil {
			return fmt.Errorf(qualityFailedTemplateConstant, reportError)
		}
		return writeYAML(command.OutOrStdout(), report)
	})
}

func parseCommitFilter(command *cobra.Command) (store.CommitFilter, error) {
	filter := store.CommitFilter{}

	treeValue, _ := command.Flags().GetString(flagTreeNameConstant)
	if len(strings.TrimSpace(treeValue)) > 0 {
		tree, treeError := shared.ParseTree(treeValue)
		if treeError != nil {
			return store.CommitFilter{}, treeError
		}
		filter.Tree = tree
	}

	classificationValue, _ := command.Flags().GetString(flagClassificationNameConstant)
	if len(strings.TrimSpace(classificationValue)) > 0 {
		classification, recognized := shared.ParseClassification(classificationValue)
		if !recognized {
			return store.CommitFilter{}, fmt.Errorf(unsupportedClassificationTemplateConstant, classificationValue)
		}
		filter.Classification = classification
	}

	filter.Project, _ = command.Flags().GetString(flagProjectNameConstant)
	filter.Author, _ = command.Flags().GetString(flagAuthorNameConstant)
	filter.Search, _ = command.Flags().GetString(flagSearchNameConstant)
	filter.Category, _ = command.Flags().GetString(flagCategoryNameConstant)
	filter.Identifier, _ = command.Flags().GetString(flagChangeIDNameConstant)
	filter.Limit, _ = command.Flags().GetInt(flagLimitNameConstant)
	filter.Offset, _ = command.Flags().GetInt(flagOffsetNameConstant)

	filter.Project = strings.TrimSpace(filter.Project)
	filter.Author = strings.TrimSpace(filter.Author)
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Identifier = strings.TrimSpace(filter.Identifier)

	return filter, nil
}
