package records

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/changes"
	flagutils "github.com/temirov/catalogsync/internal/utils/flags"
)

const (
	patchUseConstant                = "patch [record-id...]"
	patchNameConstant               = "patch"
	patchShortDescriptionConstant   = "Accept remote changes into the local snapshot"
	patchLongDescriptionConstant    = "patch overwrites the local version of each record with the remote version. Records absent from the remote are deleted locally."
	publishUseConstant              = "publish [record-id...]"
	publishNameConstant             = "publish"
	publishShortDescriptionConstant = "Push local changes to the remote repository"
	publishLongDescriptionConstant  = "publish commits the local version of each record to the remote repository. Records absent locally are deleted remotely."
	appliedLineTemplateConstant     = "%s %s %s\n"
	nothingToApplyLineConstant      = "no pending changes\n"
	appliedMessageConstant          = "Records applied"
	operationFieldConstant          = "operation"
	collectionFieldConstant         = "collection"
	countFieldConstant              = "count"
)

type applyOperation struct {
	name             string
	use              string
	shortDescription string
	longDescription  string
	apply            func(controller *changes.Controller, executionContext context.Context, report changes.Report, identifiers []catalog.RecordID) (changes.Report, error)
}

var patchOperation = applyOperation{
	name:             patchNameConstant,
	use:              patchUseConstant,
	shortDescription: patchShortDescriptionConstant,
	longDescription:  patchLongDescriptionConstant,
	apply:            (*changes.Controller).PatchMany,
}

var publishOperation = applyOperation{
	name:             publishNameConstant,
	use:              publishUseConstant,
	shortDescription: publishShortDescriptionConstant,
	longDescription:  publishLongDescriptionConstant,
	apply:            (*changes.Controller).PublishMany,
}

func (builder *CommandBuilder) buildApplyCommand(operation applyOperation) *cobra.Command {
	var applyAll bool
	command := &cobra.Command{
		Use:   operation.use,
		Short: operation.shortDescription,
		Long:  operation.longDescription,
	}
	collectionFlag := flagutils.BindCollectionFlag(command, catalog.CollectionVulnerabilities, false)
	command.Flags().BoolVar(&applyAll, allFlagNameConstant, false, allFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		if applyAll == (len(arguments) > 0) {
			return ErrIdentifiersOrAll
		}
		collection, collectionError := collectionFlag.Collection()
		if collectionError != nil {
			return collectionError
		}
		var identifiers []catalog.RecordID
		if !applyAll {
			parsedIdentifiers, parseError := flagutils.ParseRecordIDs(arguments)
			if parseError != nil {
				return parseError
			}
			identifiers = parsedIdentifiers
		}

		openedWorkspace, _, syncError := builder.synchronizedWorkspace(command.Context())
		if syncError != nil {
			return syncError
		}
		controller := openedWorkspace.Controller()
		report, classifyError := controller.Classify(collection)
		if classifyError != nil {
			return fmt.Errorf(commandFailedTemplateConstant, operation.name, classifyError)
		}
		if applyAll {
			identifiers = report.VisibleIDs()
		}
		if len(identifiers) == 0 {
			_, writeError := io.WriteString(command.OutOrStdout(), nothingToApplyLineConstant)
			return writeError
		}

		_, applyError := operation.apply(controller, command.Context(), report, identifiers)
		applied := identifiers
		var batchError changes.BatchError
		if errors.As(applyError, &batchError) {
			applied = batchError.Applied
		}
		for _, identifier := range applied {
			if _, writeError := fmt.Fprintf(command.OutOrStdout(), appliedLineTemplateConstant, operation.name, collection, identifier); writeError != nil {
				return writeError
			}
		}
		builder.resolveLogger(command).Info(appliedMessageConstant, zap.String(operationFieldConstant, operation.name), zap.String(collectionFieldConstant, collection.String()), zap.Int(countFieldConstant, len(applied)))
		if applyError != nil {
			return fmt.Errorf(commandFailedTemplateConstant, operation.name, applyError)
		}
		return nil
	}
	return command
}
