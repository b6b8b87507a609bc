package records

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/catalogsync/internal/catalog"
	flagutils "github.com/temirov/catalogsync/internal/utils/flags"
)

const (
	duplicateUseConstant              = "duplicate <record-id>"
	duplicateNameConstant             = "duplicate"
	duplicateShortDescriptionConstant = "Copy a local record under a new identifier"
	duplicateLongDescriptionConstant  = "duplicate copies a local record to the next identifier unused both locally and remotely. The remote is not contacted."
	duplicatedLineTemplateConstant    = "duplicated %s %s as %s\n"
)

func (builder *CommandBuilder) buildDuplicateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   duplicateUseConstant,
		Short: duplicateShortDescriptionConstant,
		Long:  duplicateLongDescriptionConstant,
		Args:  cobra.ExactArgs(1),
	}
	collectionFlag := flagutils.BindCollectionFlag(command, catalog.CollectionVulnerabilities, false)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		collection, collectionError := collectionFlag.Collection()
		if collectionError != nil {
			return collectionError
		}
		identifiers, parseError := flagutils.ParseRecordIDs(arguments)
		if parseError != nil {
			return parseError
		}
		openedWorkspace, openError := builder.WorkspaceProvider()
		if openError != nil {
			return openError
		}
		duplicateID, duplicateError := openedWorkspace.Controller().DuplicateOne(collection, identifiers[0])
		if duplicateError != nil {
			return fmt.Errorf(commandFailedTemplateConstant, duplicateNameConstant, duplicateError)
		}
		_, writeError := fmt.Fprintf(command.OutOrStdout(), duplicatedLineTemplateConstant, collection, identifiers[0], duplicateID)
		return writeError
	}
	return command
}
