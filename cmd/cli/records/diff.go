package records

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/changes"
	flagutils "github.com/temirov/catalogsync/internal/utils/flags"
)

const (
	diffUseConstant              = "diff [record-id]"
	diffCommandNameConstant      = "diff"
	diffShortDescriptionConstant = "List pending changes or compare one record"
	diffLongDescriptionConstant  = "diff lists the classified records of a collection. With a record identifier it compares the remote version of the record with the local one field by field."
	entryLineTemplateConstant    = "%6s  %s\n"
	hiddenLineTemplateConstant   = "(%d hidden)\n"
	noChangesLineConstant        = "no pending changes\n"
	fieldLineTemplateConstant    = "%s %s: %v -> %v\n"
	fragmentLineTemplateConstant = "    %s\n"
	insertOpenConstant           = "{+"
	insertCloseConstant          = "+}"
	deleteOpenConstant           = "[-"
	deleteCloseConstant          = "-]"
	identicalLineConstant        = "records are identical\n"
)

var fieldKindMarkers = map[catalog.FieldChangeKind]string{
	catalog.FieldAdded:    "+",
	catalog.FieldRemoved:  "-",
	catalog.FieldModified: "~",
}

func (builder *CommandBuilder) buildDiffCommand() *cobra.Command {
	var hidden []int
	command := &cobra.Command{
		Use:   diffUseConstant,
		Short: diffShortDescriptionConstant,
		Long:  diffLongDescriptionConstant,
		Args:  cobra.MaximumNArgs(1),
	}
	collectionFlag := flagutils.BindCollectionFlag(command, catalog.CollectionVulnerabilities, false)
	command.Flags().IntSliceVar(&hidden, hideFlagNameConstant, nil, hideFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		collection, collectionError := collectionFlag.Collection()
		if collectionError != nil {
			return collectionError
		}
		openedWorkspace, _, syncError := builder.synchronizedWorkspace(command.Context())
		if syncError != nil {
			return syncError
		}
		controller := openedWorkspace.Controller()

		if len(arguments) == 1 {
			identifiers, parseError := flagutils.ParseRecordIDs(arguments)
			if parseError != nil {
				return parseError
			}
			fieldChanges, compareError := controller.CompareRecord(collection, identifiers[0])
			if compareError != nil {
				return fmt.Errorf(commandFailedTemplateConstant, diffCommandNameConstant, compareError)
			}
			return renderFieldChanges(command.OutOrStdout(), fieldChanges)
		}

		report, classifyError := classify(controller, collection, hidden)
		if classifyError != nil {
			return fmt.Errorf(commandFailedTemplateConstant, diffCommandNameConstant, classifyError)
		}
		return renderReport(command.OutOrStdout(), report)
	}
	return command
}

func renderReport(writer io.Writer, report changes.Report) error {
	visible := report.VisibleIDs()
	if len(visible) == 0 && len(report.Hidden) == 0 {
		_, writeError := io.WriteString(writer, noChangesLineConstant)
		return writeError
	}
	for _, identifier := range visible {
		if _, writeError := fmt.Fprintf(writer, entryLineTemplateConstant, identifier, report.Classification(identifier)); writeError != nil {
			return writeError
		}
	}
	if len(report.Hidden) > 0 {
		if _, writeError := fmt.Fprintf(writer, hiddenLineTemplateConstant, len(report.Hidden)); writeError != nil {
			return writeError
		}
	}
	return nil
}

func renderFieldChanges(writer io.Writer, fieldChanges []catalog.FieldChange) error {
	if len(fieldChanges) == 0 {
		_, writeError := io.WriteString(writer, identicalLineConstant)
		return writeError
	}
	for _, fieldChange := range fieldChanges {
		if _, writeError := fmt.Fprintf(writer, fieldLineTemplateConstant, fieldKindMarkers[fieldChange.Kind], fieldChange.Field, fieldChange.Before, fieldChange.After); writeError != nil {
			return writeError
		}
		if len(fieldChange.Fragments) == 0 {
			continue
		}
		if _, writeError := fmt.Fprintf(writer, fragmentLineTemplateConstant, renderFragments(fieldChange.Fragments)); writeError != nil {
			return writeError
		}
	}
	return nil
}

func renderFragments(fragments []catalog.TextFragment) string {
	var rendered strings.Builder
	for _, fragment := range fragments {
		switch fragment.Operation {
		case catalog.TextInsert:
			rendered.WriteString(insertOpenConstant + fragment.Text + insertCloseConstant)
		case catalog.TextDelete:
			rendered.WriteString(deleteOpenConstant + fragment.Text + deleteCloseConstant)
		default:
			rendered.WriteString(fragment.Text)
		}
	}
	return rendered.String()
}
