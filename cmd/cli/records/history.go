package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/temirov/catalogsync/internal/catalog"
	flagutils "github.com/temirov/catalogsync/internal/utils/flags"
)

const (
	historyUseConstant              = "history"
	historyShortDescriptionConstant = "Show the commit log of a collection"
	historyLongDescriptionConstant  = "history lists the commits of the remote repository that touched the collection file, newest first."
	limitFlagNameConstant           = "limit"
	limitFlagUsageConstant          = "Maximum number of commits to list (0 lists all)"
	defaultHistoryLimitConstant     = 20
	shortHashLengthConstant         = 8
	historyLineTemplateConstant     = "%s %s %s %s\n"
	historyTimeLayoutConstant       = time.DateTime
)

func (builder *CommandBuilder) buildHistoryCommand() *cobra.Command {
	var limit int
	command := &cobra.Command{
		Use:   historyUseConstant,
		Short: historyShortDescriptionConstant,
		Long:  historyLongDescriptionConstant,
		Args:  cobra.NoArgs,
	}
	collectionFlag := flagutils.BindCollectionFlag(command, catalog.CollectionVulnerabilities, false)
	command.Flags().IntVar(&limit, limitFlagNameConstant, defaultHistoryLimitConstant, limitFlagUsageConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		collection, collectionError := collectionFlag.Collection()
		if collectionError != nil {
			return collectionError
		}
		openedWorkspace, _, syncError := builder.synchronizedWorkspace(command.Context())
		if syncError != nil {
			return syncError
		}
		commits, historyError := openedWorkspace.Agent().History(command.Context(), collection, limit)
		if historyError != nil {
			return fmt.Errorf(commandFailedTemplateConstant, historyUseConstant, historyError)
		}
		for _, commit := range commits {
			hash := commit.Hash
			if len(hash) > shortHashLengthConstant {
				hash = hash[:shortHashLengthConstant]
			}
			firstLine, _, _ := strings.Cut(commit.Message, "\n")
			if _, writeError := fmt.Fprintf(command.OutOrStdout(), historyLineTemplateConstant, hash, commit.When.Format(historyTimeLayoutConstant), commit.AuthorName, firstLine); writeError != nil {
				return writeError
			}
		}
		return nil
	}
	return command
}
