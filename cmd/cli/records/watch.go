package records

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/poller"
)

const (
	watchUseConstant              = "watch"
	watchShortDescriptionConstant = "Poll the remote and report change indicators until interrupted"
	watchLongDescriptionConstant  = "watch keeps the mirrors refreshed in the background and prints the change indicators of every collection whenever they are recomputed."
	watchTimeLayoutConstant       = "15:04:05"
	watchLineTemplateConstant     = "%s remote=%s %s\n"
	watchErrorTemplateConstant    = " error=%q"
	indicatorSeparatorConstant    = " "
	indicatorTemplateConstant     = "%s=%s"
	indicatorCleanConstant        = "clean"
	indicatorLocalConstant        = "pending"
	indicatorRemoteConstant       = "remote-changed"
	indicatorBothConstant         = "pending,remote-changed"
)

func (builder *CommandBuilder) buildWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   watchUseConstant,
		Short: watchShortDescriptionConstant,
		Long:  watchLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			executionContext := command.Context()
			openedWorkspace, status, syncError := builder.synchronizedWorkspace(executionContext)
			if syncError != nil {
				return syncError
			}

			printer := &statusPrinter{writer: command.OutOrStdout()}
			printer.print(status)
			unsubscribe := openedWorkspace.Poller().Subscribe(printer.print)
			defer unsubscribe()

			if startError := openedWorkspace.StartBackground(executionContext); startError != nil {
				return startError
			}
			<-executionContext.Done()
			return openedWorkspace.Close()
		},
	}
}

// statusPrinter serializes status lines coming from the poller and the
// snapshot watcher goroutines.
type statusPrinter struct {
	mutex  sync.Mutex
	writer io.Writer
}

func (printer *statusPrinter) print(status poller.Status) {
	printer.mutex.Lock()
	defer printer.mutex.Unlock()
	_, _ = io.WriteString(printer.writer, formatStatusLine(status))
}

func formatStatusLine(status poller.Status) string {
	reachability := remoteUnreachableConstant
	if status.Reachable {
		reachability = remoteReachableConstant
	}
	indicators := make([]string, 0, len(catalog.AllCollections()))
	for _, collection := range catalog.AllCollections() {
		indicator := indicatorCleanConstant
		switch {
		case status.VisibleChanges[collection] && status.RemoteChanged[collection]:
			indicator = indicatorBothConstant
		case status.VisibleChanges[collection]:
			indicator = indicatorLocalConstant
		case status.RemoteChanged[collection]:
			indicator = indicatorRemoteConstant
		}
		indicators = append(indicators, fmt.Sprintf(indicatorTemplateConstant, collection, indicator))
	}
	line := fmt.Sprintf(watchLineTemplateConstant, status.LastCycle.Format(watchTimeLayoutConstant), reachability, strings.Join(indicators, indicatorSeparatorConstant))
	if status.LastError != nil {
		line = strings.TrimSuffix(line, "\n") + fmt.Sprintf(watchErrorTemplateConstant, status.LastError.Error()) + "\n"
	}
	return line
}
