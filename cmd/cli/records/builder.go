// Package records provides the catalogue subcommands: status, diff, patch,
// publish, duplicate, history, and watch.
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/changes"
	"github.com/temirov/catalogsync/internal/poller"
	"github.com/temirov/catalogsync/internal/utils"
	"github.com/temirov/catalogsync/internal/workspace"
)

const (
	workspaceProviderMissingMessageConstant = "workspace provider not configured"
	initializeErrorTemplateConstant         = "unable to synchronize with the remote: %w"
	commandFailedTemplateConstant           = "%s failed: %w"
	allFlagNameConstant                     = "all"
	allFlagUsageConstant                    = "Apply to every visible change of the collection"
	hideFlagNameConstant                    = "hide"
	hideFlagUsageConstant                   = "Record identifiers to hide from the listing (repeatable)"
	identifiersOrAllMessageConstant         = "pass record identifiers or --all, not both"
)

// ErrWorkspaceProviderNotConfigured indicates the builder has no way to open a workspace.
var ErrWorkspaceProviderNotConfigured = errors.New(workspaceProviderMissingMessageConstant)

// ErrIdentifiersOrAll indicates patch or publish received both or neither of
// record identifiers and --all.
var ErrIdentifiersOrAll = errors.New(identifiersOrAllMessageConstant)

// WorkspaceProvider opens the workspace configured for the current invocation.
type WorkspaceProvider func() (*workspace.Workspace, error)

// CommandBuilder assembles the catalogue subcommands.
type CommandBuilder struct {
	WorkspaceProvider WorkspaceProvider
}

// Build constructs every catalogue subcommand.
func (builder *CommandBuilder) Build() ([]*cobra.Command, error) {
	if builder.WorkspaceProvider == nil {
		return nil, ErrWorkspaceProviderNotConfigured
	}
	return []*cobra.Command{
		builder.buildStatusCommand(),
		builder.buildDiffCommand(),
		builder.buildApplyCommand(patchOperation),
		builder.buildApplyCommand(publishOperation),
		builder.buildDuplicateCommand(),
		builder.buildHistoryCommand(),
		builder.buildWatchCommand(),
	}, nil
}

// resolveLogger returns the logger the root command attached to the command context.
func (builder *CommandBuilder) resolveLogger(command *cobra.Command) *zap.Logger {
	return utils.NewCommandContextAccessor().Logger(command.Context())
}

// synchronizedWorkspace opens the workspace and brings the clone and mirrors
// up to date with the remote.
func (builder *CommandBuilder) synchronizedWorkspace(executionContext context.Context) (*workspace.Workspace, poller.Status, error) {
	openedWorkspace, openError := builder.WorkspaceProvider()
	if openError != nil {
		return nil, poller.Status{}, openError
	}
	status, initializeError := openedWorkspace.Initialize(executionContext)
	if initializeError != nil {
		return nil, status, fmt.Errorf(initializeErrorTemplateConstant, initializeError)
	}
	return openedWorkspace, status, nil
}

// classify hides the requested identifiers and returns the resulting report.
func classify(controller *changes.Controller, collection catalog.Collection, hidden []int) (changes.Report, error) {
	if len(hidden) > 0 {
		identifiers := make([]catalog.RecordID, 0, len(hidden))
		for _, identifier := range hidden {
			identifiers = append(identifiers, catalog.RecordID(identifier))
		}
		if hideError := controller.HideMany(collection, identifiers); hideError != nil {
			return changes.Report{}, hideError
		}
	}
	return controller.Classify(collection)
}
