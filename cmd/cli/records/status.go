package records

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/changes"
	"github.com/temirov/catalogsync/internal/diff"
	"github.com/temirov/catalogsync/internal/poller"
	flagutils "github.com/temirov/catalogsync/internal/utils/flags"
)

const (
	statusUseConstant              = "status"
	statusShortDescriptionConstant = "Summarize pending changes of every collection"
	statusLongDescriptionConstant  = "status pulls the remote, refreshes the mirrors, and reports added, removed, and modified records per collection."
	outputFlagNameConstant         = "output"
	outputFlagShorthandConstant    = "o"
	outputFlagUsageConstant        = "Output encoding"
	outputTextConstant             = "text"
	outputYAMLConstant             = "yaml"
	outputJSONConstant             = "json"
	jsonIndentConstant             = "  "
	remoteLineTemplateConstant     = "remote: %s\n"
	remoteReachableConstant        = "reachable"
	remoteUnreachableConstant      = "unreachable"
	collectionLineTemplateConstant = "%-16s added=%d removed=%d modified=%d"
	remoteChangedSuffixConstant    = " remote-changed"
	mirrorCorruptSuffixConstant    = " mirror-corrupt"
)

var outputChoices = []string{outputTextConstant, outputYAMLConstant, outputJSONConstant}

// StatusReport is the machine-readable status output.
type StatusReport struct {
	Reachable   bool               `json:"reachable" yaml:"reachable"`
	Collections []CollectionStatus `json:"collections" yaml:"collections"`
}

// CollectionStatus summarizes the classification of one collection.
type CollectionStatus struct {
	Collection    string `json:"collection" yaml:"collection"`
	RemoteChanged bool   `json:"remote_changed" yaml:"remote_changed"`
	MirrorCorrupt bool   `json:"mirror_corrupt,omitempty" yaml:"mirror_corrupt,omitempty"`
	Added         []int  `json:"added" yaml:"added"`
	Removed       []int  `json:"removed" yaml:"removed"`
	Modified      []int  `json:"modified" yaml:"modified"`
}

func (builder *CommandBuilder) buildStatusCommand() *cobra.Command {
	var outputFormat string
	command := &cobra.Command{
		Use:   statusUseConstant,
		Short: statusShortDescriptionConstant,
		Long:  statusLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			openedWorkspace, status, syncError := builder.synchronizedWorkspace(command.Context())
			if syncError != nil {
				return syncError
			}
			report, reportError := buildStatusReport(openedWorkspace.Controller(), status)
			if reportError != nil {
				return fmt.Errorf(commandFailedTemplateConstant, statusUseConstant, reportError)
			}
			return renderStatus(command.OutOrStdout(), report, outputFormat)
		},
	}
	flagutils.AddChoiceFlag(command.Flags(), &outputFormat, outputFlagNameConstant, outputFlagShorthandConstant, outputTextConstant, outputChoices, outputFlagUsageConstant)
	return command
}

func buildStatusReport(controller *changes.Controller, status poller.Status) (StatusReport, error) {
	report := StatusReport{Reachable: status.Reachable}
	for _, collection := range catalog.AllCollections() {
		classification, classifyError := controller.Classify(collection)
		if classifyError != nil {
			return StatusReport{}, classifyError
		}
		collectionStatus := CollectionStatus{
			Collection:    collection.String(),
			RemoteChanged: status.RemoteChanged[collection],
			MirrorCorrupt: classification.MirrorCorrupt,
			Added:         []int{},
			Removed:       []int{},
			Modified:      []int{},
		}
		for _, identifier := range classification.IDs() {
			switch classification.Classification(identifier) {
			case diff.ClassificationAdded:
				collectionStatus.Added = append(collectionStatus.Added, int(identifier))
			case diff.ClassificationRemoved:
				collectionStatus.Removed = append(collectionStatus.Removed, int(identifier))
			case diff.ClassificationModified:
				collectionStatus.Modified = append(collectionStatus.Modified, int(identifier))
			}
		}
		report.Collections = append(report.Collections, collectionStatus)
	}
	return report, nil
}

func renderStatus(writer io.Writer, report StatusReport, outputFormat string) error {
	switch outputFormat {
	case outputYAMLConstant:
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(len(jsonIndentConstant))
		if encodeError := encoder.Encode(report); encodeError != nil {
			return encodeError
		}
		return encoder.Close()
	case outputJSONConstant:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", jsonIndentConstant)
		return encoder.Encode(report)
	default:
		return renderStatusText(writer, report)
	}
}

func renderStatusText(writer io.Writer, report StatusReport) error {
	reachability := remoteUnreachableConstant
	if report.Reachable {
		reachability = remoteReachableConstant
	}
	if _, writeError := fmt.Fprintf(writer, remoteLineTemplateConstant, reachability); writeError != nil {
		return writeError
	}
	for _, collectionStatus := range report.Collections {
		var line strings.Builder
		fmt.Fprintf(&line, collectionLineTemplateConstant, collectionStatus.Collection, len(collectionStatus.Added), len(collectionStatus.Removed), len(collectionStatus.Modified))
		if collectionStatus.RemoteChanged {
			line.WriteString(remoteChangedSuffixConstant)
		}
		if collectionStatus.MirrorCorrupt {
			line.WriteString(mirrorCorruptSuffixConstant)
		}
		line.WriteString("\n")
		if _, writeError := io.WriteString(writer, line.String()); writeError != nil {
			return writeError
		}
	}
	return nil
}
