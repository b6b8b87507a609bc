package flags

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/catalogsync/internal/catalog"
)

const (
	// CollectionFlagName exposes the shared collection flag name.
	CollectionFlagName = "collection"
	// CollectionFlagShorthand provides the shorthand for the collection flag.
	CollectionFlagShorthand = "c"
	// CollectionFlagUsage describes the shared collection flag purpose.
	CollectionFlagUsage = "Catalogue collection to operate on"

	recordIdentifierErrorTemplate = "record identifier %q: %w"
	missingIdentifiersMessage     = "at least one record identifier is required"
)

// ErrNoRecordIdentifiers indicates a command received no record identifiers.
var ErrNoRecordIdentifiers = errors.New(missingIdentifiersMessage)

// CollectionFlagValues stores the parsed collection flag.
type CollectionFlagValues struct {
	Name string
}

// Collection resolves the flag value, accepting collection aliases.
func (values *CollectionFlagValues) Collection() (catalog.Collection, error) {
	return catalog.ParseCollection(values.Name)
}

// BindCollectionFlag attaches the collection flag to command, persistent when
// requested so subcommands inherit it.
func BindCollectionFlag(command *cobra.Command, defaultCollection catalog.Collection, persistent bool) *CollectionFlagValues {
	values := &CollectionFlagValues{Name: defaultCollection.String()}
	if command == nil {
		return values
	}

	targetSet := command.Flags()
	if persistent {
		targetSet = command.PersistentFlags()
	}
	if targetSet.Lookup(CollectionFlagName) != nil {
		return values
	}

	names := make([]string, 0, len(catalog.AllCollections()))
	for _, collection := range catalog.AllCollections() {
		names = append(names, collection.String())
	}
	AddChoiceFlag(targetSet, &values.Name, CollectionFlagName, CollectionFlagShorthand, defaultCollection.String(), names, CollectionFlagUsage)
	return values
}

// ParseRecordIDs converts positional arguments into record identifiers,
// dropping duplicates while keeping the first occurrence order.
func ParseRecordIDs(arguments []string) ([]catalog.RecordID, error) {
	identifiers := make([]catalog.RecordID, 0, len(arguments))
	seen := make(map[catalog.RecordID]struct{}, len(arguments))
	for _, argument := range arguments {
		identifier, parseError := catalog.ParseRecordID(strings.TrimSpace(argument))
		if parseError != nil {
			return nil, fmt.Errorf(recordIdentifierErrorTemplate, argument, parseError)
		}
		if _, duplicate := seen[identifier]; duplicate {
			continue
		}
		seen[identifier] = struct{}{}
		identifiers = append(identifiers, identifier)
	}
	if len(identifiers) == 0 {
		return nil, ErrNoRecordIdentifiers
	}
	return identifiers, nil
}
