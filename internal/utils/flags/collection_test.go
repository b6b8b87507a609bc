package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/temirov/catalogsync/internal/catalog"
)

func TestBindCollectionFlagUsesDefaultAndParsesValues(t *testing.T) {
	command := &cobra.Command{}
	values := BindCollectionFlag(command, catalog.CollectionVulnerabilities, false)

	collection, resolveError := values.Collection()
	require.NoError(t, resolveError)
	require.Equal(t, catalog.CollectionVulnerabilities, collection)

	require.NoError(t, command.ParseFlags([]string{"-c", "Clients"}))
	collection, resolveError = values.Collection()
	require.NoError(t, resolveError)
	require.Equal(t, catalog.CollectionClients, collection)

	require.Error(t, command.ParseFlags([]string{"--collection", "invoices"}))
}

func TestBindCollectionFlagPersistent(t *testing.T) {
	root := &cobra.Command{}
	BindCollectionFlag(root, catalog.CollectionAuditors, true)
	require.NotNil(t, root.PersistentFlags().Lookup(CollectionFlagName))
	require.Nil(t, root.Flags().Lookup(CollectionFlagName))
}

func TestParseRecordIDs(t *testing.T) {
	testCases := []struct {
		name        string
		arguments   []string
		expected    []catalog.RecordID
		expectError error
	}{
		{name: "Ordered", arguments: []string{"3", "1", "2"}, expected: []catalog.RecordID{3, 1, 2}},
		{name: "DuplicatesDropped", arguments: []string{"2", " 2 ", "5"}, expected: []catalog.RecordID{2, 5}},
		{name: "Invalid", arguments: []string{"1", "abc"}, expectError: catalog.ErrInvalidRecordID},
		{name: "Zero", arguments: []string{"0"}, expectError: catalog.ErrInvalidRecordID},
		{name: "Empty", arguments: nil, expectError: ErrNoRecordIdentifiers},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			identifiers, parseError := ParseRecordIDs(testCase.arguments)
			if testCase.expectError != nil {
				require.ErrorIs(t, parseError, testCase.expectError)
				return
			}
			require.NoError(t, parseError)
			require.Equal(t, testCase.expected, identifiers)
		})
	}
}
