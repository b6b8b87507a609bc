package docs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/catalogsync/cmd/cli"
)

const (
	readmeFileNameConstant           = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	configHeaderMarkerConstant       = "# config.yaml"
	parentDirectoryReferenceConstant = ".."
	missingHeaderMessageConstant     = "README example missing config header marker"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
	unknownSectionMessageTemplate    = "README example uses unknown section %s"
	unknownKeyMessageTemplate        = "README example uses unknown key %s.%s"
)

func readReadmeConfigurationSnippet(testInstance *testing.T) string {
	testInstance.Helper()
	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	readmePath := filepath.Join(workingDirectory, parentDirectoryReferenceConstant, readmeFileNameConstant)
	contentBytes, readError := os.ReadFile(readmePath)
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, configHeaderMarkerConstant)
	require.NotEqual(testInstance, -1, headerIndex, missingHeaderMessageConstant)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testInstance, -1, fenceStartIndex, missingStartFenceMessageConstant)

	remainingText := contentText[headerIndex:]
	fenceEndRelativeIndex := strings.Index(remainingText, yamlFenceEndConstant)
	require.NotEqual(testInstance, -1, fenceEndRelativeIndex, missingEndFenceMessageConstant)
	fenceEndIndex := headerIndex + fenceEndRelativeIndex

	return strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : fenceEndIndex])
}

func TestReadmeConfigurationUsesKnownKeys(testInstance *testing.T) {
	embeddedContent, _ := cli.EmbeddedDefaultConfiguration()
	var knownSections map[string]map[string]any
	require.NoError(testInstance, yaml.Unmarshal(embeddedContent, &knownSections))

	var documentedSections map[string]map[string]any
	require.NoError(testInstance, yaml.Unmarshal([]byte(readReadmeConfigurationSnippet(testInstance)), &documentedSections))
	require.NotEmpty(testInstance, documentedSections)

	for sectionName, documentedKeys := range documentedSections {
		knownKeys, sectionKnown := knownSections[sectionName]
		require.Truef(testInstance, sectionKnown, unknownSectionMessageTemplate, sectionName)
		for keyName := range documentedKeys {
			_, keyKnown := knownKeys[keyName]
			require.Truef(testInstance, keyKnown, unknownKeyMessageTemplate, sectionName, keyName)
		}
	}
}
