package cli_test

import (
	"bytes"
	"testing"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/temirov/catalogsync/cmd/cli"
	"github.com/temirov/catalogsync/internal/workspace"
)

const (
	embeddedCommonSectionConstant     = "common"
	embeddedWorkspaceSectionsConstant = "workspace"
	expectedLogLevelConstant          = "info"
	expectedLogFormatConstant         = "structured"
)

type embeddedConfigurationFixture struct {
	Common    cli.ApplicationCommonConfiguration `mapstructure:"common"`
	Workspace workspace.Configuration            `mapstructure:",squash"`
}

func decodeEmbeddedConfiguration(testInstance *testing.T) embeddedConfigurationFixture {
	testInstance.Helper()
	content, configurationType := cli.EmbeddedDefaultConfiguration()

	viperInstance := viper.New()
	viperInstance.SetConfigType(configurationType)
	require.NoError(testInstance, viperInstance.ReadConfig(bytes.NewReader(content)))

	var fixture embeddedConfigurationFixture
	decodeError := viperInstance.Unmarshal(&fixture, viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc()))
	require.NoError(testInstance, decodeError)
	return fixture
}

func TestEmbeddedDefaultsMatchBuiltInDefaults(testInstance *testing.T) {
	fixture := decodeEmbeddedConfiguration(testInstance)

	testCases := []struct {
		name      string
		assertion func(testInstance *testing.T)
	}{
		{
			name: embeddedCommonSectionConstant,
			assertion: func(testInstance *testing.T) {
				require.Equal(testInstance, expectedLogLevelConstant, fixture.Common.LogLevel)
				require.Equal(testInstance, expectedLogFormatConstant, fixture.Common.LogFormat)
				require.Empty(testInstance, fixture.Common.LogFile)
			},
		},
		{
			name: embeddedWorkspaceSectionsConstant,
			assertion: func(testInstance *testing.T) {
				require.Equal(testInstance, workspace.DefaultConfiguration(), fixture.Workspace)
				require.Equal(testInstance, 10*time.Second, fixture.Workspace.Sync.PollInterval)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, testCase.assertion)
	}
}

func TestEmbeddedDefaultConfigurationReturnsCopy(testInstance *testing.T) {
	first, _ := cli.EmbeddedDefaultConfiguration()
	first[0] = '#'
	second, configurationType := cli.EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, first[0], second[0])
	require.Equal(testInstance, "yaml", configurationType)
}
