package cli

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const (
	defaultConfigCommandUseConstant           = "default-config"
	defaultConfigCommandShortConstant         = "Print or write the built-in configuration"
	defaultConfigWriteFlagNameConstant        = "write"
	defaultConfigWriteFlagUsageConstant       = "Write the configuration to this path instead of standard output."
	defaultConfigForceFlagNameConstant        = "force"
	defaultConfigForceFlagUsageConstant       = "Overwrite an existing file at the --write path."
	defaultConfigWrittenTemplateConstant      = "wrote %s\n"
	defaultConfigWriteErrorTemplateConstant   = "unable to write default configuration to %s: %w"
	defaultConfigFilePermissionsConstant      = 0o644
	defaultConfigDirectoryPermissionsConstant = 0o755
)

// ErrConfigurationFileExists indicates the target of default-config --write already exists.
var ErrConfigurationFileExists = errors.New("configuration file already exists; pass --force to overwrite")

//go:embed default_config.yaml
var embeddedDefaultConfigurationContent []byte

// EmbeddedDefaultConfiguration returns the embedded default configuration data and type identifier.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	duplicatedContent := make([]byte, len(embeddedDefaultConfigurationContent))
	copy(duplicatedContent, embeddedDefaultConfigurationContent)
	return duplicatedContent, configurationTypeConstant
}

// writeDefaultConfiguration stores the embedded configuration at targetPath.
func writeDefaultConfiguration(fileSystem afero.Fs, targetPath string, overwrite bool) error {
	exists, existsError := afero.Exists(fileSystem, targetPath)
	if existsError != nil {
		return fmt.Errorf(defaultConfigWriteErrorTemplateConstant, targetPath, existsError)
	}
	if exists && !overwrite {
		return fmt.Errorf(defaultConfigWriteErrorTemplateConstant, targetPath, ErrConfigurationFileExists)
	}
	if mkdirError := fileSystem.MkdirAll(filepath.Dir(targetPath), defaultConfigDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(defaultConfigWriteErrorTemplateConstant, targetPath, mkdirError)
	}
	content, _ := EmbeddedDefaultConfiguration()
	if writeError := afero.WriteFile(fileSystem, targetPath, content, defaultConfigFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(defaultConfigWriteErrorTemplateConstant, targetPath, writeError)
	}
	return nil
}

func (application *Application) newDefaultConfigCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	command := &cobra.Command{
		Use:   defaultConfigCommandUseConstant,
		Short: defaultConfigCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if len(targetPath) == 0 {
				content, _ := EmbeddedDefaultConfiguration()
				_, writeError := command.OutOrStdout().Write(content)
				return writeError
			}
			if writeError := writeDefaultConfiguration(application.fileSystem(), targetPath, overwrite); writeError != nil {
				return writeError
			}
			_, printError := fmt.Fprintf(command.OutOrStdout(), defaultConfigWrittenTemplateConstant, targetPath)
			return printError
		},
	}
	command.Flags().StringVar(&targetPath, defaultConfigWriteFlagNameConstant, "", defaultConfigWriteFlagUsageConstant)
	command.Flags().BoolVar(&overwrite, defaultConfigForceFlagNameConstant, false, defaultConfigForceFlagUsageConstant)
	return command
}

func (application *Application) fileSystem() afero.Fs {
	if application.dependencies.FileSystem != nil {
		return application.dependencies.FileSystem
	}
	return afero.NewOsFs()
}
