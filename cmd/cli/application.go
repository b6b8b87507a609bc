package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/cmd/cli/records"
	"github.com/temirov/catalogsync/internal/syncagent"
	"github.com/temirov/catalogsync/internal/utils"
	pathutils "github.com/temirov/catalogsync/internal/utils/path"
	"github.com/temirov/catalogsync/internal/workspace"
)

const (
	applicationNameConstant                  = "catalog-sync"
	applicationShortDescriptionConstant      = "Synchronize the audit catalogue with its git repository"
	applicationLongDescriptionConstant       = "catalog-sync keeps local copies of the vulnerability, auditor, and client catalogues in step with a shared git repository."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	commonConfigurationKeyConstant           = "common"
	commonLogLevelConfigKeyConstant          = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant         = commonConfigurationKeyConstant + ".log_format"
	commonLogFileConfigKeyConstant           = commonConfigurationKeyConstant + ".log_file"
	environmentPrefixConstant                = "CATALOGSYNC"
	configurationNameConstant                = "config"
	configurationTypeConstant                = "yaml"
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	repositoryFieldConstant                  = "repository"
	workspaceOpenedMessageConstant           = "workspace opened"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	workspaceOpenErrorTemplateConstant       = "unable to open workspace: %w"
	workspaceCloseErrorTemplateConstant      = "unable to stop background synchronization: %w"
	defaultConfigurationSearchPathConstant   = "."
	commandRegistrationErrorTemplateConstant = "unable to register record commands: %w"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common    ApplicationCommonConfiguration `mapstructure:"common"`
	Workspace workspace.Configuration        `mapstructure:",squash"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

// ApplicationDependencies replaces the operating system collaborators of the
// workspace. Zero values keep the defaults.
type ApplicationDependencies struct {
	FileSystem   afero.Fs
	GitExecutor  syncagent.GitExecutor
	HomeExpander *pathutils.HomeExpander
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	dependencies           ApplicationDependencies
	constructionError      error

	workspaceMutex sync.Mutex
	workspace      *workspace.Workspace
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	return NewApplicationWithDependencies(ApplicationDependencies{})
}

// NewApplicationWithDependencies assembles an application whose workspace uses
// the supplied collaborators.
func NewApplicationWithDependencies(dependencies ApplicationDependencies) *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		dependencies:           dependencies,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	application.rootCommand = cobraCommand
	application.constructionError = application.registerRecordCommands(records.CommandBuilder{
		WorkspaceProvider: application.openWorkspace,
	})
	cobraCommand.AddCommand(application.newDefaultConfigCommand())

	return application
}

func (application *Application) registerRecordCommands(builder records.CommandBuilder) error {
	recordCommands, buildError := builder.Build()
	if buildError != nil {
		return fmt.Errorf(commandRegistrationErrorTemplateConstant, buildError)
	}
	application.rootCommand.AddCommand(recordCommands...)
	return nil
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	return application.ExecuteContext(context.Background())
}

// ExecuteContext runs the command hierarchy with executionContext, stops any
// background synchronization, and flushes the logger.
func (application *Application) ExecuteContext(executionContext context.Context) error {
	if application.constructionError != nil {
		return application.constructionError
	}
	executionError := application.rootCommand.ExecuteContext(executionContext)
	if closeError := application.closeWorkspace(); closeError != nil && executionError == nil {
		executionError = fmt.Errorf(workspaceCloseErrorTemplateConstant, closeError)
	}
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute(executionContext context.Context) error {
	return NewApplication().ExecuteContext(executionContext)
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
		commonLogFileConfigKeyConstant:   "",
	}
	for configurationKey, configurationValue := range workspace.DefaultConfigurationValues() {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
		utils.LogFileSettings{Path: application.configuration.Common.LogFile},
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithLogger(command.Context(), application.logger)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// openWorkspace builds the workspace once per invocation from the loaded configuration.
func (application *Application) openWorkspace() (*workspace.Workspace, error) {
	application.workspaceMutex.Lock()
	defer application.workspaceMutex.Unlock()
	if application.workspace != nil {
		return application.workspace, nil
	}

	openedWorkspace, openError := workspace.Open(workspace.Dependencies{
		Logger:       application.logger,
		FileSystem:   application.dependencies.FileSystem,
		GitExecutor:  application.dependencies.GitExecutor,
		HomeExpander: application.dependencies.HomeExpander,
	}, application.configuration.Workspace)
	if openError != nil {
		return nil, fmt.Errorf(workspaceOpenErrorTemplateConstant, openError)
	}
	application.logger.Debug(workspaceOpenedMessageConstant, zap.String(repositoryFieldConstant, application.configuration.Workspace.Sync.RepositoryURL))
	application.workspace = openedWorkspace
	return openedWorkspace, nil
}

func (application *Application) closeWorkspace() error {
	application.workspaceMutex.Lock()
	defer application.workspaceMutex.Unlock()
	if application.workspace == nil {
		return nil
	}
	closeError := application.workspace.Close()
	application.workspace = nil
	return closeError
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
