package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/catalogsync/cmd/cli/records"
	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/execshell"
	"github.com/temirov/catalogsync/internal/recordstore"
	"github.com/temirov/catalogsync/internal/utils"
	pathutils "github.com/temirov/catalogsync/internal/utils/path"
)

const (
	testStorageDirectoryConstant   = "/srv/catalogue/db"
	testCloneDirectoryConstant     = "/srv/catalogue/clone"
	testRepositoryURLConstant      = "https://example.com/acme/catalogue.git"
	testRemoteSnapshotConstant     = "{\"_default\": {\"1\": {\"title\": \"SQL injection\"}, \"2\": {\"title\": \"XSS\"}}}"
	testHeadRevisionConstant       = "9a8b7c6d\n"
	testCloneSubcommandConstant    = "clone"
	testRevParseSubcommandConstant = "rev-parse"
)

// remoteGitExecutor plays the remote: clone materializes the seeded snapshot
// and every other command succeeds.
type remoteGitExecutor struct {
	fileSystem afero.Fs

	mutex       sync.Mutex
	subcommands []string
}

func (executor *remoteGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.mutex.Lock()
	executor.subcommands = append(executor.subcommands, details.Arguments[0])
	executor.mutex.Unlock()

	switch details.Arguments[0] {
	case testCloneSubcommandConstant:
		cloneDirectory := details.Arguments[len(details.Arguments)-1]
		if mkdirError := executor.fileSystem.MkdirAll(cloneDirectory, 0o755); mkdirError != nil {
			return execshell.ExecutionResult{}, mkdirError
		}
		writeError := afero.WriteFile(executor.fileSystem, filepath.Join(cloneDirectory, catalog.CollectionVulnerabilities.RemoteFileName()), []byte(testRemoteSnapshotConstant), 0o644)
		return execshell.ExecutionResult{}, writeError
	case testRevParseSubcommandConstant:
		return execshell.ExecutionResult{StandardOutput: testHeadRevisionConstant}, nil
	default:
		return execshell.ExecutionResult{}, nil
	}
}

func (executor *remoteGitExecutor) ran(subcommand string) bool {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	for _, recorded := range executor.subcommands {
		if recorded == subcommand {
			return true
		}
	}
	return false
}

func configureTestEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("CATALOGSYNC_SYNC_REPOSITORY_URL", testRepositoryURLConstant)
	t.Setenv("CATALOGSYNC_SYNC_CLONE_DIRECTORY", testCloneDirectoryConstant)
	t.Setenv("CATALOGSYNC_STORAGE_DIRECTORY", testStorageDirectoryConstant)
	t.Setenv("CATALOGSYNC_STORAGE_LOCK_FILES", "false")
}

func runApplication(t *testing.T, fileSystem afero.Fs, executor *remoteGitExecutor, arguments ...string) (string, error) {
	t.Helper()
	application := NewApplicationWithDependencies(ApplicationDependencies{
		FileSystem:   fileSystem,
		GitExecutor:  executor,
		HomeExpander: pathutils.NewHomeExpanderWithProvider(func() (string, error) { return "/home/analyst", nil }),
	})
	var output bytes.Buffer
	application.rootCommand.SetOut(&output)
	application.rootCommand.SetErr(&output)
	application.rootCommand.SetArgs(append([]string{"--log-level", "error"}, arguments...))
	executionError := application.ExecuteContext(context.Background())
	return output.String(), executionError
}

func loadLocalSnapshot(t *testing.T, fileSystem afero.Fs) catalog.RecordMap {
	t.Helper()
	layout := recordstore.Layout{Directory: testStorageDirectoryConstant}
	store, storeError := recordstore.New(catalog.CollectionVulnerabilities, layout.LocalPath(catalog.CollectionVulnerabilities), recordstore.Options{FileSystem: fileSystem})
	require.NoError(t, storeError)
	records, loadError := store.Load()
	require.NoError(t, loadError)
	return records
}

func TestStatusCommandReportsPendingChanges(t *testing.T) {
	configureTestEnvironment(t)
	fileSystem := afero.NewMemMapFs()
	executor := &remoteGitExecutor{fileSystem: fileSystem}

	output, executionError := runApplication(t, fileSystem, executor, "status", "--output", "json")
	require.NoError(t, executionError)

	var report records.StatusReport
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	require.True(t, report.Reachable)
	require.Len(t, report.Collections, 3)
	require.Equal(t, "vulnerabilities", report.Collections[0].Collection)
	require.Equal(t, []int{1, 2}, report.Collections[0].Added)
	require.True(t, report.Collections[0].RemoteChanged)
	require.Empty(t, report.Collections[1].Added)

	textOutput, textError := runApplication(t, fileSystem, executor, "status")
	require.NoError(t, textError)
	require.Contains(t, textOutput, "remote: reachable")
	require.Contains(t, textOutput, "added=2 removed=0 modified=0")

	yamlOutput, yamlError := runApplication(t, fileSystem, executor, "status", "-o", "yaml")
	require.NoError(t, yamlError)
	require.Contains(t, yamlOutput, "collection: vulnerabilities")
}

func TestPatchDuplicatePublishWorkflow(t *testing.T) {
	configureTestEnvironment(t)
	fileSystem := afero.NewMemMapFs()
	executor := &remoteGitExecutor{fileSystem: fileSystem}

	compareOutput, compareError := runApplication(t, fileSystem, executor, "diff", "-c", "vulnerabilities", "1")
	require.NoError(t, compareError)
	require.Contains(t, compareOutput, "- title: SQL injection")

	listOutput, listError := runApplication(t, fileSystem, executor, "diff", "--hide", "2")
	require.NoError(t, listError)
	require.Contains(t, listOutput, "added")
	require.Contains(t, listOutput, "(1 hidden)")

	patchOutput, patchError := runApplication(t, fileSystem, executor, "patch", "--all")
	require.NoError(t, patchError)
	require.Contains(t, patchOutput, "patch vulnerabilities 1")
	require.Contains(t, patchOutput, "patch vulnerabilities 2")
	require.Len(t, loadLocalSnapshot(t, fileSystem), 2)

	cleanOutput, cleanError := runApplication(t, fileSystem, executor, "diff")
	require.NoError(t, cleanError)
	require.Equal(t, "no pending changes\n", cleanOutput)

	duplicateOutput, duplicateError := runApplication(t, fileSystem, executor, "duplicate", "1")
	require.NoError(t, duplicateError)
	require.Equal(t, "duplicated vulnerabilities 1 as 3\n", duplicateOutput)
	require.Equal(t, "SQL injection", loadLocalSnapshot(t, fileSystem)[3]["title"])

	publishOutput, publishError := runApplication(t, fileSystem, executor, "publish", "3")
	require.NoError(t, publishError)
	require.Equal(t, "publish vulnerabilities 3\n", publishOutput)
	require.True(t, executor.ran("commit"))
	require.True(t, executor.ran("push"))
}

func TestApplyCommandsValidateArguments(t *testing.T) {
	configureTestEnvironment(t)
	fileSystem := afero.NewMemMapFs()
	executor := &remoteGitExecutor{fileSystem: fileSystem}

	_, bothError := runApplication(t, fileSystem, executor, "patch", "--all", "1")
	require.ErrorIs(t, bothError, records.ErrIdentifiersOrAll)

	_, neitherError := runApplication(t, fileSystem, executor, "publish")
	require.ErrorIs(t, neitherError, records.ErrIdentifiersOrAll)

	_, collectionError := runApplication(t, fileSystem, executor, "patch", "-c", "invoices", "1")
	require.Error(t, collectionError)

	_, identifierError := runApplication(t, fileSystem, executor, "publish", "abc")
	require.ErrorIs(t, identifierError, catalog.ErrInvalidRecordID)
	require.False(t, executor.ran(testCloneSubcommandConstant))
}

func TestOpenWorkspaceRequiresRepository(t *testing.T) {
	t.Setenv("CATALOGSYNC_SYNC_REPOSITORY_URL", "")
	t.Setenv("CATALOGSYNC_STORAGE_DIRECTORY", testStorageDirectoryConstant)
	fileSystem := afero.NewMemMapFs()

	_, executionError := runApplication(t, fileSystem, &remoteGitExecutor{fileSystem: fileSystem}, "status")
	require.ErrorContains(t, executionError, "unable to open workspace")
}

func TestDefaultConfigCommandPrintsAndWrites(t *testing.T) {
	configureTestEnvironment(t)
	fileSystem := afero.NewMemMapFs()
	executor := &remoteGitExecutor{fileSystem: fileSystem}
	embeddedContent, _ := EmbeddedDefaultConfiguration()

	printed, printError := runApplication(t, fileSystem, executor, "default-config")
	require.NoError(t, printError)
	require.Equal(t, string(embeddedContent), printed)

	targetPath := "/etc/catalog-sync/config.yaml"
	written, writeError := runApplication(t, fileSystem, executor, "default-config", "--write", targetPath)
	require.NoError(t, writeError)
	require.Equal(t, "wrote "+targetPath+"\n", written)
	stored, readError := afero.ReadFile(fileSystem, targetPath)
	require.NoError(t, readError)
	require.Equal(t, embeddedContent, stored)

	_, existsError := runApplication(t, fileSystem, executor, "default-config", "--write", targetPath)
	require.ErrorIs(t, existsError, ErrConfigurationFileExists)

	_, forcedError := runApplication(t, fileSystem, executor, "default-config", "--write", targetPath, "--force")
	require.NoError(t, forcedError)
	require.False(t, executor.ran(testCloneSubcommandConstant))
}

func TestRecordCommandRegistrationFailureIsReported(t *testing.T) {
	application := NewApplicationWithDependencies(ApplicationDependencies{FileSystem: afero.NewMemMapFs()})
	application.constructionError = application.registerRecordCommands(records.CommandBuilder{})
	require.ErrorIs(t, application.constructionError, records.ErrWorkspaceProviderNotConfigured)

	application.rootCommand.SetArgs([]string{"default-config"})
	require.ErrorIs(t, application.ExecuteContext(context.Background()), records.ErrWorkspaceProviderNotConfigured)
}

func TestInitializeConfigurationAttachesLoggerToCommandContext(t *testing.T) {
	configureTestEnvironment(t)
	application := NewApplicationWithDependencies(ApplicationDependencies{FileSystem: afero.NewMemMapFs()})
	statusCommand, _, findError := application.rootCommand.Find([]string{"status"})
	require.NoError(t, findError)

	require.NoError(t, application.initializeConfiguration(statusCommand))
	require.Same(t, application.logger, utils.NewCommandContextAccessor().Logger(statusCommand.Context()))
}
