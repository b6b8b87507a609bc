package syncagent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/execshell"
	"github.com/temirov/catalogsync/internal/gitrepo"
)

const (
	gitCloneSubcommandConstant       = "clone"
	gitBranchFlagConstant            = "--branch"
	gitConfigSubcommandConstant      = "config"
	gitPullSubcommandConstant        = "pull"
	gitNoRebaseFlagConstant          = "--no-rebase"
	gitNoEditFlagConstant            = "--no-edit"
	gitPushSubcommandConstant        = "push"
	gitAddSubcommandConstant         = "add"
	gitPathSeparatorFlagConstant     = "--"
	gitCommitSubcommandConstant      = "commit"
	gitMessageFlagConstant           = "-m"
	gitResetSubcommandConstant       = "reset"
	gitHardFlagConstant              = "--hard"
	gitRevParseSubcommandConstant    = "rev-parse"
	gitMergeSubcommandConstant       = "merge"
	gitAbortFlagConstant             = "--abort"
	gitRemoteNameConstant            = "origin"
	gitHeadReferenceConstant         = "HEAD"
	gitPreviousRevisionConstant      = "HEAD~1"
	gitPushReferenceTemplateConstant = "HEAD:%s"
	gitSSHCommandConfigKeyConstant   = "core.sshCommand"
	gitUserNameConfigKeyConstant     = "user.name"
	gitUserEmailConfigKeyConstant    = "user.email"
	cloneDirectoryModeConstant       = 0o755
	cloneFileModeConstant            = 0o644

	removeCloneErrorTemplateConstant         = "failed to remove stale clone %s: %w"
	prepareCloneErrorTemplateConstant        = "failed to prepare clone parent %s: %w"
	cloneErrorTemplateConstant               = "%w: %w"
	configureCloneErrorTemplateConstant      = "failed to configure clone: %w"
	divergedErrorTemplateConstant            = "%w: %w"
	unreachableErrorTemplateConstant         = "%w: %w"
	unauthorizedErrorTemplateConstant        = "%w: %w"
	mirrorStoreErrorTemplateConstant         = "%w: %s"
	readCloneFileErrorTemplateConstant       = "failed to read %s from clone: %w"
	decodeCloneFileErrorTemplateConstant     = "remote file %s is not a valid snapshot: %w"
	writeCloneFileErrorTemplateConstant      = "failed to write %s into clone: %w"
	encodeCloneFileErrorTemplateConstant     = "failed to encode %s: %w"
	resolveRevisionErrorTemplateConstant     = "failed to resolve clone revision: %w"
	stageErrorTemplateConstant               = "failed to stage %s: %w"
	commitErrorTemplateConstant              = "failed to commit %s: %w"
	mirrorSaveErrorTemplateConstant          = "failed to update mirror of %s: %w"
	publishedMirrorSaveErrorTemplateConstant = "remote updated but failed to update mirror of %s: %w"
	mergedSnapshotErrorTemplateConstant      = "%w: %w"
	undoErrorTemplateConstant                = "failed to undo last commit: %w"

	cloneInitializedMessageConstant     = "Working clone initialized"
	remoteUnreachableLogMessageConstant = "Remote unreachable; keeping previous mirror"
	mergeConflictMessageConstant        = "Pull produced a merge conflict; merge aborted"
	mergeAbortFailedMessageConstant     = "Failed to abort merge"
	mirrorRefreshedMessageConstant      = "Mirror refreshed from remote"
	mirrorCorruptMessageConstant        = "Mirror unreadable; rewriting from remote"
	publishedMessageConstant            = "Collection published"
	nothingToPublishMessageConstant     = "Nothing to publish"
	rollbackFailedMessageConstant       = "Failed to roll back working clone"
	rolledBackMessageConstant           = "Working clone rolled back"
	collectionFieldConstant             = "collection"
	repositoryFieldConstant             = "repository"
	branchFieldConstant                 = "branch"
	revisionFieldConstant               = "revision"
	recordsFieldConstant                = "records"
)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// MirrorStore persists the mirror snapshot of one collection.
type MirrorStore interface {
	Load() (catalog.RecordMap, error)
	Save(records catalog.RecordMap) error
}

// Dependencies enumerates the collaborators of an Agent.
type Dependencies struct {
	Logger      *zap.Logger
	GitExecutor GitExecutor
	FileSystem  afero.Fs
	Mirrors     map[catalog.Collection]MirrorStore
}

// RefreshResult reports the outcome of PullAndRefreshMirror.
type RefreshResult struct {
	Reachable bool
	Changed   []catalog.Collection
}

// HasChanged reports whether the refresh rewrote the mirror of collection.
func (result RefreshResult) HasChanged(collection catalog.Collection) bool {
	for _, changedCollection := range result.Changed {
		if changedCollection == collection {
			return true
		}
	}
	return false
}

// MirrorMutation derives the snapshot to publish from the current mirror. It
// runs under the clone lock, so staleness checks performed inside it cannot
// race with a refresh.
type MirrorMutation func(mirror catalog.RecordMap) (catalog.RecordMap, error)

// PublishResult reports the outcome of Publish.
type PublishResult struct {
	Committed bool
	Mirror    catalog.RecordMap
}

// Agent owns the working clone of the remote repository.
type Agent struct {
	logger        *zap.Logger
	executor      GitExecutor
	fileSystem    afero.Fs
	mirrors       map[catalog.Collection]MirrorStore
	configuration Configuration
	remote        gitrepo.RemoteURL
	environment   map[string]string

	cloneMutex  sync.Mutex
	initialized bool

	stateMutex sync.RWMutex
	state      State
}

// NewAgent constructs an Agent. The ssh key path must already be expanded.
func NewAgent(dependencies Dependencies, configuration Configuration) (*Agent, error) {
	if dependencies.GitExecutor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	if len(dependencies.Mirrors) == 0 {
		return nil, ErrMirrorStoresNotConfigured
	}
	sanitizedConfiguration := configuration.Sanitize()
	if len(sanitizedConfiguration.RepositoryURL) == 0 {
		return nil, ErrRepositoryURLRequired
	}
	remote, parseError := gitrepo.ParseRemoteURL(sanitizedConfiguration.RepositoryURL)
	if parseError != nil {
		return nil, parseError
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	mirrors := make(map[catalog.Collection]MirrorStore, len(dependencies.Mirrors))
	for collection, mirror := range dependencies.Mirrors {
		mirrors[collection] = mirror
	}

	return &Agent{
		logger:        logger,
		executor:      dependencies.GitExecutor,
		fileSystem:    fileSystem,
		mirrors:       mirrors,
		configuration: sanitizedConfiguration,
		remote:        remote,
		environment:   transportEnvironment(remote, sanitizedConfiguration.SSHKeyPath),
		state:         StateUninitialized,
	}, nil
}

// State returns the current reachability state.
func (agent *Agent) State() State {
	agent.stateMutex.RLock()
	defer agent.stateMutex.RUnlock()
	return agent.state
}

// CloneDirectory returns the location of the working clone.
func (agent *Agent) CloneDirectory() string {
	return agent.configuration.CloneDirectory
}

// Initialize replaces any existing working clone with a fresh clone of the
// configured branch. A clone failure is reported as ErrRemoteUnreachable.
func (agent *Agent) Initialize(executionContext context.Context) error {
	agent.cloneMutex.Lock()
	defer agent.cloneMutex.Unlock()

	agent.initialized = false
	agent.setState(StateInitializing)

	cloneDirectory := agent.configuration.CloneDirectory
	if removeError := agent.fileSystem.RemoveAll(cloneDirectory); removeError != nil {
		agent.setState(StateUninitialized)
		return fmt.Errorf(removeCloneErrorTemplateConstant, cloneDirectory, removeError)
	}
	parentDirectory := filepath.Dir(cloneDirectory)
	if prepareError := agent.fileSystem.MkdirAll(parentDirectory, cloneDirectoryModeConstant); prepareError != nil {
		agent.setState(StateUninitialized)
		return fmt.Errorf(prepareCloneErrorTemplateConstant, parentDirectory, prepareError)
	}

	if _, cloneError := agent.runGit(executionContext, "", gitCloneSubcommandConstant, gitBranchFlagConstant, agent.configuration.Branch, agent.remote.String(), cloneDirectory); cloneError != nil {
		agent.setState(StateUnreachable)
		return fmt.Errorf(cloneErrorTemplateConstant, ErrRemoteUnreachable, cloneError)
	}

	for _, setting := range agent.cloneSettings() {
		if _, configError := agent.runGit(executionContext, cloneDirectory, gitConfigSubcommandConstant, setting[0], setting[1]); configError != nil {
			agent.setState(StateUninitialized)
			return fmt.Errorf(configureCloneErrorTemplateConstant, configError)
		}
	}

	agent.initialized = true
	agent.setState(StateReachable)
	agent.logger.Info(
		cloneInitializedMessageConstant,
		zap.String(repositoryFieldConstant, agent.remote.Redacted()),
		zap.String(branchFieldConstant, agent.configuration.Branch),
	)
	return nil
}

// Pull merges the remote branch into the working clone. It returns false with
// a nil error when the remote cannot be reached. A merge conflict is aborted
// and reported as ErrRemoteDiverged.
func (agent *Agent) Pull(executionContext context.Context) (bool, error) {
	agent.cloneMutex.Lock()
	defer agent.cloneMutex.Unlock()
	return agent.pullLocked(executionContext)
}

// PullAndRefreshMirror pulls and, when the remote was reachable, rewrites the
// mirror of every collection whose clone file differs from it.
func (agent *Agent) PullAndRefreshMirror(executionContext context.Context, collections []catalog.Collection) (RefreshResult, error) {
	agent.cloneMutex.Lock()
	defer agent.cloneMutex.Unlock()

	reachable, pullError := agent.pullLocked(executionContext)
	if pullError != nil {
		return RefreshResult{Reachable: reachable}, pullError
	}
	if !reachable {
		return RefreshResult{}, nil
	}

	result := RefreshResult{Reachable: true}
	for _, collection := range collections {
		changed, refreshError := agent.refreshMirrorLocked(collection)
		if refreshError != nil {
			return result, refreshError
		}
		if changed {
			result.Changed = append(result.Changed, collection)
		}
	}
	return result, nil
}

// Publish writes the mutated mirror of collection into the clone, commits it
// with the configured message, merges the remote branch and pushes. The merged
// file must still decode before it is pushed. Every failure before the push
// rolls the clone back to the revision it had before the publish and leaves
// the mirror untouched. On success the mirror equals the pushed file.
func (agent *Agent) Publish(executionContext context.Context, collection catalog.Collection, mutate MirrorMutation) (PublishResult, error) {
	agent.cloneMutex.Lock()
	defer agent.cloneMutex.Unlock()

	if !agent.initialized {
		return PublishResult{}, ErrCloneNotInitialized
	}
	mirrorStore, mirrorError := agent.mirrorStore(collection)
	if mirrorError != nil {
		return PublishResult{}, mirrorError
	}
	currentMirror, loadError := mirrorStore.Load()
	if loadError != nil {
		return PublishResult{}, loadError
	}
	updatedMirror, mutateError := mutate(currentMirror.Clone())
	if mutateError != nil {
		return PublishResult{}, mutateError
	}

	startingRevision, revisionError := agent.headRevision(executionContext)
	if revisionError != nil {
		return PublishResult{}, revisionError
	}

	fileName := collection.RemoteFileName()
	if writeError := agent.writeCloneCollection(collection, updatedMirror); writeError != nil {
		agent.rollback(executionContext, startingRevision)
		return PublishResult{}, writeError
	}
	if _, stageError := agent.runGit(executionContext, agent.configuration.CloneDirectory, gitAddSubcommandConstant, gitPathSeparatorFlagConstant, fileName); stageError != nil {
		agent.rollback(executionContext, startingRevision)
		return PublishResult{}, fmt.Errorf(stageErrorTemplateConstant, fileName, stageError)
	}
	if _, commitError := agent.runGit(executionContext, agent.configuration.CloneDirectory, gitCommitSubcommandConstant, gitMessageFlagConstant, agent.configuration.CommitMessage); commitError != nil {
		if classifyFailure(commitError) == failureKindNothingToCommit {
			agent.logger.Info(nothingToPublishMessageConstant, zap.String(collectionFieldConstant, collection.String()))
			return PublishResult{Committed: false, Mirror: currentMirror}, nil
		}
		agent.rollback(executionContext, startingRevision)
		return PublishResult{}, fmt.Errorf(commitErrorTemplateConstant, fileName, commitError)
	}

	reachable, pullError := agent.pullLocked(executionContext)
	if pullError != nil {
		agent.rollback(executionContext, startingRevision)
		return PublishResult{}, pullError
	}
	if !reachable {
		agent.rollback(executionContext, startingRevision)
		return PublishResult{}, ErrRemoteUnreachable
	}

	mergedRecords, mergedReadError := agent.readCloneCollection(collection)
	if mergedReadError != nil {
		agent.rollback(executionContext, startingRevision)
		return PublishResult{}, fmt.Errorf(mergedSnapshotErrorTemplateConstant, ErrMergedSnapshotInvalid, mergedReadError)
	}

	pushReference := fmt.Sprintf(gitPushReferenceTemplateConstant, agent.configuration.Branch)
	if _, pushError := agent.runGit(executionContext, agent.configuration.CloneDirectory, gitPushSubcommandConstant, gitRemoteNameConstant, pushReference); pushError != nil {
		agent.rollback(executionContext, startingRevision)
		switch classifyFailure(pushError) {
		case failureKindAuthentication:
			return PublishResult{}, fmt.Errorf(unauthorizedErrorTemplateConstant, ErrPublishUnauthorized, pushError)
		case failureKindNetwork:
			agent.setState(StateUnreachable)
			return PublishResult{}, fmt.Errorf(unreachableErrorTemplateConstant, ErrRemoteUnreachable, pushError)
		default:
			return PublishResult{}, PushFailedError{Cause: pushError}
		}
	}

	agent.setState(StateReachable)
	if saveError := mirrorStore.Save(mergedRecords); saveError != nil {
		return PublishResult{}, fmt.Errorf(publishedMirrorSaveErrorTemplateConstant, collection, saveError)
	}
	agent.logger.Info(
		publishedMessageConstant,
		zap.String(collectionFieldConstant, collection.String()),
		zap.Int(recordsFieldConstant, len(mergedRecords)),
	)
	return PublishResult{Committed: true, Mirror: mergedRecords}, nil
}

// UndoLastCommit discards the most recent commit of the working clone.
func (agent *Agent) UndoLastCommit(executionContext context.Context) error {
	agent.cloneMutex.Lock()
	defer agent.cloneMutex.Unlock()

	if !agent.initialized {
		return ErrCloneNotInitialized
	}
	if _, resetError := agent.runGit(executionContext, agent.configuration.CloneDirectory, gitResetSubcommandConstant, gitHardFlagConstant, gitPreviousRevisionConstant); resetError != nil {
		return fmt.Errorf(undoErrorTemplateConstant, resetError)
	}
	return nil
}

func (agent *Agent) pullLocked(executionContext context.Context) (bool, error) {
	if !agent.initialized {
		return false, ErrCloneNotInitialized
	}

	_, pullError := agent.runGit(executionContext, agent.configuration.CloneDirectory, gitPullSubcommandConstant, gitNoRebaseFlagConstant, gitNoEditFlagConstant, gitRemoteNameConstant, agent.configuration.Branch)
	if pullError == nil {
		agent.setState(StateReachable)
		return true, nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return false, contextError
	}

	if classifyFailure(pullError) == failureKindConflict {
		agent.logger.Warn(mergeConflictMessageConstant, zap.Error(pullError))
		if _, abortError := agent.runGit(context.WithoutCancel(executionContext), agent.configuration.CloneDirectory, gitMergeSubcommandConstant, gitAbortFlagConstant); abortError != nil {
			agent.logger.Error(mergeAbortFailedMessageConstant, zap.Error(abortError))
		}
		agent.setState(StateReachable)
		return true, fmt.Errorf(divergedErrorTemplateConstant, ErrRemoteDiverged, pullError)
	}

	agent.logger.Info(remoteUnreachableLogMessageConstant, zap.Error(pullError))
	agent.setState(StateUnreachable)
	return false, nil
}

func (agent *Agent) refreshMirrorLocked(collection catalog.Collection) (bool, error) {
	mirrorStore, mirrorError := agent.mirrorStore(collection)
	if mirrorError != nil {
		return false, mirrorError
	}
	remoteRecords, readError := agent.readCloneCollection(collection)
	if readError != nil {
		return false, readError
	}

	currentMirror, loadError := mirrorStore.Load()
	if loadError == nil && currentMirror.Equal(remoteRecords) {
		return false, nil
	}
	if loadError != nil {
		agent.logger.Warn(mirrorCorruptMessageConstant, zap.String(collectionFieldConstant, collection.String()), zap.Error(loadError))
	}
	if saveError := mirrorStore.Save(remoteRecords); saveError != nil {
		return false, fmt.Errorf(mirrorSaveErrorTemplateConstant, collection, saveError)
	}
	agent.logger.Info(
		mirrorRefreshedMessageConstant,
		zap.String(collectionFieldConstant, collection.String()),
		zap.Int(recordsFieldConstant, len(remoteRecords)),
	)
	return true, nil
}

func (agent *Agent) mirrorStore(collection catalog.Collection) (MirrorStore, error) {
	mirrorStore, exists := agent.mirrors[collection]
	if !exists {
		return nil, fmt.Errorf(mirrorStoreErrorTemplateConstant, ErrMirrorStoreMissing, collection)
	}
	return mirrorStore, nil
}

func (agent *Agent) clonePath(collection catalog.Collection) string {
	return filepath.Join(agent.configuration.CloneDirectory, collection.RemoteFileName())
}

// readCloneCollection decodes the collection file of the clone. A missing file
// is an empty collection.
func (agent *Agent) readCloneCollection(collection catalog.Collection) (catalog.RecordMap, error) {
	payload, readError := afero.ReadFile(agent.fileSystem, agent.clonePath(collection))
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return catalog.RecordMap{}, nil
		}
		return nil, fmt.Errorf(readCloneFileErrorTemplateConstant, collection.RemoteFileName(), readError)
	}
	records, decodeError := catalog.DecodeRecordMap(payload)
	if decodeError != nil {
		return nil, fmt.Errorf(decodeCloneFileErrorTemplateConstant, collection.RemoteFileName(), decodeError)
	}
	return records, nil
}

func (agent *Agent) writeCloneCollection(collection catalog.Collection, records catalog.RecordMap) error {
	encoded, encodeError := catalog.EncodeRecordMap(records)
	if encodeError != nil {
		return fmt.Errorf(encodeCloneFileErrorTemplateConstant, collection.RemoteFileName(), encodeError)
	}
	if writeError := afero.WriteFile(agent.fileSystem, agent.clonePath(collection), encoded, cloneFileModeConstant); writeError != nil {
		return fmt.Errorf(writeCloneFileErrorTemplateConstant, collection.RemoteFileName(), writeError)
	}
	return nil
}

func (agent *Agent) headRevision(executionContext context.Context) (string, error) {
	result, revisionError := agent.runGit(executionContext, agent.configuration.CloneDirectory, gitRevParseSubcommandConstant, gitHeadReferenceConstant)
	if revisionError != nil {
		return "", fmt.Errorf(resolveRevisionErrorTemplateConstant, revisionError)
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// rollback restores the clone to revision even when the caller's context has
// been cancelled.
func (agent *Agent) rollback(executionContext context.Context, revision string) {
	rollbackContext := context.WithoutCancel(executionContext)
	if _, resetError := agent.runGit(rollbackContext, agent.configuration.CloneDirectory, gitResetSubcommandConstant, gitHardFlagConstant, revision); resetError != nil {
		agent.logger.Error(rollbackFailedMessageConstant, zap.String(revisionFieldConstant, revision), zap.Error(resetError))
		return
	}
	agent.logger.Info(rolledBackMessageConstant, zap.String(revisionFieldConstant, revision))
}

func (agent *Agent) cloneSettings() [][2]string {
	settings := make([][2]string, 0, 3)
	if command, required := sshCommand(agent.remote, agent.configuration.SSHKeyPath); required {
		settings = append(settings, [2]string{gitSSHCommandConfigKeyConstant, command})
	}
	settings = append(settings,
		[2]string{gitUserNameConfigKeyConstant, agent.configuration.AuthorName},
		[2]string{gitUserEmailConfigKeyConstant, agent.configuration.AuthorEmail},
	)
	return settings
}

func (agent *Agent) runGit(executionContext context.Context, workingDirectory string, arguments ...string) (execshell.ExecutionResult, error) {
	environment := make(map[string]string, len(agent.environment))
	for key, value := range agent.environment {
		environment[key] = value
	}
	return agent.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: environment,
	})
}

func (agent *Agent) setState(state State) {
	agent.stateMutex.Lock()
	defer agent.stateMutex.Unlock()
	agent.state = state
}
