package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/changes"
	"github.com/temirov/catalogsync/internal/diff"
	"github.com/temirov/catalogsync/internal/execshell"
	"github.com/temirov/catalogsync/internal/poller"
	"github.com/temirov/catalogsync/internal/recordstore"
	"github.com/temirov/catalogsync/internal/syncagent"
	pathutils "github.com/temirov/catalogsync/internal/utils/path"
	"github.com/temirov/catalogsync/internal/watch"
)

const (
	storageDirectoryModeConstant        = 0o755
	resolveStorageErrorTemplateConstant = "storage directory: %w"
	resolveCloneErrorTemplateConstant   = "clone directory: %w"
	resolveKeyErrorTemplateConstant     = "ssh key path: %w"
	prepareStorageErrorTemplateConstant = "failed to create storage directory %s: %w"
	openStoreErrorTemplateConstant      = "failed to open %s snapshot store: %w"
	backgroundRunningMessageConstant    = "background synchronization already running"
	workspaceOpenedMessageConstant      = "Workspace opened"
	storageFieldConstant                = "storage"
	cloneFieldConstant                  = "clone"
)

// ErrBackgroundRunning indicates StartBackground was called twice.
var ErrBackgroundRunning = errors.New(backgroundRunningMessageConstant)

// Dependencies carries optional collaborators. Zero values select the
// operating system implementations.
type Dependencies struct {
	Logger       *zap.Logger
	FileSystem   afero.Fs
	GitExecutor  syncagent.GitExecutor
	HomeExpander *pathutils.HomeExpander
	Clock        func() time.Time
}

// Workspace owns one fully wired set of catalogue components.
type Workspace struct {
	logger           *zap.Logger
	storageDirectory string

	agent         *syncagent.Agent
	controller    *changes.Controller
	poller        *poller.Poller
	localStores   map[catalog.Collection]*recordstore.Store
	mirrors       map[catalog.Collection]*recordstore.Store

	backgroundMutex sync.Mutex
	watcher         *watch.LocalSnapshotWatcher
}

// Open resolves paths and builds every component. No git command runs until
// Initialize is called.
func Open(dependencies Dependencies, configuration Configuration) (*Workspace, error) {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	expander := dependencies.HomeExpander
	if expander == nil {
		expander = pathutils.NewHomeExpander()
	}

	storageConfiguration := configuration.Storage.sanitize()
	syncConfiguration := configuration.Sync.Sanitize()

	storageDirectory, storageError := expander.Resolve(storageConfiguration.Directory)
	if storageError != nil {
		return nil, fmt.Errorf(resolveStorageErrorTemplateConstant, storageError)
	}
	cloneDirectory, cloneError := expander.Resolve(syncConfiguration.CloneDirectory)
	if cloneError != nil {
		return nil, fmt.Errorf(resolveCloneErrorTemplateConstant, cloneError)
	}
	syncConfiguration.CloneDirectory = cloneDirectory
	if len(syncConfiguration.SSHKeyPath) > 0 {
		keyPath, keyError := expander.Resolve(syncConfiguration.SSHKeyPath)
		if keyError != nil {
			return nil, fmt.Errorf(resolveKeyErrorTemplateConstant, keyError)
		}
		syncConfiguration.SSHKeyPath = keyPath
	}

	if mkdirError := fileSystem.MkdirAll(storageDirectory, storageDirectoryModeConstant); mkdirError != nil {
		return nil, fmt.Errorf(prepareStorageErrorTemplateConstant, storageDirectory, mkdirError)
	}

	layout := recordstore.Layout{Directory: storageDirectory}
	mirrors := make(map[catalog.Collection]*recordstore.Store)
	localStores := make(map[catalog.Collection]*recordstore.Store)
	for _, collection := range catalog.AllCollections() {
		mirror, mirrorError := recordstore.New(collection, layout.MirrorPath(collection), recordstore.Options{
			FileSystem: fileSystem,
			Logger:     logger,
		})
		if mirrorError != nil {
			return nil, fmt.Errorf(openStoreErrorTemplateConstant, collection, mirrorError)
		}
		local, localError := recordstore.New(collection, layout.LocalPath(collection), recordstore.Options{
			FileSystem:      fileSystem,
			Logger:          logger,
			LockFiles:       storageConfiguration.LockFiles,
			IdentifierFloor: mirror.MaxID,
		})
		if localError != nil {
			return nil, fmt.Errorf(openStoreErrorTemplateConstant, collection, localError)
		}
		mirrors[collection] = mirror
		localStores[collection] = local
	}

	gitExecutor := dependencies.GitExecutor
	if gitExecutor == nil {
		shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
		if executorError != nil {
			return nil, executorError
		}
		gitExecutor = shellExecutor
	}

	agentMirrors := make(map[catalog.Collection]syncagent.MirrorStore, len(mirrors))
	controllerMirrors := make(map[catalog.Collection]changes.MirrorReader, len(mirrors))
	controllerLocals := make(map[catalog.Collection]changes.LocalStore, len(localStores))
	for collection, mirror := range mirrors {
		agentMirrors[collection] = mirror
		controllerMirrors[collection] = mirror
		controllerLocals[collection] = localStores[collection]
	}

	agent, agentError := syncagent.NewAgent(syncagent.Dependencies{
		Logger:      logger,
		GitExecutor: gitExecutor,
		FileSystem:  fileSystem,
		Mirrors:     agentMirrors,
	}, syncConfiguration)
	if agentError != nil {
		return nil, agentError
	}

	hiddenSets := diff.NewHiddenSets()
	remoteChanges := poller.NewRemoteChangeFlags()
	controller, controllerError := changes.NewController(changes.Dependencies{
		Logger:        logger,
		Agent:         agent,
		LocalStores:   controllerLocals,
		Mirrors:       controllerMirrors,
		HiddenSets:    hiddenSets,
		RemoteChanges: remoteChanges,
	})
	if controllerError != nil {
		return nil, controllerError
	}

	statusPoller, pollerError := poller.New(poller.Dependencies{
		Logger:     logger,
		Refresher:  agent,
		Visibility: controller,
		Flags:      remoteChanges,
		Clock:      dependencies.Clock,
	}, poller.Options{Interval: syncConfiguration.PollInterval})
	if pollerError != nil {
		return nil, pollerError
	}

	logger.Debug(workspaceOpenedMessageConstant, zap.String(storageFieldConstant, storageDirectory), zap.String(cloneFieldConstant, cloneDirectory))
	return &Workspace{
		logger:           logger,
		storageDirectory: storageDirectory,
		agent:            agent,
		controller:       controller,
		poller:           statusPoller,
		localStores:      localStores,
		mirrors:          mirrors,
	}, nil
}

// Initialize clones the remote and runs the first refresh so the mirrors
// reflect the remote before any classification.
func (workspace *Workspace) Initialize(executionContext context.Context) (poller.Status, error) {
	if initializeError := workspace.agent.Initialize(executionContext); initializeError != nil {
		return workspace.poller.Status(), initializeError
	}
	return workspace.poller.RefreshNow(executionContext)
}

// StartBackground starts the poller loop and the local snapshot watcher. Both
// stop when ctx is cancelled or Close is called.
func (workspace *Workspace) StartBackground(executionContext context.Context) error {
	workspace.backgroundMutex.Lock()
	defer workspace.backgroundMutex.Unlock()
	if workspace.watcher != nil {
		return ErrBackgroundRunning
	}

	snapshotWatcher, watcherError := watch.NewLocalSnapshotWatcher(workspace.logger, workspace.storageDirectory, func(collection catalog.Collection) {
		workspace.poller.LocalSnapshotsChanged([]catalog.Collection{collection})
	})
	if watcherError != nil {
		return watcherError
	}
	if startError := snapshotWatcher.Start(executionContext); startError != nil {
		return startError
	}
	workspace.watcher = snapshotWatcher
	workspace.poller.Start(executionContext)
	return nil
}

// Close stops the background components.
func (workspace *Workspace) Close() error {
	workspace.poller.Stop()

	workspace.backgroundMutex.Lock()
	defer workspace.backgroundMutex.Unlock()
	if workspace.watcher == nil {
		return nil
	}
	stopError := workspace.watcher.Stop()
	workspace.watcher = nil
	return stopError
}

// Agent returns the git synchronization agent.
func (workspace *Workspace) Agent() *syncagent.Agent {
	return workspace.agent
}

// Controller returns the change controller.
func (workspace *Workspace) Controller() *changes.Controller {
	return workspace.controller
}

// Poller returns the status poller.
func (workspace *Workspace) Poller() *poller.Poller {
	return workspace.poller
}

// LocalStore returns the editable snapshot of collection.
func (workspace *Workspace) LocalStore(collection catalog.Collection) (*recordstore.Store, error) {
	if validationError := collection.Validate(); validationError != nil {
		return nil, validationError
	}
	return workspace.localStores[collection], nil
}

// StorageDirectory returns the absolute directory holding the snapshots.
func (workspace *Workspace) StorageDirectory() string {
	return workspace.storageDirectory
}
