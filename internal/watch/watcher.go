package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/recordstore"
)

const (
	createWatcherErrorTemplateConstant  = "failed to create file watcher: %w"
	watchDirectoryErrorTemplateConstant = "failed to watch %s: %w"
	closeWatcherErrorTemplateConstant   = "failed to close file watcher: %w"
	watcherRunningMessageConstant       = "local snapshot watcher already running"
	handlerMissingMessageConstant       = "snapshot change handler not configured"
	watchErrorMessageConstant           = "File watcher reported an error"
	snapshotChangedMessageConstant      = "Local snapshot changed on disk"
	watchingMessageConstant             = "Watching local snapshots"
	directoryFieldConstant              = "directory"
	collectionFieldConstant             = "collection"
	operationFieldConstant              = "operation"
	relevantOperationsConstant          = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove
)

// ErrWatcherRunning indicates Start was called on a running watcher.
var ErrWatcherRunning = errors.New(watcherRunningMessageConstant)

// ErrHandlerNotConfigured indicates a missing change handler.
var ErrHandlerNotConfigured = errors.New(handlerMissingMessageConstant)

// Handler is invoked with the collection whose local snapshot changed.
type Handler func(collection catalog.Collection)

// LocalSnapshotWatcher watches the storage directory for changes to the local
// snapshot files.
type LocalSnapshotWatcher struct {
	logger    *zap.Logger
	directory string
	handler   Handler
	fileNames map[string]catalog.Collection

	mutex     sync.Mutex
	watcher   *fsnotify.Watcher
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
}

// NewLocalSnapshotWatcher constructs an idle watcher for directory.
func NewLocalSnapshotWatcher(logger *zap.Logger, directory string, handler Handler) (*LocalSnapshotWatcher, error) {
	if handler == nil {
		return nil, ErrHandlerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fileNames := make(map[string]catalog.Collection)
	for _, collection := range catalog.AllCollections() {
		fileNames[recordstore.LocalFileName(collection)] = collection
	}
	return &LocalSnapshotWatcher{
		logger:    logger,
		directory: directory,
		handler:   handler,
		fileNames: fileNames,
	}, nil
}

// Start begins watching. Events are delivered until ctx is cancelled or Stop
// is called.
func (snapshotWatcher *LocalSnapshotWatcher) Start(executionContext context.Context) error {
	snapshotWatcher.mutex.Lock()
	defer snapshotWatcher.mutex.Unlock()

	if snapshotWatcher.watcher != nil {
		return ErrWatcherRunning
	}
	watcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		return fmt.Errorf(createWatcherErrorTemplateConstant, watcherError)
	}
	if addError := watcher.Add(snapshotWatcher.directory); addError != nil {
		_ = watcher.Close()
		return fmt.Errorf(watchDirectoryErrorTemplateConstant, snapshotWatcher.directory, addError)
	}

	loopContext, cancel := context.WithCancel(executionContext)
	snapshotWatcher.watcher = watcher
	snapshotWatcher.cancel = cancel
	snapshotWatcher.waitGroup.Add(1)
	go snapshotWatcher.processEvents(loopContext, watcher)

	snapshotWatcher.logger.Info(watchingMessageConstant, zap.String(directoryFieldConstant, snapshotWatcher.directory))
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (snapshotWatcher *LocalSnapshotWatcher) Stop() error {
	snapshotWatcher.mutex.Lock()
	watcher := snapshotWatcher.watcher
	cancel := snapshotWatcher.cancel
	snapshotWatcher.watcher = nil
	snapshotWatcher.cancel = nil
	snapshotWatcher.mutex.Unlock()

	if watcher == nil {
		return nil
	}
	cancel()
	snapshotWatcher.waitGroup.Wait()
	if closeError := watcher.Close(); closeError != nil {
		return fmt.Errorf(closeWatcherErrorTemplateConstant, closeError)
	}
	return nil
}

func (snapshotWatcher *LocalSnapshotWatcher) processEvents(executionContext context.Context, watcher *fsnotify.Watcher) {
	defer snapshotWatcher.waitGroup.Done()
	for {
		select {
		case <-executionContext.Done():
			return
		case event, open := <-watcher.Events:
			if !open {
				return
			}
			if event.Op&relevantOperationsConstant == 0 {
				continue
			}
			collection, tracked := snapshotWatcher.fileNames[filepath.Base(event.Name)]
			if !tracked {
				continue
			}
			snapshotWatcher.logger.Debug(
				snapshotChangedMessageConstant,
				zap.String(collectionFieldConstant, collection.String()),
				zap.String(operationFieldConstant, event.Op.String()),
			)
			snapshotWatcher.handler(collection)
		case watchError, open := <-watcher.Errors:
			if !open {
				return
			}
			snapshotWatcher.logger.Warn(watchErrorMessageConstant, zap.Error(watchError))
		}
	}
}
