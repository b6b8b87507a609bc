package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/recordstore"
	"github.com/temirov/catalogsync/internal/watch"
)

type collectionRecorder struct {
	mutex       sync.Mutex
	collections []catalog.Collection
}

func (recorder *collectionRecorder) handle(collection catalog.Collection) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.collections = append(recorder.collections, collection)
}

func (recorder *collectionRecorder) seen(collection catalog.Collection) bool {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	for _, recorded := range recorder.collections {
		if recorded == collection {
			return true
		}
	}
	return false
}

func TestNewLocalSnapshotWatcherRequiresHandler(testInstance *testing.T) {
	_, creationError := watch.NewLocalSnapshotWatcher(zap.NewNop(), testInstance.TempDir(), nil)
	require.ErrorIs(testInstance, creationError, watch.ErrHandlerNotConfigured)
}

func TestWatcherReportsLocalSnapshotRewrites(testInstance *testing.T) {
	directory := testInstance.TempDir()
	recorder := &collectionRecorder{}
	snapshotWatcher, creationError := watch.NewLocalSnapshotWatcher(zap.NewNop(), directory, recorder.handle)
	require.NoError(testInstance, creationError)
	require.NoError(testInstance, snapshotWatcher.Start(context.Background()))
	defer func() { require.NoError(testInstance, snapshotWatcher.Stop()) }()

	require.ErrorIs(testInstance, snapshotWatcher.Start(context.Background()), watch.ErrWatcherRunning)

	layout := recordstore.Layout{Directory: directory}
	store, storeError := recordstore.New(catalog.CollectionAuditors, layout.LocalPath(catalog.CollectionAuditors), recordstore.Options{FileSystem: afero.NewOsFs()})
	require.NoError(testInstance, storeError)
	require.NoError(testInstance, store.Save(catalog.RecordMap{1: {"full_name": "A. Auditor"}}))

	require.Eventually(testInstance, func() bool {
		return recorder.seen(catalog.CollectionAuditors)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresMirrorAndUnrelatedFiles(testInstance *testing.T) {
	directory := testInstance.TempDir()
	recorder := &collectionRecorder{}
	snapshotWatcher, creationError := watch.NewLocalSnapshotWatcher(zap.NewNop(), directory, recorder.handle)
	require.NoError(testInstance, creationError)
	require.NoError(testInstance, snapshotWatcher.Start(context.Background()))

	layout := recordstore.Layout{Directory: directory}
	require.NoError(testInstance, os.WriteFile(layout.MirrorPath(catalog.CollectionClients), []byte("{}"), 0o644))
	require.NoError(testInstance, os.WriteFile(filepath.Join(directory, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(testInstance, os.WriteFile(layout.LocalPath(catalog.CollectionClients), []byte("{}"), 0o644))

	require.Eventually(testInstance, func() bool {
		return recorder.seen(catalog.CollectionClients)
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(testInstance, snapshotWatcher.Stop())

	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	for _, collection := range recorder.collections {
		require.Equal(testInstance, catalog.CollectionClients, collection)
	}
}

func TestWatcherStopsWithContext(testInstance *testing.T) {
	directory := testInstance.TempDir()
	recorder := &collectionRecorder{}
	snapshotWatcher, creationError := watch.NewLocalSnapshotWatcher(nil, directory, recorder.handle)
	require.NoError(testInstance, creationError)

	executionContext, cancel := context.WithCancel(context.Background())
	require.NoError(testInstance, snapshotWatcher.Start(executionContext))
	cancel()
	require.NoError(testInstance, snapshotWatcher.Stop())
	require.NoError(testInstance, snapshotWatcher.Stop())
}

func TestWatcherFailsOnMissingDirectory(testInstance *testing.T) {
	snapshotWatcher, creationError := watch.NewLocalSnapshotWatcher(zap.NewNop(), filepath.Join(testInstance.TempDir(), "absent"), func(catalog.Collection) {})
	require.NoError(testInstance, creationError)
	require.Error(testInstance, snapshotWatcher.Start(context.Background()))
}
