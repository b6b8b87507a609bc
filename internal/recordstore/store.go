package recordstore

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/catalog"
)

const (
	lockFileSuffixConstant          = ".lock"
	temporaryFilePrefixConstant     = "."
	temporaryFilePatternConstant    = ".tmp-*"
	snapshotDirectoryModeConstant   = 0o755
	snapshotWrittenMessageConstant  = "Snapshot written"
	snapshotPathFieldConstant       = "path"
	snapshotCollectionFieldConstant = "collection"
	snapshotRecordsFieldConstant    = "records"
)

// IdentifierFloor reports the highest identifier known outside the store, so
// freshly inserted records never reuse an identifier already in use elsewhere.
type IdentifierFloor func() (catalog.RecordID, error)

// Options configures a Store.
type Options struct {
	FileSystem      afero.Fs
	LockFiles       bool
	Logger          *zap.Logger
	IdentifierFloor IdentifierFloor
}

// Store persists one collection snapshot as a JSON document. Writes replace the
// file atomically and are serialized within the process by a mutex and across
// processes by an advisory lock file when LockFiles is enabled.
type Store struct {
	collection      catalog.Collection
	path            string
	fileSystem      afero.Fs
	lockFiles       bool
	logger          *zap.Logger
	identifierFloor IdentifierFloor
	mutex           sync.Mutex
}

// New constructs a Store for the collection snapshot located at path.
func New(collection catalog.Collection, path string, options Options) (*Store, error) {
	if validationError := collection.Validate(); validationError != nil {
		return nil, validationError
	}
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return nil, ErrStorePathRequired
	}
	if options.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		collection:      collection,
		path:            trimmedPath,
		fileSystem:      options.FileSystem,
		lockFiles:       options.LockFiles,
		logger:          logger,
		identifierFloor: options.IdentifierFloor,
	}, nil
}

// Collection returns the collection persisted by the store.
func (store *Store) Collection() catalog.Collection {
	return store.collection
}

// Path returns the snapshot file location.
func (store *Store) Path() string {
	return store.path
}

// Load reads the snapshot. A missing file is an empty snapshot; an undecodable
// file yields SnapshotCorruptError.
func (store *Store) Load() (catalog.RecordMap, error) {
	payload, readError := afero.ReadFile(store.fileSystem, store.path)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return catalog.RecordMap{}, nil
		}
		return nil, fmt.Errorf(snapshotReadErrorTemplateConstant, store.path, readError)
	}
	records, decodeError := catalog.DecodeRecordMap(payload)
	if decodeError != nil {
		return nil, SnapshotCorruptError{Path: store.path, Cause: decodeError}
	}
	return records, nil
}

// Save replaces the snapshot with records regardless of the current file content.
func (store *Store) Save(records catalog.RecordMap) error {
	return store.withLocks(func() error {
		return store.write(records)
	})
}

// Modify runs a read-modify-write cycle while holding the store locks. The
// snapshot is left untouched when it cannot be read or when mutator fails.
func (store *Store) Modify(mutator func(records catalog.RecordMap) (catalog.RecordMap, error)) error {
	return store.withLocks(func() error {
		current, loadError := store.Load()
		if loadError != nil {
			return loadError
		}
		updated, mutateError := mutator(current)
		if mutateError != nil {
			return mutateError
		}
		return store.write(updated)
	})
}

// Get returns a copy of one record.
func (store *Store) Get(identifier catalog.RecordID) (catalog.Record, error) {
	records, loadError := store.Load()
	if loadError != nil {
		return nil, loadError
	}
	record, exists := records[identifier]
	if !exists {
		return nil, recordNotFound(store.collection, identifier)
	}
	return record.Clone(), nil
}

// GetAll returns every record of the snapshot.
func (store *Store) GetAll() (catalog.RecordMap, error) {
	return store.Load()
}

// MaxID returns the largest identifier in the snapshot.
func (store *Store) MaxID() (catalog.RecordID, error) {
	records, loadError := store.Load()
	if loadError != nil {
		return 0, loadError
	}
	return records.MaxID(), nil
}

// Insert stores record under a fresh identifier. A nil record inserts the
// collection template.
func (store *Store) Insert(record catalog.Record) (catalog.RecordID, error) {
	var insertedIdentifier catalog.RecordID
	modifyError := store.Modify(func(records catalog.RecordMap) (catalog.RecordMap, error) {
		highestIdentifier := records.MaxID()
		if store.identifierFloor != nil {
			floor, floorError := store.identifierFloor()
			if floorError != nil {
				return nil, floorError
			}
			if floor > highestIdentifier {
				highestIdentifier = floor
			}
		}
		insertedIdentifier = highestIdentifier + 1
		if record == nil {
			records[insertedIdentifier] = catalog.DefaultRecord(store.collection)
		} else {
			records[insertedIdentifier] = record.Clone()
		}
		return records, nil
	})
	if modifyError != nil {
		return 0, modifyError
	}
	return insertedIdentifier, nil
}

// Update sets one field of an existing record.
func (store *Store) Update(identifier catalog.RecordID, fieldName string, value any) error {
	if len(strings.TrimSpace(fieldName)) == 0 {
		return ErrFieldNameRequired
	}
	return store.Modify(func(records catalog.RecordMap) (catalog.RecordMap, error) {
		record, exists := records[identifier]
		if !exists {
			return nil, recordNotFound(store.collection, identifier)
		}
		record[fieldName] = value
		return records, nil
	})
}

// Delete removes an existing record.
func (store *Store) Delete(identifier catalog.RecordID) error {
	return store.Modify(func(records catalog.RecordMap) (catalog.RecordMap, error) {
		if _, exists := records[identifier]; !exists {
			return nil, recordNotFound(store.collection, identifier)
		}
		delete(records, identifier)
		return records, nil
	})
}

func (store *Store) withLocks(operation func() error) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	release, lockError := store.acquireFileLock()
	if lockError != nil {
		return lockError
	}
	defer release()

	return operation()
}

func (store *Store) acquireFileLock() (func(), error) {
	if !store.lockFiles {
		return func() {}, nil
	}
	if directoryError := store.fileSystem.MkdirAll(filepath.Dir(store.path), snapshotDirectoryModeConstant); directoryError != nil {
		return nil, fmt.Errorf(snapshotDirectoryErrorTemplateConstant, filepath.Dir(store.path), directoryError)
	}
	fileLock := flock.New(store.path + lockFileSuffixConstant)
	if lockError := fileLock.Lock(); lockError != nil {
		return nil, fmt.Errorf(snapshotLockErrorTemplateConstant, store.path, lockError)
	}
	return func() {
		if unlockError := fileLock.Unlock(); unlockError != nil {
			store.logger.Warn(fmt.Sprintf(snapshotUnlockErrorTemplateConstant, store.path, unlockError))
		}
	}, nil
}

func (store *Store) write(records catalog.RecordMap) error {
	encoded, encodeError := catalog.EncodeRecordMap(records)
	if encodeError != nil {
		return fmt.Errorf(snapshotEncodeErrorTemplateConstant, store.path, encodeError)
	}

	directory := filepath.Dir(store.path)
	if directoryError := store.fileSystem.MkdirAll(directory, snapshotDirectoryModeConstant); directoryError != nil {
		return fmt.Errorf(snapshotDirectoryErrorTemplateConstant, directory, directoryError)
	}

	temporaryFile, createError := afero.TempFile(store.fileSystem, directory, temporaryFilePrefixConstant+filepath.Base(store.path)+temporaryFilePatternConstant)
	if createError != nil {
		return fmt.Errorf(snapshotWriteErrorTemplateConstant, store.path, createError)
	}
	temporaryPath := temporaryFile.Name()

	_, writeError := temporaryFile.Write(encoded)
	if writeError == nil {
		writeError = temporaryFile.Sync()
	}
	closeError := temporaryFile.Close()
	if writeError == nil {
		writeError = closeError
	}
	if writeError == nil {
		writeError = store.fileSystem.Rename(temporaryPath, store.path)
	}
	if writeError != nil {
		_ = store.fileSystem.Remove(temporaryPath)
		return fmt.Errorf(snapshotWriteErrorTemplateConstant, store.path, writeError)
	}

	store.logger.Debug(
		snapshotWrittenMessageConstant,
		zap.String(snapshotCollectionFieldConstant, store.collection.String()),
		zap.String(snapshotPathFieldConstant, store.path),
		zap.Int(snapshotRecordsFieldConstant, len(records)),
	)
	return nil
}
