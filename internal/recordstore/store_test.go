package recordstore

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/catalogsync/internal/catalog"
)

const testSnapshotPathConstant = "/storage/local-auditors.json"

func newMemoryStore(testInstance *testing.T, floor IdentifierFloor) (*Store, afero.Fs) {
	testInstance.Helper()
	fileSystem := afero.NewMemMapFs()
	store, creationError := New(catalog.CollectionAuditors, testSnapshotPathConstant, Options{FileSystem: fileSystem, IdentifierFloor: floor})
	require.NoError(testInstance, creationError)
	return store, fileSystem
}

func TestNewValidatesInputs(testInstance *testing.T) {
	testCases := []struct {
		name          string
		collection    catalog.Collection
		path          string
		options       Options
		expectedError error
	}{
		{name: "unknown collection", collection: "reports", path: "x.json", options: Options{FileSystem: afero.NewMemMapFs()}, expectedError: catalog.ErrUnknownCollection},
		{name: "empty path", collection: catalog.CollectionClients, path: "  ", options: Options{FileSystem: afero.NewMemMapFs()}, expectedError: ErrStorePathRequired},
		{name: "missing file system", collection: catalog.CollectionClients, path: "x.json", expectedError: ErrFileSystemNotConfigured},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			store, creationError := New(testCase.collection, testCase.path, testCase.options)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
			require.Nil(testInstance, store)
		})
	}
}

func TestLoadTreatsMissingFileAsEmpty(testInstance *testing.T) {
	store, _ := newMemoryStore(testInstance, nil)
	records, loadError := store.Load()
	require.NoError(testInstance, loadError)
	require.Empty(testInstance, records)
}

func TestLoadReportsCorruptSnapshot(testInstance *testing.T) {
	store, fileSystem := newMemoryStore(testInstance, nil)
	require.NoError(testInstance, afero.WriteFile(fileSystem, testSnapshotPathConstant, []byte(`{"_default": {"1": `), 0o644))

	_, loadError := store.Load()
	var corruptError SnapshotCorruptError
	require.ErrorAs(testInstance, loadError, &corruptError)
	require.Equal(testInstance, testSnapshotPathConstant, corruptError.Path)
	require.True(testInstance, IsCorrupt(loadError))

	modifyError := store.Modify(func(records catalog.RecordMap) (catalog.RecordMap, error) { return records, nil })
	require.True(testInstance, IsCorrupt(modifyError))

	require.NoError(testInstance, store.Save(catalog.RecordMap{1: {"full_name": "Ada"}}))
	records, loadError := store.Load()
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "Ada", records[1]["full_name"])
}

func TestSaveWritesCanonicalDocumentWithoutLeftovers(testInstance *testing.T) {
	store, fileSystem := newMemoryStore(testInstance, nil)
	require.NoError(testInstance, store.Save(catalog.RecordMap{2: {"role": "lead"}, 1: {"role": "junior"}}))

	payload, readError := afero.ReadFile(fileSystem, testSnapshotPathConstant)
	require.NoError(testInstance, readError)
	expected, encodeError := catalog.EncodeRecordMap(catalog.RecordMap{1: {"role": "junior"}, 2: {"role": "lead"}})
	require.NoError(testInstance, encodeError)
	require.Equal(testInstance, string(expected), string(payload))

	entries, listError := afero.ReadDir(fileSystem, "/storage")
	require.NoError(testInstance, listError)
	require.Len(testInstance, entries, 1)
}

func TestRecordOperations(testInstance *testing.T) {
	store, _ := newMemoryStore(testInstance, nil)

	firstIdentifier, insertError := store.Insert(nil)
	require.NoError(testInstance, insertError)
	require.Equal(testInstance, catalog.RecordID(1), firstIdentifier)

	secondIdentifier, insertError := store.Insert(catalog.Record{"full_name": "Grace"})
	require.NoError(testInstance, insertError)
	require.Equal(testInstance, catalog.RecordID(2), secondIdentifier)

	templateRecord, getError := store.Get(firstIdentifier)
	require.NoError(testInstance, getError)
	require.Equal(testInstance, "+33", templateRecord["phone"])

	require.NoError(testInstance, store.Update(secondIdentifier, "email", "grace@example.com"))
	updatedRecord, getError := store.Get(secondIdentifier)
	require.NoError(testInstance, getError)
	require.Equal(testInstance, "grace@example.com", updatedRecord["email"])

	require.ErrorIs(testInstance, store.Update(secondIdentifier, " ", "x"), ErrFieldNameRequired)
	require.ErrorIs(testInstance, store.Update(9, "email", "x"), ErrRecordNotFound)

	require.NoError(testInstance, store.Delete(firstIdentifier))
	_, getError = store.Get(firstIdentifier)
	require.ErrorIs(testInstance, getError, ErrRecordNotFound)
	require.ErrorIs(testInstance, store.Delete(firstIdentifier), ErrRecordNotFound)

	allRecords, loadError := store.GetAll()
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []catalog.RecordID{2}, allRecords.SortedIDs())

	maximum, maxError := store.MaxID()
	require.NoError(testInstance, maxError)
	require.Equal(testInstance, catalog.RecordID(2), maximum)
}

func TestInsertHonoursIdentifierFloor(testInstance *testing.T) {
	store, _ := newMemoryStore(testInstance, func() (catalog.RecordID, error) { return 40, nil })
	identifier, insertError := store.Insert(nil)
	require.NoError(testInstance, insertError)
	require.Equal(testInstance, catalog.RecordID(41), identifier)

	failingStore, _ := newMemoryStore(testInstance, func() (catalog.RecordID, error) { return 0, errors.New("mirror unreadable") })
	_, insertError = failingStore.Insert(nil)
	require.ErrorContains(testInstance, insertError, "mirror unreadable")
}

func TestModifyLeavesSnapshotOnMutatorFailure(testInstance *testing.T) {
	store, _ := newMemoryStore(testInstance, nil)
	require.NoError(testInstance, store.Save(catalog.RecordMap{1: {"role": "lead"}}))

	mutatorError := errors.New("rejected")
	modifyError := store.Modify(func(records catalog.RecordMap) (catalog.RecordMap, error) {
		delete(records, 1)
		return nil, mutatorError
	})
	require.ErrorIs(testInstance, modifyError, mutatorError)

	records, loadError := store.Load()
	require.NoError(testInstance, loadError)
	require.Contains(testInstance, records, catalog.RecordID(1))
}

func TestConcurrentInsertsWithFileLocks(testInstance *testing.T) {
	snapshotPath := filepath.Join(testInstance.TempDir(), "db", "local-clients.json")
	store, creationError := New(catalog.CollectionClients, snapshotPath, Options{FileSystem: afero.NewOsFs(), LockFiles: true})
	require.NoError(testInstance, creationError)

	const insertCount = 20
	var waitGroup sync.WaitGroup
	for index := 0; index < insertCount; index++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, insertError := store.Insert(nil)
			require.NoError(testInstance, insertError)
		}()
	}
	waitGroup.Wait()

	records, loadError := store.Load()
	require.NoError(testInstance, loadError)
	require.Len(testInstance, records, insertCount)
	require.Equal(testInstance, catalog.RecordID(insertCount), records.MaxID())
}

func TestLayout(testInstance *testing.T) {
	layout := Layout{Directory: "db"}
	require.Equal(testInstance, filepath.Join("db", "local-vulnerabilities.json"), layout.LocalPath(catalog.CollectionVulnerabilities))
	require.Equal(testInstance, filepath.Join("db", "mirror-clients.json"), layout.MirrorPath(catalog.CollectionClients))
	require.Equal(testInstance, "local-auditors.json", LocalFileName(catalog.CollectionAuditors))
}
