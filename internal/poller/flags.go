package poller

import (
	"sync"

	"github.com/temirov/catalogsync/internal/catalog"
)

// RemoteChangeFlags holds a sticky "remote changed" flag per collection. A flag
// raised by a refresh stays set until the collection is classified again.
type RemoteChangeFlags struct {
	mutex   sync.RWMutex
	changed map[catalog.Collection]bool
}

// NewRemoteChangeFlags returns flags with nothing raised.
func NewRemoteChangeFlags() *RemoteChangeFlags {
	return &RemoteChangeFlags{changed: make(map[catalog.Collection]bool)}
}

// RecordRemoteChanges raises the flag of every collection.
func (flags *RemoteChangeFlags) RecordRemoteChanges(collections []catalog.Collection) {
	flags.mutex.Lock()
	defer flags.mutex.Unlock()
	for _, collection := range collections {
		flags.changed[collection] = true
	}
}

// RemoteChanged reports whether the flag of collection is raised.
func (flags *RemoteChangeFlags) RemoteChanged(collection catalog.Collection) bool {
	flags.mutex.RLock()
	defer flags.mutex.RUnlock()
	return flags.changed[collection]
}

// AcknowledgeRemoteChanges lowers the flag of collection.
func (flags *RemoteChangeFlags) AcknowledgeRemoteChanges(collection catalog.Collection) {
	flags.mutex.Lock()
	defer flags.mutex.Unlock()
	delete(flags.changed, collection)
}

func (flags *RemoteChangeFlags) snapshot(collections []catalog.Collection) map[catalog.Collection]bool {
	flags.mutex.RLock()
	defer flags.mutex.RUnlock()
	snapshot := make(map[catalog.Collection]bool, len(collections))
	for _, collection := range collections {
		snapshot[collection] = flags.changed[collection]
	}
	return snapshot
}
