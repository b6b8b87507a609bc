package diff

import (
	"sort"
	"sync"

	"github.com/temirov/catalogsync/internal/catalog"
)

// HiddenSet holds the identifiers a user stopped tracking for one collection.
// It lives for the session only.
type HiddenSet struct {
	mutex       sync.RWMutex
	identifiers map[catalog.RecordID]struct{}
}

// NewHiddenSet returns an empty set.
func NewHiddenSet() *HiddenSet {
	return &HiddenSet{identifiers: make(map[catalog.RecordID]struct{})}
}

// Hide adds identifier. Hiding twice has no further effect.
func (set *HiddenSet) Hide(identifier catalog.RecordID) {
	set.mutex.Lock()
	defer set.mutex.Unlock()
	set.identifiers[identifier] = struct{}{}
}

// Unhide removes identifier.
func (set *HiddenSet) Unhide(identifier catalog.RecordID) {
	set.mutex.Lock()
	defer set.mutex.Unlock()
	delete(set.identifiers, identifier)
}

// Contains reports whether identifier is hidden. A nil set hides nothing.
func (set *HiddenSet) Contains(identifier catalog.RecordID) bool {
	if set == nil {
		return false
	}
	set.mutex.RLock()
	defer set.mutex.RUnlock()
	_, hidden := set.identifiers[identifier]
	return hidden
}

// Reset unhides everything.
func (set *HiddenSet) Reset() {
	set.mutex.Lock()
	defer set.mutex.Unlock()
	set.identifiers = make(map[catalog.RecordID]struct{})
}

// IDs lists the hidden identifiers in ascending order.
func (set *HiddenSet) IDs() []catalog.RecordID {
	set.mutex.RLock()
	defer set.mutex.RUnlock()
	identifiers := make([]catalog.RecordID, 0, len(set.identifiers))
	for identifier := range set.identifiers {
		identifiers = append(identifiers, identifier)
	}
	sort.Slice(identifiers, func(left, right int) bool { return identifiers[left] < identifiers[right] })
	return identifiers
}

// HiddenSets keeps one HiddenSet per collection.
type HiddenSets struct {
	sets map[catalog.Collection]*HiddenSet
}

// NewHiddenSets creates an empty set for every known collection.
func NewHiddenSets() *HiddenSets {
	sets := make(map[catalog.Collection]*HiddenSet)
	for _, collection := range catalog.AllCollections() {
		sets[collection] = NewHiddenSet()
	}
	return &HiddenSets{sets: sets}
}

// For returns the hidden set of collection, or nil for an unknown collection.
func (sets *HiddenSets) For(collection catalog.Collection) *HiddenSet {
	return sets.sets[collection]
}

// ResetAll unhides every identifier of every collection.
func (sets *HiddenSets) ResetAll() {
	for _, set := range sets.sets {
		set.Reset()
	}
}
