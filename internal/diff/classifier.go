package diff

import (
	"sort"

	"github.com/temirov/catalogsync/internal/catalog"
)

// Classification names the kind of difference between local and mirror.
type Classification string

// Classifications.
const (
	// ClassificationNone marks identical records or identifiers absent from both sides.
	ClassificationNone Classification = Classification("")
	// ClassificationAdded marks a record present only in the mirror.
	ClassificationAdded Classification = Classification("added")
	// ClassificationRemoved marks a record present only locally.
	ClassificationRemoved Classification = Classification("removed")
	// ClassificationModified marks a record present on both sides with different content.
	ClassificationModified Classification = Classification("modified")
)

// HiddenLookup reports whether an identifier is hidden.
type HiddenLookup interface {
	Contains(identifier catalog.RecordID) bool
}

// ClassifyOne classifies a single identifier.
func ClassifyOne(local catalog.RecordMap, mirror catalog.RecordMap, identifier catalog.RecordID) Classification {
	localRecord, inLocal := local[identifier]
	mirrorRecord, inMirror := mirror[identifier]
	switch {
	case inLocal && inMirror:
		if localRecord.Equal(mirrorRecord) {
			return ClassificationNone
		}
		return ClassificationModified
	case inMirror:
		return ClassificationAdded
	case inLocal:
		return ClassificationRemoved
	default:
		return ClassificationNone
	}
}

// Classify returns the classification of every identifier that differs
// between local and mirror. Identical records are omitted.
func Classify(local catalog.RecordMap, mirror catalog.RecordMap) map[catalog.RecordID]Classification {
	classifications := make(map[catalog.RecordID]Classification)
	for _, identifier := range unionIDs(local, mirror) {
		if classification := ClassifyOne(local, mirror, identifier); classification != ClassificationNone {
			classifications[identifier] = classification
		}
	}
	return classifications
}

// HasVisibleChanges reports whether some identifier that is not hidden has a
// classification. A nil lookup hides nothing.
func HasVisibleChanges(local catalog.RecordMap, mirror catalog.RecordMap, hidden HiddenLookup) bool {
	for _, identifier := range unionIDs(local, mirror) {
		if hidden != nil && hidden.Contains(identifier) {
			continue
		}
		if ClassifyOne(local, mirror, identifier) != ClassificationNone {
			return true
		}
	}
	return false
}

// SortedIDs lists the classified identifiers in ascending order.
func SortedIDs(classifications map[catalog.RecordID]Classification) []catalog.RecordID {
	identifiers := make([]catalog.RecordID, 0, len(classifications))
	for identifier := range classifications {
		identifiers = append(identifiers, identifier)
	}
	sort.Slice(identifiers, func(left, right int) bool { return identifiers[left] < identifiers[right] })
	return identifiers
}

func unionIDs(local catalog.RecordMap, mirror catalog.RecordMap) []catalog.RecordID {
	seen := make(map[catalog.RecordID]struct{}, len(local)+len(mirror))
	identifiers := make([]catalog.RecordID, 0, len(local)+len(mirror))
	for _, records := range []catalog.RecordMap{local, mirror} {
		for identifier := range records {
			if _, duplicate := seen[identifier]; duplicate {
				continue
			}
			seen[identifier] = struct{}{}
			identifiers = append(identifiers, identifier)
		}
	}
	sort.Slice(identifiers, func(left, right int) bool { return identifiers[left] < identifiers[right] })
	return identifiers
}
