package changes

import (
	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/diff"
)

// Report is the classification of one collection together with the mirror
// fingerprint it was computed from.
type Report struct {
	Collection        catalog.Collection
	MirrorFingerprint string
	Entries           map[catalog.RecordID]diff.Classification
	Hidden            []catalog.RecordID
	// MirrorCorrupt is set when the mirror could not be decoded; every local
	// record is then reported as removed until the next refresh repairs it.
	MirrorCorrupt bool
}

// Classification returns the classification of identifier.
func (report Report) Classification(identifier catalog.RecordID) diff.Classification {
	return report.Entries[identifier]
}

// IDs lists the classified identifiers in ascending order.
func (report Report) IDs() []catalog.RecordID {
	return diff.SortedIDs(report.Entries)
}

// VisibleIDs lists the classified identifiers that are not hidden.
func (report Report) VisibleIDs() []catalog.RecordID {
	hidden := make(map[catalog.RecordID]struct{}, len(report.Hidden))
	for _, identifier := range report.Hidden {
		hidden[identifier] = struct{}{}
	}
	visible := make([]catalog.RecordID, 0, len(report.Entries))
	for _, identifier := range report.IDs() {
		if _, isHidden := hidden[identifier]; !isHidden {
			visible = append(visible, identifier)
		}
	}
	return visible
}
