package recordstore

import (
	"path/filepath"

	"github.com/temirov/catalogsync/internal/catalog"
)

const (
	localSnapshotPrefixConstant  = "local-"
	mirrorSnapshotPrefixConstant = "mirror-"
	snapshotExtensionConstant    = ".json"
)

// Layout resolves snapshot file locations inside the storage directory.
type Layout struct {
	Directory string
}

// LocalPath is the snapshot edited by the user.
func (layout Layout) LocalPath(collection catalog.Collection) string {
	return filepath.Join(layout.Directory, LocalFileName(collection))
}

// MirrorPath is the cached copy of the last retrieved remote state.
func (layout Layout) MirrorPath(collection catalog.Collection) string {
	return filepath.Join(layout.Directory, mirrorSnapshotPrefixConstant+collection.String()+snapshotExtensionConstant)
}

// LocalFileName returns the base name of the local snapshot of collection.
func LocalFileName(collection catalog.Collection) string {
	return localSnapshotPrefixConstant + collection.String() + snapshotExtensionConstant
}
