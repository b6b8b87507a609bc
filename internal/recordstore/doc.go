// Package recordstore persists collection snapshots (local and mirror) as
// JSON documents on an afero file system and exposes the record-level
// operations used by the editing interface.
package recordstore
