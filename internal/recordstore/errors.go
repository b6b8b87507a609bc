package recordstore

import (
	"errors"
	"fmt"

	"github.com/temirov/catalogsync/internal/catalog"
)

const (
	recordNotFoundMessageConstant          = "record not found"
	storePathRequiredMessageConstant       = "snapshot path must be provided"
	fileSystemMissingMessageConstant       = "snapshot file system not configured"
	fieldNameRequiredMessageConstant       = "field name must be provided"
	snapshotCorruptErrorTemplateConstant   = "snapshot %s is corrupt: %v"
	recordNotFoundErrorTemplateConstant    = "%w: %s %s"
	snapshotReadErrorTemplateConstant      = "failed to read snapshot %s: %w"
	snapshotWriteErrorTemplateConstant     = "failed to write snapshot %s: %w"
	snapshotEncodeErrorTemplateConstant    = "failed to encode snapshot %s: %w"
	snapshotLockErrorTemplateConstant      = "failed to lock snapshot %s: %w"
	snapshotUnlockErrorTemplateConstant    = "failed to unlock snapshot %s: %v"
	snapshotDirectoryErrorTemplateConstant = "failed to prepare snapshot directory %s: %w"
)

// ErrRecordNotFound indicates the requested identifier is absent from the snapshot.
var ErrRecordNotFound = errors.New(recordNotFoundMessageConstant)

// ErrStorePathRequired indicates an empty snapshot path.
var ErrStorePathRequired = errors.New(storePathRequiredMessageConstant)

// ErrFileSystemNotConfigured indicates a missing afero file system.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// ErrFieldNameRequired indicates an empty field name passed to Update.
var ErrFieldNameRequired = errors.New(fieldNameRequiredMessageConstant)

// SnapshotCorruptError reports a snapshot file that exists but cannot be decoded.
type SnapshotCorruptError struct {
	Path  string
	Cause error
}

// Error describes the corrupt snapshot.
func (corruptError SnapshotCorruptError) Error() string {
	return fmt.Sprintf(snapshotCorruptErrorTemplateConstant, corruptError.Path, corruptError.Cause)
}

// Unwrap exposes the decoding failure.
func (corruptError SnapshotCorruptError) Unwrap() error {
	return corruptError.Cause
}

// IsCorrupt reports whether the error chain contains a SnapshotCorruptError.
func IsCorrupt(err error) bool {
	var corruptError SnapshotCorruptError
	return errors.As(err, &corruptError)
}

func recordNotFound(collection catalog.Collection, identifier catalog.RecordID) error {
	return fmt.Errorf(recordNotFoundErrorTemplateConstant, ErrRecordNotFound, collection, identifier)
}
