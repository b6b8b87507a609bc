package changes

import (
	"errors"
	"fmt"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/recordstore"
	"github.com/temirov/catalogsync/internal/syncagent"
)

const (
	agentMissingMessageConstant        = "sync agent not configured"
	hiddenSetsMissingMessageConstant   = "hidden sets not configured"
	localStoreMissingMessageConstant   = "no local store configured for collection"
	mirrorMissingMessageConstant       = "no mirror configured for collection"
	staleClassificationMessageConstant = "classification is stale; classify again and retry"
	noPendingChangeMessageConstant     = "record has no pending change"
	batchErrorTemplateConstant         = "record %d failed after %d applied: %v"
	collectionErrorTemplateConstant    = "%w: %s"
	recordErrorTemplateConstant        = "%w: %s %d"
)

// ErrAgentNotConfigured indicates the sync agent dependency was missing.
var ErrAgentNotConfigured = errors.New(agentMissingMessageConstant)

// ErrHiddenSetsNotConfigured indicates the hidden sets dependency was missing.
var ErrHiddenSetsNotConfigured = errors.New(hiddenSetsMissingMessageConstant)

// ErrLocalStoreMissing indicates a collection without a local store.
var ErrLocalStoreMissing = errors.New(localStoreMissingMessageConstant)

// ErrMirrorMissing indicates a collection without a mirror.
var ErrMirrorMissing = errors.New(mirrorMissingMessageConstant)

// ErrStaleClassification indicates the mirror changed after the report was
// computed. The caller must classify again before retrying.
var ErrStaleClassification = errors.New(staleClassificationMessageConstant)

// ErrNoPendingChange indicates the record is identical in local and mirror.
var ErrNoPendingChange = errors.New(noPendingChangeMessageConstant)

// ErrRemoteUnreachable is returned by publish operations when the fresh pull
// could not reach the remote.
var ErrRemoteUnreachable = syncagent.ErrRemoteUnreachable

// ErrRecordNotFound indicates the identifier is absent from the snapshots.
var ErrRecordNotFound = recordstore.ErrRecordNotFound

// BatchError reports the record a batch operation stopped at. Records listed
// in Applied stay applied.
type BatchError struct {
	FailedID catalog.RecordID
	Applied  []catalog.RecordID
	Cause    error
}

// Error describes the failed batch.
func (batchError BatchError) Error() string {
	return fmt.Sprintf(batchErrorTemplateConstant, batchError.FailedID, len(batchError.Applied), batchError.Cause)
}

// Unwrap exposes the failure of the record.
func (batchError BatchError) Unwrap() error {
	return batchError.Cause
}

func collectionError(sentinel error, collection catalog.Collection) error {
	return fmt.Errorf(collectionErrorTemplateConstant, sentinel, collection)
}

func recordError(sentinel error, collection catalog.Collection, identifier catalog.RecordID) error {
	return fmt.Errorf(recordErrorTemplateConstant, sentinel, collection, identifier)
}
