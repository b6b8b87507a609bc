package changes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/catalogsync/internal/catalog"
	"github.com/temirov/catalogsync/internal/diff"
	"github.com/temirov/catalogsync/internal/recordstore"
	"github.com/temirov/catalogsync/internal/syncagent"
)

const (
	operationIDFieldConstant     = "operation_id"
	operationFieldConstant       = "operation"
	collectionFieldConstant      = "collection"
	recordIDFieldConstant        = "record_id"
	newRecordIDFieldConstant     = "new_record_id"
	classificationFieldConstant  = "classification"
	patchOperationConstant       = "patch"
	publishOperationConstant     = "publish"
	duplicateOperationConstant   = "duplicate"
	patchedMessageConstant       = "Record patched from mirror"
	publishedMessageConstant     = "Record published to remote"
	duplicatedMessageConstant    = "Record duplicated"
	staleMessageConstant         = "Classification stale; operation refused"
	unreachableMessageConstant   = "Remote unreachable; publish refused"
	corruptMirrorMessageConstant = "Mirror unreadable; reporting every local record as changed"
)

// SyncAgent is the part of the sync agent the controller drives.
type SyncAgent interface {
	PullAndRefreshMirror(executionContext context.Context, collections []catalog.Collection) (syncagent.RefreshResult, error)
	Publish(executionContext context.Context, collection catalog.Collection, mutate syncagent.MirrorMutation) (syncagent.PublishResult, error)
}

// LocalStore reads and rewrites a local snapshot.
type LocalStore interface {
	Load() (catalog.RecordMap, error)
	Modify(mutator func(records catalog.RecordMap) (catalog.RecordMap, error)) error
}

// MirrorReader reads a mirror snapshot.
type MirrorReader interface {
	Load() (catalog.RecordMap, error)
}

// RemoteChangeTracker keeps the sticky "remote changed" flag of every
// collection. The flag is raised by refreshes and cleared by classification.
type RemoteChangeTracker interface {
	RecordRemoteChanges(collections []catalog.Collection)
	RemoteChanged(collection catalog.Collection) bool
	AcknowledgeRemoteChanges(collection catalog.Collection)
}

// Dependencies enumerates the collaborators of a Controller.
type Dependencies struct {
	Logger        *zap.Logger
	Agent         SyncAgent
	LocalStores   map[catalog.Collection]LocalStore
	Mirrors       map[catalog.Collection]MirrorReader
	HiddenSets    *diff.HiddenSets
	RemoteChanges RemoteChangeTracker
}

// Controller is the only component that mutates snapshots on behalf of the user.
type Controller struct {
	logger        *zap.Logger
	agent         SyncAgent
	localStores   map[catalog.Collection]LocalStore
	mirrors       map[catalog.Collection]MirrorReader
	hiddenSets    *diff.HiddenSets
	remoteChanges RemoteChangeTracker
}

// NewController validates dependencies and constructs a Controller.
func NewController(dependencies Dependencies) (*Controller, error) {
	if dependencies.Agent == nil {
		return nil, ErrAgentNotConfigured
	}
	if dependencies.HiddenSets == nil {
		return nil, ErrHiddenSetsNotConfigured
	}
	for _, collection := range catalog.AllCollections() {
		if _, exists := dependencies.LocalStores[collection]; !exists {
			return nil, collectionError(ErrLocalStoreMissing, collection)
		}
		if _, exists := dependencies.Mirrors[collection]; !exists {
			return nil, collectionError(ErrMirrorMissing, collection)
		}
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		logger:        logger,
		agent:         dependencies.Agent,
		localStores:   dependencies.LocalStores,
		mirrors:       dependencies.Mirrors,
		hiddenSets:    dependencies.HiddenSets,
		remoteChanges: dependencies.RemoteChanges,
	}, nil
}

// Classify computes the classification of collection from the current local
// and mirror snapshots and acknowledges pending remote changes.
func (controller *Controller) Classify(collection catalog.Collection) (Report, error) {
	if validationError := collection.Validate(); validationError != nil {
		return Report{}, validationError
	}
	localRecords, localError := controller.localStores[collection].Load()
	if localError != nil {
		return Report{}, localError
	}
	report := Report{Collection: collection}
	mirrorRecords, mirrorError := controller.mirrors[collection].Load()
	if mirrorError != nil {
		if !recordstore.IsCorrupt(mirrorError) {
			return Report{}, mirrorError
		}
		controller.logger.Warn(corruptMirrorMessageConstant, zap.String(collectionFieldConstant, collection.String()), zap.Error(mirrorError))
		mirrorRecords = catalog.RecordMap{}
		report.MirrorCorrupt = true
	} else {
		report.MirrorFingerprint = catalog.Fingerprint(mirrorRecords)
	}

	if controller.remoteChanges != nil {
		controller.remoteChanges.AcknowledgeRemoteChanges(collection)
	}
	report.Entries = diff.Classify(localRecords, mirrorRecords)
	report.Hidden = controller.hiddenSets.For(collection).IDs()
	return report, nil
}

// HasVisibleChanges reports whether collection has a classified record that is
// not hidden. An unreadable mirror counts as changed.
func (controller *Controller) HasVisibleChanges(collection catalog.Collection) (bool, error) {
	if validationError := collection.Validate(); validationError != nil {
		return false, validationError
	}
	localRecords, localError := controller.localStores[collection].Load()
	if localError != nil {
		return false, localError
	}
	mirrorRecords, mirrorError := controller.mirrors[collection].Load()
	if mirrorError != nil {
		if recordstore.IsCorrupt(mirrorError) {
			return true, nil
		}
		return false, mirrorError
	}
	return diff.HasVisibleChanges(localRecords, mirrorRecords, controller.hiddenSets.For(collection)), nil
}

// Hide stops tracking identifier in collection for the session.
func (controller *Controller) Hide(collection catalog.Collection, identifier catalog.RecordID) error {
	return controller.HideMany(collection, []catalog.RecordID{identifier})
}

// HideMany hides every identifier.
func (controller *Controller) HideMany(collection catalog.Collection, identifiers []catalog.RecordID) error {
	if validationError := collection.Validate(); validationError != nil {
		return validationError
	}
	hiddenSet := controller.hiddenSets.For(collection)
	for _, identifier := range identifiers {
		hiddenSet.Hide(identifier)
	}
	return nil
}

// Unhide resumes tracking identifier.
func (controller *Controller) Unhide(collection catalog.Collection, identifier catalog.RecordID) error {
	if validationError := collection.Validate(); validationError != nil {
		return validationError
	}
	controller.hiddenSets.For(collection).Unhide(identifier)
	return nil
}

// ResetHidden unhides every identifier of collection.
func (controller *Controller) ResetHidden(collection catalog.Collection) error {
	if validationError := collection.Validate(); validationError != nil {
		return validationError
	}
	controller.hiddenSets.For(collection).Reset()
	return nil
}

// PatchOne makes the local record equal to the mirror: a removed record is
// deleted locally, any other classified record takes the mirror's value.
func (controller *Controller) PatchOne(executionContext context.Context, report Report, identifier catalog.RecordID) (Report, error) {
	if contextError := executionContext.Err(); contextError != nil {
		return Report{}, contextError
	}
	logger := controller.operationLogger(patchOperationConstant, report.Collection, identifier)
	if pendingError := requirePendingChange(report, identifier); pendingError != nil {
		return Report{}, pendingError
	}

	var applied diff.Classification
	modifyError := controller.localStores[report.Collection].Modify(func(localRecords catalog.RecordMap) (catalog.RecordMap, error) {
		mirrorRecords, mirrorError := controller.mirrors[report.Collection].Load()
		if mirrorError != nil {
			return nil, mirrorError
		}
		if catalog.Fingerprint(mirrorRecords) != report.MirrorFingerprint {
			return nil, ErrStaleClassification
		}
		applied = diff.ClassifyOne(localRecords, mirrorRecords, identifier)
		switch applied {
		case diff.ClassificationNone:
			return nil, recordError(ErrNoPendingChange, report.Collection, identifier)
		case diff.ClassificationRemoved:
			delete(localRecords, identifier)
		default:
			localRecords[identifier] = mirrorRecords[identifier].Clone()
		}
		return localRecords, nil
	})
	if modifyError != nil {
		controller.logRefusal(logger, modifyError)
		return Report{}, modifyError
	}

	logger.Info(patchedMessageConstant, zap.String(classificationFieldConstant, string(applied)))
	return controller.Classify(report.Collection)
}

// PatchMany patches each identifier in order, each with its own write.
func (controller *Controller) PatchMany(executionContext context.Context, report Report, identifiers []catalog.RecordID) (Report, error) {
	return controller.applyMany(executionContext, report, identifiers, controller.PatchOne)
}

// PublishOne pushes the local value of identifier to the remote: an added
// record is removed from the remote, any other classified record takes the
// local value. A fresh pull must succeed first and must not change the
// collection; the mirror must still match the report.
func (controller *Controller) PublishOne(executionContext context.Context, report Report, identifier catalog.RecordID) (Report, error) {
	logger := controller.operationLogger(publishOperationConstant, report.Collection, identifier)
	if pendingError := requirePendingChange(report, identifier); pendingError != nil {
		return Report{}, pendingError
	}

	refreshResult, refreshError := controller.agent.PullAndRefreshMirror(executionContext, catalog.AllCollections())
	if controller.remoteChanges != nil && len(refreshResult.Changed) > 0 {
		controller.remoteChanges.RecordRemoteChanges(refreshResult.Changed)
	}
	if refreshError != nil {
		return Report{}, refreshError
	}
	if !refreshResult.Reachable {
		logger.Info(unreachableMessageConstant)
		return Report{}, ErrRemoteUnreachable
	}
	if refreshResult.HasChanged(report.Collection) || controller.remoteChangePending(report.Collection) {
		logger.Info(staleMessageConstant)
		return Report{}, ErrStaleClassification
	}

	localRecords, localError := controller.localStores[report.Collection].Load()
	if localError != nil {
		return Report{}, localError
	}

	var applied diff.Classification
	_, publishError := controller.agent.Publish(executionContext, report.Collection, func(mirrorRecords catalog.RecordMap) (catalog.RecordMap, error) {
		if catalog.Fingerprint(mirrorRecords) != report.MirrorFingerprint {
			return nil, ErrStaleClassification
		}
		applied = diff.ClassifyOne(localRecords, mirrorRecords, identifier)
		switch applied {
		case diff.ClassificationNone:
			return nil, recordError(ErrNoPendingChange, report.Collection, identifier)
		case diff.ClassificationAdded:
			delete(mirrorRecords, identifier)
		default:
			mirrorRecords[identifier] = localRecords[identifier].Clone()
		}
		return mirrorRecords, nil
	})
	if publishError != nil {
		controller.logRefusal(logger, publishError)
		return Report{}, publishError
	}

	logger.Info(publishedMessageConstant, zap.String(classificationFieldConstant, string(applied)))
	return controller.Classify(report.Collection)
}

// PublishMany publishes each identifier in order. Every publish runs its own
// pull and commit and is validated against the report returned by the
// previous one.
func (controller *Controller) PublishMany(executionContext context.Context, report Report, identifiers []catalog.RecordID) (Report, error) {
	return controller.applyMany(executionContext, report, identifiers, controller.PublishOne)
}

// DuplicateOne copies the local record identifier under a fresh identifier
// above every identifier of the local and mirror snapshots. Only the local
// snapshot changes.
func (controller *Controller) DuplicateOne(collection catalog.Collection, identifier catalog.RecordID) (catalog.RecordID, error) {
	if validationError := collection.Validate(); validationError != nil {
		return 0, validationError
	}
	logger := controller.operationLogger(duplicateOperationConstant, collection, identifier)

	var duplicateIdentifier catalog.RecordID
	modifyError := controller.localStores[collection].Modify(func(localRecords catalog.RecordMap) (catalog.RecordMap, error) {
		record, exists := localRecords[identifier]
		if !exists {
			return nil, recordError(ErrRecordNotFound, collection, identifier)
		}
		mirrorRecords, mirrorError := controller.mirrors[collection].Load()
		if mirrorError != nil {
			return nil, mirrorError
		}
		highestIdentifier := localRecords.MaxID()
		if mirrorHighest := mirrorRecords.MaxID(); mirrorHighest > highestIdentifier {
			highestIdentifier = mirrorHighest
		}
		duplicateIdentifier = highestIdentifier + 1
		localRecords[duplicateIdentifier] = record.Clone()
		return localRecords, nil
	})
	if modifyError != nil {
		return 0, modifyError
	}
	logger.Info(duplicatedMessageConstant, zap.Int(newRecordIDFieldConstant, int(duplicateIdentifier)))
	return duplicateIdentifier, nil
}

// CompareRecord lists the field changes from the mirror record to the local
// record for display.
func (controller *Controller) CompareRecord(collection catalog.Collection, identifier catalog.RecordID) ([]catalog.FieldChange, error) {
	if validationError := collection.Validate(); validationError != nil {
		return nil, validationError
	}
	localRecords, localError := controller.localStores[collection].Load()
	if localError != nil {
		return nil, localError
	}
	mirrorRecords, mirrorError := controller.mirrors[collection].Load()
	if mirrorError != nil {
		return nil, mirrorError
	}
	localRecord, inLocal := localRecords[identifier]
	mirrorRecord, inMirror := mirrorRecords[identifier]
	if !inLocal && !inMirror {
		return nil, recordError(ErrRecordNotFound, collection, identifier)
	}
	return catalog.CompareFields(mirrorRecord, localRecord), nil
}

type singleOperation func(executionContext context.Context, report Report, identifier catalog.RecordID) (Report, error)

func (controller *Controller) applyMany(executionContext context.Context, report Report, identifiers []catalog.RecordID, operation singleOperation) (Report, error) {
	currentReport := report
	applied := make([]catalog.RecordID, 0, len(identifiers))
	for _, identifier := range identifiers {
		nextReport, operationError := operation(executionContext, currentReport, identifier)
		if operationError != nil {
			return currentReport, BatchError{FailedID: identifier, Applied: applied, Cause: operationError}
		}
		applied = append(applied, identifier)
		currentReport = nextReport
	}
	return currentReport, nil
}

// requirePendingChange rejects reports that cannot be acted on. A report
// computed from a corrupt mirror is stale by construction.
func requirePendingChange(report Report, identifier catalog.RecordID) error {
	if validationError := report.Collection.Validate(); validationError != nil {
		return validationError
	}
	if report.MirrorCorrupt {
		return ErrStaleClassification
	}
	if report.Classification(identifier) == diff.ClassificationNone {
		return recordError(ErrNoPendingChange, report.Collection, identifier)
	}
	return nil
}

func (controller *Controller) remoteChangePending(collection catalog.Collection) bool {
	return controller.remoteChanges != nil && controller.remoteChanges.RemoteChanged(collection)
}

func (controller *Controller) operationLogger(operation string, collection catalog.Collection, identifier catalog.RecordID) *zap.Logger {
	return controller.logger.With(
		zap.String(operationIDFieldConstant, uuid.NewString()),
		zap.String(operationFieldConstant, operation),
		zap.String(collectionFieldConstant, collection.String()),
		zap.Int(recordIDFieldConstant, int(identifier)),
	)
}

func (controller *Controller) logRefusal(logger *zap.Logger, operationError error) {
	if errors.Is(operationError, ErrStaleClassification) {
		logger.Info(staleMessageConstant)
	}
}
