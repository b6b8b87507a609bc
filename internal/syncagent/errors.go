package syncagent

import (
	"errors"
	"fmt"
)

const (
	gitExecutorMissingMessageConstant    = "git executor not configured"
	mirrorStoresMissingMessageConstant   = "mirror stores not configured"
	repositoryURLRequiredMessageConstant = "repository url must be provided"
	cloneNotInitializedMessageConstant   = "working clone not initialized"
	remoteUnreachableMessageConstant     = "remote repository unreachable"
	remoteDivergedMessageConstant        = "remote repository diverged from the working clone"
	publishUnauthorizedMessageConstant   = "publish rejected: not authorized to push"
	mirrorStoreMissingMessageConstant    = "no mirror store configured for collection"
	pushFailedErrorTemplateConstant      = "push failed: %v"
	mergedSnapshotInvalidMessageConstant = "merged remote file is not a valid snapshot"
)

// ErrGitExecutorNotConfigured indicates the git executor dependency was missing.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// ErrMirrorStoresNotConfigured indicates no mirror store was supplied.
var ErrMirrorStoresNotConfigured = errors.New(mirrorStoresMissingMessageConstant)

// ErrRepositoryURLRequired indicates the repository url option was empty.
var ErrRepositoryURLRequired = errors.New(repositoryURLRequiredMessageConstant)

// ErrCloneNotInitialized indicates an operation ran before Initialize succeeded.
var ErrCloneNotInitialized = errors.New(cloneNotInitializedMessageConstant)

// ErrRemoteUnreachable indicates the remote could not be contacted.
var ErrRemoteUnreachable = errors.New(remoteUnreachableMessageConstant)

// ErrRemoteDiverged indicates a pull produced a merge conflict. The merge is
// aborted before the error is returned.
var ErrRemoteDiverged = errors.New(remoteDivergedMessageConstant)

// ErrPublishUnauthorized indicates the remote refused the push for lack of
// authorization. The local commit has been rolled back.
var ErrPublishUnauthorized = errors.New(publishUnauthorizedMessageConstant)

// ErrMergedSnapshotInvalid indicates the pull during a publish merged the
// collection file into something that no longer decodes. Nothing was pushed
// and the clone has been rolled back.
var ErrMergedSnapshotInvalid = errors.New(mergedSnapshotInvalidMessageConstant)

// ErrMirrorStoreMissing indicates a collection without a mirror store.
var ErrMirrorStoreMissing = errors.New(mirrorStoreMissingMessageConstant)

// PushFailedError reports a push rejected for a reason other than authorization.
type PushFailedError struct {
	Cause error
}

// Error describes the rejected push.
func (pushError PushFailedError) Error() string {
	return fmt.Sprintf(pushFailedErrorTemplateConstant, pushError.Cause)
}

// Unwrap exposes the git failure.
func (pushError PushFailedError) Unwrap() error {
	return pushError.Cause
}
