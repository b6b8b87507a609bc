package syncagent

import (
	"errors"
	"strings"

	"github.com/temirov/catalogsync/internal/execshell"
)

type failureKind int

const (
	failureKindUnknown failureKind = iota
	failureKindAuthentication
	failureKindNetwork
	failureKindConflict
	failureKindNothingToCommit
)

var nothingToCommitMarkers = []string{
	"nothing to commit",
	"nothing added to commit",
	"no changes added to commit",
}

var conflictMarkers = []string{
	"conflict (",
	"automatic merge failed",
	"unmerged files",
	"you have unmerged paths",
	"would be overwritten by merge",
	"not possible to fast-forward",
}

var authenticationMarkers = []string{
	"permission denied",
	"authentication failed",
	"could not read username",
	"could not read password",
	"invalid username or password",
	"access denied",
	"not authorized",
	"unauthorized",
	"returned error: 401",
	"returned error: 403",
	"host key verification failed",
	"write access to repository not granted",
}

var networkMarkers = []string{
	"could not resolve host",
	"connection refused",
	"connection timed out",
	"operation timed out",
	"network is unreachable",
	"no route to host",
	"connection reset",
	"could not read from remote repository",
	"unable to access",
	"the remote end hung up",
	"early eof",
	"does not appear to be a git repository",
	"repository not found",
}

// classifyFailure inspects git's output to decide how a failed command should
// be treated.
func classifyFailure(failure error) failureKind {
	var failedError execshell.CommandFailedError
	if !errors.As(failure, &failedError) {
		return failureKindUnknown
	}
	output := strings.ToLower(failedError.Result.StandardError + "\n" + failedError.Result.StandardOutput)
	switch {
	case containsAny(output, nothingToCommitMarkers):
		return failureKindNothingToCommit
	case containsAny(output, conflictMarkers):
		return failureKindConflict
	case containsAny(output, authenticationMarkers):
		return failureKindAuthentication
	case containsAny(output, networkMarkers):
		return failureKindNetwork
	default:
		return failureKindUnknown
	}
}

func containsAny(output string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}
