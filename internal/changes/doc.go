// Package changes applies user decisions (hide, patch, publish, duplicate) to
// the local, mirror and remote snapshots of a collection. Every operation that
// acts on a classification validates that the mirror it was computed from is
// still current before mutating anything.
package changes
