// Package syncagent owns the working clone of the remote catalogue
// repository. It clones, pulls and publishes through the git CLI, keeps the
// mirror snapshots equal to the clone after every successful pull, and reports
// remote reachability.
//
// Every operation on the clone and every mirror write is serialized by one
// mutex, so a publish never interleaves with a background refresh.
package syncagent
