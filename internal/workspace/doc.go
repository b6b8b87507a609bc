// Package workspace assembles the catalogue synchronization components from
// configuration: snapshot stores, the git agent, the change controller, the
// poller, and the local snapshot watcher.
package workspace
