// Package poller keeps the mirror snapshots fresh by pulling the remote on a
// fixed interval and publishes reachability and change indicators to observers.
package poller
