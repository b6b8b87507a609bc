// Package gitrepo interprets git remote URLs so callers can pick the
// transport settings a clone needs and log remotes without leaking
// credentials.
package gitrepo
