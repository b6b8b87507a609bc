// Package catalog defines the shared record model for the auditing catalogue:
// collections, record identifiers, records, their canonical JSON encoding and
// the fingerprint used to detect stale classifications.
package catalog
