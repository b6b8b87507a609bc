// Package diff classifies the differences between the local and mirror
// snapshots of a collection and tracks the records a user chose to hide.
package diff
