// Package cli constructs the catalog-sync command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives around the catalogue workspace.
package cli
