// Package shared defines the vocabulary exchanged between the treediff
// scanning, reconciliation, and persistence packages: trees, sub-projects,
// commit records, and classification tags.
package shared
