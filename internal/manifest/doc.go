// Package manifest resolves a tree's repo-tool manifest into an ordered list of
// sub-project descriptors with their remote fetch URLs.
package manifest
