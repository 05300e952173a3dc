package shared

import (
	"fmt"
	"strings"
	"time"
)

const (
	referenceTreeStringConstant          = "reference"
	derivativeTreeStringConstant         = "derivative"
	sharedClassificationStringConstant   = "shared"
	referenceOnlyClassificationConstant  = "reference_only"
	derivativeOnlyClassificationConstant = "derivative_only"
	unsupportedTreeTemplateConstant      = "unsupported tree: %q"
	commitURLTemplateConstant            = "%s/%s/commit/%s"
)

// Tree identifies one manifest-managed collection of sub-projects.
type Tree string

// Supported trees.
const (
	TreeReference  Tree = Tree(referenceTreeStringConstant)
	TreeDerivative Tree = Tree(derivativeTreeStringConstant)
)

// Trees lists the supported trees in scanning order.
func Trees() []Tree {
	return []Tree{TreeReference, TreeDerivative}
}

// ParseTree converts user input into a Tree.
func ParseTree(value string) (Tree, error) {
	candidate := Tree(strings.ToLower(strings.TrimSpace(value)))
	if validationError := candidate.Validate(); validationError != nil {
		return "", validationError
	}
	return candidate, nil
}

// Validate reports whether the tree is one of the supported values.
func (tree Tree) Validate() error {
	switch tree {
	case TreeReference, TreeDerivative:
		return nil
	default:
		return fmt.Errorf(unsupportedTreeTemplateConstant, string(tree))
	}
}

// Classification is the source tag assigned to a commit by reconciliation.
type Classification string

// Supported classifications. ClassificationUnset marks records reconciliation has not visited yet.
const (
	ClassificationUnset          Classification = Classification("")
	ClassificationShared         Classification = Classification(sharedClassificationStringConstant)
	ClassificationReferenceOnly  Classification = Classification(referenceOnlyClassificationConstant)
	ClassificationDerivativeOnly Classification = Classification(derivativeOnlyClassificationConstant)
)

// OnlyClassification returns the exclusive tag belonging to the tree.
func OnlyClassification(tree Tree) Classification {
	if tree == TreeDerivative {
		return ClassificationDerivativeOnly
	}
	return ClassificationReferenceOnly
}

// ParseClassification converts user input into a Classification.
func ParseClassification(value string) (Classification, bool) {
	switch candidate := Classification(strings.ToLower(strings.TrimSpace(value))); candidate {
	case ClassificationShared, ClassificationReferenceOnly, ClassificationDerivativeOnly:
		return candidate, true
	default:
		return ClassificationUnset, false
	}
}

// SubProject describes one independently version-controlled directory within a tree.
type SubProject struct {
	Tree         Tree
	Name         string
	Path         string
	RelativePath string
	RemoteName   string
	RemoteURL    string
}

// CommitURL builds the browsable commit link for the sub-project remote.
func (subProject SubProject) CommitURL(hash string) string {
	return BuildCommitURL(subProject.RemoteURL, subProject.Name, hash)
}

// BuildCommitURL joins a remote fetch URL, project name, and hash into a commit link.
func BuildCommitURL(remoteURL string, projectName string, hash string) string {
	if len(strings.TrimSpace(remoteURL)) == 0 || len(hash) == 0 {
		return ""
	}
	return fmt.Sprintf(commitURLTemplateConstant, remoteURL, projectName, hash)
}

// CommitRecord captures one commit extracted from a sub-project history.
type CommitRecord struct {
	Tree           Tree
	Project        string
	Hash           string
	Identifier     string
	ReviewedOn     string
	Author         string
	AuthorEmail    string
	AuthoredAt     time.Time
	Subject        string
	Message        string
	Classification Classification
}

// HasIdentifier reports whether the commit carries a logical change identifier.
func (record CommitRecord) HasIdentifier() bool {
	return len(record.Identifier) > 0
}

// RecordKey identifies a commit record; hashes are unique only within a tree.
type RecordKey struct {
	Tree Tree
	Hash string
}

// Key returns the record key.
func (record CommitRecord) Key() RecordKey {
	return RecordKey{Tree: record.Tree, Hash: record.Hash}
}

// SkippedSubProject records a sub-project that could not be scanned and why.
type SkippedSubProject struct {
	Tree   Tree   `yaml:"tree"`
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Reason string `yaml:"reason"`
}

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
