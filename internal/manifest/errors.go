package manifest

import (
	"errors"
	"fmt"
)

const (
	manifestNotFoundMessageConstant  = "manifest not found"
	manifestParseMessageConstant     = "manifest parse error"
	manifestNotFoundTemplateConstant = "manifest not found: %s"
	manifestParseTemplateConstant    = "manifest %s is malformed: %s"
)

var (
	// ErrManifestNotFound matches ManifestNotFoundError.
	ErrManifestNotFound = errors.New(manifestNotFoundMessageConstant)
	// ErrManifestParse matches ManifestParseError.
	ErrManifestParse = errors.New(manifestParseMessageConstant)
)

// ManifestNotFoundError reports an absent manifest file.
type ManifestNotFoundError struct {
	Path string
}

// Error describes the missing manifest.
func (notFoundError ManifestNotFoundError) Error() string {
	return fmt.Sprintf(manifestNotFoundTemplateConstant, notFoundError.Path)
}

// Is reports whether the target is ErrManifestNotFound.
func (notFoundError ManifestNotFoundError) Is(target error) bool {
	return target == ErrManifestNotFound
}

// ManifestParseError reports malformed markup or missing required attributes.
type ManifestParseError struct {
	Path   string
	Reason string
}

// Error describes the malformed manifest.
func (parseError ManifestParseError) Error() string {
	return fmt.Sprintf(manifestParseTemplateConstant, parseError.Path, parseError.Reason)
}

// Is reports whether the target is ErrManifestParse.
func (parseError ManifestParseError) Is(target error) bool {
	return target == ErrManifestParse
}
