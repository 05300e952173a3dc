package audit

import (
	"strings"
	"time"

	"github.com/temirov/treediff/internal/commits"
	"github.com/temirov/treediff/internal/manifest"
	"github.com/temirov/treediff/internal/progress"
	"github.com/temirov/treediff/internal/scan"
)

const (
	defaultStorePathConstant          = ".treediff/treediff.db"
	defaultScanTimeoutConstant        = 5 * time.Minute
	configurationKeySeparatorConstant = "."
	storeSectionKeyConstant           = "store"
	manifestSectionKeyConstant        = "manifest"
	scanSectionKeyConstant            = "scan"
	progressSectionKeyConstant        = "progress"
	storePathKeyConstant              = "path"
	manifestPathKeyConstant           = "path"
	scanWorkersKeyConstant            = "workers"
	scanMaxCountKeyConstant           = "max_count"
	scanTimeoutKeyConstant            = "timeout"
	scanBackendKeyConstant            = "backend"
	scanIdentifierKeysKeyConstant     = "identifier_keys"
	progressBufferKeyConstant         = "buffer"
)

// CommandConfiguration captures persistent settings for the audit commands.
type CommandConfiguration struct {
	Store    StoreConfiguration    `mapstructure:"store"`
	Manifest ManifestConfiguration `mapstructure:"manifest"`
	Scan     ScanConfiguration     `mapstructure:"scan"`
	Progress ProgressConfiguration `mapstructure:"progress"`
}

// StoreConfiguration locates the SQLite database.
type StoreConfiguration struct {
	Path string `mapstructure:"path"`
}

// ManifestConfiguration locates the manifest inside each tree root.
type ManifestConfiguration struct {
	Path string `mapstructure:"path"`
}

// ScanConfiguration tunes commit extraction.
type ScanConfiguration struct {
	Workers        int           `mapstructure:"workers"`
	MaxCount       int           `mapstructure:"max_count"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Backend        string        `mapstructure:"backend"`
	IdentifierKeys []string      `mapstructure:"identifier_keys"`
}

// ProgressConfiguration sizes per-subscriber progress queues.
type ProgressConfiguration struct {
	Buffer int `mapstructure:"buffer"`
}

// DefaultCommandConfiguration returns baseline configuration values for the audit commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Store:    StoreConfiguration{Path: defaultStorePathConstant},
		Manifest: ManifestConfiguration{Path: manifest.DefaultManifestRelativePath},
		Scan: ScanConfiguration{
			Workers:        scan.DefaultWorkers,
			MaxCount:       0,
			Timeout:        defaultScanTimeoutConstant,
			Backend:        string(commits.BackendCommand),
			IdentifierKeys: []string{commits.ChangeIDTrailerKey},
		},
		Progress: ProgressConfiguration{Buffer: progress.DefaultSubscriberBuffer},
	}
}

// DefaultConfigurationValues flattens the defaults into viper keys below rootKey.
// An empty rootKey places the sections at the top level.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	prefix := ""
	if trimmedRootKey := strings.TrimSpace(rootKey); len(trimmedRootKey) > 0 {
		prefix = trimmedRootKey + configurationKeySeparatorConstant
	}
	return map[string]any{
		prefix + joinKey(storeSectionKeyConstant, storePathKeyConstant):         defaults.Store.Path,
		prefix + joinKey(manifestSectionKeyConstant, manifestPathKeyConstant):   defaults.Manifest.Path,
		prefix + joinKey(scanSectionKeyConstant, scanWorkersKeyConstant):        defaults.Scan.Workers,
		prefix + joinKey(scanSectionKeyConstant, scanMaxCountKeyConstant):       defaults.Scan.MaxCount,
		prefix + joinKey(scanSectionKeyConstant, scanTimeoutKeyConstant):        defaults.Scan.Timeout.String(),
		prefix + joinKey(scanSectionKeyConstant, scanBackendKeyConstant):        defaults.Scan.Backend,
		prefix + joinKey(scanSectionKeyConstant, scanIdentifierKeysKeyConstant): defaults.Scan.IdentifierKeys,
		prefix + joinKey(progressSectionKeyConstant, progressBufferKeyConstant): defaults.Progress.Buffer,
	}
}

// sanitize trims whitespace and restores defaults for unset or invalid values.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.Store.Path = strings.TrimSpace(configuration.Store.Path)
	if len(sanitized.Store.Path) == 0 {
		sanitized.Store.Path = defaults.Store.Path
	}

	sanitized.Manifest.Path = strings.TrimSpace(configuration.Manifest.Path)
	if len(sanitized.Manifest.Path) == 0 {
		sanitized.Manifest.Path = defaults.Manifest.Path
	}

	if sanitized.Scan.Workers <= 0 {
		sanitized.Scan.Workers = defaults.Scan.Workers
	}
	if sanitized.Scan.MaxCount < 0 {
		sanitized.Scan.MaxCount = 0
	}
	if sanitized.Scan.Timeout < 0 {
		sanitized.Scan.Timeout = 0
	}
	sanitized.Scan.Backend = strings.ToLower(strings.TrimSpace(configuration.Scan.Backend))
	if len(sanitized.Scan.Backend) == 0 {
		sanitized.Scan.Backend = defaults.Scan.Backend
	}
	sanitized.Scan.IdentifierKeys = sanitizeKeys(configuration.Scan.IdentifierKeys)
	if len(sanitized.Scan.IdentifierKeys) == 0 {
		sanitized.Scan.IdentifierKeys = defaults.Scan.IdentifierKeys
	}

	if sanitized.Progress.Buffer <= 0 {
		sanitized.Progress.Buffer = defaults.Progress.Buffer
	}

	return sanitized
}

func sanitizeKeys(raw []string) []string {
	sanitized := make([]string, 0, len(raw))
	for _, candidate := range raw {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}

func joinKey(section string, key string) string {
	return section + configurationKeySeparatorConstant + key
}
