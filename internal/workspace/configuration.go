package workspace

import (
	"strings"

	"github.com/temirov/catalogsync/internal/syncagent"
)

const (
	syncSectionKeyConstant          = "sync"
	storageSectionKeyConstant       = "storage"
	storageDirectoryKeyConstant     = storageSectionKeyConstant + ".directory"
	storageLockFilesKeyConstant     = storageSectionKeyConstant + ".lock_files"
	defaultStorageDirectoryConstant = "db"
	defaultStorageLockFilesConstant = true
)

// StorageConfiguration locates the local and mirror snapshots.
type StorageConfiguration struct {
	Directory string `mapstructure:"directory"`
	LockFiles bool   `mapstructure:"lock_files"`
}

// Configuration gathers the settings needed to open a Workspace.
type Configuration struct {
	Sync    syncagent.Configuration `mapstructure:"sync"`
	Storage StorageConfiguration    `mapstructure:"storage"`
}

// DefaultConfiguration returns the built-in defaults.
func DefaultConfiguration() Configuration {
	return Configuration{
		Sync:    syncagent.DefaultConfiguration(),
		Storage: StorageConfiguration{Directory: defaultStorageDirectoryConstant, LockFiles: defaultStorageLockFilesConstant},
	}
}

// DefaultConfigurationValues exposes the defaults as configuration keys.
func DefaultConfigurationValues() map[string]any {
	values := syncagent.DefaultConfigurationValues(syncSectionKeyConstant)
	values[storageDirectoryKeyConstant] = defaultStorageDirectoryConstant
	values[storageLockFilesKeyConstant] = defaultStorageLockFilesConstant
	return values
}

func (configuration StorageConfiguration) sanitize() StorageConfiguration {
	sanitized := configuration
	sanitized.Directory = strings.TrimSpace(configuration.Directory)
	if len(sanitized.Directory) == 0 {
		sanitized.Directory = defaultStorageDirectoryConstant
	}
	return sanitized
}
