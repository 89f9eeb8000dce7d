package constants

// ConfigDirPermissions is the file system permissions for config directory (0750).
const ConfigDirPermissions = 0o750

// ConfigFilePermissions is the file system permissions for config file (0600).
const ConfigFilePermissions = 0o600

// KeyDirPermissions is the mode of the root key-output directory and of every
// per-run archive directory. Owner only.
const KeyDirPermissions = 0o700

// CredentialFilePermissions is the mode every credential file is set to right
// after it is written. Never group or world readable.
const CredentialFilePermissions = 0o600

// ArchiveTimestampLayout names per-run archive directories.
const ArchiveTimestampLayout = "2006-01-02_15-04-05"

// KeyFileTimestampLayout is appended to service-account key file names.
const KeyFileTimestampLayout = "20060102-150405"

// ArchiveManifestName is the run summary written into each archive directory.
const ArchiveManifestName = "summary.yaml"

// APIKeyFileName holds the API key value inside the archive directory.
const APIKeyFileName = "api-key.txt"
