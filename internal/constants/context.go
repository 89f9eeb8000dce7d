package constants

// ConfigCtxKeyType is the type for the config context key
type ConfigCtxKeyType string

// ConfigCtxKey is the key used to store config in context
const ConfigCtxKey ConfigCtxKeyType = "config"

// StartTimeCtxKeyType is the type for start time context keys
type StartTimeCtxKeyType string

// StartTimeCtxKey is the key used to store the start time in context
const StartTimeCtxKey StartTimeCtxKeyType = "startTime"

// RunIDLogField is the field name used for the provisioning run ID in log entries
const RunIDLogField = "run_id"

// ProjectIDLogField is the field name used for the project ID in log entries
const ProjectIDLogField = "project_id"
