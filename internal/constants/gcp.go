package constants

import "time"

const (
	// DefaultProjectPrefix is used when no naming prefix is configured.
	DefaultProjectPrefix = "kf"

	// ProjectIDMaxLength is the Google Cloud limit on project id length.
	ProjectIDMaxLength = 30

	// ProjectIDMinLength is the Google Cloud minimum project id length.
	ProjectIDMinLength = 6

	// ProjectIDSuffixLength is the number of random characters appended to the prefix.
	ProjectIDSuffixLength = 8

	// AutoBillingAccount selects the first open billing account.
	AutoBillingAccount = "auto"

	// DefaultServiceAccountName is the fixed account id of the service account
	// created in every provisioned project.
	DefaultServiceAccountName = "keyforge-sa"

	// ServiceAccountDomainSuffix completes service account emails.
	ServiceAccountDomainSuffix = "iam.gserviceaccount.com"

	// DefaultAPIKeyDisplayName is the display name given to created API keys.
	DefaultAPIKeyDisplayName = "keyforge-api-key"

	// DefaultAPIKeyTargetService is the only service created API keys may call.
	DefaultAPIKeyTargetService = "generativelanguage.googleapis.com"

	// ServiceStateEnabled is the Service Usage state of an enabled service.
	ServiceStateEnabled = "ENABLED"

	// EnabledServicesFilter is the Service Usage list filter for enabled services.
	EnabledServicesFilter = "state:ENABLED"

	// OpenBillingAccountsFilter is the Cloud Billing list filter for open accounts.
	OpenBillingAccountsFilter = "open=true"

	// APIKeysLocation is the only location API keys live in.
	APIKeysLocation = "global"

	// DefaultMaxAttempts is the number of times a remote call is attempted.
	DefaultMaxAttempts = 3

	// DefaultBackoffStep is multiplied by the attempt number between retries.
	DefaultBackoffStep = 2 * time.Second

	// DefaultBackoffJitter bounds the random delay added to each backoff.
	DefaultBackoffJitter = 500 * time.Millisecond

	// DefaultConvergencePause is slept between unlinking projects and re-linking.
	DefaultConvergencePause = 10 * time.Second

	// OperationPollInterval is the interval at which long-running operations are polled.
	OperationPollInterval = 2 * time.Second

	// ProjectOperationTimeout bounds project creation and deletion.
	ProjectOperationTimeout = 5 * time.Minute

	// ServiceUsageOperationTimeout bounds a single service enablement.
	ServiceUsageOperationTimeout = 5 * time.Minute

	// APIKeyOperationTimeout bounds API key creation.
	APIKeyOperationTimeout = 2 * time.Minute

	// IAMTimeout bounds service account and policy calls.
	IAMTimeout = 1 * time.Minute

	// BillingTimeout bounds billing calls.
	BillingTimeout = 1 * time.Minute
)

// DefaultServices are enabled on every provisioned project.
var DefaultServices = []string{
	"serviceusage.googleapis.com",
	"cloudresourcemanager.googleapis.com",
	"iam.googleapis.com",
	"apikeys.googleapis.com",
	"generativelanguage.googleapis.com",
	"aiplatform.googleapis.com",
}

// DefaultRoles are bound to the provisioned service account.
var DefaultRoles = []string{
	"roles/editor",
	"roles/aiplatform.user",
	"roles/serviceusage.serviceUsageConsumer",
	"roles/iam.serviceAccountTokenCreator",
}
