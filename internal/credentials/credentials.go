// Package credentials produces the two credentials of a provisioned project:
// an API key restricted to one service, and a service account key file.
// The branches are independent; one failing never stops the other.
package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
	"github.com/runvoy/keyforge/internal/logger"
	"github.com/runvoy/keyforge/internal/retry"
)

// Kind tags a Credential.
type Kind string

// Credential kinds.
const (
	KindAPIKey            Kind = "api_key"
	KindServiceAccountKey Kind = "service_account_key"
)

// Credential is either an APIKey or a ServiceAccountKey.
type Credential interface {
	Kind() Kind
}

// APIKey is a created API key. Name is the key resource name when known.
type APIKey struct {
	Value string
	Name  string
}

// Kind implements Credential.
func (APIKey) Kind() Kind { return KindAPIKey }

// ServiceAccountKey is a key file written to disk. StaleKeyIDs lists keys
// left on the account by failed attempts that could not be deleted.
type ServiceAccountKey struct {
	FilePath            string
	ServiceAccountEmail string
	StaleKeyIDs         []string
}

// Kind implements Credential.
func (ServiceAccountKey) Kind() Kind { return KindServiceAccountKey }

// RoleBinding grants Role on ProjectID to a service account.
type RoleBinding struct {
	ServiceAccountEmail string
	ProjectID           string
	Role                string
}

// Member returns the IAM member string of the bound account.
func (b RoleBinding) Member() string {
	return "serviceAccount:" + b.ServiceAccountEmail
}

// BindingResult is the outcome of one role binding.
type BindingResult struct {
	RoleBinding
	Err error
}

// Outcome collects both branches. A nil credential has its error set.
type Outcome struct {
	APIKey            *APIKey
	APIKeyErr         error
	ServiceAccount    *ServiceAccountKey
	ServiceAccountErr error
	Bindings          []BindingResult
}

// BindingFailures returns the number of roles that could not be bound.
func (o Outcome) BindingFailures() int {
	n := 0
	for _, b := range o.Bindings {
		if b.Err != nil {
			n++
		}
	}
	return n
}

// Credentials returns the produced credentials.
func (o Outcome) Credentials() []Credential {
	var creds []Credential
	if o.APIKey != nil {
		creds = append(creds, *o.APIKey)
	}
	if o.ServiceAccount != nil {
		creds = append(creds, *o.ServiceAccount)
	}
	return creds
}

// Client is the subset of the control plane the extractor needs.
type Client interface {
	controlplane.IAMClient
	controlplane.APIKeyClient
}

// Config fixes what the extractor creates.
type Config struct {
	ServiceAccountName        string
	ServiceAccountDisplayName string
	Roles                     []string
	APIKeyDisplayName         string
	APIKeyTargetService       string
	// KeyDir receives service account key files. It is created owner-only.
	KeyDir string
	// Parallel runs both branches concurrently.
	Parallel bool
}

// Extractor runs the credential branches.
type Extractor struct {
	client   Client
	executor *retry.Executor
	fs       afero.Fs
	decoder  Decoder
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// NewExtractor creates an Extractor. A nil decoder selects one per payload;
// a nil logger discards output.
func NewExtractor(
	client Client,
	executor *retry.Executor,
	fs afero.Fs,
	decoder Decoder,
	cfg Config,
	log *slog.Logger,
) *Extractor {
	if decoder == nil {
		decoder = AutoDecoder{}
	}
	if log == nil {
		log = logger.Discard()
	}
	if cfg.ServiceAccountName == "" {
		cfg.ServiceAccountName = constants.DefaultServiceAccountName
	}
	if cfg.ServiceAccountDisplayName == "" {
		cfg.ServiceAccountDisplayName = constants.ProjectName + " service account"
	}
	return &Extractor{
		client:   client,
		executor: executor,
		fs:       fs,
		decoder:  decoder,
		cfg:      cfg,
		now:      time.Now,
		logger:   log,
	}
}

// ExtractAll runs both branches and waits for both. The error is non-nil only
// when the operator aborted; branch failures are reported in the Outcome.
func (e *Extractor) ExtractAll(ctx context.Context, projectID string) (Outcome, error) {
	var out Outcome

	apiKeyBranch := func() error {
		out.APIKey, out.APIKeyErr = e.CreateAPIKey(ctx, projectID)
		if retry.IsAborted(out.APIKeyErr) {
			return out.APIKeyErr
		}
		return nil
	}
	serviceAccountBranch := func() error {
		out.ServiceAccount, out.Bindings, out.ServiceAccountErr = e.CreateServiceAccountKey(ctx, projectID)
		if retry.IsAborted(out.ServiceAccountErr) {
			return out.ServiceAccountErr
		}
		return nil
	}

	if !e.cfg.Parallel {
		if err := apiKeyBranch(); err != nil {
			return out, err
		}
		return out, serviceAccountBranch()
	}

	// A plain group: a failing branch must not cancel the other.
	var g errgroup.Group
	g.Go(apiKeyBranch)
	g.Go(serviceAccountBranch)
	return out, g.Wait()
}

// ServiceAccountEmail returns the deterministic email of the account.
func ServiceAccountEmail(name, projectID string) string {
	return fmt.Sprintf("%s@%s.%s", name, projectID, constants.ServiceAccountDomainSuffix)
}
