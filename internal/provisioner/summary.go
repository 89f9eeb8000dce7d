package provisioner

import (
	"path/filepath"
	"time"

	"github.com/runvoy/keyforge/internal/activation"
	"github.com/runvoy/keyforge/internal/archive"
	"github.com/runvoy/keyforge/internal/billing"
	"github.com/runvoy/keyforge/internal/credentials"
	"github.com/runvoy/keyforge/internal/output"
)

// Summary is the result of a run.
type Summary struct {
	RunID     string
	ProjectID string
	State     State
	// Reached is the last happy-path state; it survives Failed and RolledBack.
	Reached        State
	CreatedAt      time.Time
	Elapsed        time.Duration
	BillingAccount string
	Billing        billing.Result
	Services       activation.Report
	Credentials    credentials.Outcome
	ArchiveDir     string
	Archive        archive.Result
	Aborted        bool
}

// DegradedItem is a failure the run continued past.
type DegradedItem struct {
	Item  string `yaml:"item"`
	Error string `yaml:"error"`
}

// Degraded lists every failure that did not stop the run.
func (s *Summary) Degraded() []DegradedItem {
	var items []DegradedItem
	for _, id := range s.Billing.UnlinkFailures {
		items = append(items, DegradedItem{Item: "unlink " + id, Error: "unlink failed"})
	}
	for _, res := range s.Services.Results {
		if res.Status == activation.StatusFailed {
			items = append(items, DegradedItem{Item: "service " + res.Service, Error: res.Error})
		}
	}
	if err := s.Credentials.APIKeyErr; err != nil {
		items = append(items, DegradedItem{Item: "api key", Error: err.Error()})
	}
	if err := s.Credentials.ServiceAccountErr; err != nil {
		items = append(items, DegradedItem{Item: "service account key", Error: err.Error()})
	}
	for _, b := range s.Credentials.Bindings {
		if b.Err != nil {
			items = append(items, DegradedItem{Item: "role " + b.Role, Error: b.Err.Error()})
		}
	}
	if err := s.Archive.Err; err != nil {
		items = append(items, DegradedItem{Item: "archive", Error: err.Error()})
	}
	if sa := s.Credentials.ServiceAccount; sa != nil {
		for _, id := range sa.StaleKeyIDs {
			items = append(items, DegradedItem{Item: "stale service account key " + id, Error: "could not be deleted"})
		}
	}
	for _, name := range s.Archive.Failed {
		items = append(items, DegradedItem{Item: "archive " + name, Error: "not archived"})
	}
	for _, path := range s.Archive.Leftover {
		items = append(items, DegradedItem{Item: "leftover " + path, Error: "archived copy made, original not removed"})
	}
	return items
}

// Manifest is the YAML document archived with each run. Secrets are masked.
type Manifest struct {
	RunID          string              `yaml:"run_id"`
	Project        ProjectRecord       `yaml:"project"`
	Elapsed        string              `yaml:"elapsed"`
	BillingAccount string              `yaml:"billing_account,omitempty"`
	Billing        billing.Result      `yaml:"billing"`
	Services       activation.Report   `yaml:"services"`
	Credentials    CredentialsManifest `yaml:"credentials"`
	Degraded       []DegradedItem      `yaml:"degraded,omitempty"`
	Aborted        bool                `yaml:"aborted,omitempty"`
}

// CredentialsManifest describes the produced credentials without their values.
type CredentialsManifest struct {
	APIKey              string `yaml:"api_key,omitempty"`
	APIKeyName          string `yaml:"api_key_name,omitempty"`
	ServiceAccountEmail string `yaml:"service_account,omitempty"`
	// KeyFile is relative to the archive directory.
	KeyFile    string   `yaml:"key_file,omitempty"`
	BoundRoles []string `yaml:"bound_roles,omitempty"`
}

// Manifest builds the archived form of the summary.
func (s *Summary) Manifest() Manifest {
	m := Manifest{
		RunID:          s.RunID,
		Project:        ProjectRecord{ID: s.ProjectID, State: s.State, CreatedAt: s.CreatedAt},
		Elapsed:        s.Elapsed.Round(time.Second).String(),
		BillingAccount: s.BillingAccount,
		Billing:        s.Billing,
		Services:       s.Services,
		Degraded:       s.Degraded(),
		Aborted:        s.Aborted,
	}
	if key := s.Credentials.APIKey; key != nil {
		m.Credentials.APIKey = output.Mask(key.Value)
		m.Credentials.APIKeyName = key.Name
	}
	if sa := s.Credentials.ServiceAccount; sa != nil {
		m.Credentials.ServiceAccountEmail = sa.ServiceAccountEmail
		m.Credentials.KeyFile = filepath.Base(sa.FilePath)
	}
	for _, b := range s.Credentials.Bindings {
		if b.Err == nil {
			m.Credentials.BoundRoles = append(m.Credentials.BoundRoles, b.Role)
		}
	}
	return m
}
