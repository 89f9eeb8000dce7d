package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
)

const testAccount = "0123AB-CDEF01-234567"

func newControlPlane(linkCap int) *ControlPlane {
	cp := New()
	cp.AddBillingAccount(controlplane.BillingAccount{ID: testAccount, DisplayName: "Primary", Open: true}, linkCap)
	cp.AddBillingAccount(controlplane.BillingAccount{ID: "CLOSED-000000-000000", Open: false}, 0)
	return cp
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	cp := New()

	require.NoError(t, cp.CreateProject(ctx, "kf-abcdef12"))

	err := cp.CreateProject(ctx, "kf-abcdef12")
	assert.ErrorIs(t, err, controlplane.ErrAlreadyExists)

	err = cp.CreateProject(ctx, "Bad_ID")
	assert.ErrorIs(t, err, controlplane.ErrInvalidArgument)

	exists, err := cp.ProjectExists(ctx, "kf-abcdef12")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteProject_MissingIsSuccess(t *testing.T) {
	cp := New()

	assert.NoError(t, cp.DeleteProject(context.Background(), "kf-missing1"))
}

func TestLinkBilling_Cap(t *testing.T) {
	ctx := context.Background()
	cp := newControlPlane(2)
	cp.SeedProject("old-project-1", testAccount)
	cp.SeedProject("old-project-2", testAccount)
	require.NoError(t, cp.CreateProject(ctx, "kf-newproj1"))

	err := cp.LinkBilling(ctx, "kf-newproj1", testAccount)
	require.ErrorIs(t, err, controlplane.ErrQuotaExceeded)

	require.NoError(t, cp.UnlinkBilling(ctx, "old-project-1"))
	require.NoError(t, cp.LinkBilling(ctx, "kf-newproj1", testAccount))

	linked, err := cp.ListLinkedProjects(ctx, testAccount)
	require.NoError(t, err)
	assert.Equal(t, []string{"kf-newproj1", "old-project-2"}, linked)
}

func TestLinkBilling_AlreadyLinkedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cp := newControlPlane(1)
	cp.SeedProject("kf-linked01", testAccount)

	assert.NoError(t, cp.LinkBilling(ctx, "kf-linked01", testAccount))
}

func TestListOpenBillingAccounts(t *testing.T) {
	cp := newControlPlane(0)

	accounts, err := cp.ListOpenBillingAccounts(context.Background())

	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, testAccount, accounts[0].ID)
}

func TestServices(t *testing.T) {
	ctx := context.Background()
	cp := New()
	cp.SeedProject("kf-services", "", "svc-a")

	enabled, err := cp.ServiceEnabled(ctx, "kf-services", "svc-a")
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, cp.EnableService(ctx, "kf-services", "svc-b"))

	states, err := cp.ListServices(ctx, "kf-services", constants.EnabledServicesFilter)
	require.NoError(t, err)
	assert.Equal(t, []controlplane.ServiceState{{Name: "svc-a", Enabled: true}, {Name: "svc-b", Enabled: true}}, states)
	assert.Equal(t, []string{"svc-b"}, cp.Calls(OpEnableService))
}

func TestInject(t *testing.T) {
	ctx := context.Background()
	cp := New()
	cp.SeedProject("kf-inject01", "")
	boom := errors.New("boom")

	cp.Inject(Failure{Op: OpEnableService, Target: "svc-x", Err: boom, Times: 2})

	assert.ErrorIs(t, cp.EnableService(ctx, "kf-inject01", "svc-x"), boom)
	assert.NoError(t, cp.EnableService(ctx, "kf-inject01", "svc-y"))
	assert.ErrorIs(t, cp.EnableService(ctx, "kf-inject01", "svc-x"), boom)
	assert.NoError(t, cp.EnableService(ctx, "kf-inject01", "svc-x"))
	assert.Equal(t, []string{"svc-x", "svc-y", "svc-x", "svc-x"}, cp.Calls(OpEnableService))
}

func TestInject_Always(t *testing.T) {
	cp := New()
	cp.SeedProject("kf-inject02", "")
	cp.Inject(Failure{Op: OpCreateAPIKey, Err: controlplane.ErrPermissionDenied})

	for range 3 {
		_, err := cp.CreateAPIKey(context.Background(), "kf-inject02", "key", "svc")
		assert.ErrorIs(t, err, controlplane.ErrPermissionDenied)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New().CreateProject(ctx, "kf-canceled")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestServiceAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	cp := New()
	cp.SeedProject("kf-iam0001", "")

	email, err := cp.CreateServiceAccount(ctx, "kf-iam0001", "keyforge-sa", "keyforge")
	require.NoError(t, err)
	assert.Equal(t, "keyforge-sa@kf-iam0001.iam.gserviceaccount.com", email)

	_, err = cp.CreateServiceAccount(ctx, "kf-iam0001", "keyforge-sa", "keyforge")
	assert.ErrorIs(t, err, controlplane.ErrAlreadyExists)

	exists, err := cp.ServiceAccountExists(ctx, "kf-iam0001", email)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, cp.BindRole(ctx, "kf-iam0001", "serviceAccount:"+email, "roles/editor"))
	require.NoError(t, cp.BindRole(ctx, "kf-iam0001", "serviceAccount:"+email, "roles/editor"))
	assert.Equal(t, []string{"serviceAccount:" + email}, cp.Bindings("kf-iam0001", "roles/editor"))

	keyJSON, err := cp.CreateServiceAccountKey(ctx, "kf-iam0001", email)
	require.NoError(t, err)

	var key map[string]string
	require.NoError(t, json.Unmarshal(keyJSON, &key))
	assert.Equal(t, "service_account", key["type"])
	assert.Equal(t, email, key["client_email"])
}

func TestCreateAPIKey_Payload(t *testing.T) {
	ctx := context.Background()
	cp := New()
	cp.SeedProject("kf-apikey01", "")

	payload, err := cp.CreateAPIKey(ctx, "kf-apikey01", "keyforge-api-key", "generativelanguage.googleapis.com")
	require.NoError(t, err)

	var key struct {
		KeyString   string `json:"keyString"`
		DisplayName string `json:"displayName"`
	}
	require.NoError(t, json.Unmarshal(payload, &key))
	assert.Equal(t, "keyforge-api-key", key.DisplayName)
	assert.True(t, len(key.KeyString) > 4 && key.KeyString[:4] == "AIza")

	cp.SetAPIKeyPayload([]byte("keyString: raw"))
	payload, err = cp.CreateAPIKey(ctx, "kf-apikey01", "keyforge-api-key", "svc")
	require.NoError(t, err)
	assert.Equal(t, "keyString: raw", string(payload))
}

func TestCreateAPIKey_RepeatReturnsSameKey(t *testing.T) {
	ctx := context.Background()
	cp := New()
	cp.SeedProject("kf-apikey02", "")

	first, err := cp.CreateAPIKey(ctx, "kf-apikey02", "keyforge-api-key", "svc")
	require.NoError(t, err)
	second, err := cp.CreateAPIKey(ctx, "kf-apikey02", "keyforge-api-key", "svc")
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, []string{"projects/kf-apikey02/locations/global/keys/keyforge-api-key"}, cp.APIKeyNames("kf-apikey02"))
}

func TestInject_LostResponse(t *testing.T) {
	ctx := context.Background()
	cp := New()
	timeout := errors.New("deadline exceeded reading response")
	cp.Inject(Failure{Op: OpCreateProject, Err: timeout, Times: 1, Lost: true})

	assert.ErrorIs(t, cp.CreateProject(ctx, "kf-lost0001"), timeout)
	assert.True(t, cp.HasProject("kf-lost0001"), "the call took effect")
	assert.ErrorIs(t, cp.CreateProject(ctx, "kf-lost0001"), controlplane.ErrAlreadyExists)
}

func TestServiceAccountKeys(t *testing.T) {
	ctx := context.Background()
	cp := New()
	cp.SeedProject("kf-keys0001", "")
	email, err := cp.CreateServiceAccount(ctx, "kf-keys0001", "keyforge-sa", "keyforge")
	require.NoError(t, err)

	cp.Inject(Failure{Op: OpCreateServiceAccountKey, Err: errors.New("lost"), Times: 1, Lost: true})
	_, err = cp.CreateServiceAccountKey(ctx, "kf-keys0001", email)
	require.Error(t, err)
	_, err = cp.CreateServiceAccountKey(ctx, "kf-keys0001", email)
	require.NoError(t, err)

	ids, err := cp.ListServiceAccountKeys(ctx, "kf-keys0001", email)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	require.NoError(t, cp.DeleteServiceAccountKey(ctx, "kf-keys0001", email, ids[0]))
	require.NoError(t, cp.DeleteServiceAccountKey(ctx, "kf-keys0001", email, "missing"))
	assert.Equal(t, ids[1:], cp.ServiceAccountKeyIDs("kf-keys0001", email))
}
