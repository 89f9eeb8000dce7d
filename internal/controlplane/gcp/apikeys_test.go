package gcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/apikeys/v2"
	"google.golang.org/api/option"
)

const testKeyName = "projects/kf-1a2b3c4d/locations/global/keys/keyforge-api-key"

type apiKeysServer struct {
	mu       sync.Mutex
	requests []string
	conflict bool
}

func (s *apiKeysServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path+"?keyId="+r.URL.Query().Get("keyId"))
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v2/projects/kf-1a2b3c4d/locations/global/keys":
		if s.conflict {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":{"code":409,"message":"key already exists","status":"ALREADY_EXISTS"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"operations/op-1","done":true,"response":{"name":"` + testKeyName + `","displayName":"keyforge-api-key"}}`))
	case r.Method == http.MethodGet && r.URL.Path == "/v2/"+testKeyName:
		_, _ = w.Write([]byte(`{"name":"` + testKeyName + `","displayName":"keyforge-api-key"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/v2/"+testKeyName+"/keyString":
		_, _ = w.Write([]byte(`{"keyString":"AIzaSyExisting0001"}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestAPIKeysClient(t *testing.T, handler http.Handler) *defaultAPIKeysClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := apikeys.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return &defaultAPIKeysClient{service: svc}
}

func TestCreateAPIKey_UsesDerivedKeyID(t *testing.T) {
	srv := &apiKeysServer{}
	client := newTestAPIKeysClient(t, srv)

	payload, err := client.CreateAPIKey(context.Background(), "kf-1a2b3c4d", "keyforge-api-key", "generativelanguage.googleapis.com")
	require.NoError(t, err)

	var key apikeys.V2Key
	require.NoError(t, json.Unmarshal(payload, &key))
	assert.Equal(t, testKeyName, key.Name)
	assert.Equal(t, "AIzaSyExisting0001", key.KeyString)
	assert.Equal(t, "POST /v2/projects/kf-1a2b3c4d/locations/global/keys?keyId=keyforge-api-key", srv.requests[0])
}

func TestCreateAPIKey_RepeatReturnsExistingKey(t *testing.T) {
	srv := &apiKeysServer{conflict: true}
	client := newTestAPIKeysClient(t, srv)

	payload, err := client.CreateAPIKey(context.Background(), "kf-1a2b3c4d", "keyforge-api-key", "generativelanguage.googleapis.com")
	require.NoError(t, err)

	var key apikeys.V2Key
	require.NoError(t, json.Unmarshal(payload, &key))
	assert.Equal(t, testKeyName, key.Name)
	assert.Equal(t, "AIzaSyExisting0001", key.KeyString)

	creates := 0
	for _, req := range srv.requests {
		if req[:4] == "POST" {
			creates++
		}
	}
	assert.Equal(t, 1, creates, "an existing key is fetched, not created again")
}
