package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/api/apikeys/v2"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
	"github.com/runvoy/keyforge/internal/retry"
)

type defaultAPIKeysClient struct {
	service *apikeys.Service
}

// CreateAPIKey creates a key restricted to targetService and returns the key
// resource as JSON, with keyString populated. The key id is derived from the
// display name; when a previous attempt already created it, the existing key
// is returned instead of a second one.
func (c *defaultAPIKeysClient) CreateAPIKey(
	ctx context.Context,
	projectID, displayName, targetService string,
) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.APIKeyOperationTimeout)
	defer cancel()

	parent := fmt.Sprintf("projects/%s/locations/%s", projectID, constants.APIKeysLocation)
	keyID := controlplane.APIKeyID(displayName)
	key := &apikeys.V2Key{
		DisplayName: displayName,
		Restrictions: &apikeys.V2Restrictions{
			ApiTargets: []*apikeys.V2ApiTarget{{Service: targetService}},
		},
	}

	op, err := c.service.Projects.Locations.Keys.Create(parent, key).KeyId(keyID).Context(ctx).Do()
	if controlplane.IsAlreadyExists(err) {
		return c.existingKey(ctx, parent+"/keys/"+keyID)
	}
	if err != nil {
		return nil, wrapError("create api key", err)
	}

	if !op.Done {
		op, err = c.waitForOperation(ctx, op.Name)
		if err != nil {
			return nil, wrapError("wait for api key creation", err)
		}
	}
	if op.Error != nil {
		return nil, errors.New("create api key: operation error: " + op.Error.Message)
	}

	var created apikeys.V2Key
	if err := json.Unmarshal(op.Response, &created); err != nil {
		return nil, retry.Fatal(fmt.Errorf("decode api key operation response: %w", err))
	}
	if created.Name == "" {
		created.Name = parent + "/keys/" + keyID
	}

	return c.withKeyString(ctx, &created)
}

func (c *defaultAPIKeysClient) existingKey(ctx context.Context, name string) ([]byte, error) {
	existing, err := c.service.Projects.Locations.Keys.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("get existing api key", err)
	}
	return c.withKeyString(ctx, existing)
}

func (c *defaultAPIKeysClient) withKeyString(ctx context.Context, key *apikeys.V2Key) ([]byte, error) {
	if key.KeyString == "" {
		resp, err := c.service.Projects.Locations.Keys.GetKeyString(key.Name).Context(ctx).Do()
		if err != nil {
			return nil, wrapError("get api key string", err)
		}
		key.KeyString = resp.KeyString
	}
	return json.Marshal(key)
}

func (c *defaultAPIKeysClient) waitForOperation(ctx context.Context, name string) (*apikeys.Operation, error) {
	var done *apikeys.Operation
	err := pollOperation(ctx, constants.OperationPollInterval, func(ctx context.Context) (bool, error) {
		op, err := c.service.Operations.Get(name).Context(ctx).Do()
		if err != nil {
			return false, wrapError("poll api keys operation", err)
		}
		if op.Done {
			done = op
		}
		return op.Done, nil
	})
	return done, err
}
