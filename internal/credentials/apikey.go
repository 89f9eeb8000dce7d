package credentials

import (
	"context"
	"fmt"

	appErrors "github.com/runvoy/keyforge/internal/errors"
	"github.com/runvoy/keyforge/internal/logger"
	"github.com/runvoy/keyforge/internal/retry"
)

// CreateAPIKey creates the key and decodes its value. A failed call wraps
// ErrCallFailed; a response without a usable key wraps ErrPayloadUnparsable.
// Decoding is not retried since every retry would create another key.
func (e *Extractor) CreateAPIKey(ctx context.Context, projectID string) (*APIKey, error) {
	log := logger.DeriveRunLogger(ctx, e.logger)

	payload, err := retry.Do(ctx, e.executor, func(ctx context.Context) ([]byte, error) {
		return e.client.CreateAPIKey(ctx, projectID, e.cfg.APIKeyDisplayName, e.cfg.APIKeyTargetService)
	})
	if retry.IsAborted(err) {
		return nil, err
	}
	if err != nil {
		log.Error("api key creation failed", "error", err)
		return nil, appErrors.ErrAPIKey("api key creation failed", fmt.Errorf("%w: %w", ErrCallFailed, err))
	}

	key, err := e.decoder.Decode(payload)
	if err != nil {
		log.Error("api key created but its value could not be read", "error", err)
		return nil, appErrors.ErrAPIKey("api key response unparsable", err)
	}

	log.Info("api key created", "key_name", key.Name, "target_service", e.cfg.APIKeyTargetService)
	return &key, nil
}
