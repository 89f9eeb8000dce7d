package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/runvoy/keyforge/internal/constants"
	"github.com/runvoy/keyforge/internal/controlplane"
	appErrors "github.com/runvoy/keyforge/internal/errors"
	"github.com/runvoy/keyforge/internal/logger"
	"github.com/runvoy/keyforge/internal/retry"
)

// CreateServiceAccountKey ensures the service account exists, binds every
// configured role and writes a new key file. Binding failures are recorded
// in the returned results and do not fail the branch.
func (e *Extractor) CreateServiceAccountKey(
	ctx context.Context,
	projectID string,
) (*ServiceAccountKey, []BindingResult, error) {
	email := ServiceAccountEmail(e.cfg.ServiceAccountName, projectID)
	log := logger.DeriveRunLogger(ctx, e.logger).With("service_account", email)

	if err := e.ensureServiceAccount(ctx, log, projectID, email); err != nil {
		return nil, nil, err
	}

	bindings, err := e.bindRoles(ctx, log, projectID, email)
	if err != nil {
		return nil, bindings, err
	}

	attempts := 0
	data, err := retry.Do(ctx, e.executor, func(ctx context.Context) ([]byte, error) {
		attempts++
		return e.client.CreateServiceAccountKey(ctx, projectID, email)
	})
	if retry.IsAborted(err) {
		return nil, bindings, err
	}
	if err != nil {
		log.Error("service account key creation failed", "error", err)
		return nil, bindings, appErrors.ErrServiceAccount("service account key creation failed", err)
	}

	var stale []string
	if attempts > 1 {
		stale = e.pruneStaleKeys(ctx, log, projectID, email, data)
	}

	path, err := e.writeKeyFile(projectID, data)
	if err != nil {
		log.Error("failed to write service account key", "error", err)
		return nil, bindings, appErrors.ErrServiceAccount("failed to write service account key", err)
	}

	log.Info("service account key written", "path", path)
	return &ServiceAccountKey{FilePath: path, ServiceAccountEmail: email, StaleKeyIDs: stale}, bindings, nil
}

// pruneStaleKeys deletes keys created by attempts whose response never
// arrived and returns the ids it could not delete. The account lives in the
// project of this run, so any other user-managed key on it is such a key.
func (e *Extractor) pruneStaleKeys(ctx context.Context, log *slog.Logger, projectID, email string, keyFile []byte) []string {
	var created struct {
		PrivateKeyID string `json:"private_key_id"`
	}
	if err := json.Unmarshal(keyFile, &created); err != nil || created.PrivateKeyID == "" {
		log.Warn("created key has no id, stale keys are kept", "error", err)
		return nil
	}

	ids, err := retry.Do(ctx, e.executor, func(ctx context.Context) ([]string, error) {
		return e.client.ListServiceAccountKeys(ctx, projectID, email)
	})
	if err != nil {
		log.Warn("listing service account keys failed, stale keys are kept", "error", err)
		return nil
	}

	var remaining []string
	for _, id := range ids {
		if id == created.PrivateKeyID {
			continue
		}
		err := e.executor.Run(ctx, func(ctx context.Context) error {
			return e.client.DeleteServiceAccountKey(ctx, projectID, email, id)
		})
		if err != nil {
			log.Warn("failed to delete stale service account key", "key_id", id, "error", err)
			remaining = append(remaining, id)
			continue
		}
		log.Info("deleted stale service account key", "key_id", id)
	}
	return remaining
}

func (e *Extractor) ensureServiceAccount(ctx context.Context, log *slog.Logger, projectID, email string) error {
	exists, err := retry.Do(ctx, e.executor, func(ctx context.Context) (bool, error) {
		return e.client.ServiceAccountExists(ctx, projectID, email)
	})
	if retry.IsAborted(err) {
		return err
	}
	if err != nil {
		return appErrors.ErrServiceAccount("failed to check service account", err)
	}
	if exists {
		log.Debug("service account already exists")
		return nil
	}

	err = e.executor.Run(ctx, func(ctx context.Context) error {
		_, err := e.client.CreateServiceAccount(ctx, projectID, e.cfg.ServiceAccountName, e.cfg.ServiceAccountDisplayName)
		return err
	})
	if retry.IsAborted(err) {
		return err
	}
	// A retried create can observe its own earlier success.
	if err != nil && !errors.Is(err, controlplane.ErrAlreadyExists) {
		return appErrors.ErrServiceAccount("failed to create service account", err)
	}

	log.Info("service account created")
	return nil
}

func (e *Extractor) bindRoles(ctx context.Context, log *slog.Logger, projectID, email string) ([]BindingResult, error) {
	results := make([]BindingResult, 0, len(e.cfg.Roles))

	for _, role := range e.cfg.Roles {
		binding := RoleBinding{ServiceAccountEmail: email, ProjectID: projectID, Role: role}

		err := e.executor.Run(ctx, func(ctx context.Context) error {
			return e.client.BindRole(ctx, projectID, binding.Member(), role)
		})
		if retry.IsAborted(err) {
			return results, err
		}
		if err != nil {
			log.Warn("failed to bind role", "role", role, "error", err)
			err = appErrors.ErrRoleBinding("failed to bind "+role, err)
		} else {
			log.Debug("role bound", "role", role)
		}
		results = append(results, BindingResult{RoleBinding: binding, Err: err})
	}

	return results, nil
}

// writeKeyFile writes data to a new owner-only file in the key directory and
// returns its path.
func (e *Extractor) writeKeyFile(projectID string, data []byte) (string, error) {
	if err := ensurePrivateDir(e.fs, e.cfg.KeyDir); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s.json", projectID, e.now().Format(constants.KeyFileTimestampLayout))
	path := filepath.Join(e.cfg.KeyDir, name)

	f, err := e.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, constants.CredentialFilePermissions)
	if err != nil {
		return "", fmt.Errorf("create key file: %w", err)
	}
	// Force the mode before any byte is written.
	if err := e.fs.Chmod(path, constants.CredentialFilePermissions); err != nil {
		_ = f.Close()
		_ = e.fs.Remove(path)
		return "", fmt.Errorf("restrict key file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = e.fs.Remove(path)
		return "", fmt.Errorf("write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = e.fs.Remove(path)
		return "", fmt.Errorf("close key file: %w", err)
	}

	return path, nil
}

// ensurePrivateDir creates dir with owner-only access. An existing directory
// is left as it is.
func ensurePrivateDir(fsys afero.Fs, dir string) error {
	_, err := fsys.Stat(dir)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat key directory: %w", err)
	}

	if err := fsys.MkdirAll(dir, constants.KeyDirPermissions); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := fsys.Chmod(dir, constants.KeyDirPermissions); err != nil {
		return fmt.Errorf("restrict key directory: %w", err)
	}
	return nil
}
