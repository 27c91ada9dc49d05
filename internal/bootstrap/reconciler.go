// Package bootstrap seeds a fresh platform deployment from the declarative
// manifest: the owner account, the service api key, and every declared
// credential with its secrets resolved from the environment. The pass is
// idempotent; running it twice yields the same rows.
package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"flowsync/internal/cipher"
	"flowsync/pkg/logging"
	"flowsync/internal/manifest"
	"flowsync/internal/repository"
	"flowsync/internal/schema"
	"flowsync/internal/secrets"
)

// WellKnownAPIKeyID is the fixed id the service api key record lives
// under, so repeated runs find and reuse it.
const WellKnownAPIKeyID = "watch-srv-key"

const apiKeyLabel = "watch-server"

// bcryptCost matches the platform's own password hashing cost.
const bcryptCost = 10

// Options configures a bootstrap run.
type Options struct {
	OwnerEmail    string
	OwnerPassword string
	EncryptionKey string
	BaseDir       string
}

// Summary reports what a run did.
type Summary struct {
	Created int
	Updated int
	Skipped int
}

// Reconciler is the one-shot bootstrap pass.
type Reconciler struct {
	store     repository.Store
	manifests *manifest.Store
	env       secrets.Env
	logger    *logging.Logger
	opts      Options
}

// NewReconciler creates a Reconciler. env is injectable for tests.
func NewReconciler(store repository.Store, manifests *manifest.Store, env secrets.Env, logger *logging.Logger, opts Options) *Reconciler {
	return &Reconciler{store: store, manifests: manifests, env: env, logger: logger, opts: opts}
}

// Run executes the whole pass: owner account, api key, credentials.
// Connection failure, a missing encryption key with credential work
// pending, and manifest read failure abort; per-credential errors are
// logged and counted, never fatal.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	r.logger.Info("bootstrap: starting")

	if err := r.store.Ping(ctx); err != nil {
		return Summary{}, fmt.Errorf("database unreachable: %w", err)
	}

	if err := r.setupOwner(ctx); err != nil {
		return Summary{}, err
	}

	summary, err := r.materializeCredentials(ctx)
	if err != nil {
		return summary, err
	}

	r.logger.Info("bootstrap: complete (created=%d, updated=%d, skipped=%d)",
		summary.Created, summary.Updated, summary.Skipped)
	return summary, nil
}

// setupOwner creates the owner account at most once, keyed by email, and
// ensures the service api key exists and is written to the shared file.
func (r *Reconciler) setupOwner(ctx context.Context) error {
	if r.opts.OwnerEmail == "" || r.opts.OwnerPassword == "" {
		r.logger.Info("owner account setup skipped (OWNER_EMAIL or OWNER_PASSWORD not set)")
		return nil
	}

	r.logger.Info("setting up owner account: %s", r.opts.OwnerEmail)

	userID, err := r.store.FindUserIDByEmail(ctx, r.opts.OwnerEmail)
	switch {
	case err == nil:
		r.logger.Info("owner account already exists")
		if err := r.store.MarkSetupComplete(ctx); err != nil {
			return fmt.Errorf("failed to mark setup complete: %w", err)
		}
	case errors.Is(err, repository.ErrNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(r.opts.OwnerPassword), bcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash owner password: %w", err)
		}
		userID, err = r.store.CreateOwner(ctx, repository.Owner{
			Email:        r.opts.OwnerEmail,
			PasswordHash: string(hash),
			FirstName:    "Admin",
			LastName:     "User",
		})
		if err != nil {
			return fmt.Errorf("failed to create owner account: %w", err)
		}
		r.logger.Info("created owner user, personal project and ownership link")
	default:
		return fmt.Errorf("failed to look up owner account: %w", err)
	}

	return r.ensureAPIKey(ctx, userID)
}

// ensureAPIKey creates the service api key at most once under its fixed id
// and rewrites the shared file on every run so other components always
// find a valid key after restart.
func (r *Reconciler) ensureAPIKey(ctx context.Context, userID string) error {
	apiKey, err := r.store.GetAPIKey(ctx, WellKnownAPIKeyID)
	if errors.Is(err, repository.ErrNotFound) {
		apiKey = generateAPIKey()
		if err := r.store.CreateAPIKey(ctx, WellKnownAPIKeyID, userID, apiKeyLabel, apiKey); err != nil {
			return fmt.Errorf("failed to create service api key: %w", err)
		}
		r.logger.Info("created service api key")
	} else if err != nil {
		return fmt.Errorf("failed to look up service api key: %w", err)
	} else {
		r.logger.Info("service api key already exists")
	}

	keyPath := filepath.Join(r.opts.BaseDir, manifest.Dir, schema.APIKeyFileName)
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o755); err != nil {
		return fmt.Errorf("failed to create api key dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(apiKey), 0o600); err != nil {
		return fmt.Errorf("failed to write api key file: %w", err)
	}
	return nil
}

// materializeCredentials upserts every manifest-declared credential. The
// encryption key is required before any credential work begins; an absent
// manifest means there is nothing to do.
func (r *Reconciler) materializeCredentials(ctx context.Context) (Summary, error) {
	var summary Summary

	m, err := r.manifests.Load()
	if err != nil {
		return summary, err
	}
	if len(m.Credentials) == 0 && len(m.Auto) == 0 {
		r.logger.Info("no manifest credentials declared, skipping credential bootstrap")
		return summary, nil
	}

	if r.opts.EncryptionKey == "" {
		return summary, errors.New("ENCRYPTION_KEY is required for credential encryption")
	}
	c, err := cipher.New(r.opts.EncryptionKey)
	if err != nil {
		return summary, err
	}

	projectID, err := r.store.FirstProjectID(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		r.logger.Warn("no project found, credentials will not be shared")
		projectID = ""
	} else if err != nil {
		return summary, fmt.Errorf("failed to look up project: %w", err)
	}

	if len(m.Credentials) > 0 {
		r.logger.Info("found %d credential(s) in credentials array", len(m.Credentials))
	}
	for _, cred := range m.Credentials {
		r.processLegacy(ctx, c, cred, projectID, &summary)
	}

	if len(m.Auto) > 0 {
		r.logger.Info("found %d credential(s) in auto section", len(m.Auto))
	}
	for _, key := range sortedKeys(m.Auto) {
		r.processAuto(ctx, c, m.Auto[key], projectID, &summary)
	}

	return summary, nil
}

// processLegacy handles a user-authored env_mapping entry: every mapped
// variable is required, a single missing one skips the whole entry.
func (r *Reconciler) processLegacy(ctx context.Context, c *cipher.Cipher, cred manifest.Credential, projectID string, summary *Summary) {
	r.logger.Info("processing: %s (%s)", cred.Name, cred.Type)

	data := map[string]any{}
	var missing []string
	for _, field := range sortedKeys(cred.EnvMapping) {
		envVar := cred.EnvMapping[field]
		value := r.env(envVar)
		if value == "" {
			missing = append(missing, envVar)
			continue
		}
		data[field] = secrets.Coerce(value)
	}

	if len(missing) > 0 {
		r.logger.Info("skipped: missing env vars: %s", strings.Join(missing, ", "))
		summary.Skipped++
		return
	}

	r.upsert(ctx, c, cred.Name, cred.Type, data, projectID, summary)
}

// processAuto handles an auto-section entry: unresolved fields are omitted
// individually; the entry is skipped only when nothing resolves at all.
func (r *Reconciler) processAuto(ctx context.Context, c *cipher.Cipher, cred manifest.AutoCredential, projectID string, summary *Summary) {
	r.logger.Info("processing: %s (%s)", cred.Name, cred.Type)

	data := map[string]any{}
	var missing []string
	for _, field := range sortedKeys(cred.Data) {
		resolved := secrets.Resolve(cred.Data[field], r.env)
		if len(resolved.Missing) > 0 {
			missing = append(missing, resolved.Missing...)
			continue
		}
		if resolved.Value != nil {
			data[field] = resolved.Value
		}
	}

	if len(missing) > 0 {
		r.logger.Info("note: skipping optional fields: %s", strings.Join(missing, ", "))
	}
	if len(data) == 0 {
		r.logger.Info("skipped: no env vars resolved")
		summary.Skipped++
		return
	}

	r.upsert(ctx, c, cred.Name, cred.Type, data, projectID, summary)
}

// upsert writes one credential row keyed by (name, type). Errors here are
// per-credential: logged and counted, never fatal.
func (r *Reconciler) upsert(ctx context.Context, c *cipher.Cipher, name, credentialType string, data map[string]any, projectID string, summary *Summary) {
	encrypted, err := c.Encrypt(data)
	if err != nil {
		r.logger.Error("error encrypting %s: %v", name, err)
		return
	}

	existingID, err := r.store.FindCredentialID(ctx, name, credentialType)
	switch {
	case err == nil:
		if err := r.store.UpdateCredentialData(ctx, existingID, encrypted); err != nil {
			r.logger.Error("error updating %s: %v", name, err)
			return
		}
		r.logger.Info("updated: %s", name)
		summary.Updated++
	case errors.Is(err, repository.ErrNotFound):
		cred := repository.Credential{
			ID:   uuid.New().String(),
			Name: name,
			Type: credentialType,
			Data: encrypted,
		}
		if err := r.store.InsertCredential(ctx, cred, projectID); err != nil {
			r.logger.Error("error creating %s: %v", name, err)
			return
		}
		r.logger.Info("created: %s", name)
		summary.Created++
	default:
		r.logger.Error("error looking up %s: %v", name, err)
	}
}

func generateAPIKey() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "n8n_api_" + hex.EncodeToString(buf)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
