package api

import (
	"context"
	"fmt"
	"sync"

	"flowsync/internal/identity"
	"flowsync/pkg/logging"
	"flowsync/internal/manifest"
)

// SchemaFetcher supplies the declared field names for a credential type.
// An empty result means "no known fields": the reconciler must not prune
// or overwrite existing entries on that basis.
type SchemaFetcher interface {
	FieldNames(ctx context.Context, credentialType string) []string
}

// Reconciler maintains the auto section of the manifest from credential
// save and delete events. The manifest read-modify-write is serialized
// behind a mutex; the store itself is a periodically-updated snapshot, not
// a high-frequency system of record.
type Reconciler struct {
	mu      sync.Mutex
	store   *manifest.Store
	fetcher SchemaFetcher
	logger  *logging.Logger
}

// NewReconciler creates a Reconciler over a manifest store.
func NewReconciler(store *manifest.Store, fetcher SchemaFetcher, logger *logging.Logger) *Reconciler {
	return &Reconciler{store: store, fetcher: fetcher, logger: logger}
}

// SaveCredential upserts the manifest entry for a credential. Field names
// come from the schema fetch; existing non-empty values are preserved so a
// user's custom placeholder names and literal overrides survive automated
// saves, and new fields get synthesized ${PREFIX_FIELD} placeholders.
func (r *Reconciler) SaveCredential(ctx context.Context, id, name, credentialType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.store.Load()
	if err != nil {
		return err
	}

	key := identity.CredentialKey(name)
	fields := r.fetcher.FieldNames(ctx, credentialType)
	r.logger.Debug("schema fields for %s: %v", credentialType, fields)

	existing := m.Auto[key]
	data := make(map[string]string, len(fields))
	if len(fields) == 0 && len(existing.Data) > 0 {
		// no known fields: keep whatever the entry already holds
		data = existing.Data
	}
	for _, field := range fields {
		if v := existing.Data[field]; v != "" {
			data[field] = v
		} else {
			data[field] = fmt.Sprintf("${%s}", identity.EnvVarName(name, field))
		}
	}

	m.UpsertAuto(key, manifest.AutoCredential{
		ID:   id,
		Name: name,
		Type: credentialType,
		Data: data,
	})
	return r.store.Save(m)
}

// DeleteCredential removes the auto entry whose stored platform id
// matches. A missing entry is reported, not an error.
func (r *Reconciler) DeleteCredential(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.store.Load()
	if err != nil {
		return false, err
	}

	key, ok := m.DeleteAutoByID(id)
	if !ok {
		r.logger.Warn("credential not found in manifest (id=%s)", id)
		return false, nil
	}
	if err := r.store.Save(m); err != nil {
		return false, err
	}
	r.logger.Info("deleted credential from manifest: %s (id=%s)", key, id)
	return true, nil
}
