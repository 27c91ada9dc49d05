// Package capture adapts platform lifecycle notifications into normalized
// events for the sync server. Handlers are invoked synchronously by the
// platform's hook mechanism; everything that can block or fail happens on
// the delivery side, which is fire and forget. A failed delivery only costs
// file-representation freshness, never the platform operation.
package capture

import (
	"strings"

	"flowsync/internal/api"
	"flowsync/pkg/logging"
	"flowsync/pkg/models"
)

// Hooks holds one handler per platform event kind. The platform guarantees
// per-identity ordering only; handlers must not assume ordering across
// distinct workflows or credentials.
type Hooks struct {
	cache    *Cache
	notifier *Notifier
	logger   *logging.Logger
}

// NewHooks wires the capture adapter. The cache is injected so tests can
// seed and inspect it.
func NewHooks(cache *Cache, notifier *Notifier, logger *logging.Logger) *Hooks {
	return &Hooks{cache: cache, notifier: notifier, logger: logger}
}

// Workflow is the raw document plus the platform fields the adapter needs
// before cleaning.
type Workflow struct {
	ID           string
	Name         string
	Document     map[string]any
	ParentFolder *Folder
}

// Folder is one node of the platform-supplied parent-folder chain, leaf
// first.
type Folder struct {
	Name   string
	Parent *Folder
}

// FolderPath walks the parent-folder chain from leaf to root and joins the
// names with "/". A nil folder means the workflow lives at the root.
func FolderPath(leaf *Folder) string {
	var parts []string
	for f := leaf; f != nil; f = f.Parent {
		if f.Name != "" {
			parts = append([]string{f.Name}, parts...)
		}
	}
	return strings.Join(parts, "/")
}

// WorkflowUpdated handles the platform's workflow update notification.
func (h *Hooks) WorkflowUpdated(wf Workflow) {
	h.saveWorkflow(wf, models.WorkflowEventUpdate)
}

// WorkflowActivated handles the activate notification.
func (h *Hooks) WorkflowActivated(wf Workflow) {
	h.saveWorkflow(wf, models.WorkflowEventActivate)
}

// WorkflowDeactivated handles the deactivate notification.
func (h *Hooks) WorkflowDeactivated(wf Workflow) {
	h.saveWorkflow(wf, models.WorkflowEventDeactivate)
}

func (h *Hooks) saveWorkflow(wf Workflow, event models.WorkflowEvent) {
	if wf.Name == "" {
		h.logger.Info("skipping %s: workflow has no name", event)
		return
	}

	folderPath := FolderPath(wf.ParentFolder)
	cleaned := CleanWorkflow(wf.Document)

	h.cacheWorkflow(wf, folderPath, cleaned)

	h.logger.Info("sending %s: %s id=%s", event, wf.Name, wf.ID)
	h.notifier.Send(api.RouteWorkflowSave, models.WorkflowSavePayload{
		Workflow:     cleaned,
		OriginalName: wf.Name,
		WorkflowID:   wf.ID,
		FolderPath:   folderPath,
		Event:        event,
	})
}

// WorkflowDeleted handles the afterDelete notification, which carries only
// the stable id. A cache hit recovers the name for the fallback path match;
// the id is forwarded regardless.
func (h *Hooks) WorkflowDeleted(workflowID string) {
	if workflowID == "" {
		h.logger.Info("skipping delete: no workflow id")
		return
	}

	name := workflowID
	if cached, ok := h.cache.Get(workflowID); ok {
		name = cached.Name
		h.cache.Delete(workflowID)
	}

	h.logger.Info("sending delete: %s id=%s", name, workflowID)
	h.notifier.Send(api.RouteWorkflowDelete, models.WorkflowDeletePayload{
		WorkflowName: name,
		WorkflowID:   workflowID,
		Event:        models.WorkflowEventDelete,
	})
}

// CredentialCreated handles the credential create notification. Values are
// never included in the payload.
func (h *Hooks) CredentialCreated(id, name, credentialType string) {
	h.sendCredential(id, name, credentialType, models.CredentialEventCreate)
}

// CredentialUpdated handles the credential update notification.
func (h *Hooks) CredentialUpdated(id, name, credentialType string) {
	h.sendCredential(id, name, credentialType, models.CredentialEventUpdate)
}

func (h *Hooks) sendCredential(id, name, credentialType string, event models.CredentialEvent) {
	h.logger.Info("sending credential %s: %s type=%s", event, name, credentialType)
	h.notifier.Send(api.RouteCredentialSave, models.CredentialSavePayload{
		ID:    id,
		Name:  name,
		Type:  credentialType,
		Event: event,
	})
}

// CredentialDeleted handles the credential delete notification.
func (h *Hooks) CredentialDeleted(credentialID string) {
	h.logger.Info("sending credential delete: %s", credentialID)
	h.notifier.Send(api.RouteCredentialDelete, models.CredentialDeletePayload{
		ID:    credentialID,
		Event: models.CredentialEventDelete,
	})
}

func (h *Hooks) cacheWorkflow(wf Workflow, folderPath string, cleaned map[string]any) {
	if wf.ID == "" || wf.Name == "" {
		return
	}
	entry := models.CachedWorkflow{
		Name:        wf.Name,
		Nodes:       cleaned["nodes"],
		Connections: cleaned["connections"],
		Settings:    cleaned["settings"],
		PinData:     cleaned["pinData"],
		FolderPath:  folderPath,
		Raw:         cleaned,
	}
	if active, ok := cleaned["active"].(bool); ok {
		entry.Active = active
	}
	if archived, ok := cleaned["isArchived"].(bool); ok {
		entry.IsArchived = archived
	}
	h.cache.Put(wf.ID, entry)
}
