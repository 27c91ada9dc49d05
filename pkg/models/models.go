// Package models defines the domain models shared by the capture adapter,
// the sync server and the bootstrap reconciler.
package models

import "time"

// WorkflowEvent identifies the platform lifecycle notification that
// produced a payload.
type WorkflowEvent string

const (
	WorkflowEventUpdate     WorkflowEvent = "update"
	WorkflowEventActivate   WorkflowEvent = "activate"
	WorkflowEventDeactivate WorkflowEvent = "deactivate"
	WorkflowEventDelete     WorkflowEvent = "afterDelete"
)

// CredentialEvent identifies the credential lifecycle notification that
// produced a payload.
type CredentialEvent string

const (
	CredentialEventCreate CredentialEvent = "create"
	CredentialEventUpdate CredentialEvent = "update"
	CredentialEventDelete CredentialEvent = "delete"
)

// WorkflowSavePayload carries a cleaned workflow document from the capture
// adapter to the sync server. The document has volatile fields stripped and
// never includes the platform row id; the stable id travels separately so
// the writer can embed it for rename-proof deletion.
type WorkflowSavePayload struct {
	Workflow     map[string]any `json:"workflow"`
	OriginalName string         `json:"originalName"`
	WorkflowID   string         `json:"workflowId,omitempty"`
	FolderPath   string         `json:"folderPath,omitempty"`
	Event        WorkflowEvent  `json:"event"`
}

// WorkflowDeletePayload requests removal of a workflow file. WorkflowName
// may be a display name or, when the platform only reported an id, the
// stable identifier itself.
type WorkflowDeletePayload struct {
	WorkflowName string        `json:"workflowName"`
	WorkflowID   string        `json:"workflowId,omitempty"`
	Event        WorkflowEvent `json:"event"`
}

// CredentialSavePayload announces a created or updated credential. Values
// are never included; only the name and type are needed to maintain the
// manifest.
type CredentialSavePayload struct {
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Event CredentialEvent `json:"event"`
}

// CredentialDeletePayload requests removal of a manifest entry by the
// platform's stable credential id.
type CredentialDeletePayload struct {
	ID    string          `json:"id"`
	Event CredentialEvent `json:"event"`
}

// CachedWorkflow is the capture-side record kept per workflow id so a later
// delete notification carrying only an id can be resolved to a name.
type CachedWorkflow struct {
	Name        string         `json:"name"`
	Nodes       any            `json:"nodes,omitempty"`
	Connections any            `json:"connections,omitempty"`
	Settings    any            `json:"settings,omitempty"`
	PinData     any            `json:"pinData,omitempty"`
	Active      bool           `json:"active"`
	IsArchived  bool           `json:"isArchived"`
	FolderPath  string         `json:"folderPath,omitempty"`
	Raw         map[string]any `json:"-"`
}

// HealthStatus is the liveness payload returned by GET /health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
}

// ProblemDetails is the structured error body returned by the webhook
// routes on validation or I/O failure.
type ProblemDetails struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}
