package api

// Webhook routes served by the sync server and called by the capture
// adapter.
const (
	RouteHealth           = "/health"
	RouteWorkflowSave     = "/webhook/workflow-save"
	RouteWorkflowDelete   = "/webhook/workflow-delete"
	RouteCredentialSave   = "/webhook/credential-save"
	RouteCredentialDelete = "/webhook/credential-delete"
)

// SecretHeader carries the shared webhook secret. The same value may be
// supplied as the "secret" query parameter instead.
const SecretHeader = "x-webhook-secret"

// SecretQueryParam is the query-parameter alternative to SecretHeader.
const SecretQueryParam = "secret"
