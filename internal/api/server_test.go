package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flowsync/pkg/logging"
	"flowsync/internal/manifest"
	"flowsync/internal/workflows"
)

// MockFetcher satisfies SchemaFetcher.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FieldNames(ctx context.Context, credentialType string) []string {
	args := m.Called(ctx, credentialType)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

type fixture struct {
	baseDir    string
	echo       http.Handler
	store      *manifest.Store
	writer     *workflows.Writer
	fetcher    *MockFetcher
	reconciler *Reconciler
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	baseDir := t.TempDir()
	logger := logging.NewLogger()
	store := manifest.NewStore(baseDir)
	writer := workflows.NewWriter(baseDir)
	fetcher := new(MockFetcher)
	reconciler := NewReconciler(store, fetcher, logger)
	server := NewServer(writer, reconciler, logger)
	return &fixture{
		baseDir:    baseDir,
		echo:       server.NewEcho(secret),
		store:      store,
		writer:     writer,
		fetcher:    fetcher,
		reconciler: reconciler,
	}
}

func (f *fixture) post(t *testing.T, path, secret string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthRequiresNoAuth(t *testing.T) {
	f := newFixture(t, "shh")

	req := httptest.NewRequest(http.MethodGet, RouteHealth, nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	f := newFixture(t, "shh")

	rec := f.post(t, RouteWorkflowSave, "wrong", map[string]any{
		"workflow": map[string]any{"name": "x"}, "originalName": "x",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAcceptsQuerySecret(t *testing.T) {
	f := newFixture(t, "shh")

	body := `{"workflow":{"name":"Q"},"originalName":"Q","event":"update"}`
	req := httptest.NewRequest(http.MethodPost, RouteWorkflowSave+"?secret=shh", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookNoSecretConfiguredIsOpen(t *testing.T) {
	f := newFixture(t, "")

	rec := f.post(t, RouteWorkflowSave, "", map[string]any{
		"workflow": map[string]any{"name": "Open"}, "originalName": "Open", "event": "update",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWorkflowSaveWritesFile(t *testing.T) {
	f := newFixture(t, "shh")

	rec := f.post(t, RouteWorkflowSave, "shh", map[string]any{
		"workflow":     map[string]any{"name": "My Flow!", "active": true},
		"originalName": "My Flow!",
		"workflowId":   "wf-1",
		"event":        "update",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasSuffix(body["path"], filepath.Join("workflows", "my-flow.json")))
	assert.FileExists(t, body["path"])
}

func TestWorkflowSaveValidatesPayload(t *testing.T) {
	f := newFixture(t, "shh")

	rec := f.post(t, RouteWorkflowSave, "shh", map[string]any{"event": "update"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "invalid payload", problem["title"])

	// no partial write
	assert.NoDirExists(t, filepath.Join(f.baseDir, "workflows"))
}

func TestWorkflowDeleteByIDAfterRename(t *testing.T) {
	f := newFixture(t, "shh")

	// save, then the platform renames the workflow; delete carries the id
	// plus the stale cached name
	rec := f.post(t, RouteWorkflowSave, "shh", map[string]any{
		"workflow":     map[string]any{"name": "Old Name"},
		"originalName": "Old Name",
		"workflowId":   "wf-7",
		"event":        "update",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.post(t, RouteWorkflowDelete, "shh", map[string]any{
		"workflowName": "New Name",
		"workflowId":   "wf-7",
		"event":        "afterDelete",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["path"], "old-name.json")
}

func TestWorkflowDeleteAbsentIsOK(t *testing.T) {
	f := newFixture(t, "shh")

	rec := f.post(t, RouteWorkflowDelete, "shh", map[string]any{
		"workflowName": "Ghost", "event": "afterDelete",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "file not found", body["message"])
}

func TestCredentialSaveCreatesManifestEntry(t *testing.T) {
	f := newFixture(t, "shh")
	f.fetcher.On("FieldNames", mock.Anything, "slackApi").Return([]string{"accessToken", "baseUrl"})

	rec := f.post(t, RouteCredentialSave, "shh", map[string]any{
		"id": "cred-1", "name": "Slack Bot", "type": "slackApi", "event": "create",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	m, err := f.store.Load()
	require.NoError(t, err)
	entry, ok := m.Auto["slack_bot"]
	require.True(t, ok)
	assert.Equal(t, "cred-1", entry.ID)
	assert.Equal(t, "${SLACK_BOT_ACCESSTOKEN}", entry.Data["accessToken"])
	assert.Equal(t, "${SLACK_BOT_BASEURL}", entry.Data["baseUrl"])
}

func TestCredentialSavePreservesManualEdits(t *testing.T) {
	f := newFixture(t, "shh")
	f.fetcher.On("FieldNames", mock.Anything, "slackApi").Return([]string{"accessToken"})

	// first automated save
	rec := f.post(t, RouteCredentialSave, "shh", map[string]any{
		"id": "cred-1", "name": "Slack Bot", "type": "slackApi", "event": "create",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// user swaps the placeholder for a custom variable
	m, err := f.store.Load()
	require.NoError(t, err)
	entry := m.Auto["slack_bot"]
	entry.Data["accessToken"] = "${MY_CUSTOM_TOKEN}"
	m.UpsertAuto("slack_bot", entry)
	require.NoError(t, f.store.Save(m))

	// further automated saves keep the edit
	for i := 0; i < 2; i++ {
		rec = f.post(t, RouteCredentialSave, "shh", map[string]any{
			"id": "cred-1", "name": "Slack Bot", "type": "slackApi", "event": "update",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	m, err = f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "${MY_CUSTOM_TOKEN}", m.Auto["slack_bot"].Data["accessToken"])
}

func TestCredentialSaveEmptySchemaFetchKeepsExistingEntry(t *testing.T) {
	f := newFixture(t, "shh")
	// first save sees the real schema; the fetch then starts failing
	f.fetcher.On("FieldNames", mock.Anything, "slackApi").Return([]string{"accessToken"}).Once()
	f.fetcher.On("FieldNames", mock.Anything, "slackApi").Return(nil)

	rec := f.post(t, RouteCredentialSave, "shh", map[string]any{
		"id": "cred-1", "name": "Slack Bot", "type": "slackApi", "event": "create",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	m, err := f.store.Load()
	require.NoError(t, err)
	entry := m.Auto["slack_bot"]
	entry.Data["accessToken"] = "${MY_CUSTOM_TOKEN}"
	m.UpsertAuto("slack_bot", entry)
	require.NoError(t, f.store.Save(m))

	rec = f.post(t, RouteCredentialSave, "shh", map[string]any{
		"id": "cred-1", "name": "Slack Bot", "type": "slackApi", "event": "update",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	m, err = f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "${MY_CUSTOM_TOKEN}", m.Auto["slack_bot"].Data["accessToken"],
		"entry survives a schema endpoint outage")
}

func TestCredentialSaveUnknownTypeEmptyFields(t *testing.T) {
	f := newFixture(t, "shh")
	f.fetcher.On("FieldNames", mock.Anything, "mysteryApi").Return(nil)

	rec := f.post(t, RouteCredentialSave, "shh", map[string]any{
		"id": "cred-2", "name": "Mystery", "type": "mysteryApi", "event": "create",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	m, err := f.store.Load()
	require.NoError(t, err)
	entry, ok := m.Auto["mystery"]
	require.True(t, ok)
	assert.Empty(t, entry.Data)
}

func TestCredentialDeleteMatchesByID(t *testing.T) {
	f := newFixture(t, "shh")
	f.fetcher.On("FieldNames", mock.Anything, "t").Return([]string{"x"})

	rec := f.post(t, RouteCredentialSave, "shh", map[string]any{
		"id": "cred-3", "name": "Renamed Later", "type": "t", "event": "create",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.post(t, RouteCredentialDelete, "shh", map[string]any{
		"id": "cred-3", "event": "delete",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["deleted"])

	m, err := f.store.Load()
	require.NoError(t, err)
	assert.Empty(t, m.Auto)
}

func TestCredentialDeleteNotFoundIsNonFatal(t *testing.T) {
	f := newFixture(t, "shh")

	rec := f.post(t, RouteCredentialDelete, "shh", map[string]any{
		"id": "cred-404", "event": "delete",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["deleted"])
}

func TestCredentialSaveValidatesPayload(t *testing.T) {
	f := newFixture(t, "shh")

	rec := f.post(t, RouteCredentialSave, "shh", map[string]any{"name": "No Type"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.post(t, RouteCredentialDelete, "shh", map[string]any{"event": "delete"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// nothing written
	_, err := os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
}
