package capture

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsync/internal/api"
	"flowsync/pkg/logging"
	"flowsync/pkg/models"
)

type recordedRequest struct {
	path   string
	secret string
	body   []byte
}

// recorder collects webhook deliveries so async sends can be awaited.
type recorder struct {
	mu   sync.Mutex
	got  []recordedRequest
	seen chan struct{}
}

func newRecorder() *recorder {
	return &recorder{seen: make(chan struct{}, 16)}
}

func (r *recorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.got = append(r.got, recordedRequest{
			path:   req.URL.Path,
			secret: req.Header.Get(api.SecretHeader),
			body:   body,
		})
		r.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		r.seen <- struct{}{}
	}
}

func (r *recorder) wait(t *testing.T) recordedRequest {
	t.Helper()
	select {
	case <-r.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery observed")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

func TestCleanWorkflowStripsVolatileFields(t *testing.T) {
	doc := map[string]any{
		"id":        "row-1",
		"name":      "Flow",
		"nodes":     []any{},
		"createdAt": "2026-01-01",
		"updatedAt": "2026-01-02",
		"versionId": "v9",
		"shared":    []any{"x"},
		"meta":      map[string]any{"instanceId": "abc", "templateId": "t1"},
	}

	cleaned := CleanWorkflow(doc)

	assert.NotContains(t, cleaned, "id")
	assert.NotContains(t, cleaned, "createdAt")
	assert.NotContains(t, cleaned, "versionId")
	assert.NotContains(t, cleaned, "shared")
	assert.Equal(t, map[string]any{"templateId": "t1"}, cleaned["meta"])
	assert.Equal(t, "Flow", cleaned["name"])

	// original untouched
	assert.Contains(t, doc, "id")
}

func TestCleanWorkflowDropsEmptiedMeta(t *testing.T) {
	cleaned := CleanWorkflow(map[string]any{
		"name": "Flow",
		"meta": map[string]any{"instanceId": "abc"},
	})
	assert.NotContains(t, cleaned, "meta")
}

func TestHooksWorkflowSavePopulatesCacheAndDelivers(t *testing.T) {
	rec := newRecorder()
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	cache := NewCache()
	notifier := NewNotifier(srv.URL, "shh", logging.NewLogger())
	hooks := NewHooks(cache, notifier, logging.NewLogger())

	hooks.WorkflowUpdated(Workflow{
		ID:   "wf-1",
		Name: "My Flow",
		Document: map[string]any{
			"id": "wf-1", "name": "My Flow", "active": true,
			"updatedAt": "now", "nodes": []any{},
		},
		ParentFolder: &Folder{Name: "Reports", Parent: &Folder{Name: "Team"}},
	})

	got := rec.wait(t)
	assert.Equal(t, api.RouteWorkflowSave, got.path)
	assert.Equal(t, "shh", got.secret)

	var payload models.WorkflowSavePayload
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, "My Flow", payload.OriginalName)
	assert.Equal(t, "wf-1", payload.WorkflowID)
	assert.Equal(t, "Team/Reports", payload.FolderPath)
	assert.Equal(t, models.WorkflowEventUpdate, payload.Event)
	assert.NotContains(t, payload.Workflow, "id")
	assert.NotContains(t, payload.Workflow, "updatedAt")

	cached, ok := cache.Get("wf-1")
	assert.True(t, ok)
	assert.Equal(t, "My Flow", cached.Name)
	assert.True(t, cached.Active)
}

func TestHooksDeleteRecoversNameFromCache(t *testing.T) {
	rec := newRecorder()
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	cache := NewCache()
	cache.Put("wf-9", models.CachedWorkflow{Name: "Known Flow"})
	hooks := NewHooks(cache, NewNotifier(srv.URL, "", logging.NewLogger()), logging.NewLogger())

	hooks.WorkflowDeleted("wf-9")

	got := rec.wait(t)
	assert.Equal(t, api.RouteWorkflowDelete, got.path)

	var payload models.WorkflowDeletePayload
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, "Known Flow", payload.WorkflowName)
	assert.Equal(t, "wf-9", payload.WorkflowID)

	_, ok := cache.Get("wf-9")
	assert.False(t, ok, "cache entry removed after delete")
}

func TestHooksDeleteWithoutCacheHitForwardsID(t *testing.T) {
	rec := newRecorder()
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	hooks := NewHooks(NewCache(), NewNotifier(srv.URL, "", logging.NewLogger()), logging.NewLogger())
	hooks.WorkflowDeleted("wf-cold")

	got := rec.wait(t)
	var payload models.WorkflowDeletePayload
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, "wf-cold", payload.WorkflowName)
	assert.Equal(t, "wf-cold", payload.WorkflowID)
}

func TestHooksCredentialEventsCarryNoValues(t *testing.T) {
	rec := newRecorder()
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	hooks := NewHooks(NewCache(), NewNotifier(srv.URL, "", logging.NewLogger()), logging.NewLogger())
	hooks.CredentialCreated("cred-1", "Slack Bot", "slackApi")

	got := rec.wait(t)
	assert.Equal(t, api.RouteCredentialSave, got.path)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, "Slack Bot", payload["name"])
	assert.NotContains(t, payload, "data")
}

func TestNotifierFailureIsSwallowed(t *testing.T) {
	// nothing listening; Send must not panic or block the caller
	notifier := NewNotifier("http://127.0.0.1:1", "", logging.NewLogger())
	hooks := NewHooks(NewCache(), notifier, logging.NewLogger())

	done := make(chan struct{})
	go func() {
		hooks.WorkflowDeleted("wf-1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hook blocked on delivery")
	}

	err := notifier.SendSync(api.RouteWorkflowDelete, models.WorkflowDeletePayload{WorkflowName: "x"})
	assert.Error(t, err)
}

func TestHooksSkipUnnamedWorkflow(t *testing.T) {
	notifier := NewNotifier("http://127.0.0.1:1", "", logging.NewLogger())
	hooks := NewHooks(NewCache(), notifier, logging.NewLogger())

	// no delivery attempted, nothing to observe; just must not panic
	hooks.WorkflowUpdated(Workflow{ID: "wf-1", Document: map[string]any{}})
	hooks.WorkflowDeleted("")
}

func TestFolderPath(t *testing.T) {
	assert.Equal(t, "", FolderPath(nil))

	root := &Folder{Name: "Team"}
	leaf := &Folder{Name: "Reports", Parent: root}
	assert.Equal(t, "Team/Reports", FolderPath(leaf))
}
