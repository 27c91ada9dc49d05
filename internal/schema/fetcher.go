// Package schema looks up credential type schemas from the live platform.
// The lookup is best effort: any failure degrades to an empty field list so
// the manifest reconciler never prunes or overwrites on bad data.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flowsync/pkg/logging"
	"flowsync/internal/manifest"
)

// APIKeyFileName is the shared single-line file holding the service api
// key, written by the bootstrap reconciler.
const APIKeyFileName = ".platform-api-key"

// APIKeyHeader authenticates schema requests against the platform.
const APIKeyHeader = "X-API-KEY"

const fetchTimeout = 10 * time.Second

// Fetcher queries the platform's credential schema endpoint.
type Fetcher struct {
	platformURL string
	keyPath     string
	client      *http.Client
	logger      *logging.Logger
}

// NewFetcher creates a Fetcher. The api key is read from the shared file
// under baseDir on every fetch so a key rotated by a later bootstrap run is
// picked up without a restart.
func NewFetcher(platformURL, baseDir string, logger *logging.Logger) *Fetcher {
	return &Fetcher{
		platformURL: strings.TrimRight(platformURL, "/"),
		keyPath:     filepath.Join(baseDir, manifest.Dir, APIKeyFileName),
		client:      &http.Client{Timeout: fetchTimeout},
		logger:      logger,
	}
}

// FieldNames returns the declared field names for a credential type, or an
// empty list on any failure. It never returns values and never errors.
func (f *Fetcher) FieldNames(ctx context.Context, credentialType string) []string {
	apiKey := f.readAPIKey()
	if apiKey == "" {
		f.logger.Warn("no api key available, cannot fetch schema for %s", credentialType)
		return nil
	}

	url := fmt.Sprintf("%s/api/v1/credentials/schema/%s", f.platformURL, credentialType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Warn("failed to build schema request for %s: %v", credentialType, err)
		return nil
	}
	req.Header.Set(APIKeyHeader, apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("schema fetch failed for %s: %v", credentialType, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("schema fetch for %s returned status %d", credentialType, resp.StatusCode)
		return nil
	}

	var schema struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&schema); err != nil {
		f.logger.Warn("failed to parse schema for %s: %v", credentialType, err)
		return nil
	}

	fields := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		fields = append(fields, name)
	}
	return fields
}

func (f *Fetcher) readAPIKey() string {
	data, err := os.ReadFile(f.keyPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
