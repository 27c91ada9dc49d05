package repository

import "context"

// Credential is the decrypted-side view of a platform credential row. Data
// is already encrypted by the caller before it reaches the store.
type Credential struct {
	ID   string
	Name string
	Type string
	Data string
}

// Owner describes the privileged account to create on first bootstrap.
type Owner struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}

// Store is the interface the bootstrap reconciler needs from the platform
// database. The pgx implementation is the only production one; tests
// substitute mocks.
type Store interface {
	Ping(ctx context.Context) error

	FindUserIDByEmail(ctx context.Context, email string) (string, error)
	CreateOwner(ctx context.Context, owner Owner) (userID string, err error)
	MarkSetupComplete(ctx context.Context) error

	GetAPIKey(ctx context.Context, keyID string) (string, error)
	CreateAPIKey(ctx context.Context, keyID, userID, label, apiKey string) error

	FirstProjectID(ctx context.Context) (string, error)
	FindCredentialID(ctx context.Context, name, credentialType string) (string, error)
	UpdateCredentialData(ctx context.Context, id, encryptedData string) error
	InsertCredential(ctx context.Context, cred Credential, projectID string) error
}
