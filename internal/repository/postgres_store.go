// Package repository persists to the platform tables the sync core
// touches: the singleton owner account with its personal workspace, the
// service api key, and credential rows with their workspace sharing.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound reports an absent row where the caller asked for one.
var ErrNotFound = errors.New("row not found")

// OwnerRole, project and sharing constants fixed by the platform schema.
const (
	ownerRole          = "global:owner"
	personalProject    = "personal"
	projectOwnerRole   = "project:personalOwner"
	credentialRole     = "credential:owner"
	ownerSetupKey      = "userManagement.isInstanceOwnerSetUp"
	apiKeyScopes       = `["credentials:read"]`
	apiKeyAudience     = "public-api"
	personalProjectFmt = "Admin User"
)

// PostgresStore is the pgx implementation of Store.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// FindUserIDByEmail returns the id of the user with the given email, or
// ErrNotFound.
func (s *PostgresStore) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM "user" WHERE email = $1`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// CreateOwner creates the owner user, its personal project, the ownership
// link and the setup-complete flag in one transaction.
func (s *PostgresStore) CreateOwner(ctx context.Context, owner Owner) (string, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	userID := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.Exec(ctx,
		`INSERT INTO "user" (id, email, "firstName", "lastName", password, "roleSlug", "personalizationAnswers", "createdAt", "updatedAt", disabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		userID, owner.Email, owner.FirstName, owner.LastName, owner.PasswordHash, ownerRole, nil, now, now, false)
	if err != nil {
		return "", err
	}

	projectID := uuid.New().String()
	_, err = tx.Exec(ctx,
		`INSERT INTO project (id, name, type, "createdAt", "updatedAt", "creatorId")
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		projectID, personalProjectFmt, personalProject, now, now, userID)
	if err != nil {
		return "", err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO project_relation ("projectId", "userId", role, "createdAt", "updatedAt")
		 VALUES ($1, $2, $3, $4, $5)`,
		projectID, userID, projectOwnerRole, now, now)
	if err != nil {
		return "", err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO settings (key, value, "loadOnStartup")
		 VALUES ($1, '"true"', true)
		 ON CONFLICT (key) DO UPDATE SET value = '"true"'`,
		ownerSetupKey)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return userID, nil
}

// MarkSetupComplete upserts the setup-complete flag so repeated bootstrap
// runs keep the setup wizard suppressed.
func (s *PostgresStore) MarkSetupComplete(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO settings (key, value, "loadOnStartup")
		 VALUES ($1, '"true"', true)
		 ON CONFLICT (key) DO UPDATE SET value = '"true"'`,
		ownerSetupKey)
	return err
}

// GetAPIKey returns the stored api key under a fixed well-known id, or
// ErrNotFound.
func (s *PostgresStore) GetAPIKey(ctx context.Context, keyID string) (string, error) {
	var apiKey string
	err := s.db.QueryRow(ctx, `SELECT "apiKey" FROM user_api_keys WHERE id = $1`, keyID).Scan(&apiKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return apiKey, nil
}

// CreateAPIKey persists a new service api key.
func (s *PostgresStore) CreateAPIKey(ctx context.Context, keyID, userID, label, apiKey string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx,
		`INSERT INTO user_api_keys (id, "userId", label, "apiKey", "createdAt", "updatedAt", scopes, audience)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		keyID, userID, label, apiKey, now, now, apiKeyScopes, apiKeyAudience)
	return err
}

// FirstProjectID returns the first available project to share credentials
// with (normally the personal project), or ErrNotFound when none exists.
func (s *PostgresStore) FirstProjectID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `SELECT id FROM project LIMIT 1`).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// FindCredentialID returns the id of an existing credential row matched by
// (name, type), or ErrNotFound.
func (s *PostgresStore) FindCredentialID(ctx context.Context, name, credentialType string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM credentials_entity WHERE name = $1 AND type = $2`,
		name, credentialType).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateCredentialData replaces the encrypted value and bumps the
// timestamp on an existing credential row.
func (s *PostgresStore) UpdateCredentialData(ctx context.Context, id, encryptedData string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE credentials_entity SET data = $1, "updatedAt" = $2 WHERE id = $3`,
		encryptedData, time.Now().UTC(), id)
	return err
}

// InsertCredential creates a credential row and shares it with the given
// project when one is available.
func (s *PostgresStore) InsertCredential(ctx context.Context, cred Credential, projectID string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO credentials_entity (id, name, type, data, "createdAt", "updatedAt")
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		cred.ID, cred.Name, cred.Type, cred.Data, now, now)
	if err != nil {
		return err
	}

	if projectID != "" {
		_, err = tx.Exec(ctx,
			`INSERT INTO shared_credentials ("credentialsId", "projectId", role, "createdAt", "updatedAt")
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT ("credentialsId", "projectId") DO NOTHING`,
			cred.ID, projectID, credentialRole, now, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
