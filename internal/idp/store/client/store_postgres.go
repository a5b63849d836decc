package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"oidcbridge/internal/idp/models"
	"oidcbridge/pkg/platform/sentinel"
)

// PostgresRegistry reads client registrations from the portal's
// oauth_clients table.
type PostgresRegistry struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed client registry.
func NewPostgres(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

func (r *PostgresRegistry) FindByClientID(ctx context.Context, clientID string) (*models.Client, error) {
	var (
		c          models.Client
		secretHash sql.NullString
		homepage   sql.NullString
		logo       sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT client_id, client_secret_hash, name, homepage_uri, logo_uri,
		       redirect_uris, grant_types, response_types, scope, token_endpoint_auth_method
		FROM oauth_clients
		WHERE client_id = $1`,
		clientID).Scan(
		&c.ClientID, &secretHash, &c.Name, &homepage, &logo,
		pq.Array(&c.RedirectURIs), pq.Array(&c.GrantTypes), pq.Array(&c.ResponseTypes),
		&c.Scope, &c.TokenEndpointAuthMethod)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", clientID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find client %s: %w", clientID, err)
	}

	c.ClientSecretHash = secretHash.String
	c.HomepageURI = homepage.String
	c.LogoURI = logo.String
	return &c, nil
}
