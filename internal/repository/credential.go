package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onronder/p-958660-sub000/internal/models"
)

// CredentialRepository reads shared credential records.
type CredentialRepository struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetSharedCredential returns the record with id.
func (r *CredentialRepository) GetSharedCredential(ctx context.Context, id string) (*models.SharedCredential, error) {
	query := `
		SELECT id,
		       COALESCE(store_name, '')    AS store_name,
		       COALESCE(api_token, '')     AS api_token,
		       COALESCE(access_token, '')  AS access_token,
		       COALESCE(api_key, '')       AS api_key,
		       COALESCE(client_id, '')     AS client_id,
		       COALESCE(api_secret, '')    AS api_secret,
		       COALESCE(client_secret, '') AS client_secret
		FROM shared_credentials
		WHERE id = $1
	`

	var cred models.SharedCredential
	if err := r.db.GetContext(ctx, &cred, query, id); err != nil {
		if isNoRow(err) {
			return nil, fmt.Errorf("shared credential %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get shared credential: %w", err)
	}
	return &cred, nil
}
