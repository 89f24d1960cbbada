// Package credentials turns a Source into the credential bundle used to call
// the Shopify Admin API.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/repository"
)

// Store reads shared credential records. A miss must wrap repository.ErrNotFound.
type Store interface {
	GetSharedCredential(ctx context.Context, id string) (*models.SharedCredential, error)
}

// Resolver resolves credential bundles. It holds no state between calls.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the normalized bundle for src. The shared record, looked
// up by credentials.credential_id or else by the source id, takes precedence
// over fields stored inline on the source.
func (r *Resolver) Resolve(ctx context.Context, src *models.Source) (*models.CredentialBundle, error) {
	if !src.IsShopify() {
		return nil, apperr.Newf(apperr.CodeInvalidSourceType,
			"Unsupported source type %q: only Shopify sources can be extracted", src.SourceType)
	}
	if src.Credentials == nil {
		return nil, apperr.New(apperr.CodeInvalidCredentials, "Source has no credentials configured")
	}

	explicitID := field(src.Credentials, "credential_id")
	lookupID := explicitID
	if lookupID == "" {
		lookupID = src.ID
	}

	shared, err := r.store.GetSharedCredential(ctx, lookupID)
	switch {
	case err == nil:
		return validate(fromShared(shared))
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Wrap(apperr.CodeCredentialsFetchError, "Failed to fetch credentials", err)
	}

	bundle := fromInline(src)
	if explicitID != "" && bundle.StoreName == "" && bundle.APIToken == "" {
		return nil, apperr.Newf(apperr.CodeCredentialsNotFound, "Credential %s not found", explicitID)
	}
	return validate(bundle)
}

func validate(b models.CredentialBundle) (*models.CredentialBundle, error) {
	var missing []string
	if b.StoreName == "" {
		missing = append(missing, "store name")
	}
	if b.APIToken == "" {
		missing = append(missing, "access token")
	}
	if len(missing) > 0 {
		return nil, apperr.New(apperr.CodeIncompleteCredentials,
			fmt.Sprintf("Incomplete credentials: missing %s", strings.Join(missing, " and "))).
			WithDetails(map[string]any{"missing": missing})
	}
	return &b, nil
}

func fromShared(c *models.SharedCredential) models.CredentialBundle {
	return models.CredentialBundle{
		StoreName:    strings.TrimSpace(c.StoreName),
		APIToken:     firstNonEmpty(c.APIToken, c.AccessToken),
		ClientID:     firstNonEmpty(c.APIKey, c.ClientID),
		ClientSecret: firstNonEmpty(c.APISecret, c.ClientSecret),
	}
}

func fromInline(src *models.Source) models.CredentialBundle {
	blob := src.Credentials
	return models.CredentialBundle{
		StoreName:    firstNonEmpty(field(blob, "store_name"), field(blob, "url"), strings.TrimSpace(src.URL)),
		APIToken:     firstNonEmpty(field(blob, "api_token"), field(blob, "access_token")),
		ClientID:     firstNonEmpty(field(blob, "api_key"), field(blob, "client_id")),
		ClientSecret: firstNonEmpty(field(blob, "api_secret"), field(blob, "client_secret")),
	}
}

func field(blob models.JSONBMap, key string) string {
	if s, ok := blob[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
