package models

import (
	"strings"
	"time"
)

// SourceTypeShopify is the only provider the pipeline can extract from.
const SourceTypeShopify = "Shopify"

// Source is a connected upstream account. The pipeline only reads it.
type Source struct {
	ID               string     `db:"id"                 json:"id"`
	Name             string     `db:"name"               json:"name"`
	SourceType       string     `db:"source_type"        json:"source_type"`
	URL              string     `db:"url"                json:"url"`
	Credentials      JSONBMap   `db:"credentials"        json:"-"`
	IsDeleted        bool       `db:"is_deleted"         json:"is_deleted"`
	DeletionMarkedAt *time.Time `db:"deletion_marked_at" json:"deletion_marked_at,omitempty"`
}

// IsShopify compares the source type case-insensitively.
func (s *Source) IsShopify() bool {
	return strings.EqualFold(strings.TrimSpace(s.SourceType), SourceTypeShopify)
}

// SharedCredential is a credential record that may be shared by sources.
// Historical rows use either naming for each secret, so both are mapped.
type SharedCredential struct {
	ID           string `db:"id"`
	StoreName    string `db:"store_name"`
	APIToken     string `db:"api_token"`
	AccessToken  string `db:"access_token"`
	APIKey       string `db:"api_key"`
	ClientID     string `db:"client_id"`
	APISecret    string `db:"api_secret"`
	ClientSecret string `db:"client_secret"`
}

// CredentialBundle is the normalized credential set used to call Shopify.
// It is derived per request and never stored.
type CredentialBundle struct {
	StoreName    string
	APIToken     string
	ClientID     string
	ClientSecret string
}
