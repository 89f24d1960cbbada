// Package templates resolves dataset template keys to GraphQL documents.
package templates

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/onronder/p-958660-sub000/internal/models"
	"github.com/onronder/p-958660-sub000/internal/repository"
)

// ErrTemplateNotFound is returned when no source knows the key.
var ErrTemplateNotFound = errors.New("template not found")

//go:embed catalog.yaml
var builtinCatalog []byte

// Definition is a resolved template.
type Definition struct {
	Key         string `json:"key"         yaml:"key"`
	Name        string `json:"name"        yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Query       string `json:"query"       yaml:"query"`
}

type catalogFile struct {
	Templates []Definition `yaml:"templates"`
}

// Catalog is an immutable set of definitions keyed by Key.
type Catalog struct {
	defs map[string]Definition
}

// ParseCatalog decodes a YAML catalog. Duplicate or empty keys are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	c := &Catalog{defs: make(map[string]Definition, len(f.Templates))}
	for _, d := range f.Templates {
		key := strings.TrimSpace(d.Key)
		if key == "" {
			return nil, errors.New("parse template catalog: template without key")
		}
		if _, dup := c.defs[key]; dup {
			return nil, fmt.Errorf("parse template catalog: duplicate key %q", key)
		}
		d.Key = key
		c.defs[key] = d
	}
	return c, nil
}

// Builtin returns the catalog shipped with the binary.
func Builtin() (*Catalog, error) {
	return ParseCatalog(builtinCatalog)
}

// Get returns the definition for key.
func (c *Catalog) Get(key string) (Definition, bool) {
	d, ok := c.defs[key]
	return d, ok
}

// Keys lists the catalog keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.defs))
	for k := range c.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List returns every definition ordered by key.
func (c *Catalog) List() []Definition {
	keys := c.Keys()
	defs := make([]Definition, 0, len(keys))
	for _, k := range keys {
		defs = append(defs, c.defs[k])
	}
	return defs
}

// Store reads operator-registered templates.
type Store interface {
	GetByKey(ctx context.Context, key string) (*models.DatasetTemplate, error)
}

// Registry resolves keys against the built-in catalog first and the store
// second.
type Registry struct {
	catalog *Catalog
	store   Store
}

func NewRegistry(catalog *Catalog, store Store) *Registry {
	return &Registry{catalog: catalog, store: store}
}

// Lookup returns the definition for key. Errors other than
// ErrTemplateNotFound mean the template could not be loaded.
func (r *Registry) Lookup(ctx context.Context, key string) (*Definition, error) {
	if d, ok := r.catalog.Get(key); ok {
		return &d, nil
	}
	if r.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}

	tmpl, err := r.store.GetByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup template %s: %w", key, err)
	}
	if tmpl.Query == nil {
		return nil, fmt.Errorf("%w: %s has no query", ErrTemplateNotFound, key)
	}
	return &Definition{
		Key:         tmpl.TemplateKey,
		Name:        tmpl.Name,
		Description: tmpl.Description,
		Query:       *tmpl.Query,
	}, nil
}
