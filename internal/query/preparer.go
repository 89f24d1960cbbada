// Package query resolves what GraphQL document to send for a request and
// with which page size.
package query

import (
	"context"
	"errors"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/onronder/p-958660-sub000/internal/apperr"
	"github.com/onronder/p-958660-sub000/internal/templates"
)

const (
	// PreviewCap bounds the page size of any preview.
	PreviewCap = 5
	// FullCap is the largest page Shopify serves.
	FullCap = 250
	// DefaultFullLimit applies when a full run does not ask for a limit.
	DefaultFullLimit = 50
)

// Origin records where a prepared document came from.
type Origin string

const (
	OriginCustom   Origin = "custom"
	OriginTemplate Origin = "template"
)

// TemplateLookup resolves template keys.
type TemplateLookup interface {
	Lookup(ctx context.Context, key string) (*templates.Definition, error)
}

// Request describes what the caller wants to run.
type Request struct {
	CustomQuery string
	TemplateKey string
	Limit       int
	Preview     bool
}

// Prepared is a document ready to send.
type Prepared struct {
	Query        string
	Variables    map[string]any
	Origin       Origin
	TemplateKey  string
	TemplateName string
}

type Preparer struct {
	templates TemplateLookup
}

func NewPreparer(lookup TemplateLookup) *Preparer {
	return &Preparer{templates: lookup}
}

// EffectiveLimit is min(limit, 5) for previews and min(limit, 250) for full
// runs. Non-positive limits take the cap for previews and 50 for full runs.
func EffectiveLimit(limit int, preview bool) int {
	ceiling, fallback := FullCap, DefaultFullLimit
	if preview {
		ceiling, fallback = PreviewCap, PreviewCap
	}
	if limit <= 0 {
		return fallback
	}
	return min(limit, ceiling)
}

// Prepare resolves req. A non-blank custom query takes precedence over a
// template key. The result depends only on req and the template registry.
func (p *Preparer) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	vars := map[string]any{"first": EffectiveLimit(req.Limit, req.Preview)}

	if custom := strings.TrimSpace(req.CustomQuery); custom != "" {
		if err := ValidateDocument(custom); err != nil {
			return nil, err
		}
		return &Prepared{Query: custom, Variables: vars, Origin: OriginCustom}, nil
	}

	key := strings.TrimSpace(req.TemplateKey)
	if key == "" {
		return nil, apperr.New(apperr.CodeMissingQuery, "No query provided: supply custom_query or template_key")
	}

	def, err := p.templates.Lookup(ctx, key)
	switch {
	case errors.Is(err, templates.ErrTemplateNotFound):
		return nil, apperr.Newf(apperr.CodeTemplateNotFound, "Template %q not found", key)
	case err != nil:
		return nil, apperr.Wrap(apperr.CodeTemplateLoadError, "Failed to load template", err)
	}
	if strings.TrimSpace(def.Query) == "" {
		return nil, apperr.Newf(apperr.CodeQueryResolution, "Template %q has no query", key)
	}

	return &Prepared{
		Query:        def.Query,
		Variables:    vars,
		Origin:       OriginTemplate,
		TemplateKey:  def.Key,
		TemplateName: def.Name,
	}, nil
}

// ValidateDocument parses q and rejects anything that is not a read-only query.
func ValidateDocument(q string) error {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: q})
	if err != nil {
		return apperr.Wrap(apperr.CodeQueryResolution, "Invalid GraphQL syntax", err)
	}
	if len(doc.Operations) == 0 {
		return apperr.New(apperr.CodeQueryResolution, "Invalid GraphQL syntax: document has no operation")
	}
	for _, op := range doc.Operations {
		if op.Operation != ast.Query {
			return apperr.Newf(apperr.CodeQueryResolution,
				"Invalid GraphQL operation: only queries can be extracted, got %s", op.Operation)
		}
	}
	return nil
}
