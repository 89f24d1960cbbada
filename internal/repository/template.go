package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/onronder/p-958660-sub000/internal/models"
)

const templateColumns = `id, template_key, name, COALESCE(description, '') AS description, query`

// TemplateRepository reads dataset template records.
type TemplateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.DatasetTemplate, error) {
	return r.getOne(ctx, `SELECT `+templateColumns+` FROM dataset_templates WHERE id = $1`, id)
}

func (r *TemplateRepository) GetByKey(ctx context.Context, key string) (*models.DatasetTemplate, error) {
	return r.getOne(ctx, `SELECT `+templateColumns+` FROM dataset_templates WHERE template_key = $1`, key)
}

func (r *TemplateRepository) getOne(ctx context.Context, query, arg string) (*models.DatasetTemplate, error) {
	var tmpl models.DatasetTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, arg); err != nil {
		if isNoRow(err) {
			return nil, fmt.Errorf("dataset template %s: %w", arg, ErrNotFound)
		}
		return nil, fmt.Errorf("get dataset template: %w", err)
	}
	return &tmpl, nil
}
