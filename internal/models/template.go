package models

// DatasetTemplate is a registered dataset definition. Query is only set for
// templates registered by operators rather than shipped with the service.
type DatasetTemplate struct {
	ID          string  `db:"id"           json:"id"`
	TemplateKey string  `db:"template_key" json:"template_key"`
	Name        string  `db:"name"         json:"name"`
	Description string  `db:"description"  json:"description"`
	Query       *string `db:"query"        json:"-"`
}
