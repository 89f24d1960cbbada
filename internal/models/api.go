package models

// ExtractionRequest asks for a preview or a full run of a predefined template
// or a custom query.
type ExtractionRequest struct {
	SourceID     string `json:"source_id"               binding:"required"`
	CustomQuery  string `json:"custom_query,omitempty"`
	TemplateKey  string `json:"template_key,omitempty"`
	PreviewOnly  bool   `json:"preview_only"`
	Limit        int    `json:"limit,omitempty"`
	ExtractionID string `json:"extraction_id,omitempty"`
}

// DependentRequest runs a two-phase dependent template.
type DependentRequest struct {
	SourceID     string `json:"source_id"     binding:"required"`
	TemplateName string `json:"template_name" binding:"required"`
	PreviewOnly  bool   `json:"preview_only"`
	Limit        int    `json:"limit,omitempty"`
	ExtractionID string `json:"extraction_id,omitempty"`
}

// PreviewDataRequest previews a REST Admin resource such as "orders".
type PreviewDataRequest struct {
	SourceID string `json:"source_id" binding:"required"`
	Resource string `json:"resource"  binding:"required"`
	Limit    int    `json:"limit,omitempty"`
}

// ExtractionResponse is returned by every successful run.
type ExtractionResponse struct {
	Results      []Record `json:"results"`
	Count        int      `json:"count"`
	Preview      bool     `json:"preview"`
	Sample       *string  `json:"sample"`
	Note         string   `json:"note,omitempty"`
	Partial      bool     `json:"partial,omitempty"`
	FailedIDs    []string `json:"failed_ids,omitempty"`
	ExtractionID string   `json:"extraction_id,omitempty"`
}

// ConnectionTestResult is the outcome of the pre-flight shop query.
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Status  int    `json:"status,omitempty"`
}
