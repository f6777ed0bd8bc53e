package domain

// StartRunRequest is the payload that starts a playbook run.
type StartRunRequest struct {
	Document DocumentContext `json:"document"`
}

// StartRunResponse acknowledges an accepted run.
type StartRunResponse struct {
	RunID      string    `json:"run_id"`
	PlaybookID string    `json:"playbook_id"`
	Status     RunStatus `json:"status"`
}

// RunResultsResponse is a completed (or in-flight) run with its node
// outputs so far.
type RunResultsResponse struct {
	Run     *Run         `json:"run"`
	Results []NodeOutput `json:"results"`
}

// IndexDocumentRequest is the payload that indexes one parsed document.
type IndexDocumentRequest struct {
	TenantID     string `json:"tenant_id"`
	DocumentName string `json:"document_name"`
	Text         string `json:"text"`
	PageCount    int    `json:"page_count,omitempty"`
	Parser       string `json:"parser,omitempty"`
}
