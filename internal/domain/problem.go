package domain

import "net/http"

// Problem is the problem-details style error envelope produced by the
// HTTP surface. ErrorCode and TraceID are extension fields.
type Problem struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail,omitempty"`
	ErrorCode  string `json:"errorCode,omitempty"`
	TraceID    string `json:"traceId,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

var problemTitles = map[int]struct{ typ, title string }{
	http.StatusUnauthorized:        {"urn:sdap:error:unauthorized", "Unauthorized"},
	http.StatusForbidden:           {"urn:sdap:error:forbidden", "Forbidden"},
	http.StatusNotFound:            {"urn:sdap:error:not-found", "Not Found"},
	http.StatusTooManyRequests:     {"urn:sdap:error:rate-limited", "Rate Limited"},
	http.StatusInternalServerError: {"urn:sdap:error:internal", "Internal Error"},
	http.StatusBadRequest:          {"urn:sdap:error:bad-request", "Bad Request"},
}

// NewProblem builds a problem envelope for the given HTTP status.
func NewProblem(status int, detail string) *Problem {
	t, ok := problemTitles[status]
	if !ok {
		t = problemTitles[http.StatusInternalServerError]
		status = http.StatusInternalServerError
	}
	return &Problem{
		Type:   t.typ,
		Title:  t.title,
		Status: status,
		Detail: detail,
	}
}
