// Package search indexes and queries a project's references, using
// Meilisearch when available and PostgreSQL full-text search otherwise.
package search

// Result is a single reference hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Year      string `json:"year,omitempty"`
	Journal   string `json:"journal,omitempty"`
	Screening string `json:"screening,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text            string
	ProjectID       string
	FilterScreening string // empty = all statuses
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// ReferenceRecord is the data we index for a reference.
type ReferenceRecord struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"projectId"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Year      string   `json:"year"`
	Journal   string   `json:"journal"`
	Abstract  string   `json:"abstract"`
	Screening string   `json:"screening"`
}
