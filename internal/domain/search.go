package domain

// SearchConfig describes one board to scrape during an audit.
type SearchConfig struct {
	Source    string   `json:"source"`
	Company   string   `json:"company"`
	Slug      string   `json:"slug,omitempty"`
	URL       string   `json:"url,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`
	Locations []string `json:"locations,omitempty"`
	RemoteOK  bool     `json:"remoteOk,omitempty"`
}

// SearchResult is the outcome of one SearchConfig. Error is set when that
// config alone failed; the audit as a whole may still succeed.
type SearchResult struct {
	Source  string       `json:"source"`
	Company string       `json:"company"`
	Jobs    []JobPosting `json:"jobs"`
	Error   string       `json:"error,omitempty"`
}

const (
	RoleOpen   = "open"
	RoleClosed = "closed"
	RoleUnsure = "unsure"
)

// RoleCheck answers whether an application URL is still accepting candidates.
type RoleCheck struct {
	URL           string `json:"url"`
	Result        string `json:"result"`
	Justification string `json:"justification"`
	Method        string `json:"method"` // heuristic | llm
	HTTPStatus    int    `json:"httpStatus,omitempty"`
}
