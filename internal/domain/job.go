package domain

import "time"

// JobLead is one raw posting as a source sees it, before filtering and scoring.
type JobLead struct {
	CompanyName string
	Title       string
	URL         string
	LocationRaw string
	WorkMode    string // Remote/Hybrid/Onsite/Unknown
	ATSJobID    string
	Description string
	PostedAt    *time.Time
	Source      string // greenhouse/lever/etc.
}

// JobPosting is a lead that survived a search config's filters.
type JobPosting struct {
	Title    string     `json:"title"`
	URL      string     `json:"url"`
	Location string     `json:"location"`
	WorkMode string     `json:"workMode"`
	PostedAt *time.Time `json:"postedAt,omitempty"`
	Score    int        `json:"score"`
	Tags     []string   `json:"tags"`
	SourceID string     `json:"sourceId"`
}
