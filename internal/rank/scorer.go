// Package rank orders audit postings by how well they match a search config.
package rank

import "jobaudit-engine/internal/domain"

// Scorer rates a lead and returns the tags that earned the score.
type Scorer interface {
	Score(job domain.JobLead) (score int, tags []string)
}
