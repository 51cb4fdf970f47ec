package rank

import (
	"strings"

	"jobaudit-engine/internal/domain"
)

const (
	titleWeight = 10
	bodyWeight  = 3
	remoteBonus = 2
	recentBonus = 1
)

// KeywordScorer ranks a lead by the search config's keywords. A keyword found
// in the title outweighs one that only shows up in the description.
type KeywordScorer struct {
	Keywords []string
	RemoteOK bool
}

func (s KeywordScorer) Score(job domain.JobLead) (int, []string) {
	title := strings.ToLower(job.Title)
	body := strings.ToLower(job.Description)

	score := 0
	var tags []string

	for _, kw := range s.Keywords {
		n := strings.ToLower(strings.TrimSpace(kw))
		if n == "" {
			continue
		}
		switch {
		case strings.Contains(title, n):
			score += titleWeight
			tags = append(tags, n)
		case strings.Contains(body, n):
			score += bodyWeight
			tags = append(tags, n)
		}
	}

	if s.RemoteOK && job.WorkMode == "Remote" {
		score += remoteBonus
		tags = append(tags, "remote")
	}
	if job.PostedAt != nil {
		score += recentBonus
	}

	return score, uniq(tags)
}

func uniq(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, t := range in {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
