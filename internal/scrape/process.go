package scrape

import (
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/rank"
	"jobaudit-engine/internal/scrape/util"
)

// ProcessLeads filters the raw leads of one search config, scores the
// survivors and returns them best first. Duplicate postings (same canonical
// URL or source id) are kept once.
func ProcessLeads(cfg domain.SearchConfig, leads []domain.JobLead) []domain.JobPosting {
	scorer := rank.KeywordScorer{Keywords: cfg.Keywords, RemoteOK: cfg.RemoteOK}

	seen := make(map[string]bool, len(leads))
	out := make([]domain.JobPosting, 0, len(leads))

	for _, lead := range leads {
		keep, why := ShouldKeepJob(cfg, lead)
		if !keep {
			log.Debugf("[%s] skipped (%s) title=%q loc=%q url=%q",
				lead.Source, why, lead.Title, lead.LocationRaw, lead.URL)
			continue
		}

		p := postingFromLead(lead, scorer)
		if seen[p.SourceID] || seen[p.URL] {
			continue
		}
		seen[p.SourceID] = true
		seen[p.URL] = true
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func postingFromLead(lead domain.JobLead, s rank.Scorer) domain.JobPosting {
	if lead.PostedAt != nil && lead.PostedAt.IsZero() {
		lead.PostedAt = nil
	}
	score, tags := s.Score(lead)

	u := util.CanonicalizeURL(lead.URL)
	sourceID := strings.TrimSpace(lead.ATSJobID)
	if sourceID == "" {
		sourceID = util.HashString("url:" + u)
	}

	loc := strings.TrimSpace(lead.LocationRaw)
	if loc == "" {
		loc = "Unknown"
	}
	mode := strings.TrimSpace(lead.WorkMode)
	if mode == "" {
		mode = "Unknown"
	}

	return domain.JobPosting{
		Title:    strings.TrimSpace(lead.Title),
		URL:      u,
		Location: loc,
		WorkMode: mode,
		PostedAt: lead.PostedAt,
		Score:    score,
		Tags:     tags,
		SourceID: sourceID,
	}
}
