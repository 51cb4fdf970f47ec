package scrape

import (
	"strings"

	"jobaudit-engine/internal/domain"
)

// ShouldKeepJob applies a search config's location and keyword filters to a
// lead. reason names the filter that dropped it.
func ShouldKeepJob(cfg domain.SearchConfig, j domain.JobLead) (keep bool, reason string) {
	if strings.TrimSpace(j.Title) == "" || strings.TrimSpace(j.URL) == "" {
		return false, "incomplete"
	}
	if !passesLocation(cfg, j) {
		return false, "location"
	}
	if !matchesKeywords(cfg, j) {
		return false, "no_keyword_match"
	}
	return true, ""
}

func passesLocation(cfg domain.SearchConfig, j domain.JobLead) bool {
	text := strings.ToLower(strings.TrimSpace(j.LocationRaw))
	title := strings.ToLower(strings.TrimSpace(j.Title))

	isRemote := j.WorkMode == "Remote" || strings.Contains(text, "remote") || strings.Contains(title, "remote")
	if isRemote && cfg.RemoteOK {
		return true
	}

	if isRemote {
		return false
	}

	// empty allowlist keeps every on-site role
	allow := cfg.Locations
	if len(allow) == 0 {
		return true
	}

	for _, a := range allow {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if strings.Contains(text, a) || strings.Contains(title, a) {
			return true
		}
	}
	return false
}

func matchesKeywords(cfg domain.SearchConfig, j domain.JobLead) bool {
	if len(cfg.Keywords) == 0 {
		return true
	}
	text := strings.ToLower(j.Title + " " + j.Description)
	for _, kw := range cfg.Keywords {
		n := strings.ToLower(strings.TrimSpace(kw))
		if n != "" && strings.Contains(text, n) {
			return true
		}
	}
	return false
}
