package store

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"jobaudit-engine/internal/domain"
)

var ErrNotFound = errors.New("position not found")

// Store is the position persistence both drivers implement.
type Store interface {
	ListOpenRoles(ctx context.Context) ([]domain.Position, error)
	GetPosition(ctx context.Context, id string) (domain.Position, error)
	UpdatePositionStatus(ctx context.Context, id, status string, now time.Time) (domain.Position, error)
	SaveDiscovered(ctx context.Context, results []domain.SearchResult) (int, error)
	Close() error
}

// ClosedOnLayout is the MM/DD/YY format closedOn is stored in.
const ClosedOnLayout = "01/02/06"

// ValidStatusUpdate reports whether status may be set through the API.
func ValidStatusUpdate(status string) bool {
	return status == domain.PositionOpen || status == domain.PositionClosed
}

// ClosedOn returns the closedOn value for a status change at now. Reopening
// clears it.
func ClosedOn(status string, now time.Time) string {
	if status == domain.PositionClosed {
		return now.Format(ClosedOnLayout)
	}
	return ""
}

// NormalizeCompanyKey folds a company name for lookups.
func NormalizeCompanyKey(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

var atsHosts = []string{
	"greenhouse.io",
	"lever.co",
	"myworkdayjobs.com",
	"workday.com",
	"smartrecruiters.com",
	"icims.com",
	"jobvite.com",
	"ashbyhq.com",
	"linkedin.com",
	"indeed.com",
}

// LogoURL guesses a favicon for the company behind a posting URL. Postings
// hosted on an ATS say nothing about the company domain, so those get "".
func LogoURL(postingURL string) string {
	u, err := url.Parse(strings.TrimSpace(postingURL))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for _, b := range atsHosts {
		if host == b || strings.HasSuffix(host, "."+b) {
			return ""
		}
	}
	return "https://www.google.com/s2/favicons?domain=" + url.QueryEscape(host) + "&sz=64"
}

// DiscoveredPosition is a posting from an audit, ready to be inserted
// hidden for review.
type DiscoveredPosition struct {
	CompanyKey  string
	CompanyName string
	LogoURL     string
	Title       string
	URL         string
}

// Discovered flattens audit results into insertable rows, dropping postings
// without a company, title or URL and repeated URLs.
func Discovered(results []domain.SearchResult) []DiscoveredPosition {
	seen := map[string]bool{}
	var out []DiscoveredPosition
	for _, r := range results {
		name := strings.TrimSpace(r.Company)
		key := NormalizeCompanyKey(name)
		if key == "" {
			continue
		}
		for _, j := range r.Jobs {
			u := strings.TrimSpace(j.URL)
			if u == "" || strings.TrimSpace(j.Title) == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, DiscoveredPosition{
				CompanyKey:  key,
				CompanyName: name,
				LogoURL:     LogoURL(u),
				Title:       strings.TrimSpace(j.Title),
				URL:         u,
			})
		}
	}
	return out
}

// dateAddedLayout is fixed width so dateAdded sorts as text.
const dateAddedLayout = "2006-01-02T15:04:05.000000Z"

// DateAdded formats the timestamp positions are ordered by.
func DateAdded(t time.Time) string {
	return t.UTC().Format(dateAddedLayout)
}
