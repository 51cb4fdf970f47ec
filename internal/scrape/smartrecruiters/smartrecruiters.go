package smartrecruiters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/scrape/types"
	"jobaudit-engine/internal/scrape/util"
)

const (
	DefaultAPIBase  = "https://api.smartrecruiters.com/v1/companies"
	DefaultJobsBase = "https://jobs.smartrecruiters.com"

	pageSize  = 100
	maxOffset = 5000
)

type Scraper struct {
	APIBase   string
	JobsBase  string
	UserAgent string

	hc      *http.Client
	limiter *util.HostLimiter
}

func New(limiter *util.HostLimiter, userAgent string) *Scraper {
	return &Scraper{
		APIBase:   DefaultAPIBase,
		JobsBase:  DefaultJobsBase,
		UserAgent: userAgent,
		hc:        &http.Client{Timeout: 25 * time.Second},
		limiter:   limiter,
	}
}

func (s *Scraper) Name() string { return "smartrecruiters" }

type postingsResponse struct {
	Content    []posting `json:"content"`
	TotalFound int       `json:"totalFound"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
}

type posting struct {
	ID           string    `json:"id"`
	UUID         string    `json:"uuid"`
	Name         string    `json:"name"`
	ReleasedDate time.Time `json:"releasedDate"`
	Ref          string    `json:"ref"`
	Location     struct {
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Remote  bool   `json:"remote"`
	} `json:"location"`
}

func (s *Scraper) Fetch(ctx context.Context, req types.Request) ([]domain.JobLead, error) {
	slug := strings.TrimSpace(req.Config.Slug)
	if slug == "" {
		return nil, fmt.Errorf("smartrecruiters: slug is required")
	}
	name := strings.TrimSpace(req.Config.Company)
	if name == "" {
		name = slug
	}

	base := fmt.Sprintf("%s/%s/postings", strings.TrimRight(s.APIBase, "/"), url.PathEscape(slug))

	var out []domain.JobLead
	for offset := 0; offset <= maxOffset; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pr, err := s.fetchPage(ctx, fmt.Sprintf("%s?limit=%d&offset=%d", base, pageSize, offset))
		if err != nil {
			return out, err
		}
		if len(pr.Content) == 0 {
			break
		}

		for _, p := range pr.Content {
			if lead, ok := s.toLead(slug, name, p); ok {
				out = append(out, lead)
			}
		}

		if pr.TotalFound > 0 && offset+pageSize >= pr.TotalFound {
			break
		}
	}

	return out, nil
}

func (s *Scraper) fetchPage(ctx context.Context, u string) (postingsResponse, error) {
	var pr postingsResponse

	if err := s.limiter.WaitURL(ctx, u); err != nil {
		return pr, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return pr, err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "application/json")

	res, err := s.hc.Do(req)
	if err != nil {
		return pr, fmt.Errorf("smartrecruiters get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return pr, fmt.Errorf("smartrecruiters status %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(&pr); err != nil {
		return pr, fmt.Errorf("smartrecruiters decode: %w", err)
	}
	return pr, nil
}

func (s *Scraper) toLead(slug, company string, p posting) (domain.JobLead, bool) {
	title := strings.TrimSpace(p.Name)
	id := strings.TrimSpace(firstNonEmpty(p.ID, p.UUID, p.Ref))
	if title == "" || id == "" {
		return domain.JobLead{}, false
	}

	loc := util.NormalizeLocation(strings.Join(nonEmpty(p.Location.City, p.Location.Region, p.Location.Country), ", "))
	mode := util.InferWorkModeFromText(loc, title, "")
	if p.Location.Remote {
		mode = "Remote"
	}

	var postedAt *time.Time
	if !p.ReleasedDate.IsZero() {
		t := p.ReleasedDate.UTC()
		postedAt = &t
	}

	return domain.JobLead{
		CompanyName: company,
		Title:       title,
		LocationRaw: loc,
		WorkMode:    mode,
		URL:         fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.JobsBase, "/"), slug, id),
		PostedAt:    postedAt,
		Source:      "smartrecruiters",
		ATSJobID:    fmt.Sprintf("smartrecruiters:%s:%s", slug, id),
	}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(vals ...string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
