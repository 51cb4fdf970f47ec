package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/scrape/types"
	"jobaudit-engine/internal/scrape/util"
)

const DefaultAPIBase = "https://api.lever.co/v0/postings"

type Scraper struct {
	APIBase   string
	UserAgent string

	hc      *http.Client
	limiter *util.HostLimiter
}

func New(limiter *util.HostLimiter, userAgent string) *Scraper {
	return &Scraper{
		APIBase:   DefaultAPIBase,
		UserAgent: userAgent,
		hc:        &http.Client{Timeout: 20 * time.Second},
		limiter:   limiter,
	}
}

func (s *Scraper) Name() string { return "lever" }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"` // ms epoch
	Categories struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	WorkplaceType    string `json:"workplaceType"`
	DescriptionPlain string `json:"descriptionPlain"`
}

func (s *Scraper) Fetch(ctx context.Context, req types.Request) ([]domain.JobLead, error) {
	slug := strings.TrimSpace(req.Config.Slug)
	if slug == "" {
		return nil, fmt.Errorf("lever: slug is required")
	}
	name := strings.TrimSpace(req.Config.Company)
	if name == "" {
		name = slug
	}

	apiURL := fmt.Sprintf("%s/%s?mode=json", strings.TrimRight(s.APIBase, "/"), url.PathEscape(slug))

	if err := s.limiter.WaitURL(ctx, apiURL); err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("User-Agent", s.UserAgent)
	hreq.Header.Set("Accept", "application/json")

	res, err := s.hc.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("lever get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("lever status %d", res.StatusCode)
	}

	var postings []leverPosting
	if err := json.NewDecoder(res.Body).Decode(&postings); err != nil {
		return nil, fmt.Errorf("lever decode: %w", err)
	}

	out := make([]domain.JobLead, 0, len(postings))
	for _, p := range postings {
		title := strings.TrimSpace(p.Text)
		if p.ID == "" || p.HostedURL == "" || title == "" {
			continue
		}
		var postedAt *time.Time
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt).UTC()
			postedAt = &t
		}
		loc := util.NormalizeLocation(p.Categories.Location)
		mode := util.InferWorkModeFromText(loc+" "+p.WorkplaceType, title, "")

		out = append(out, domain.JobLead{
			CompanyName: name,
			Title:       title,
			LocationRaw: loc,
			WorkMode:    mode,
			URL:         p.HostedURL,
			PostedAt:    postedAt,
			Description: p.DescriptionPlain,
			Source:      "lever",
			ATSJobID:    fmt.Sprintf("lever:%s:%s", slug, p.ID),
		})
	}

	for i := range out {
		if out[i].LocationRaw == "" {
			if err := s.hydrateJob(ctx, &out[i]); err != nil {
				log.Debugf("[lever] hydrate url=%s err=%v", out[i].URL, err)
			}
		}
	}

	return out, nil
}

func (s *Scraper) hydrateJob(ctx context.Context, j *domain.JobLead) error {
	if err := s.limiter.WaitURL(ctx, j.URL); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.UserAgent)

	res, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return fmt.Errorf("job page status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return err
	}

	for _, sel := range []string{".posting-categories .location", ".location", "[itemprop='jobLocation']"} {
		if t := util.CleanText(doc.Find(sel).First().Text()); t != "" {
			j.LocationRaw = util.NormalizeLocation(t)
			break
		}
	}
	j.WorkMode = util.InferWorkModeFromText(j.LocationRaw, j.Title, j.Description)
	return nil
}
