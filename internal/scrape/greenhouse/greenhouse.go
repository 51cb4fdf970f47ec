package greenhouse

import (
	"context"
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

const DefaultBaseURL = "https://boards.greenhouse.io"

// maxHydrate caps detail-page fetches per board.
const maxHydrate = 60

type Scraper struct {
	BaseURL   string
	UserAgent string

	hc      *http.Client
	limiter *util.HostLimiter
}

func New(limiter *util.HostLimiter, userAgent string) *Scraper {
	return &Scraper{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		hc:        &http.Client{Timeout: 20 * time.Second},
		limiter:   limiter,
	}
}

func (s *Scraper) Name() string { return "greenhouse" }

func (s *Scraper) Fetch(ctx context.Context, req types.Request) ([]domain.JobLead, error) {
	slug := strings.TrimSpace(req.Config.Slug)
	if slug == "" {
		return nil, fmt.Errorf("greenhouse: slug is required")
	}
	name := strings.TrimSpace(req.Config.Company)
	if name == "" {
		name = slug
	}

	base := strings.TrimRight(s.BaseURL, "/")
	boardURL := base + "/" + url.PathEscape(slug)

	doc, err := s.getDoc(ctx, boardURL)
	if err != nil {
		return nil, fmt.Errorf("greenhouse get board: %w", err)
	}
	baseURL, _ := url.Parse(base)

	// Greenhouse boards link to /<slug>/jobs/<id>.
	seen := map[string]bool{}
	var jobs []domain.JobLead
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := util.ResolveHref(baseURL, href)
		if abs == "" || !strings.Contains(strings.ToLower(abs), "/jobs/") {
			return
		}

		jobID := extractJobID(abs)
		if jobID == "" {
			return
		}

		sourceID := fmt.Sprintf("greenhouse:%s:%s", slug, jobID)
		if seen[sourceID] {
			return
		}
		seen[sourceID] = true

		title := util.CleanText(a.Text())
		if util.LooksLikeJunkTitle(title) {
			title = ""
		}

		// The board lists the location next to the title.
		loc := util.CleanText(a.Closest(".opening").Find(".location").First().Text())

		jobs = append(jobs, domain.JobLead{
			CompanyName: name,
			Title:       title,
			URL:         abs,
			LocationRaw: util.NormalizeLocation(loc),
			Source:      "greenhouse",
			ATSJobID:    sourceID,
		})
	})

	hydrated := 0
	for i := range jobs {
		if jobs[i].Title != "" && jobs[i].LocationRaw != "" {
			jobs[i].WorkMode = util.InferWorkModeFromText(jobs[i].LocationRaw, jobs[i].Title, "")
			continue
		}
		if hydrated >= maxHydrate {
			continue
		}
		hydrated++
		if err := s.hydrateJob(ctx, &jobs[i]); err != nil {
			log.Debugf("[greenhouse] hydrate url=%s err=%v", jobs[i].URL, err)
		}
	}

	return jobs, nil
}

func (s *Scraper) hydrateJob(ctx context.Context, j *domain.JobLead) error {
	doc, err := s.getDoc(ctx, j.URL)
	if err != nil {
		return err
	}

	if j.Title == "" {
		if t := util.CleanText(doc.Find("h1").First().Text()); t != "" {
			j.Title = t
		}
	}
	if j.LocationRaw == "" {
		j.LocationRaw = util.FindLocation(doc)
	}
	if sel := doc.Find("#content").First(); sel.Length() > 0 {
		j.Description = util.CleanText(sel.Text())
	}
	j.WorkMode = util.InferWorkModeFromText(j.LocationRaw, j.Title, j.Description)
	return nil
}

func (s *Scraper) getDoc(ctx context.Context, u string) (*goquery.Document, error) {
	if err := s.limiter.WaitURL(ctx, u); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.UserAgent)

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d for %s", res.StatusCode, u)
	}
	return goquery.NewDocumentFromReader(res.Body)
}

func extractJobID(u string) string {
	parts := strings.SplitN(u, "/jobs/", 2)
	if len(parts) < 2 {
		return ""
	}
	var id strings.Builder
	for _, r := range parts[1] {
		if r < '0' || r > '9' {
			break
		}
		id.WriteRune(r)
	}
	return id.String()
}
