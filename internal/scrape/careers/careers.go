// Package careers pulls job links off an arbitrary company careers page.
package careers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/scrape/types"
	"jobaudit-engine/internal/scrape/util"
)

// minLinkScore is the ScoreJobURL threshold for a link to count as a posting.
const minLinkScore = 40

const maxLinks = 200

type Scraper struct {
	UserAgent string

	hc       *http.Client
	limiter  *util.HostLimiter
	renderer types.Renderer
}

// New builds the careers source. renderer may be nil, in which case pages are
// always fetched over plain HTTP.
func New(limiter *util.HostLimiter, renderer types.Renderer, userAgent string) *Scraper {
	return &Scraper{
		UserAgent: userAgent,
		hc:        &http.Client{Timeout: 25 * time.Second},
		limiter:   limiter,
		renderer:  renderer,
	}
}

func (s *Scraper) Name() string { return "careers" }

func (s *Scraper) Fetch(ctx context.Context, req types.Request) ([]domain.JobLead, error) {
	pageURL := strings.TrimSpace(req.Config.URL)
	if pageURL == "" {
		return nil, fmt.Errorf("careers: url is required")
	}
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("careers: invalid url %q", pageURL)
	}

	html, err := s.load(ctx, req.RemoteURL, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("careers parse: %w", err)
	}

	company := strings.TrimSpace(req.Config.Company)
	if company == "" {
		company = base.Hostname()
	}
	return ExtractLeads(doc, base, company), nil
}

func (s *Scraper) load(ctx context.Context, remoteURL, pageURL string) (string, error) {
	if s.renderer != nil && strings.TrimSpace(remoteURL) != "" {
		html, err := s.renderer.Render(ctx, remoteURL, pageURL)
		if err == nil {
			return html, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		log.Warnf("[careers] render failed, falling back to http url=%s err=%v", pageURL, err)
	}

	if err := s.limiter.WaitURL(ctx, pageURL); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.UserAgent)

	res, err := s.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("careers get: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return "", fmt.Errorf("careers status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", fmt.Errorf("careers parse: %w", err)
	}
	return doc.Html()
}

type candidate struct {
	lead  domain.JobLead
	score int
}

// ExtractLeads keeps anchors that look like single postings, best first.
func ExtractLeads(doc *goquery.Document, base *url.URL, company string) []domain.JobLead {
	seen := map[string]bool{}
	var cands []candidate

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := util.ResolveHref(base, href)
		if abs == "" || util.IsJunkURL(abs) {
			return
		}
		score := util.ScoreJobURL(abs)
		if score < minLinkScore {
			return
		}

		title := util.CleanText(a.Text())
		if util.LooksLikeJunkTitle(title) {
			return
		}

		key := util.CanonicalizeURL(abs)
		if seen[key] {
			return
		}
		seen[key] = true

		loc := util.NormalizeLocation(util.ExtractLocationFromLabeledText(a.Parent().Text()))
		cands = append(cands, candidate{
			lead: domain.JobLead{
				CompanyName: company,
				Title:       title,
				URL:         key,
				LocationRaw: loc,
				WorkMode:    util.InferWorkModeFromText(loc, title, ""),
				Source:      "careers",
				ATSJobID:    "careers:" + util.HashString(key),
			},
			score: score,
		})
	})

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	if len(cands) > maxLinks {
		cands = cands[:maxLinks]
	}

	out := make([]domain.JobLead, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.lead)
	}
	return out
}
