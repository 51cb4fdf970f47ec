package workday

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/scrape/types"
	"jobaudit-engine/internal/scrape/util"
)

const (
	pageSize  = 20
	maxOffset = 2000
)

var ErrBlocked = errors.New("workday blocked by cloudflare")

// Scraper reads a Workday board through its cxs jobs endpoint. Hosts that
// answered with a Cloudflare challenge are remembered and skipped.
type Scraper struct {
	UserAgent string

	limiter *util.HostLimiter

	mu          sync.Mutex
	blockedHost map[string]bool
}

type board struct {
	Scheme string
	Host   string
	Tenant string
	Site   string
	Locale string
	Raw    string
}

func New(limiter *util.HostLimiter, userAgent string) *Scraper {
	return &Scraper{
		UserAgent:   userAgent,
		limiter:     limiter,
		blockedHost: map[string]bool{},
	}
}

func (s *Scraper) Name() string { return "workday" }

type jobsRequest struct {
	AppliedFacets map[string]any `json:"appliedFacets"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
	SearchText    string         `json:"searchText"`
}

type jobsResponse struct {
	Total       int       `json:"total"`
	JobPostings []posting `json:"jobPostings"`
}

type posting struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	ExternalPath     string `json:"externalPath"`
	ExternalURL      string `json:"externalUrl"`
	LocationsText    string `json:"locationsText"`
	Location         string `json:"location"`
	PostedOnDate     string `json:"postedOnDate"`
	JobReqID         string `json:"jobRequisitionId"`
	JobRequisitionID string `json:"jobRequisitionID"`
}

// Fetch lists every posting on the board at req.Config.URL. The config's
// first keyword, if any, is sent as the board search text.
func (s *Scraper) Fetch(ctx context.Context, req types.Request) ([]domain.JobLead, error) {
	b, err := parseBoardURL(req.Config.URL)
	if err != nil {
		return nil, fmt.Errorf("workday: %w", err)
	}
	name := strings.TrimSpace(req.Config.Company)
	if name == "" {
		name = b.Tenant
	}

	if s.isBlocked(b.Host) {
		return nil, ErrBlocked
	}

	jar, _ := cookiejar.New(nil)
	hc := &http.Client{Jar: jar, Timeout: 30 * time.Second}

	csrf, bootErr := s.bootstrap(ctx, hc, b)
	if errors.Is(bootErr, ErrBlocked) {
		s.markBlocked(b.Host)
		return nil, ErrBlocked
	}
	if bootErr != nil {
		log.Debugf("[workday] bootstrap host=%s err=%v", b.Host, bootErr)
	}

	search := ""
	if len(req.Config.Keywords) > 0 {
		search = strings.TrimSpace(req.Config.Keywords[0])
	}

	endpoint := b.jobsEndpoint()
	log.Debugf("[workday] company=%q endpoint=%s", name, endpoint)

	var out []domain.JobLead
	for offset := 0; offset <= maxOffset; offset += pageSize {
		page, err := s.fetchPage(ctx, hc, b, endpoint, csrf, jobsRequest{
			AppliedFacets: map[string]any{},
			Limit:         pageSize,
			Offset:        offset,
			SearchText:    search,
		})
		if err != nil {
			return out, err
		}
		if len(page.JobPostings) == 0 {
			break
		}
		for _, p := range page.JobPostings {
			if lead, ok := toLead(b, name, p); ok {
				out = append(out, lead)
			}
		}
		if page.Total > 0 && offset+pageSize >= page.Total {
			break
		}
	}
	return out, nil
}

func (s *Scraper) isBlocked(host string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockedHost[host]
}

func (s *Scraper) markBlocked(host string) {
	s.mu.Lock()
	s.blockedHost[host] = true
	s.mu.Unlock()
	log.Warnf("[workday] host=%s blocked by cloudflare; skipping it from now on", host)
}

func (s *Scraper) fetchPage(ctx context.Context, hc *http.Client, b board, endpoint, csrf string, body jobsRequest) (jobsResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return jobsResponse{}, err
	}
	if err := s.limiter.WaitURL(ctx, endpoint); err != nil {
		return jobsResponse{}, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return jobsResponse{}, err
	}
	hreq.Header.Set("User-Agent", s.UserAgent)
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Origin", b.Scheme+"://"+b.Host)
	hreq.Header.Set("Referer", b.Raw)
	hreq.Header.Set("Accept-Language", firstNonEmpty(b.Locale, "en-US"))
	if csrf != "" {
		hreq.Header.Set("X-Calypso-Csrf-Token", csrf)
	}

	res, err := hc.Do(hreq)
	if err != nil {
		return jobsResponse{}, fmt.Errorf("workday post jobs: %w", err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))

	if res.StatusCode >= 400 {
		if looksLikeCloudflareBlock(res, string(data)) {
			s.markBlocked(b.Host)
			return jobsResponse{}, ErrBlocked
		}
		return jobsResponse{}, fmt.Errorf("workday status %d body=%s", res.StatusCode, util.Truncate(oneLine(string(data)), 240))
	}

	var jr jobsResponse
	if err := json.Unmarshal(data, &jr); err != nil {
		return jobsResponse{}, fmt.Errorf("workday decode: %w", err)
	}
	return jr, nil
}

func toLead(b board, company string, p posting) (domain.JobLead, bool) {
	title := strings.TrimSpace(p.Title)
	jobURL := b.absoluteJobURL(p)
	if title == "" || jobURL == "" {
		return domain.JobLead{}, false
	}

	loc := util.NormalizeLocation(firstNonEmpty(p.LocationsText, p.Location))
	jobID := strings.TrimSpace(firstNonEmpty(p.JobReqID, p.JobRequisitionID, p.ID))
	if jobID == "" {
		jobID = util.HashString("url:" + jobURL)
	}

	return domain.JobLead{
		CompanyName: company,
		Title:       title,
		LocationRaw: loc,
		WorkMode:    util.InferWorkModeFromText(loc, title, ""),
		URL:         jobURL,
		PostedAt:    parsePostedAt(p.PostedOnDate),
		Source:      "workday",
		ATSJobID:    fmt.Sprintf("workday:%s:%s:%s", b.Tenant, b.Site, jobID),
	}, true
}

// bootstrap loads the board page so the jar picks up the session cookies
// and returns the CALYPSO_CSRF_TOKEN some tenants insist on.
func (s *Scraper) bootstrap(ctx context.Context, hc *http.Client, b board) (string, error) {
	if err := s.limiter.WaitURL(ctx, b.Raw); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.Raw, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", firstNonEmpty(b.Locale, "en-US"))

	res, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	preview, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	_, _ = io.Copy(io.Discard, res.Body)
	if looksLikeCloudflareBlock(res, string(preview)) {
		return "", ErrBlocked
	}

	u, _ := url.Parse(b.Raw)
	for _, c := range hc.Jar.Cookies(u) {
		if c.Name == "CALYPSO_CSRF_TOKEN" && c.Value != "" {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("no CALYPSO_CSRF_TOKEN cookie (status=%d)", res.StatusCode)
}

// parseBoardURL splits https://<tenant>.wd5.myworkdayjobs.com/[locale/]<site>.
func parseBoardURL(raw string) (board, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return board{}, errors.New("board url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return board{}, err
	}
	if u.Scheme == "" || u.Host == "" {
		return board{}, fmt.Errorf("board url %q must be absolute", raw)
	}

	parts := strings.Split(u.Hostname(), ".")
	if len(parts) < 3 {
		return board{}, fmt.Errorf("unexpected host %q", u.Host)
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return board{}, fmt.Errorf("missing site in %q", raw)
	}

	locale := ""
	if len(segs) >= 2 && looksLikeLocale(segs[0]) {
		locale = normalizeLocale(segs[0])
		segs = segs[1:]
	}

	return board{
		Scheme: u.Scheme,
		Host:   u.Host,
		Tenant: parts[0],
		Site:   segs[len(segs)-1],
		Locale: locale,
		Raw:    u.Scheme + "://" + u.Host + "/" + strings.Trim(u.Path, "/"),
	}, nil
}

func looksLikeLocale(s string) bool {
	if len(s) != 5 || s[2] != '-' {
		return false
	}
	return isAlpha(s[0:2]) && isAlpha(s[3:5])
}

func normalizeLocale(s string) string {
	return strings.ToLower(s[0:2]) + "-" + strings.ToUpper(s[3:5])
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}

func (b board) jobsEndpoint() string {
	base := fmt.Sprintf("%s://%s/wday/cxs/%s/%s/jobs", b.Scheme, b.Host, b.Tenant, b.Site)
	if b.Locale == "" {
		return base
	}
	return base + "?locale=" + url.QueryEscape(b.Locale)
}

func (b board) absoluteJobURL(p posting) string {
	if u := strings.TrimSpace(p.ExternalURL); u != "" {
		return u
	}
	path := strings.TrimSpace(p.ExternalPath)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// Postings live under the site path, not the API path.
	return b.Raw + strings.TrimPrefix(path, "/"+b.Site)
}

func parsePostedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		var t time.Time
		if n >= 1_000_000_000_000 {
			t = time.UnixMilli(n).UTC()
		} else {
			t = time.Unix(n, 0).UTC()
		}
		return &t
	}
	return nil
}

func looksLikeCloudflareBlock(res *http.Response, preview string) bool {
	server := strings.ToLower(res.Header.Get("Server"))
	if strings.Contains(server, "cloudflare") && res.Header.Get("CF-RAY") != "" && res.StatusCode >= 400 {
		return true
	}
	low := strings.ToLower(preview)
	if strings.Contains(low, "/cdn-cgi/challenge") ||
		(strings.Contains(low, "cloudflare") && strings.Contains(low, "checking your browser")) ||
		(strings.Contains(low, "attention required") && strings.Contains(low, "cloudflare")) {
		return true
	}
	return res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusTooManyRequests
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
