package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/scrape/util"
)

const (
	maxPageBytes = 2 << 20
	maxLLMText   = 8000
)

var closedPhrases = []string{
	"no longer accepting applications",
	"no longer accepting applicants",
	"position has been filled",
	"position is closed",
	"job is no longer available",
	"job is no longer open",
	"this job has expired",
	"posting has closed",
	"posting is no longer",
	"role has been filled",
	"job not found",
}

// CheckOpen decides whether applicationURL still accepts applications.
func (e *Engine) CheckOpen(ctx context.Context, applicationURL string) (domain.RoleCheck, error) {
	rc := domain.RoleCheck{URL: strings.TrimSpace(applicationURL), Result: domain.RoleUnsure, Method: "heuristic"}

	u, err := url.Parse(rc.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return rc, fmt.Errorf("invalid application url %q", applicationURL)
	}

	html, status, finalURL, err := e.fetchPage(ctx, rc.URL)
	rc.HTTPStatus = status
	if err == nil && (status == http.StatusNotFound || status == http.StatusGone) {
		rc.Result = domain.RoleClosed
		rc.Justification = fmt.Sprintf("page returned HTTP %d", status)
		return rc, nil
	}
	// Greenhouse redirects closed postings back to the board with error=true.
	if err == nil && finalURL != nil && finalURL.Query().Get("error") == "true" {
		rc.Result = domain.RoleClosed
		rc.Justification = "redirected to the job board with an error flag"
		return rc, nil
	}

	if err != nil || status >= 400 {
		rendered, rerr := e.renderPage(ctx, rc.URL)
		switch {
		case rerr == nil:
			html = rendered
		case err != nil:
			return rc, fmt.Errorf("fetch %s: %w", rc.URL, err)
		default:
			rc.Justification = fmt.Sprintf("page returned HTTP %d", status)
			return rc, nil
		}
	}

	result, why, text := ClassifyHTML(html)
	rc.Result, rc.Justification = result, why
	if result != domain.RoleUnsure || e.opts.Classifier == nil {
		return rc, nil
	}

	llmResult, llmWhy, err := e.opts.Classifier.Classify(ctx, rc.URL, util.Truncate(text, maxLLMText))
	if err != nil {
		log.Warnf("[rolecheck] classifier failed url=%s err=%v", rc.URL, err)
		return rc, nil
	}
	rc.Result, rc.Justification, rc.Method = llmResult, llmWhy, "llm"
	return rc, nil
}

func (e *Engine) fetchPage(ctx context.Context, pageURL string) (string, int, *url.URL, error) {
	if err := e.opts.Limiter.WaitURL(ctx, pageURL); err != nil {
		return "", 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", 0, nil, err
	}
	req.Header.Set("User-Agent", e.opts.UserAgent)

	res, err := e.hc.Do(req)
	if err != nil {
		return "", 0, nil, err
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxPageBytes))
	if err != nil {
		return "", res.StatusCode, nil, err
	}
	return string(b), res.StatusCode, res.Request.URL, nil
}

func (e *Engine) renderPage(ctx context.Context, pageURL string) (string, error) {
	if e.opts.Browser == nil || strings.TrimSpace(e.opts.DefaultRemoteURL) == "" {
		return "", fmt.Errorf("no remote browser configured")
	}
	return e.opts.Browser.Render(ctx, e.opts.DefaultRemoteURL, pageURL)
}

// ClassifyHTML applies the page heuristics. It also returns the visible text
// so a caller can hand it to a classifier.
func ClassifyHTML(html string) (result, justification, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.RoleUnsure, "page could not be parsed", ""
	}
	doc.Find("script, style, noscript").Remove()

	text = util.CleanText(doc.Find("body").Text())
	if text == "" {
		text = util.CleanText(doc.Text())
	}
	low := strings.ToLower(text)

	for _, p := range closedPhrases {
		if strings.Contains(low, p) {
			return domain.RoleClosed, fmt.Sprintf("page says %q", p), text
		}
	}

	if hasApplyControl(doc) {
		return domain.RoleOpen, "page has an application form or apply button", text
	}
	return domain.RoleUnsure, "no closed notice and no apply control found", text
}

func hasApplyControl(doc *goquery.Document) bool {
	if doc.Find("input[type='file'], form#application_form, form[action*='apply'], [data-qa='btn-apply']").Length() > 0 {
		return true
	}

	found := false
	doc.Find("a, button, input[type='submit']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(util.CleanText(s.Text()))
		if v, ok := s.Attr("value"); ok && label == "" {
			label = strings.ToLower(v)
		}
		if strings.Contains(label, "apply") && !strings.Contains(label, "applied") {
			found = true
			return false
		}
		return true
	})
	return found
}
