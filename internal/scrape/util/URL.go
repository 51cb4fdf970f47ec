package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// CanonicalizeURL lowercases scheme/host, drops the fragment and tracking
// params, and sorts the query so equal postings compare equal.
func CanonicalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "mc_cid" || lk == "mc_eid" ||
			lk == "mkt_tok" {
			q.Del(k)
		}
	}

	// deterministic query
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ResolveHref makes href absolute against base. Empty on failure or for
// non-http links (mailto:, javascript:, ...).
func ResolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// ScoreJobURL ranks how much a link looks like a single job posting.
func ScoreJobURL(u string) int {
	lu := strings.ToLower(u)
	score := 0

	if strings.Contains(lu, "greenhouse.io") || strings.Contains(lu, "lever.co") ||
		strings.Contains(lu, "myworkdayjobs") || strings.Contains(lu, "smartrecruiters.com") ||
		strings.Contains(lu, "ashbyhq.com") {
		score += 80
	}
	if strings.Contains(lu, "/job/") || strings.Contains(lu, "/jobs/") || strings.Contains(lu, "/positions/") ||
		strings.Contains(lu, "/opening") || strings.Contains(lu, "/req") {
		score += 40
	}
	if strings.Contains(lu, "apply") {
		score += 20
	}
	if strings.Contains(lu, "/careers") {
		score += 10
	}

	if strings.Contains(lu, "/alerts") || strings.Contains(lu, "/settings") {
		score -= 100
	}
	return score
}

func IsJunkURL(u string) bool {
	lu := strings.ToLower(u)

	junks := []string{
		"unsubscribe",
		"preferences",
		"privacy",
		"terms",
		"cookie",
		"tracking",
		"/alerts",
		"/settings",
		"/help",
		"/legal",
		"/login",
		"/signin",
		"linkedin.com/company",
		"twitter.com",
		"facebook.com",
		"instagram.com",
	}
	for _, j := range junks {
		if strings.Contains(lu, j) {
			return true
		}
	}
	return false
}

func HashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:16])
}
