package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LooksLikeJunkTitle flags anchor texts that are navigation, not job titles.
func LooksLikeJunkTitle(t string) bool {
	l := strings.ToLower(CleanText(t))
	if l == "" || len(l) < 4 || len(l) > 140 {
		return true
	}
	for _, junk := range []string{"view all", "see all", "apply now", "learn more", "read more", "sign in", "log in", "back to"} {
		if strings.Contains(l, junk) {
			return true
		}
	}
	return l == "apply" || l == "view" || l == "careers" || l == "jobs"
}

func FindLocation(doc *goquery.Document) string {
	candidates := []string{
		".location",
		".opening .location",
		".job__location",
		"[itemprop='jobLocation']",
		"[data-qa='location']",
		"[data-testid='job-location']",
		"[data-testid='location']",
	}

	for _, sel := range candidates {
		if t := CleanText(doc.Find(sel).First().Text()); t != "" {
			return NormalizeLocation(t)
		}
	}

	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if loc := ExtractLocationFromLabeledText(v); loc != "" {
			return NormalizeLocation(loc)
		}
	}

	body := CleanText(doc.Find("body").Text())
	if loc := ExtractLocationFromLabeledText(body); loc != "" {
		return NormalizeLocation(loc)
	}

	return ""
}

// ExtractLocationFromLabeledText returns the text after a "Location:" style
// label, cut at the first separator.
func ExtractLocationFromLabeledText(s string) string {
	low := strings.ToLower(s)

	labels := []string{
		"job location:",
		"locations:",
		"location:",
	}

	for _, lab := range labels {
		if i := strings.Index(low, lab); i >= 0 {
			rest := strings.TrimSpace(s[i+len(lab):])

			for _, cut := range []string{"\n", "\r", " | ", " · ", ". "} {
				if j := strings.Index(rest, cut); j >= 0 {
					rest = rest[:j]
				}
			}

			rest = CleanText(rest)
			if rest != "" && len(rest) <= 80 {
				return rest
			}
		}
	}
	return ""
}
