package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy plus everything wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.App.Host = strings.TrimSpace(out.App.Host)
	out.Browser.RemoteURL = strings.TrimSpace(out.Browser.RemoteURL)
	out.Store.Driver = strings.ToLower(strings.TrimSpace(out.Store.Driver))
	out.Scrape.UserAgent = strings.TrimSpace(out.Scrape.UserAgent)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}
	if out.App.Host == "" {
		res.addErr("app.host is required")
	}

	// audit lifecycle
	if out.Audit.TimeoutSeconds <= 0 {
		res.addErr("audit.timeout_seconds must be > 0")
	}
	if out.Audit.ResultTTLSeconds <= 0 {
		res.addErr("audit.result_ttl_seconds must be > 0")
	}
	if out.Audit.SweepSeconds <= 0 {
		res.addErr("audit.sweep_seconds must be > 0")
	} else if out.Audit.ResultTTLSeconds > 0 && out.Audit.SweepSeconds > out.Audit.ResultTTLSeconds {
		res.addWarn("audit.sweep_seconds (%d) exceeds audit.result_ttl_seconds (%d); results will outlive their TTL.",
			out.Audit.SweepSeconds, out.Audit.ResultTTLSeconds)
	}
	if out.Audit.MaxConcurrency <= 0 {
		res.addErr("audit.max_concurrency must be > 0")
	} else if out.Audit.MaxConcurrency > 32 {
		res.addWarn("audit.max_concurrency is high (%d) and may trip ATS rate limits.", out.Audit.MaxConcurrency)
	}

	if out.Browser.PageTimeoutSeconds <= 0 {
		res.addErr("browser.page_timeout_seconds must be > 0")
	}
	if out.Browser.PingTimeoutSeconds <= 0 {
		res.addErr("browser.ping_timeout_seconds must be > 0")
	}
	if out.Browser.RemoteURL == "" {
		res.addWarn("browser.remote_url is empty; every audit request must carry remoteUrl.")
	}

	// scraping politeness
	if out.Scrape.ReqPerSec <= 0 {
		res.addErr("scrape.req_per_sec must be > 0")
	} else if out.Scrape.ReqPerSec > 10 {
		res.addWarn("scrape.req_per_sec is very high (%.1f) and may cause rate limits.", out.Scrape.ReqPerSec)
	}
	if out.Scrape.Burst <= 0 {
		res.addErr("scrape.burst must be > 0")
	}
	if out.Scrape.UserAgent == "" {
		res.addErr("scrape.user_agent is required")
	}

	switch out.Store.Driver {
	case "sqlite":
		if strings.TrimSpace(out.Store.Path) == "" {
			res.addErr("store.path is required when store.driver=sqlite")
		}
	case "postgres":
		if strings.TrimSpace(out.Store.URL) == "" {
			res.addErr("STORE_URL is required when store.driver=postgres")
		}
	default:
		res.addErr("store.driver must be sqlite or postgres, got %q", out.Store.Driver)
	}

	return out, res
}
