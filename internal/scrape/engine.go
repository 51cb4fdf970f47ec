package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/scrape/careers"
	"jobaudit-engine/internal/scrape/greenhouse"
	"jobaudit-engine/internal/scrape/lever"
	"jobaudit-engine/internal/scrape/smartrecruiters"
	"jobaudit-engine/internal/scrape/types"
	"jobaudit-engine/internal/scrape/util"
	"jobaudit-engine/internal/scrape/workday"
)

// Browser is the remote Chrome the engine probes and renders pages with.
type Browser interface {
	types.Renderer
	Ping(ctx context.Context, remoteURL string) error
}

// RoleClassifier decides open/closed from page text when heuristics can't.
type RoleClassifier interface {
	Classify(ctx context.Context, pageURL, pageText string) (result, justification string, err error)
}

type Options struct {
	Browser        Browser
	Limiter        *util.HostLimiter
	UserAgent      string
	MaxConcurrency int
	ConfigTimeout  time.Duration

	// DefaultRemoteURL is used to render pages for CheckOpen when a plain
	// fetch fails.
	DefaultRemoteURL string
	Classifier       RoleClassifier

	// Fetchers replaces the built-in sources when set.
	Fetchers []types.Fetcher
}

type Engine struct {
	opts     Options
	fetchers map[string]types.Fetcher
	order    []string
	hc       *http.Client
}

func NewEngine(opts Options) *Engine {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.ConfigTimeout <= 0 {
		opts.ConfigTimeout = 2 * time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "JobAudit/1.0 (+local)"
	}

	fetchers := opts.Fetchers
	if fetchers == nil {
		var renderer types.Renderer
		if opts.Browser != nil {
			renderer = opts.Browser
		}
		fetchers = []types.Fetcher{
			greenhouse.New(opts.Limiter, opts.UserAgent),
			lever.New(opts.Limiter, opts.UserAgent),
			smartrecruiters.New(opts.Limiter, opts.UserAgent),
			workday.New(opts.Limiter, opts.UserAgent),
			careers.New(opts.Limiter, renderer, opts.UserAgent),
		}
	}

	e := &Engine{
		opts:     opts,
		fetchers: make(map[string]types.Fetcher, len(fetchers)),
		hc:       &http.Client{Timeout: 20 * time.Second},
	}
	for _, f := range fetchers {
		name := strings.ToLower(f.Name())
		if _, dup := e.fetchers[name]; dup {
			continue
		}
		e.fetchers[name] = f
		e.order = append(e.order, name)
	}
	return e
}

// Sources lists the source ids a SearchConfig may name.
func (e *Engine) Sources() []string {
	return append([]string(nil), e.order...)
}

func (e *Engine) TestConnection(ctx context.Context, remoteURL string) error {
	if e.opts.Browser == nil {
		return fmt.Errorf("no browser connector configured")
	}
	return e.opts.Browser.Ping(ctx, remoteURL)
}

// RunAudit scrapes every config concurrently and returns one result per config
// in input order. A config that fails carries its error in the result; the
// run itself fails only when ctx ends or no config succeeded.
func (e *Engine) RunAudit(ctx context.Context, remoteURL string, configs []domain.SearchConfig) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, len(configs))

	var g errgroup.Group
	g.SetLimit(e.opts.MaxConcurrency)
	for i, cfg := range configs {
		g.Go(func() error {
			results[i] = e.runConfig(ctx, remoteURL, cfg)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	if len(results) > 0 && failed == len(results) {
		return nil, fmt.Errorf("all %d search configs failed, first: %s", failed, results[0].Error)
	}
	return results, nil
}

func (e *Engine) runConfig(ctx context.Context, remoteURL string, cfg domain.SearchConfig) domain.SearchResult {
	src := strings.ToLower(strings.TrimSpace(cfg.Source))
	res := domain.SearchResult{
		Source:  src,
		Company: strings.TrimSpace(cfg.Company),
		Jobs:    []domain.JobPosting{},
	}

	f, ok := e.fetchers[src]
	if !ok {
		res.Error = fmt.Sprintf("unsupported source %q", cfg.Source)
		return res
	}

	cctx, cancel := context.WithTimeout(ctx, e.opts.ConfigTimeout)
	defer cancel()

	start := time.Now()
	leads, err := f.Fetch(cctx, types.Request{Config: cfg, RemoteURL: remoteURL})
	if err != nil {
		log.Warnf("[%s] fetch failed company=%q err=%v", src, res.Company, err)
		res.Error = err.Error()
		return res
	}

	res.Jobs = ProcessLeads(cfg, leads)
	log.Infof("[%s] company=%q leads=%d kept=%d dur_ms=%d",
		src, res.Company, len(leads), len(res.Jobs), time.Since(start).Milliseconds())
	return res
}
