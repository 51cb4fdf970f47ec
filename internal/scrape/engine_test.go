package scrape

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/scrape/types"
)

type fakeFetcher struct {
	name  string
	fetch func(ctx context.Context, req types.Request) ([]domain.JobLead, error)
}

func (f fakeFetcher) Name() string { return f.name }

func (f fakeFetcher) Fetch(ctx context.Context, req types.Request) ([]domain.JobLead, error) {
	return f.fetch(ctx, req)
}

type fakeBrowser struct {
	pingErr error
	html    string
	renders atomic.Int32
}

func (b *fakeBrowser) Ping(context.Context, string) error { return b.pingErr }

func (b *fakeBrowser) Render(context.Context, string, string) (string, error) {
	b.renders.Add(1)
	if b.html == "" {
		return "", errors.New("render failed")
	}
	return b.html, nil
}

func leadsFor(company string) func(context.Context, types.Request) ([]domain.JobLead, error) {
	return func(_ context.Context, req types.Request) ([]domain.JobLead, error) {
		return []domain.JobLead{{
			CompanyName: company,
			Title:       "Engineer at " + req.Config.Company,
			URL:         "https://example.com/jobs/" + req.Config.Slug,
			ATSJobID:    "fake:" + req.Config.Slug,
		}}, nil
	}
}

func TestNewEngineDefaultSources(t *testing.T) {
	e := NewEngine(Options{})
	assert.Equal(t, []string{"greenhouse", "lever", "smartrecruiters", "workday", "careers"}, e.Sources())
}

func TestRunAuditKeepsInputOrder(t *testing.T) {
	slow := fakeFetcher{name: "slow", fetch: func(ctx context.Context, req types.Request) ([]domain.JobLead, error) {
		time.Sleep(30 * time.Millisecond)
		return leadsFor("slow")(ctx, req)
	}}
	fast := fakeFetcher{name: "fast", fetch: leadsFor("fast")}
	e := NewEngine(Options{Fetchers: []types.Fetcher{slow, fast}, MaxConcurrency: 2})

	configs := []domain.SearchConfig{
		{Source: "slow", Company: "A", Slug: "a"},
		{Source: "FAST", Company: "B", Slug: "b"},
		{Source: "slow", Company: "C", Slug: "c"},
	}
	results, err := e.RunAudit(context.Background(), "ws://chrome", configs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, c := range configs {
		assert.Equal(t, c.Company, results[i].Company)
		require.Len(t, results[i].Jobs, 1)
		assert.Equal(t, "fake:"+c.Slug, results[i].Jobs[0].SourceID)
	}
	assert.Equal(t, "fast", results[1].Source)
}

func TestRunAuditPerConfigErrors(t *testing.T) {
	ok := fakeFetcher{name: "ok", fetch: leadsFor("ok")}
	bad := fakeFetcher{name: "bad", fetch: func(context.Context, types.Request) ([]domain.JobLead, error) {
		return nil, errors.New("board status 404")
	}}
	e := NewEngine(Options{Fetchers: []types.Fetcher{ok, bad}})

	results, err := e.RunAudit(context.Background(), "", []domain.SearchConfig{
		{Source: "ok", Company: "A", Slug: "a"},
		{Source: "bad", Company: "B"},
		{Source: "nope", Company: "C"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "board status 404", results[1].Error)
	assert.NotNil(t, results[1].Jobs)
	assert.Contains(t, results[2].Error, "unsupported source")

	_, err = e.RunAudit(context.Background(), "", []domain.SearchConfig{{Source: "bad"}, {Source: "bad"}})
	assert.EqualError(t, err, "all 2 search configs failed, first: board status 404")
}

func TestRunAuditStopsOnContext(t *testing.T) {
	block := fakeFetcher{name: "block", fetch: func(ctx context.Context, _ types.Request) ([]domain.JobLead, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e := NewEngine(Options{Fetchers: []types.Fetcher{block}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.RunAudit(ctx, "", []domain.SearchConfig{{Source: "block"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTestConnection(t *testing.T) {
	assert.Error(t, NewEngine(Options{}).TestConnection(context.Background(), "ws://x"))

	b := &fakeBrowser{}
	assert.NoError(t, NewEngine(Options{Browser: b}).TestConnection(context.Background(), "ws://x"))

	b.pingErr = errors.New("refused")
	assert.Error(t, NewEngine(Options{Browser: b}).TestConnection(context.Background(), "ws://x"))
}
