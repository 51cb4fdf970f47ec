package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobaudit-engine/internal/domain"
)

type fakeEngine struct {
	sources []string
	testErr error
	run     func(ctx context.Context, remoteURL string, configs []domain.SearchConfig) ([]domain.SearchResult, error)

	mu      sync.Mutex
	remotes []string
}

func (f *fakeEngine) Sources() []string { return f.sources }

func (f *fakeEngine) TestConnection(ctx context.Context, remoteURL string) error {
	f.mu.Lock()
	f.remotes = append(f.remotes, remoteURL)
	f.mu.Unlock()
	return f.testErr
}

func (f *fakeEngine) RunAudit(ctx context.Context, remoteURL string, configs []domain.SearchConfig) ([]domain.SearchResult, error) {
	return f.run(ctx, remoteURL, configs)
}

type fakeSink struct {
	mu    sync.Mutex
	saved [][]domain.SearchResult
}

func (s *fakeSink) SaveDiscovered(ctx context.Context, results []domain.SearchResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, results)
	return len(results), nil
}

func (s *fakeSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(evt string) {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
}

const remote = "ws://chrome.local:9222/devtools/browser/abc"

var oneConfig = []domain.SearchConfig{{Source: "lever", Company: "Acme", Slug: "acme"}}

func blockUntilDone(ctx context.Context, _ string, _ []domain.SearchConfig) ([]domain.SearchResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestService(eng *fakeEngine, opts Options) *Service {
	if eng.sources == nil {
		eng.sources = []string{"greenhouse", "lever"}
	}
	return NewService(NewRegistry(), eng, opts)
}

func waitCompleted(t *testing.T, svc *Service, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, ok := svc.reg.Get(id)
		return ok && rec.Completed()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStatusUnknownID(t *testing.T) {
	svc := newTestService(&fakeEngine{run: blockUntilDone}, Options{})

	_, ok := svc.Status("never-issued")
	assert.False(t, ok)
}

func TestStartSuccessLifecycle(t *testing.T) {
	release := make(chan struct{})
	want := []domain.SearchResult{{Source: "lever", Company: "Acme", Jobs: []domain.JobPosting{{Title: "Go Engineer", URL: "https://jobs.lever.co/acme/1"}}}}
	eng := &fakeEngine{run: func(ctx context.Context, _ string, _ []domain.SearchConfig) ([]domain.SearchResult, error) {
		<-release
		return want, nil
	}}
	sink := &fakeSink{}
	pub := &fakePublisher{}
	svc := newTestService(eng, Options{Sink: sink, Events: pub})

	id, err := svc.Start(context.Background(), remote, oneConfig)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, ok := svc.Status(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, rec.Status)

	close(release)
	waitCompleted(t, svc, id)

	rec, ok = svc.Status(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, MessageSuccess, rec.Message)
	assert.Empty(t, rec.Error)
	assert.Equal(t, want, rec.Data)

	_, ok = svc.Status(id)
	assert.False(t, ok, "second poll after success is a miss")

	require.Eventually(t, func() bool { return sink.calls() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Shutdown(context.Background()))
	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Len(t, pub.events, 2)
}

func TestStartFailureIsRetained(t *testing.T) {
	eng := &fakeEngine{run: func(context.Context, string, []domain.SearchConfig) ([]domain.SearchResult, error) {
		return nil, errors.New("all 1 search configs failed, first: lever status 404")
	}}
	svc := newTestService(eng, Options{})

	id, err := svc.Start(context.Background(), remote, oneConfig)
	require.NoError(t, err)
	waitCompleted(t, svc, id)

	for i := 0; i < 3; i++ {
		rec, ok := svc.Status(id)
		require.True(t, ok)
		assert.Equal(t, StatusCompleted, rec.Status)
		assert.Contains(t, rec.Error, "lever status 404")
		assert.Nil(t, rec.Data)
	}
}

func TestStartNotConnectedCreatesNothing(t *testing.T) {
	eng := &fakeEngine{testErr: errors.New("dial tcp: lookup unreachable"), run: blockUntilDone}
	svc := newTestService(eng, Options{})

	id, err := svc.Start(context.Background(), "ws://unreachable", oneConfig)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, id)
	assert.Equal(t, 0, svc.Len())
}

func TestStartValidation(t *testing.T) {
	svc := newTestService(&fakeEngine{run: blockUntilDone}, Options{})

	_, err := svc.Start(context.Background(), remote, nil)
	assert.ErrorIs(t, err, ErrNoSearchConfigs)

	_, err = svc.Start(context.Background(), remote, []domain.SearchConfig{{Source: "monster"}})
	assert.ErrorIs(t, err, ErrUnsupportedSource)
	assert.Contains(t, err.Error(), "monster")

	_, err = svc.Start(context.Background(), "", oneConfig)
	assert.ErrorIs(t, err, ErrNotConnected, "no request url and no default")
	assert.Equal(t, 0, svc.Len())
}

func TestStartUsesDefaultRemote(t *testing.T) {
	eng := &fakeEngine{run: blockUntilDone}
	svc := newTestService(eng, Options{DefaultRemoteURL: remote})
	defer func() { _ = svc.Shutdown(context.Background()) }()

	_, err := svc.Start(context.Background(), "  ", oneConfig)
	require.NoError(t, err)

	eng.mu.Lock()
	defer eng.mu.Unlock()
	assert.Equal(t, []string{remote}, eng.remotes)
}

func TestCancelRunningAudit(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(&fakeEngine{run: blockUntilDone}, Options{Events: pub})

	id, err := svc.Start(context.Background(), remote, oneConfig)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(id))
	waitCompleted(t, svc, id)

	rec, ok := svc.Status(id)
	require.True(t, ok)
	assert.Equal(t, ErrCancelled.Error(), rec.Error)

	assert.ErrorIs(t, svc.Cancel(id), ErrNotRunning)
	assert.ErrorIs(t, svc.Cancel("nope"), ErrNotFound)
}

func TestAuditTimeout(t *testing.T) {
	svc := newTestService(&fakeEngine{run: blockUntilDone}, Options{Timeout: 20 * time.Millisecond})

	id, err := svc.Start(context.Background(), remote, oneConfig)
	require.NoError(t, err)
	waitCompleted(t, svc, id)

	rec, ok := svc.Status(id)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, "audit timed out after 20ms", rec.Error)
	assert.Nil(t, rec.Data)
}

func TestStartRemintsOnCollision(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	n := 0
	newID := func() string {
		id := ids[n%len(ids)]
		n++
		return id
	}
	svc := newTestService(&fakeEngine{run: blockUntilDone}, Options{NewID: newID})
	defer func() { _ = svc.Shutdown(context.Background()) }()

	first, err := svc.Start(context.Background(), remote, oneConfig)
	require.NoError(t, err)
	second, err := svc.Start(context.Background(), remote, oneConfig)
	require.NoError(t, err)

	assert.Equal(t, "dup", first)
	assert.Equal(t, "fresh", second)
	assert.Equal(t, 2, svc.Len())
}

func TestStartGivesUpAfterRepeatedCollisions(t *testing.T) {
	svc := newTestService(&fakeEngine{run: blockUntilDone}, Options{NewID: func() string { return "same" }})
	defer func() { _ = svc.Shutdown(context.Background()) }()

	_, err := svc.Start(context.Background(), remote, oneConfig)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), remote, oneConfig)
	assert.Error(t, err)
	assert.Equal(t, 1, svc.Len())
}

func TestShutdownCancelsRunningAudits(t *testing.T) {
	svc := newTestService(&fakeEngine{run: blockUntilDone}, Options{})

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := svc.Start(context.Background(), remote, oneConfig)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	for _, id := range ids {
		rec, ok := svc.Status(id)
		require.True(t, ok, fmt.Sprintf("id %s", id))
		assert.Equal(t, ErrShuttingDown.Error(), rec.Error)
	}

	_, err := svc.Start(context.Background(), remote, oneConfig)
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestDataAndErrorExclusive(t *testing.T) {
	outcomes := []func(context.Context, string, []domain.SearchConfig) ([]domain.SearchResult, error){
		func(context.Context, string, []domain.SearchConfig) ([]domain.SearchResult, error) {
			return []domain.SearchResult{{Source: "lever"}}, nil
		},
		func(context.Context, string, []domain.SearchConfig) ([]domain.SearchResult, error) {
			return []domain.SearchResult{{Source: "lever"}}, errors.New("partial")
		},
	}

	for i, run := range outcomes {
		svc := newTestService(&fakeEngine{run: run}, Options{})
		id, err := svc.Start(context.Background(), remote, oneConfig)
		require.NoError(t, err)
		waitCompleted(t, svc, id)

		rec, ok := svc.Status(id)
		require.True(t, ok)
		assert.False(t, rec.Error != "" && rec.Data != nil, "outcome %d", i)
	}
}
