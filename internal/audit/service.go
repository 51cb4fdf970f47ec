package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"jobaudit-engine/internal/browser"
	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/events"
	"jobaudit-engine/internal/logger"
)

var (
	ErrNotConnected      = errors.New("not connected to remote browser")
	ErrNotFound          = errors.New("audit not found")
	ErrNotRunning        = errors.New("audit is not running")
	ErrNoSearchConfigs   = errors.New("searchConfigs must not be empty")
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrShuttingDown      = errors.New("audit service is shutting down")
	ErrCancelled         = errors.New("audit cancelled")
	ErrTimedOut          = errors.New("audit timed out")
)

// Engine is the scraping capability an audit delegates to.
type Engine interface {
	Sources() []string
	TestConnection(ctx context.Context, remoteURL string) error
	RunAudit(ctx context.Context, remoteURL string, configs []domain.SearchConfig) ([]domain.SearchResult, error)
}

// Publisher receives lifecycle events (see events.Hub).
type Publisher interface {
	Publish(evt string)
}

// ResultSink stores postings discovered by successful audits.
type ResultSink interface {
	SaveDiscovered(ctx context.Context, results []domain.SearchResult) (int, error)
}

type Options struct {
	Timeout          time.Duration
	DefaultRemoteURL string
	Events           Publisher
	Sink             ResultSink
	Sentry           *sentry.Hub
	NewID            func() string
}

// Service owns the audit lifecycle: it writes "running" on start and
// "completed" when the background run resolves.
type Service struct {
	reg    *Registry
	engine Engine
	opts   Options

	base context.Context
	stop context.CancelCauseFunc
	wg   sync.WaitGroup
}

func NewService(reg *Registry, engine Engine, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	base, stop := context.WithCancelCause(context.Background())
	return &Service{reg: reg, engine: engine, opts: opts, base: base, stop: stop}
}

func (s *Service) Sources() []string { return s.engine.Sources() }

// TestConnection checks the remote browser, falling back to the default
// endpoint when remoteURL is empty.
func (s *Service) TestConnection(ctx context.Context, remoteURL string) error {
	remoteURL = s.resolveRemote(remoteURL)
	if remoteURL == "" {
		return fmt.Errorf("%w: no remote url", ErrNotConnected)
	}
	if err := s.engine.TestConnection(ctx, remoteURL); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// Start validates the request, checks connectivity, registers a running audit
// and returns its id without waiting for the audit to finish.
func (s *Service) Start(ctx context.Context, remoteURL string, configs []domain.SearchConfig) (string, error) {
	if s.base.Err() != nil {
		return "", ErrShuttingDown
	}
	if len(configs) == 0 {
		return "", ErrNoSearchConfigs
	}
	if err := s.checkSources(configs); err != nil {
		return "", err
	}

	remoteURL = s.resolveRemote(remoteURL)
	if err := s.TestConnection(ctx, remoteURL); err != nil {
		return "", err
	}

	runCtx, cancelRun := context.WithCancelCause(s.base)
	runCtx, cancelTimeout := context.WithTimeoutCause(runCtx, s.opts.Timeout,
		fmt.Errorf("%w after %s", ErrTimedOut, s.opts.Timeout))
	cancel := func() { cancelRun(ErrCancelled) }

	id, ok := "", false
	for attempt := 0; attempt < 5 && !ok; attempt++ {
		id = s.opts.NewID()
		ok = s.reg.Insert(id, Running(), cancel)
	}
	if !ok {
		cancelTimeout()
		cancel()
		return "", fmt.Errorf("could not mint a unique audit id")
	}

	// Own copy so the caller can't mutate configs under the running audit.
	cfgs := append([]domain.SearchConfig(nil), configs...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancelTimeout()
		defer cancel()
		s.run(runCtx, id, remoteURL, cfgs)
	}()

	log.Infof("[audit] started id=%s configs=%d remote=%s", id, len(cfgs), browser.Redact(remoteURL))
	s.publish(events.TypeAuditStarted, map[string]any{"id": id, "configs": len(cfgs)})
	return id, nil
}

func (s *Service) run(ctx context.Context, id, remoteURL string, configs []domain.SearchConfig) {
	start := time.Now()

	results, err := s.engine.RunAudit(ctx, remoteURL, configs)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = cause
		}
		s.reg.Put(id, Failed(err))

		if errors.Is(err, ErrCancelled) {
			log.Infof("[audit] cancelled id=%s dur_ms=%d", id, time.Since(start).Milliseconds())
			s.publish(events.TypeAuditCancelled, map[string]any{"id": id})
			return
		}
		logger.LogAndCapture(s.opts.Sentry, err, "audit.run", map[string]any{
			"audit_id": id,
			"configs":  len(configs),
		})
		s.publish(events.TypeAuditCompleted, map[string]any{"id": id, "ok": false, "error": err.Error()})
		return
	}

	s.reg.Put(id, Succeeded(results))

	found := 0
	for _, r := range results {
		found += len(r.Jobs)
	}
	log.Infof("[audit] completed id=%s results=%d jobs=%d dur_ms=%d",
		id, len(results), found, time.Since(start).Milliseconds())
	s.publish(events.TypeAuditCompleted, map[string]any{"id": id, "ok": true, "jobs": found})

	if s.opts.Sink != nil && found > 0 {
		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		added, serr := s.opts.Sink.SaveDiscovered(sctx, results)
		if serr != nil {
			logger.LogError(serr, "audit.saveDiscovered", map[string]any{"audit_id": id})
			return
		}
		log.Debugf("[audit] stored id=%s added=%d", id, added)
	}
}

// Status returns the record for id. A successful result is evicted by the
// read that observes it.
func (s *Service) Status(id string) (Record, bool) {
	return s.reg.Take(id)
}

func (s *Service) Cancel(id string) error {
	found, running := s.reg.Cancel(id)
	if !found {
		return ErrNotFound
	}
	if !running {
		return ErrNotRunning
	}
	return nil
}

// Sweep drops completed records older than ttl.
func (s *Service) Sweep(ttl time.Duration) int {
	n := s.reg.Sweep(ttl)
	if n > 0 {
		log.Infof("[audit] swept=%d remaining=%d", n, s.reg.Len())
	}
	return n
}

func (s *Service) Len() int { return s.reg.Len() }

// Shutdown cancels every running audit and waits for their goroutines to
// record the outcome, or for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop(ErrShuttingDown)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) resolveRemote(remoteURL string) string {
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return strings.TrimSpace(s.opts.DefaultRemoteURL)
	}
	return remoteURL
}

func (s *Service) checkSources(configs []domain.SearchConfig) error {
	supported := map[string]bool{}
	for _, src := range s.engine.Sources() {
		supported[src] = true
	}
	for i, c := range configs {
		src := strings.ToLower(strings.TrimSpace(c.Source))
		if !supported[src] {
			return fmt.Errorf("%w: searchConfigs[%d].source=%q", ErrUnsupportedSource, i, c.Source)
		}
	}
	return nil
}

func (s *Service) publish(typ string, data map[string]any) {
	if s.opts.Events == nil {
		return
	}
	s.opts.Events.Publish(events.MakeEvent("", typ, 1, data))
}
