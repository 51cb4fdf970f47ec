package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobaudit-engine/internal/audit"
	"jobaudit-engine/internal/domain"
)

type gatedEngine struct {
	release chan struct{}
}

func (e gatedEngine) Sources() []string { return []string{"lever"} }

func (e gatedEngine) TestConnection(_ context.Context, remoteURL string) error {
	if remoteURL == "ws://unreachable" {
		return errors.New("dial ws://unreachable: no such host")
	}
	return nil
}

func (e gatedEngine) RunAudit(ctx context.Context, _ string, configs []domain.SearchConfig) ([]domain.SearchResult, error) {
	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := make([]domain.SearchResult, len(configs))
	for i, c := range configs {
		out[i] = domain.SearchResult{Source: c.Source, Company: c.Company, Jobs: []domain.JobPosting{}}
	}
	return out, nil
}

func TestAuditLifecycleOverHTTP(t *testing.T) {
	eng := gatedEngine{release: make(chan struct{})}
	reg := audit.NewRegistry()
	svc := audit.NewService(reg, eng, audit.Options{})
	defer func() { _ = svc.Shutdown(context.Background()) }()
	d := Deps{Audits: svc}

	rec := serve(t, d, http.MethodPost, "/audit/start",
		`{"remoteUrl":"ws://unreachable","searchConfigs":[{"source":"lever","company":"Acme","slug":"acme"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Not connected to Chrome"}`, rec.Body.String())
	assert.Equal(t, 0, svc.Len())

	rec = serve(t, d, http.MethodPost, "/audit/start",
		`{"remoteUrl":"ws://chrome:9222","searchConfigs":[{"source":"lever","company":"Acme","slug":"acme"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Audit started", body["message"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	rec = serve(t, d, http.MethodGet, "/audit/"+id+"/status", "")
	assert.JSONEq(t, `{"status":"running"}`, rec.Body.String())

	close(eng.release)
	require.Eventually(t, func() bool {
		r, ok := reg.Get(id)
		return ok && r.Completed()
	}, 2*time.Second, 5*time.Millisecond)

	rec = serve(t, d, http.MethodGet, "/audit/"+id+"/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"completed","message":"SUCCESS","data":[{"source":"lever","company":"Acme","jobs":[]}]}`, rec.Body.String())

	rec = serve(t, d, http.MethodGet, "/audit/"+id+"/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
