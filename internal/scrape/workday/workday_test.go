package workday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/scrape/types"
)

func TestParseBoardURL(t *testing.T) {
	b, err := parseBoardURL("https://acme.wd5.myworkdayjobs.com/en-us/External/")
	require.NoError(t, err)
	assert.Equal(t, "acme", b.Tenant)
	assert.Equal(t, "External", b.Site)
	assert.Equal(t, "en-US", b.Locale)
	assert.Equal(t, "https://acme.wd5.myworkdayjobs.com/wday/cxs/acme/External/jobs?locale=en-US", b.jobsEndpoint())

	b, err = parseBoardURL("https://acme.wd1.myworkdayjobs.com/Careers")
	require.NoError(t, err)
	assert.Equal(t, "", b.Locale)
	assert.Equal(t, "https://acme.wd1.myworkdayjobs.com/wday/cxs/acme/Careers/jobs", b.jobsEndpoint())
	assert.Equal(t, "https://acme.wd1.myworkdayjobs.com/Careers/job/Austin/Go-Engineer_R1",
		b.absoluteJobURL(posting{ExternalPath: "/job/Austin/Go-Engineer_R1"}))

	for _, raw := range []string{"", "acme.myworkdayjobs.com/x", "https://localhost/x", "https://acme.wd1.myworkdayjobs.com/"} {
		_, err := parseBoardURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestParsePostedAt(t *testing.T) {
	assert.Nil(t, parsePostedAt(""))
	assert.Nil(t, parsePostedAt("Posted 3 Days Ago"))
	assert.Equal(t, 2024, parsePostedAt("2024-04-01").Year())
	assert.Equal(t, 2024, parsePostedAt("2024-04-01T10:00:00Z").Year())
	assert.Equal(t, 2024, parsePostedAt("1714521600000").Year())
	assert.Equal(t, 2024, parsePostedAt("1714521600").Year())
}

func TestFetchBoard(t *testing.T) {
	var posts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /en-US/External", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "CALYPSO_CSRF_TOKEN", Value: "csrf-1", Path: "/"})
		fmt.Fprint(w, "<html><body>jobs</body></html>")
	})
	mux.HandleFunc("POST /wday/cxs/127/External/jobs", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		assert.Equal(t, "csrf-1", r.Header.Get("X-Calypso-Csrf-Token"))
		assert.Equal(t, "en-US", r.URL.Query().Get("locale"))

		var body jobsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "golang", body.SearchText)
		assert.Equal(t, 0, body.Offset)

		fmt.Fprint(w, `{"total":2,"jobPostings":[
		  {"title":"Go Engineer","externalPath":"/job/Austin/Go-Engineer_R1","locationsText":"Austin, TX","postedOnDate":"2024-04-01","jobRequisitionId":"R1"},
		  {"title":"","externalPath":"/job/x"}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := New(nil, "test-agent")
	leads, err := s.Fetch(context.Background(), types.Request{Config: domain.SearchConfig{
		Source:   "workday",
		Company:  "Acme",
		URL:      srv.URL + "/en-US/External",
		Keywords: []string{"golang"},
	}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), posts.Load())
	require.Len(t, leads, 1)

	assert.Equal(t, "Go Engineer", leads[0].Title)
	assert.Equal(t, srv.URL+"/en-US/External/job/Austin/Go-Engineer_R1", leads[0].URL)
	assert.Equal(t, "Austin, TX", leads[0].LocationRaw)
	assert.Equal(t, "workday:127:External:R1", leads[0].ATSJobID)
	assert.Equal(t, "Acme", leads[0].CompanyName)
	require.NotNil(t, leads[0].PostedAt)
}

func TestFetchRemembersBlockedHost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Server", "cloudflare")
		w.Header().Set("CF-RAY", "abc123")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "Attention Required! | Cloudflare")
	}))
	defer srv.Close()

	s := New(nil, "test-agent")
	req := types.Request{Config: domain.SearchConfig{URL: srv.URL + "/External"}}

	_, err := s.Fetch(context.Background(), req)
	assert.ErrorIs(t, err, ErrBlocked)
	_, err = s.Fetch(context.Background(), req)
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, int32(1), hits.Load())
}
