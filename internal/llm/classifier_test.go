package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobaudit-engine/internal/domain"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantResult string
		wantWhy    string
		wantErr    bool
	}{
		{"open", `{"result":"open","justification":"apply button"}`, domain.RoleOpen, "apply button", false},
		{"closed mixed case", ` {"result":"Closed","justification":" filled "}`, domain.RoleClosed, "filled", false},
		{"unknown word", `{"result":"maybe","justification":"?"}`, domain.RoleUnsure, "?", false},
		{"not json", `The role is open.`, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, why, err := ParseVerdict(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResponseFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, result)
			assert.Equal(t, tt.wantWhy, why)
		})
	}
}

func TestNewClassifierRequiresKey(t *testing.T) {
	_, err := NewClassifier(" ", "")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)

	c, err := NewClassifier("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.ModelName())
}

func TestClassifyAgainstFakeAPI(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		content, _ := json.Marshal(`{"result":"closed","justification":"The page says the role was filled."}`)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
		  "choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%s}}]}`, content)
	}))
	defer srv.Close()

	c, err := NewClassifier("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1/"))
	require.NoError(t, err)

	result, why, err := c.Classify(context.Background(), "https://jobs.example.com/1", "This role has been filled.")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClosed, result)
	assert.Equal(t, "The page says the role was filled.", why)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	format, _ := got["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
}
