package http

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edouardp/ApiTest/packages/core/parser"
)

func TestClientDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(201)
		w.Write([]byte(`{"id": 7}`))
	}))
	defer server.Close()

	client := NewClient()
	req := NewRequest("POST", server.URL).
		SetHeader("Content-Type", "application/json").
		SetBody(`{"name": "ace"}`)

	resp, err := client.Do(req)
	require.NoError(t, err)

	assert.Equal(t, 201, resp.StatusCode)
	assert.True(t, resp.IsSuccess())
	assert.True(t, resp.IsJSON())
	assert.Equal(t, `{"id": 7}`, resp.BodyString())
	assert.Greater(t, resp.Duration, time.Duration(0))
}

func TestClientDefaultHeaders(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Api-Version")
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeader("X-Api-Version", "2"))
	_, err := client.Do(NewRequest("GET", server.URL))
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestClientNoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	resp, err := client.Do(NewRequest("GET", server.URL))
	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestRequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient()
	req := NewRequest("GET", server.URL).SetTimeout(20 * time.Millisecond)

	_, err := client.Do(req)
	require.Error(t, err)
}

func TestBuildURL(t *testing.T) {
	req := NewRequest("GET", "https://api.example.com/jobs").
		SetQueryParam("state", "running").
		SetQueryParam("limit", "10")

	url := req.BuildURL()
	assert.Contains(t, url, "state=running")
	assert.Contains(t, url, "limit=10")
}

func TestApplyAuth(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		req := NewRequest("GET", "https://example.com")
		req.Auth = &parser.AuthConfig{Type: parser.AuthBasic, Params: []string{"user", "pass"}}
		req.ApplyAuth()

		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
		assert.Equal(t, expected, req.Headers["Authorization"])
	})

	t.Run("bearer", func(t *testing.T) {
		req := NewRequest("GET", "https://example.com")
		req.Auth = &parser.AuthConfig{Type: parser.AuthBearer, Params: []string{"tok123"}}
		req.ApplyAuth()

		assert.Equal(t, "Bearer tok123", req.Headers["Authorization"])
	})

	t.Run("apikey", func(t *testing.T) {
		req := NewRequest("GET", "https://example.com")
		req.Auth = &parser.AuthConfig{Type: parser.AuthAPIKey, Params: []string{"X-Api-Key", "secret"}}
		req.ApplyAuth()

		assert.Equal(t, "secret", req.Headers["X-Api-Key"])
	})
}

func TestBuildRequestFromAST(t *testing.T) {
	astReq := &parser.Request{
		Method: "POST",
		URL:    "{{baseUrl}}/jobs",
		Headers: []*parser.Header{
			{Key: "Accept", Value: "application/json"},
		},
		Body: `{"name": "{{jobName}}"}`,
	}

	vars := map[string]string{
		"baseUrl": "https://api.example.com",
		"jobName": "backup",
	}
	resolver := func(s string) string {
		for k, v := range vars {
			s = strings.ReplaceAll(s, "{{"+k+"}}", v)
		}
		return s
	}

	req := BuildRequestFromAST(astReq, resolver)

	assert.Equal(t, "https://api.example.com/jobs", req.URL)
	assert.Equal(t, `{"name": "backup"}`, req.Body)
	assert.Equal(t, "application/json", req.Headers["Accept"])
	// JSON body gets a content type by default
	assert.Equal(t, "application/json", req.Headers["Content-Type"])
}
