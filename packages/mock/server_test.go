package mock

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edouardp/ApiTest/packages/core/parser"
)

func loadServer(t *testing.T, source string) *Server {
	t.Helper()
	file, err := parser.Parse(source, "mock.http")
	require.NoError(t, err)

	s := NewServer()
	require.NoError(t, s.LoadParsedFile(file))
	return s
}

func TestServeExpectedResponse(t *testing.T) {
	s := loadServer(t, `### Get Job
GET http://api.example.com/jobs/7

HTTP/1.1 200 OK
Content-Type: application/json

{"id": 7, "state": "done"}
`)

	req := httptest.NewRequest("GET", "/jobs/7", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id": 7, "state": "done"}`, rec.Body.String())
}

func TestNotFound(t *testing.T) {
	s := loadServer(t, `### Only Route
GET http://api.example.com/known

HTTP/1.1 200 OK
`)

	req := httptest.NewRequest("GET", "/unknown", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 404, rec.Code)
}

func TestPathParams(t *testing.T) {
	s := loadServer(t, `### Get Job
GET http://api.example.com/jobs/:id

HTTP/1.1 200 OK

{"id": "{{id}}"}
`)

	req := httptest.NewRequest("GET", "/jobs/abc", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"id": "abc"}`, rec.Body.String())
}

func TestBodyTemplateDispatch(t *testing.T) {
	s := loadServer(t, `### Create Backup
POST http://api.example.com/jobs

{"kind": "backup", "name": "[[NAME]]"}

HTTP/1.1 201 Created

{"kind": "backup", "name": "[[NAME]]", "id": 1}

### Create Restore
POST http://api.example.com/jobs

{"kind": "restore"}

HTTP/1.1 202 Accepted

{"kind": "restore", "id": 2}
`)

	// extra members in the incoming body are fine, subset matching applies
	req := httptest.NewRequest("POST", "/jobs", strings.NewReader(`{"kind": "restore", "priority": 5}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 202, rec.Code)

	// placeholder binds the incoming value and echoes it back
	req = httptest.NewRequest("POST", "/jobs", strings.NewReader(`{"kind": "backup", "name": "nightly"}`))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 201, rec.Code)
	assert.JSONEq(t, `{"kind": "backup", "name": "nightly", "id": 1}`, rec.Body.String())

	// no template matches
	req = httptest.NewRequest("POST", "/jobs", strings.NewReader(`{"kind": "prune"}`))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestDefaultResponse(t *testing.T) {
	s := loadServer(t, `### Fire And Forget
POST http://api.example.com/events
`)

	req := httptest.NewRequest("POST", "/events", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestVariableResolutionInRoutes(t *testing.T) {
	s := loadServer(t, `@base = http://api.example.com

### Ping
GET {{base}}/ping

HTTP/1.1 200 OK

{"pong": true}
`)

	req := httptest.NewRequest("GET", "/ping", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}
