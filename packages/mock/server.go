// Package mock serves the expected responses of scenario files as a live
// HTTP server, so clients can develop against an API before it exists.
package mock

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/edouardp/ApiTest/packages/builtin"
	"github.com/edouardp/ApiTest/packages/core/parser"
	"github.com/edouardp/ApiTest/packages/jsonmatch"
)

// Server replays scenario expectations as mock responses.
type Server struct {
	router   *Router
	port     int
	delay    time.Duration
	verbose  bool
	registry *builtin.Registry
}

type Option func(*Server)

func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a fixed delay to every response.
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router:   NewRouter(),
		port:     3000,
		registry: builtin.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadFile registers a route for every request in a scenario file.
func (s *Server) LoadFile(path string) error {
	file, err := parser.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	return s.LoadParsedFile(file)
}

func (s *Server) LoadFiles(paths []string) error {
	for _, path := range paths {
		if err := s.LoadFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) LoadParsedFile(file *parser.File) error {
	vars := make(map[string]string)
	for _, v := range file.Variables {
		vars[v.Name] = v.Value
	}

	for _, req := range file.Requests {
		s.router.AddRoute(s.createRoute(req, vars))
	}
	return nil
}

func (s *Server) createRoute(req *parser.Request, vars map[string]string) *Route {
	url := s.resolveVariables(req.URL, vars)
	pathPattern := extractPathPattern(url)

	return &Route{
		Method:       req.Method,
		PathPattern:  pathPattern,
		PathRegex:    createPathRegex(pathPattern),
		Name:         req.Name,
		BodyTemplate: req.Body,
		Response:     responseFor(req),
	}
}

// responseFor builds the canned response from the request's expected
// response block, defaulting to a 200 acknowledgement.
func responseFor(req *parser.Request) *MockResponse {
	resp := &MockResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"status": "ok"}`,
	}

	expect := req.Expect
	if expect == nil {
		return resp
	}

	if expect.Status != 0 {
		resp.StatusCode = expect.Status
	}
	for _, h := range expect.Headers {
		resp.Headers[h.Key] = h.Value
	}
	if body := strings.TrimSpace(expect.Body); body != "" {
		resp.Body = body
	}
	return resp
}

func (s *Server) resolveVariables(input string, vars map[string]string) string {
	varPattern := regexp.MustCompile(`\{\{([^}]+)\}\}`)
	return varPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}"))

		if strings.Contains(name, "(") {
			if val, ok := s.registry.Call(name); ok {
				return fmt.Sprintf("%v", val)
			}
		}
		if val, ok := vars[name]; ok {
			return val
		}
		if val := os.Getenv(strings.TrimPrefix(name, "$")); val != "" {
			return val
		}
		return match
	})
}

func extractPathPattern(url string) string {
	if idx := strings.Index(url, "://"); idx != -1 {
		url = url[idx+3:]
		if idx := strings.Index(url, "/"); idx != -1 {
			url = url[idx:]
		} else {
			url = "/"
		}
	}
	if idx := strings.Index(url, "?"); idx != -1 {
		url = url[:idx]
	}
	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}
	return url
}

// createPathRegex turns :param and [[PARAM]] path segments into named
// capture groups.
func createPathRegex(pattern string) *regexp.Regexp {
	regexPattern := regexp.MustCompile(`:(\w+)`).ReplaceAllString(pattern, `(?P<$1>[^/]+)`)
	regexPattern = regexp.MustCompile(`\[\[(\w+)\]\]`).ReplaceAllString(regexPattern, `(?P<$1>[^/]+)`)

	regex, err := regexp.Compile("^" + regexPattern + "$")
	if err != nil {
		return regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
	}
	return regex
}

// Start runs the server until the listener fails.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext runs the server and shuts down when ctx is cancelled.
func (s *Server) StartWithContext(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("mock server listening on http://localhost:%d (%d routes)", s.port, len(s.router.routes))
	if s.verbose {
		for _, route := range s.router.routes {
			log.Printf("  %s %s -> %d", route.Method, route.PathPattern, route.Response.StatusCode)
		}
	}

	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler exposes the routing logic as an http.Handler for tests and
// embedding.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	body, _ := io.ReadAll(r.Body)

	route, params := s.selectRoute(r.Method, r.URL.Path, string(body))
	if route == nil {
		if s.verbose {
			log.Printf("%s %s -> 404 (%s)", r.Method, r.URL.Path, time.Since(start))
		}
		http.NotFound(w, r)
		return
	}

	resp := route.Response
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write([]byte(substituteParams(resp.Body, params)))

	if s.verbose {
		log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, resp.StatusCode, time.Since(start))
	}
}

// selectRoute picks the first path candidate whose body template accepts
// the incoming body. Placeholders bound during body matching join the
// path parameters for response substitution.
func (s *Server) selectRoute(method, path, body string) (*Route, map[string]string) {
	candidates := s.router.Candidates(method, path)

	for _, c := range candidates {
		template := strings.TrimSpace(c.Route.BodyTemplate)
		if template == "" {
			return c.Route, c.Params
		}

		if !gjson.Valid(jsonmatch.NormalizeTokens(template)) {
			// non-JSON templates accept any body
			return c.Route, c.Params
		}

		match, err := jsonmatch.SubsetMatch(template, body)
		if err != nil || !match.Matched {
			continue
		}

		params := c.Params
		for name, value := range match.Extracted {
			params[name] = extractedString(value)
		}
		return c.Route, params
	}

	return nil, nil
}

func extractedString(value gjson.Result) string {
	if value.Type == gjson.String {
		return value.String()
	}
	return value.Raw
}

func substituteParams(body string, params map[string]string) string {
	for key, value := range params {
		body = strings.ReplaceAll(body, "{{"+key+"}}", value)
		body = strings.ReplaceAll(body, "[["+key+"]]", value)
	}
	return body
}

// Routes returns every registered route.
func (s *Server) Routes() []*Route {
	return s.router.routes
}
