package mock

import (
	"regexp"
	"strings"
)

// Route serves one scenario request's expected response back to callers.
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Name        string
	// BodyTemplate is the scenario request's body. When JSON, incoming
	// request bodies must subset-match it for the route to apply, and
	// [[NAME]] placeholders bind to the incoming values.
	BodyTemplate string
	Response     *MockResponse
}

// MockResponse is the canned response a route replies with.
type MockResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// Router matches incoming requests to routes in registration order.
type Router struct {
	routes []*Route
}

func NewRouter() *Router {
	return &Router{routes: make([]*Route, 0)}
}

func (r *Router) AddRoute(route *Route) {
	r.routes = append(r.routes, route)
}

// Candidate is a route whose method and path matched, along with the
// path parameters the pattern bound.
type Candidate struct {
	Route  *Route
	Params map[string]string
}

// Candidates returns every route matching the method and path. The caller
// narrows further by request body.
func (r *Router) Candidates(method, path string) []Candidate {
	path = normalizePath(path)

	var matches []Candidate
	for _, route := range r.routes {
		if !strings.EqualFold(route.Method, method) {
			continue
		}
		if params := matchPath(route, path); params != nil {
			matches = append(matches, Candidate{Route: route, Params: params})
		}
	}
	return matches
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func matchPath(route *Route, path string) map[string]string {
	if route.PathRegex != nil {
		matches := route.PathRegex.FindStringSubmatch(path)
		if matches != nil {
			params := make(map[string]string)
			for i, name := range route.PathRegex.SubexpNames() {
				if i > 0 && name != "" && i < len(matches) {
					params[name] = matches[i]
				}
			}
			return params
		}
	}

	if route.PathPattern == path {
		return make(map[string]string)
	}
	return nil
}
