package http

import (
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/edouardp/ApiTest/packages/core/parser"
)

type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	Body        string
	Timeout     time.Duration
	Auth        *parser.AuthConfig
	QueryParams map[string]string
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      method,
		URL:         requestURL,
		Headers:     make(map[string]string),
		QueryParams: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) SetQueryParam(key, value string) *Request {
	r.QueryParams[key] = value
	return r
}

func (r *Request) BuildURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	q := u.Query()
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (r *Request) ApplyAuth() {
	if r.Auth == nil {
		return
	}

	switch r.Auth.Type {
	case parser.AuthBasic:
		if len(r.Auth.Params) >= 2 {
			creds := r.Auth.Params[0] + ":" + r.Auth.Params[1]
			encoded := base64.StdEncoding.EncodeToString([]byte(creds))
			r.Headers["Authorization"] = "Basic " + encoded
		}
	case parser.AuthBearer:
		if len(r.Auth.Params) >= 1 {
			r.Headers["Authorization"] = "Bearer " + r.Auth.Params[0]
		}
	case parser.AuthAPIKey:
		if len(r.Auth.Params) >= 2 {
			r.Headers[r.Auth.Params[0]] = r.Auth.Params[1]
		}
	}
}

// BuildRequestFromAST turns a parsed request into an executable one,
// resolving {{NAME}} references through the supplied resolver.
func BuildRequestFromAST(req *parser.Request, resolver func(string) string) *Request {
	r := NewRequest(req.Method, resolver(req.URL))

	for _, h := range req.Headers {
		r.SetHeader(h.Key, resolver(h.Value))
	}

	for _, qp := range req.QueryParams {
		r.SetQueryParam(qp.Key, resolver(qp.Value))
	}

	if req.Body != "" {
		body := resolver(req.Body)
		r.SetBody(body)

		if looksLikeJSON(body) && r.Headers["Content-Type"] == "" {
			r.SetHeader("Content-Type", "application/json")
		}
	}

	if req.Metadata != nil && req.Metadata.Auth != nil {
		auth := &parser.AuthConfig{
			Type:   req.Metadata.Auth.Type,
			Params: make([]string, len(req.Metadata.Auth.Params)),
		}
		for i, p := range req.Metadata.Auth.Params {
			auth.Params[i] = resolver(p)
		}
		r.Auth = auth
		r.ApplyAuth()
	}

	if req.Metadata != nil && req.Metadata.Timeout > 0 {
		r.SetTimeout(time.Duration(req.Metadata.Timeout) * time.Millisecond)
	}

	r.URL = r.BuildURL()

	return r
}

func looksLikeJSON(body string) bool {
	trimmed := strings.TrimSpace(body)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}
