// Package capture pulls values out of responses for use in later requests.
// Captured values come from >>>capture blocks and from [[NAME]] placeholders
// in expected response bodies.
package capture

import (
	"github.com/tidwall/gjson"

	"github.com/edouardp/ApiTest/packages/core/parser"
	"github.com/edouardp/ApiTest/packages/http"
)

type Extractor struct {
	response   *http.Response
	bodyJSON   gjson.Result
	bodyIsJSON bool
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{response: resp}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
		e.bodyIsJSON = true
	}
	return e
}

// Extract resolves a single capture. The second return is false when the
// source has no value, so a stale capture never shadows a live one.
func (e *Extractor) Extract(c *parser.Capture) (any, bool) {
	switch c.Source {
	case parser.CaptureBody:
		return e.fromBody(c.Path)
	case parser.CaptureHeader:
		value := e.response.Header(c.Path)
		return value, value != ""
	case parser.CaptureStatus:
		return e.response.StatusCode, true
	case parser.CaptureDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) fromBody(path string) (any, bool) {
	if !e.bodyIsJSON {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

// ExtractAll runs every capture against the response and returns the
// values that resolved.
func ExtractAll(resp *http.Response, captures []*parser.Capture) map[string]any {
	extractor := NewExtractor(resp)
	results := make(map[string]any)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}
