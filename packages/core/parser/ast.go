package parser

import "fmt"

type File struct {
	Path      string
	Variables []*Variable
	Requests  []*Request
}

type Variable struct {
	Name  string
	Value string
	Line  int
}

type Request struct {
	Name         string
	Description  string
	Tags         []string
	Method       string
	URL          string
	Headers      []*Header
	QueryParams  []*QueryParam
	Body         string
	Expect       *ExpectedResponse
	Assertions   []*Assertion
	DBAssertions []*DBAssertion
	Captures     []*Capture
	Metadata     *RequestMetadata
	Line         int
}

// ExpectedResponse is the literal HTTP response a request should produce.
// The body is a template: JSON is compared structurally, and [[NAME]]
// placeholders extract values for use in later requests.
type ExpectedResponse struct {
	Status     int
	StatusText string
	Headers    []*Header
	Body       string
	Mode       MatchMode
	Line       int
}

// MatchMode selects how the expected body is compared.
type MatchMode int

const (
	// MatchExact requires the response body to mirror the template.
	MatchExact MatchMode = iota
	// MatchSubset lets the response carry members the template omits.
	MatchSubset
)

func (m MatchMode) String() string {
	if m == MatchSubset {
		return "subset"
	}
	return "exact"
}

type RequestMetadata struct {
	Skip         string
	Only         bool
	Timeout      int
	Retry        int
	RetryDelay   int
	RetryOn      []int
	Depends      []string
	Auth         *AuthConfig
	Condition    *Condition
	DBConnection string
}

type AuthConfig struct {
	Type   AuthType
	Params []string
}

type AuthType int

const (
	AuthNone AuthType = iota
	AuthBasic
	AuthBearer
	AuthAPIKey
)

type Condition struct {
	Type       ConditionType
	Expression string
}

type ConditionType int

const (
	ConditionIf ConditionType = iota
	ConditionUnless
)

type Header struct {
	Key   string
	Value string
	Line  int
}

type QueryParam struct {
	Key   string
	Value string
	Line  int
}

type Assertion struct {
	Subject  string
	Operator AssertionOperator
	Expected any
	Line     int
}

type AssertionOperator int

const (
	OpEquals AssertionOperator = iota
	OpNotEquals
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpExists
	OpNotExists
	OpLength
	OpIncludes
	OpNotIncludes
	OpIn
	OpNotIn
	OpType
	OpSchema
	OpSnapshot
)

func (op AssertionOperator) String() string {
	switch op {
	case OpEquals:
		return "=="
	case OpNotEquals:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpContains:
		return "contains"
	case OpNotContains:
		return "!contains"
	case OpStartsWith:
		return "startsWith"
	case OpEndsWith:
		return "endsWith"
	case OpMatches:
		return "matches"
	case OpExists:
		return "exists"
	case OpNotExists:
		return "!exists"
	case OpLength:
		return "length"
	case OpIncludes:
		return "includes"
	case OpNotIncludes:
		return "!includes"
	case OpIn:
		return "in"
	case OpNotIn:
		return "!in"
	case OpType:
		return "type"
	case OpSchema:
		return "schema"
	case OpSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

type DBAssertion struct {
	Query    string
	Column   string
	Operator AssertionOperator
	Expected any
	Line     int
}

type Capture struct {
	Name   string
	Source CaptureSource
	Path   string
	Line   int
}

type CaptureSource int

const (
	CaptureBody CaptureSource = iota
	CaptureHeader
	CaptureStatus
	CaptureDuration
)

func (s CaptureSource) String() string {
	switch s {
	case CaptureBody:
		return "body"
	case CaptureHeader:
		return "header"
	case CaptureStatus:
		return "status"
	case CaptureDuration:
		return "duration"
	default:
		return "unknown"
	}
}

type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
