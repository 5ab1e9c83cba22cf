package parser

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Parser reads a scenario file line by line. The format is deliberately
// close to raw HTTP traffic: a request, then the response the author
// expects back, then optional assertion, capture, and db blocks.
type Parser struct {
	lines []string
	pos   int
	file  string

	// pendingSubset carries a @match subset annotation until the expected
	// response block it applies to is parsed.
	pendingSubset bool
}

func ParseFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(content), path)
}

func Parse(input, filename string) (*File, error) {
	p := &Parser{
		lines: strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n"),
		file:  filename,
	}
	return p.parseFile()
}

func (p *Parser) eof() bool {
	return p.pos >= len(p.lines)
}

func (p *Parser) cur() string {
	if p.eof() {
		return ""
	}
	return p.lines[p.pos]
}

func (p *Parser) lineNo() int {
	return p.pos + 1
}

func (p *Parser) fail(message string) *ParseError {
	return &ParseError{File: p.file, Line: p.lineNo(), Column: 1, Message: message}
}

var (
	statusLinePattern = regexp.MustCompile(`^HTTP/\d+(?:\.\d+)?\s+(\d{3})(?:\s+(.*))?$`)
	variablePattern   = regexp.MustCompile(`^@(\w+)\s*=\s*(.*)$`)
	annotationPattern = regexp.MustCompile(`^#\s*@(\w+)\s*(.*)$`)
)

func (p *Parser) parseFile() (*File, error) {
	file := &File{Path: p.file}

	for !p.eof() {
		line := strings.TrimSpace(p.cur())
		switch {
		case line == "":
			p.pos++
		case strings.HasPrefix(line, "###"):
			req, err := p.parseRequest()
			if err != nil {
				return nil, err
			}
			file.Requests = append(file.Requests, req)
		case variablePattern.MatchString(line):
			m := variablePattern.FindStringSubmatch(line)
			file.Variables = append(file.Variables, &Variable{
				Name:  m[1],
				Value: strings.TrimSpace(m[2]),
				Line:  p.lineNo(),
			})
			p.pos++
		case isRequestLine(line):
			req, err := p.parseRequest()
			if err != nil {
				return nil, err
			}
			file.Requests = append(file.Requests, req)
		case strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//"):
			p.pos++
		default:
			return nil, p.fail("unexpected content outside a request: " + line)
		}
	}

	return file, nil
}

func isRequestLine(line string) bool {
	method, _, ok := strings.Cut(line, " ")
	if !ok {
		return false
	}
	switch strings.ToUpper(method) {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "TRACE":
		return true
	}
	return false
}

func (p *Parser) parseRequest() (*Request, error) {
	req := &Request{
		Metadata: &RequestMetadata{},
		Line:     p.lineNo(),
	}
	p.pendingSubset = false

	if line := strings.TrimSpace(p.cur()); strings.HasPrefix(line, "###") {
		req.Name = strings.TrimSpace(strings.TrimPrefix(line, "###"))
		p.pos++
	}

	// Annotations and comments between the separator and the request line.
	for !p.eof() {
		line := strings.TrimSpace(p.cur())
		if line == "" {
			p.pos++
			continue
		}
		if m := annotationPattern.FindStringSubmatch(line); m != nil {
			if err := p.applyAnnotation(req, m[1], strings.TrimSpace(m[2])); err != nil {
				return nil, err
			}
			p.pos++
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			p.pos++
			continue
		}
		break
	}

	if p.eof() || !isRequestLine(strings.TrimSpace(p.cur())) {
		return nil, p.fail("expected a request line (METHOD URL), got: " + strings.TrimSpace(p.cur()))
	}

	requestLine := strings.Fields(strings.TrimSpace(p.cur()))
	req.Method = strings.ToUpper(requestLine[0])
	if len(requestLine) < 2 {
		return nil, p.fail("request line is missing a URL")
	}
	req.URL = requestLine[1]
	// A trailing protocol version (POST /jobs HTTP/1.1) is tolerated.
	p.pos++

	if err := p.parseHeadersAndParams(req); err != nil {
		return nil, err
	}

	req.Body = p.readBody()

	if !p.eof() && statusLinePattern.MatchString(strings.TrimSpace(p.cur())) {
		expect, err := p.parseExpectedResponse(req.Metadata)
		if err != nil {
			return nil, err
		}
		req.Expect = expect
	}

	for !p.eof() {
		line := strings.TrimSpace(p.cur())
		if line == "" {
			p.pos++
			continue
		}
		if !strings.HasPrefix(line, ">>>") {
			break
		}
		blockType := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, ">>>")))
		p.pos++
		switch blockType {
		case "", "expect", "assert":
			assertions, err := p.parseAssertionBlock()
			if err != nil {
				return nil, err
			}
			req.Assertions = append(req.Assertions, assertions...)
		case "capture":
			captures, err := p.parseCaptureBlock()
			if err != nil {
				return nil, err
			}
			req.Captures = append(req.Captures, captures...)
		case "db":
			dbAssertions, err := p.parseDBBlock()
			if err != nil {
				return nil, err
			}
			req.DBAssertions = append(req.DBAssertions, dbAssertions...)
		default:
			return nil, p.fail("unknown block type: " + blockType)
		}
	}

	return req, nil
}

func (p *Parser) applyAnnotation(req *Request, key, value string) error {
	switch strings.ToLower(key) {
	case "name":
		req.Name = value
	case "description":
		req.Description = value
	case "tags":
		for _, tag := range strings.Split(value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				req.Tags = append(req.Tags, tag)
			}
		}
	case "skip":
		if value == "" {
			value = "skipped"
		}
		req.Metadata.Skip = value
	case "only":
		req.Metadata.Only = true
	case "timeout":
		n, err := strconv.Atoi(value)
		if err != nil {
			return p.fail("@timeout expects milliseconds, got: " + value)
		}
		req.Metadata.Timeout = n
	case "retry":
		n, err := strconv.Atoi(value)
		if err != nil {
			return p.fail("@retry expects a count, got: " + value)
		}
		req.Metadata.Retry = n
	case "retrydelay":
		n, err := strconv.Atoi(value)
		if err != nil {
			return p.fail("@retryDelay expects milliseconds, got: " + value)
		}
		req.Metadata.RetryDelay = n
	case "retryon":
		for _, s := range strings.Split(value, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return p.fail("@retryOn expects status codes, got: " + value)
			}
			req.Metadata.RetryOn = append(req.Metadata.RetryOn, n)
		}
	case "depends":
		for _, dep := range strings.Split(value, ",") {
			if dep = strings.TrimSpace(dep); dep != "" {
				req.Metadata.Depends = append(req.Metadata.Depends, dep)
			}
		}
	case "match":
		switch strings.ToLower(value) {
		case "exact", "":
			// default
		case "subset":
			p.pendingSubset = true
		default:
			return p.fail("@match expects exact or subset, got: " + value)
		}
	case "if":
		req.Metadata.Condition = &Condition{Type: ConditionIf, Expression: value}
	case "unless":
		req.Metadata.Condition = &Condition{Type: ConditionUnless, Expression: value}
	case "auth":
		auth, err := p.parseAuth(value)
		if err != nil {
			return err
		}
		req.Metadata.Auth = auth
	case "db":
		req.Metadata.DBConnection = value
	}
	return nil
}

func (p *Parser) parseAuth(value string) (*AuthConfig, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil, p.fail("@auth expects a scheme (basic, bearer, apikey)")
	}
	auth := &AuthConfig{Params: fields[1:]}
	switch strings.ToLower(fields[0]) {
	case "basic":
		auth.Type = AuthBasic
	case "bearer":
		auth.Type = AuthBearer
	case "apikey":
		auth.Type = AuthAPIKey
	default:
		return nil, p.fail("unknown auth scheme: " + fields[0])
	}
	return auth, nil
}

func (p *Parser) parseHeadersAndParams(req *Request) error {
	for !p.eof() {
		line := strings.TrimSpace(p.cur())
		if line == "" {
			return nil
		}
		if strings.HasPrefix(line, "?") || strings.HasPrefix(line, "&") {
			key, value, ok := strings.Cut(strings.TrimSpace(line[1:]), "=")
			if !ok {
				return p.fail("query parameter line needs key = value")
			}
			req.QueryParams = append(req.QueryParams, &QueryParam{
				Key:   strings.TrimSpace(key),
				Value: strings.TrimSpace(value),
				Line:  p.lineNo(),
			})
			p.pos++
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return p.fail("expected a header line (Key: Value), got: " + line)
		}
		req.Headers = append(req.Headers, &Header{
			Key:   strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
			Line:  p.lineNo(),
		})
		p.pos++
	}
	return nil
}

// readBody collects lines until the expected response, a block marker, or
// the next request. Leading and trailing blank lines are dropped.
func (p *Parser) readBody() string {
	var lines []string
	for !p.eof() {
		trimmed := strings.TrimSpace(p.cur())
		if statusLinePattern.MatchString(trimmed) ||
			strings.HasPrefix(trimmed, ">>>") ||
			strings.HasPrefix(trimmed, "###") {
			break
		}
		lines = append(lines, p.cur())
		p.pos++
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (p *Parser) parseExpectedResponse(meta *RequestMetadata) (*ExpectedResponse, error) {
	line := strings.TrimSpace(p.cur())
	m := statusLinePattern.FindStringSubmatch(line)
	status, _ := strconv.Atoi(m[1])
	expect := &ExpectedResponse{
		Status:     status,
		StatusText: strings.TrimSpace(m[2]),
		Line:       p.lineNo(),
	}
	if p.pendingSubset {
		expect.Mode = MatchSubset
		p.pendingSubset = false
	}
	p.pos++

	for !p.eof() {
		hline := strings.TrimSpace(p.cur())
		if hline == "" {
			break
		}
		key, value, ok := strings.Cut(hline, ":")
		if !ok {
			return nil, p.fail("expected response header (Key: Value), got: " + hline)
		}
		expect.Headers = append(expect.Headers, &Header{
			Key:   strings.TrimSpace(key),
			Value: strings.TrimSpace(value),
			Line:  p.lineNo(),
		})
		p.pos++
	}

	expect.Body = p.readBody()
	return expect, nil
}

func (p *Parser) parseAssertionBlock() ([]*Assertion, error) {
	var assertions []*Assertion
	for !p.eof() {
		line := strings.TrimSpace(p.cur())
		if line == "<<<" {
			p.pos++
			return assertions, nil
		}
		if line == "" || strings.HasPrefix(line, "#") {
			p.pos++
			continue
		}
		assertion, err := p.parseAssertionLine(line)
		if err != nil {
			return nil, err
		}
		assertions = append(assertions, assertion)
		p.pos++
	}
	return nil, p.fail("assertion block is missing its closing <<<")
}

var operatorWords = map[string]AssertionOperator{
	"==":         OpEquals,
	"equals":     OpEquals,
	"!=":         OpNotEquals,
	">":          OpGreaterThan,
	">=":         OpGreaterOrEqual,
	"<":          OpLessThan,
	"<=":         OpLessOrEqual,
	"contains":   OpContains,
	"!contains":  OpNotContains,
	"startswith": OpStartsWith,
	"endswith":   OpEndsWith,
	"matches":    OpMatches,
	"exists":     OpExists,
	"!exists":    OpNotExists,
	"length":     OpLength,
	"includes":   OpIncludes,
	"!includes":  OpNotIncludes,
	"in":         OpIn,
	"!in":        OpNotIn,
	"type":       OpType,
	"schema":     OpSchema,
	"snapshot":   OpSnapshot,
}

func (p *Parser) parseAssertionLine(line string) (*Assertion, error) {
	tokens := tokenize(line)
	if len(tokens) < 2 || tokens[0].text != "expect" {
		return nil, p.fail("assertion lines start with 'expect', got: " + line)
	}

	opIdx := -1
	var op AssertionOperator
	for i := 2; i < len(tokens); i++ {
		if tokens[i].quoted {
			continue
		}
		if found, ok := operatorWords[strings.ToLower(tokens[i].text)]; ok {
			opIdx, op = i, found
			break
		}
	}
	if opIdx < 0 {
		// "header X" is the one multi-token subject.
		subjectEnd := 2
		if strings.EqualFold(tokens[1].text, "header") && len(tokens) > 2 {
			subjectEnd = 3
		}
		subject := joinTokens(tokens[1:subjectEnd])
		if subjectEnd == len(tokens) {
			// Bare subject means an existence check: "expect body.id".
			return &Assertion{Subject: subject, Operator: OpExists, Line: p.lineNo()}, nil
		}
		// A trailing value with no operator is implicit equality:
		// "expect status 200" reads as "expect status == 200".
		return &Assertion{
			Subject:  subject,
			Operator: OpEquals,
			Expected: parseExpectedValue(line, tokens[subjectEnd:]),
			Line:     p.lineNo(),
		}, nil
	}

	subject := joinTokens(tokens[1:opIdx])
	assertion := &Assertion{
		Subject:  subject,
		Operator: op,
		Line:     p.lineNo(),
	}
	if opIdx+1 < len(tokens) {
		assertion.Expected = parseExpectedValue(line, tokens[opIdx+1:])
	}
	return assertion, nil
}

func (p *Parser) parseCaptureBlock() ([]*Capture, error) {
	var captures []*Capture
	for !p.eof() {
		line := strings.TrimSpace(p.cur())
		if line == "<<<" {
			p.pos++
			return captures, nil
		}
		if line == "" || strings.HasPrefix(line, "#") {
			p.pos++
			continue
		}

		name, rest, ok := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		if !ok || !strings.HasPrefix(rest, "from ") {
			return nil, p.fail("capture lines look like 'name from body.path', got: " + line)
		}
		path := strings.TrimSpace(strings.TrimPrefix(rest, "from "))

		capture := &Capture{Name: name, Source: CaptureBody, Line: p.lineNo()}
		switch {
		case strings.HasPrefix(path, "header "):
			capture.Source = CaptureHeader
			capture.Path = strings.TrimSpace(strings.TrimPrefix(path, "header "))
		case path == "status":
			capture.Source = CaptureStatus
		case path == "duration":
			capture.Source = CaptureDuration
		case strings.HasPrefix(path, "body."):
			capture.Path = strings.TrimPrefix(path, "body.")
		case strings.HasPrefix(path, "body["):
			capture.Path = strings.TrimPrefix(path, "body")
		case path == "body":
			// whole body
		default:
			capture.Path = path
		}
		captures = append(captures, capture)
		p.pos++
	}
	return nil, p.fail("capture block is missing its closing <<<")
}

// parseDBBlock reads assertions of the form:
//
//	expect "SELECT status FROM jobs WHERE id = '{{JOBID}}'" status == "done"
func (p *Parser) parseDBBlock() ([]*DBAssertion, error) {
	var assertions []*DBAssertion
	for !p.eof() {
		line := strings.TrimSpace(p.cur())
		if line == "<<<" {
			p.pos++
			return assertions, nil
		}
		if line == "" || strings.HasPrefix(line, "#") {
			p.pos++
			continue
		}

		tokens := tokenize(line)
		if len(tokens) < 4 || tokens[0].text != "expect" || !tokens[1].quoted {
			return nil, p.fail(`db assertions look like 'expect "<query>" column == value', got: ` + line)
		}
		op, ok := operatorWords[strings.ToLower(tokens[3].text)]
		if !ok {
			return nil, p.fail("unknown db assertion operator: " + tokens[3].text)
		}
		assertion := &DBAssertion{
			Query:    tokens[1].text,
			Column:   tokens[2].text,
			Operator: op,
			Line:     p.lineNo(),
		}
		if len(tokens) > 4 {
			assertion.Expected = parseExpectedValue(line, tokens[4:])
		}
		assertions = append(assertions, assertion)
		p.pos++
	}
	return nil, p.fail("db block is missing its closing <<<")
}

type lineToken struct {
	text   string
	quoted bool
	start  int
}

// tokenize splits a line on whitespace, keeping quoted spans (single or
// double) together and recording where each token starts.
func tokenize(line string) []lineToken {
	var tokens []lineToken
	i := 0
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		if line[i] == '"' || line[i] == '\'' {
			quote := line[i]
			i++
			var b strings.Builder
			for i < len(line) && line[i] != quote {
				if line[i] == '\\' && i+1 < len(line) {
					i++
				}
				b.WriteByte(line[i])
				i++
			}
			if i < len(line) {
				i++
			}
			tokens = append(tokens, lineToken{text: b.String(), quoted: true, start: start})
			continue
		}
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		tokens = append(tokens, lineToken{text: line[start:i], start: start})
	}
	return tokens
}

func joinTokens(tokens []lineToken) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.text
	}
	return strings.Join(parts, " ")
}

// parseExpectedValue turns the remainder of an assertion line into a Go
// value: quoted strings stay strings, numbers and booleans decode, [a, b]
// becomes a list, anything else is the literal text.
func parseExpectedValue(line string, tokens []lineToken) any {
	raw := strings.TrimSpace(line[tokens[0].start:])
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		inner := strings.TrimSpace(raw[1 : len(raw)-1])
		if inner == "" {
			return []any{}
		}
		var values []any
		for _, part := range strings.Split(inner, ",") {
			values = append(values, parseScalar(strings.TrimSpace(part), false))
		}
		return values
	}
	if len(tokens) == 1 && tokens[0].quoted {
		return tokens[0].text
	}
	return parseScalar(raw, false)
}

func parseScalar(s string, quoted bool) any {
	if !quoted && len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	if quoted {
		return s
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
