package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"

	"github.com/edouardp/ApiTest/packages/assertions"
	"github.com/edouardp/ApiTest/packages/capture"
	"github.com/edouardp/ApiTest/packages/core/env"
	"github.com/edouardp/ApiTest/packages/core/parser"
	"github.com/edouardp/ApiTest/packages/http"
	"github.com/edouardp/ApiTest/packages/snapshot"
)

const (
	// DefaultConcurrency is the number of in-flight requests in parallel mode.
	DefaultConcurrency = 5
	// DefaultRetryDelayMs is the delay between retries in milliseconds.
	DefaultRetryDelayMs = 1000
)

type Config struct {
	Environment     string
	Variables       map[string]map[string]any // per-environment variables from config
	Verbose         bool
	Timeout         time.Duration
	FollowRedirect  bool
	ValidateSSL     bool
	DefaultHeaders  map[string]string
	Proxy           string
	Bail            bool
	NameFilter      string
	TagsFilter      []string
	Parallel        bool
	Concurrency     int
	Rate            float64 // requests per second, 0 = unlimited
	Database        string  // default connection string for db assertions
	SnapshotDir     string
	UpdateSnapshots bool
}

type Runner struct {
	client    *http.Client
	resolver  *env.Resolver
	config    *Config
	limiter   *rate.Limiter
	snapshots *snapshot.Manager

	histMu sync.Mutex
	hist   *hdrhistogram.Histogram
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{FollowRedirect: true, ValidateSSL: true}
	}

	clientOpts := []http.ClientOption{
		http.WithFollowRedirects(cfg.FollowRedirect),
		http.WithValidateSSL(cfg.ValidateSSL),
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, http.WithTimeout(cfg.Timeout))
	}
	if len(cfg.DefaultHeaders) > 0 {
		clientOpts = append(clientOpts, http.WithDefaultHeaders(cfg.DefaultHeaders))
	}
	if cfg.Proxy != "" {
		clientOpts = append(clientOpts, http.WithProxy(cfg.Proxy))
	}

	r := &Runner{
		client:    http.NewClient(clientOpts...),
		resolver:  env.NewResolver(),
		config:    cfg,
		snapshots: snapshot.NewManager(cfg.SnapshotDir, cfg.UpdateSnapshots),
		// request latencies from 1ms to 10 minutes
		hist: hdrhistogram.New(1, 600000, 3),
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r
}

// Resolver exposes the variable resolver, mainly so callers can seed
// variables or observe captures after a run.
func (r *Runner) Resolver() *env.Resolver {
	return r.resolver
}

type RunResult struct {
	File     string
	Results  []*RequestResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	Latency  *LatencySummary
}

type RequestResult struct {
	Name         string
	Passed       bool
	Skipped      bool
	SkipReason   string
	Duration     time.Duration
	Request      *http.Request
	Response     *http.Response
	Expectation  *ExpectationResult
	Assertions   []*assertions.Result
	DBAssertions []*DBAssertionResult
	Captures     map[string]any
	Error        error
}

// LatencySummary aggregates request durations across a run.
type LatencySummary struct {
	Count int64
	P50   int64 // milliseconds
	P95   int64
	P99   int64
	Max   int64
	Mean  float64
}

func (r *Runner) RunFile(path string) (*RunResult, error) {
	file, err := parser.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	environment, err := env.LoadEnvironment(filepath.Dir(path), r.config.Environment, r.config.Variables)
	if err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	r.resolver.SetVariables(environment.Variables)

	for _, v := range file.Variables {
		r.resolver.SetVariable(v.Name, r.resolver.Resolve(v.Value))
	}

	return r.runRequests(file)
}

// RunSource parses and runs scenario text directly, with path used only
// for reporting and snapshot naming.
func (r *Runner) RunSource(path, source string) (*RunResult, error) {
	file, err := parser.Parse(source, path)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	for _, v := range file.Variables {
		r.resolver.SetVariable(v.Name, r.resolver.Resolve(v.Value))
	}

	return r.runRequests(file)
}

func (r *Runner) runRequests(file *parser.File) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{File: file.Path}
	baseDir := filepath.Dir(file.Path)

	hasOnly := false
	for _, req := range file.Requests {
		if req.Metadata != nil && req.Metadata.Only {
			hasOnly = true
			break
		}
	}

	sorted, err := r.sortByDependencies(file.Requests)
	if err != nil {
		return nil, err
	}

	// Skip records keep their position in the file, so results come out
	// in request order even when filters apply.
	slots := make([]*RequestResult, len(sorted))
	var runnable []*parser.Request
	var runnableIdx []int
	for i, req := range sorted {
		if !r.shouldRun(req, hasOnly) {
			slots[i] = skipped(req.Name, "filtered out")
			continue
		}
		if req.Metadata != nil && req.Metadata.Skip != "" {
			slots[i] = skipped(req.Name, req.Metadata.Skip)
			continue
		}
		runnable = append(runnable, req)
		runnableIdx = append(runnableIdx, i)
	}

	hasDependencies := false
	for _, req := range runnable {
		if req.Metadata != nil && len(req.Metadata.Depends) > 0 {
			hasDependencies = true
			break
		}
	}

	if r.config.Parallel && !hasDependencies {
		for j, reqResult := range r.runParallel(runnable, file.Path, baseDir) {
			slots[runnableIdx[j]] = reqResult
		}
	} else {
		executed := make(map[string]*RequestResult)

		for j, req := range runnable {
			if depFailed(req, executed) {
				slots[runnableIdx[j]] = skipped(req.Name, "dependency failed")
				continue
			}

			reqResult := r.runWithRetry(req, file.Path, baseDir, false)
			slots[runnableIdx[j]] = reqResult
			if req.Name != "" {
				executed[req.Name] = reqResult
			}

			if !reqResult.Passed && !reqResult.Skipped && r.config.Bail {
				break
			}
		}
	}

	for _, reqResult := range slots {
		if reqResult == nil {
			// unreached after a bail
			continue
		}
		result.Results = append(result.Results, reqResult)
		tally(result, reqResult)
	}

	result.Duration = time.Since(start)
	result.Latency = r.latencySummary()
	return result, nil
}

func skipped(name, reason string) *RequestResult {
	return &RequestResult{Name: name, Skipped: true, SkipReason: reason}
}

func tally(run *RunResult, req *RequestResult) {
	switch {
	case req.Skipped:
		run.Skipped++
	case req.Passed:
		run.Passed++
	default:
		run.Failed++
	}
}

func depFailed(req *parser.Request, executed map[string]*RequestResult) bool {
	if req.Metadata == nil {
		return false
	}
	for _, dep := range req.Metadata.Depends {
		if depResult, ok := executed[dep]; ok && !depResult.Passed && !depResult.Skipped {
			return true
		}
	}
	return false
}

func (r *Runner) runParallel(requests []*parser.Request, filePath, baseDir string) []*RequestResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*RequestResult, len(requests))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, req := range requests {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, request *parser.Request) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = r.runWithRetry(request, filePath, baseDir, true)
		}(i, req)
	}

	wg.Wait()
	return results
}

// sortByDependencies orders requests so every request runs after the ones
// it depends on, using Kahn's algorithm. A cycle is an error.
func (r *Runner) sortByDependencies(requests []*parser.Request) ([]*parser.Request, error) {
	names := make([]string, len(requests))
	byName := make(map[string]*parser.Request, len(requests))
	for i, req := range requests {
		name := req.Name
		if name == "" {
			name = fmt.Sprintf("request #%d", i+1)
		}
		names[i] = name
		byName[name] = req
	}

	inDegree := make(map[string]int, len(requests))
	dependents := make(map[string][]string)
	for i, req := range requests {
		inDegree[names[i]] += 0
		if req.Metadata == nil {
			continue
		}
		for _, dep := range req.Metadata.Depends {
			if _, ok := byName[dep]; !ok {
				fmt.Fprintf(os.Stderr, "warning: request %q depends on unknown request %q\n", names[i], dep)
				continue
			}
			dependents[dep] = append(dependents[dep], names[i])
			inDegree[names[i]]++
		}
	}

	// seed the queue in file order so independent requests keep their order
	var queue []string
	for _, name := range names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var sorted []*parser.Request
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, byName[current])

		for _, next := range dependents[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(sorted) != len(requests) {
		return nil, fmt.Errorf("circular dependency detected in requests")
	}
	return sorted, nil
}

func (r *Runner) shouldRun(req *parser.Request, hasOnly bool) bool {
	if hasOnly && (req.Metadata == nil || !req.Metadata.Only) {
		return false
	}

	if r.config.NameFilter != "" {
		if req.Name == "" || !matchesPattern(req.Name, r.config.NameFilter) {
			return false
		}
	}

	if len(r.config.TagsFilter) > 0 && !hasAnyTag(req.Tags, r.config.TagsFilter) {
		return false
	}

	return true
}

func (r *Runner) runWithRetry(req *parser.Request, filePath, baseDir string, parallel bool) *RequestResult {
	maxRetries := 0
	retryDelay := DefaultRetryDelayMs
	var retryOn []int

	if req.Metadata != nil {
		if req.Metadata.Retry > 0 {
			maxRetries = req.Metadata.Retry
		}
		if req.Metadata.RetryDelay > 0 {
			retryDelay = req.Metadata.RetryDelay
		}
		retryOn = req.Metadata.RetryOn
	}

	var result *RequestResult
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result = r.execute(req, filePath, baseDir, parallel)

		if result.Passed || result.Skipped {
			return result
		}

		if len(retryOn) > 0 {
			if result.Response == nil || !containsStatus(retryOn, result.Response.StatusCode) {
				return result
			}
		}

		if attempt < maxRetries {
			time.Sleep(time.Duration(retryDelay) * time.Millisecond)
		}
	}

	return result
}

func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *Runner) execute(req *parser.Request, filePath, baseDir string, parallel bool) *RequestResult {
	result := &RequestResult{
		Name:     req.Name,
		Captures: make(map[string]any),
	}

	if req.Metadata != nil && req.Metadata.Condition != nil {
		run, err := r.evaluateCondition(req.Metadata.Condition)
		if err != nil {
			result.Error = err
			return result
		}
		if !run {
			result.Skipped = true
			result.SkipReason = "condition not met"
			return result
		}
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(context.Background()); err != nil {
			result.Error = err
			return result
		}
	}

	start := time.Now()

	httpReq := http.BuildRequestFromAST(req, r.resolver.Resolve)
	result.Request = httpReq

	resp, err := r.client.Do(httpReq)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err
		return result
	}
	result.Response = resp
	r.recordLatency(resp.DurationMs())

	result.Passed = true

	if req.Expect != nil {
		result.Expectation = r.checkExpectation(req, resp, parallel)
		if !result.Expectation.Passed {
			result.Passed = false
		}
	}

	if len(req.Assertions) > 0 {
		opts := []assertions.Option{assertions.WithBaseDir(baseDir)}
		if r.snapshots != nil {
			opts = append(opts, assertions.WithSnapshots(r.snapshots, filePath, req.Name))
		}
		result.Assertions = assertions.EvaluateAll(resp, req.Assertions, opts...)
		for _, a := range result.Assertions {
			if !a.Passed {
				result.Passed = false
				break
			}
		}
	}

	if len(req.DBAssertions) > 0 {
		dbResults, err := r.runDBAssertions(req)
		if err != nil {
			result.Error = err
			result.Passed = false
			return result
		}
		result.DBAssertions = dbResults
		for _, d := range dbResults {
			if !d.Passed {
				result.Passed = false
				break
			}
		}
	}

	// with nothing declared, a 2xx response passes
	if req.Expect == nil && len(req.Assertions) == 0 && len(req.DBAssertions) == 0 {
		result.Passed = resp.IsSuccess()
	}

	if len(req.Captures) > 0 {
		for name, value := range capture.ExtractAll(resp, req.Captures) {
			result.Captures[name] = value
			if !parallel {
				r.resolver.SetCapture(req.Name, name, value)
			}
		}
	}

	return result
}

func (r *Runner) recordLatency(ms int64) {
	if ms < 1 {
		ms = 1
	}
	r.histMu.Lock()
	_ = r.hist.RecordValue(ms)
	r.histMu.Unlock()
}

func (r *Runner) latencySummary() *LatencySummary {
	r.histMu.Lock()
	defer r.histMu.Unlock()

	if r.hist.TotalCount() == 0 {
		return nil
	}
	return &LatencySummary{
		Count: r.hist.TotalCount(),
		P50:   r.hist.ValueAtQuantile(50),
		P95:   r.hist.ValueAtQuantile(95),
		P99:   r.hist.ValueAtQuantile(99),
		Max:   r.hist.Max(),
		Mean:  r.hist.Mean(),
	}
}

func matchesPattern(name, pattern string) bool {
	switch {
	case pattern == "":
		return true
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		return strings.Contains(name, pattern[1:len(pattern)-1])
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(name, pattern[1:])
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	default:
		return name == pattern
	}
}

func hasAnyTag(tags, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
