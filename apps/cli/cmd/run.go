package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/edouardp/ApiTest/packages/core/config"
	"github.com/edouardp/ApiTest/packages/core/runner"
	"github.com/edouardp/ApiTest/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>",
	Short: "Run API tests from .http files",
	Long: `Run API tests defined in .http files.

Examples:
  apitest run api.http
  apitest run api.http --env staging
  apitest run ./tests/ --tags smoke
  apitest run api.http --name "Create*"
  apitest run ./tests/ --parallel --concurrency 10
  apitest run api.http --report junit --output-file results.xml
  apitest run api.http --watch`,
	Args: cobra.MinimumNArgs(1),
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag             string
	configFlag          string
	nameFlag            string
	tagsFlag            string
	verboseFlag         int
	noColorFlag         bool
	reportFlag          string
	outputFileFlag      string
	bailFlag            bool
	timeoutFlag         string
	dryRunFlag          bool
	parallelFlag        bool
	concurrencyFlag     int
	rateFlag            float64
	databaseFlag        string
	snapshotDirFlag     string
	updateSnapshotsFlag bool
	watchFlag           bool
	proxyFlag           string
	insecureFlag        bool
)

func init() {
	runCmd.RunE = runCommand
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("APITEST_ENV", ""), "Environment to use (env: APITEST_ENV)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("APITEST_CONFIG", ""), "Path to config file (env: APITEST_CONFIG)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only tests matching name pattern")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("APITEST_TAGS", ""), "Run only tests with specified tags (comma-separated) (env: APITEST_TAGS)")

	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("APITEST_NO_COLOR", false), "Disable colored output (env: APITEST_NO_COLOR)")
	runCmd.Flags().StringVarP(&reportFlag, "report", "o", getEnvString("APITEST_REPORT", ""), "Report format: console, json, junit (env: APITEST_REPORT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("APITEST_OUTPUT_FILE", ""), "Write report to file (default: stdout) (env: APITEST_OUTPUT_FILE)")

	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("APITEST_BAIL", false), "Stop on first failure (env: APITEST_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("APITEST_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: APITEST_TIMEOUT)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without executing")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("APITEST_PARALLEL", false), "Run requests in parallel (when no dependencies) (env: APITEST_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("APITEST_CONCURRENCY", 0), "Number of concurrent requests when running in parallel (env: APITEST_CONCURRENCY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", 0, "Maximum requests per second (0 = unlimited)")

	runCmd.Flags().StringVar(&databaseFlag, "database", getEnvString("APITEST_DATABASE", ""), "Default database connection for db assertions (env: APITEST_DATABASE)")
	runCmd.Flags().StringVar(&snapshotDirFlag, "snapshot-dir", "", "Directory for snapshot files (default: alongside test files)")
	runCmd.Flags().BoolVar(&updateSnapshotsFlag, "update-snapshots", false, "Update snapshot files instead of comparing")

	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run tests")
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("APITEST_PROXY", ""), "Proxy URL for HTTP requests (env: APITEST_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("APITEST_INSECURE", false), "Disable SSL certificate validation (env: APITEST_INSECURE)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func runCommand(cmd *cobra.Command, args []string) error {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return &exitError{code: ExitConfigError, err: err}
	}

	overrides, err := flagOverrides()
	if err != nil {
		return err
	}
	fileConfig = fileConfig.Merge(overrides)

	var outWriter io.Writer
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		outWriter = f
	}

	formatters, err := buildFormatters(fileConfig, outWriter)
	if err != nil {
		return err
	}

	for _, f := range formatters {
		f.FormatHeader(version)
	}

	files, err := collectFiles(args)
	if err != nil {
		for _, f := range formatters {
			f.FormatError(err)
		}
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no .http files found")
	}

	cfg := buildRunnerConfig(fileConfig)

	runTests := func(formatters []output.Formatter) (int, int, time.Duration) {
		start := time.Now()
		totalFailed := 0
		parseErrors := 0

		r := runner.NewRunner(cfg)
		for _, file := range files {
			if dryRunFlag {
				fmt.Fprintf(cmd.OutOrStdout(), "Would run: %s\n", file)
				continue
			}

			result, err := r.RunFile(file)
			if err != nil {
				for _, f := range formatters {
					f.FormatError(err)
				}
				parseErrors++
				if cfg.Bail {
					break
				}
				continue
			}

			for _, f := range formatters {
				f.FormatResult(result)
			}
			totalFailed += result.Failed

			if cfg.Bail && result.Failed > 0 {
				break
			}
		}

		return totalFailed, parseErrors, time.Since(start)
	}

	totalFailed, parseErrors, totalDuration := runTests(formatters)

	for _, f := range formatters {
		if flushable, ok := f.(output.Flushable); ok {
			if err := flushable.Flush(totalDuration); err != nil {
				return fmt.Errorf("error writing output: %w", err)
			}
		}
	}

	if !watchFlag {
		if totalFailed > 0 {
			return &exitError{code: ExitTestFailure}
		}
		if parseErrors > 0 {
			return &exitError{code: ExitParseError}
		}
		return nil
	}

	return watchAndRerun(cmd, args, files, fileConfig, outWriter, runTests)
}

// watchAndRerun re-runs the test files whenever one of them changes on disk.
func watchAndRerun(cmd *cobra.Command, args, files []string, fileConfig *config.Config, outWriter io.Writer, runTests func([]output.Formatter) (int, int, time.Duration)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(cmd.OutOrStderr(), "failed to watch %s: %v\n", dir, err)
			}
			watchedDirs[dir] = true
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Write) && isTestFile(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running tests...\n\n", event.Name)

					// Fresh formatters each run: json/junit accumulate state.
					formatters, err := buildFormatters(fileConfig, outWriter)
					if err != nil {
						fmt.Fprintf(cmd.OutOrStderr(), "Error: %v\n", err)
						return
					}
					_, _, duration := runTests(formatters)
					for _, f := range formatters {
						if flushable, ok := f.(output.Flushable); ok {
							_ = flushable.Flush(duration)
						}
					}

					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.OutOrStderr(), "watcher error: %v\n", err)
		}
	}
}

// buildFormatters creates one formatter per configured reporter. The config
// passed in already has flag overrides merged, so --report has won by now.
func buildFormatters(fileConfig *config.Config, outWriter io.Writer) ([]output.Formatter, error) {
	reporters := fileConfig.Reporters
	if len(reporters) == 0 {
		reporters = []string{"console"}
	}

	var formatters []output.Formatter
	for _, name := range reporters {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "json":
			opts := []output.JSONOption{}
			if outWriter != nil {
				opts = append(opts, output.JSONWithWriter(outWriter))
			} else if w, err := reportFile(fileConfig, "report.json"); err != nil {
				return nil, err
			} else if w != nil {
				opts = append(opts, output.JSONWithWriter(w))
			}
			formatters = append(formatters, output.NewJSONFormatter(opts...))
		case "junit":
			opts := []output.JUnitOption{}
			if outWriter != nil {
				opts = append(opts, output.JUnitWithWriter(outWriter))
			} else if w, err := reportFile(fileConfig, "junit.xml"); err != nil {
				return nil, err
			} else if w != nil {
				opts = append(opts, output.JUnitWithWriter(w))
			}
			formatters = append(formatters, output.NewJUnitFormatter(opts...))
		case "console", "":
			consoleOpts := []output.ConsoleOption{
				output.WithVerbose(fileConfig.GetVerbose()),
				output.WithNoColor(fileConfig.GetNoColor()),
			}
			if outWriter != nil {
				consoleOpts = append(consoleOpts, output.WithWriter(outWriter))
			}
			formatters = append(formatters, output.NewConsoleFormatter(consoleOpts...))
		default:
			return nil, fmt.Errorf("unknown reporter %q (supported: console, json, junit)", name)
		}
	}
	return formatters, nil
}

// reportFile opens a report file under the configured output directory.
// Returns nil when no output directory is configured.
func reportFile(fileConfig *config.Config, name string) (io.Writer, error) {
	if fileConfig.OutputDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(fileConfig.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(fileConfig.OutputDir, name))
	if err != nil {
		return nil, fmt.Errorf("cannot create report file: %w", err)
	}
	return f, nil
}

// flagOverrides expresses the CLI flags as a Config so they can be merged
// over the config file with the file's own precedence rules.
func flagOverrides() (*config.Config, error) {
	overrides := &config.Config{
		DefaultEnvironment: envFlag,
		Proxy:              proxyFlag,
		Concurrency:        concurrencyFlag,
		Rate:               rateFlag,
		Database:           databaseFlag,
		SnapshotDir:        snapshotDirFlag,
	}

	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		overrides.Timeout = int(d.Milliseconds())
	}
	if reportFlag != "" {
		overrides.Reporters = strings.Split(reportFlag, ",")
	}
	if insecureFlag {
		overrides.ValidateSSL = config.BoolPtr(false)
	}
	if runCmd.Flags().Changed("parallel") {
		overrides.Parallel = config.BoolPtr(parallelFlag)
	}
	if bailFlag {
		overrides.Bail = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		overrides.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		overrides.NoColor = config.BoolPtr(true)
	}

	return overrides, nil
}

// buildRunnerConfig maps the merged configuration onto the runner.
func buildRunnerConfig(fileConfig *config.Config) *runner.Config {
	var tagsFilter []string
	for _, t := range strings.Split(tagsFlag, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tagsFilter = append(tagsFilter, t)
		}
	}

	return &runner.Config{
		Environment:     fileConfig.DefaultEnvironment,
		Variables:       environmentVariables(fileConfig),
		Verbose:         fileConfig.GetVerbose(),
		Timeout:         time.Duration(fileConfig.Timeout) * time.Millisecond,
		FollowRedirect:  fileConfig.GetFollowRedirects(),
		ValidateSSL:     fileConfig.GetValidateSSL(),
		DefaultHeaders:  fileConfig.Headers,
		Proxy:           fileConfig.Proxy,
		Bail:            fileConfig.GetBail(),
		NameFilter:      nameFlag,
		TagsFilter:      tagsFilter,
		Parallel:        fileConfig.GetParallel(),
		Concurrency:     fileConfig.Concurrency,
		Rate:            fileConfig.Rate,
		Database:        fileConfig.Database,
		SnapshotDir:     fileConfig.SnapshotDir,
		UpdateSnapshots: updateSnapshotsFlag,
	}
}

func environmentVariables(fileConfig *config.Config) map[string]map[string]any {
	if len(fileConfig.Environments) == 0 {
		return nil
	}
	vars := make(map[string]map[string]any, len(fileConfig.Environments))
	for envName, envVars := range fileConfig.Environments {
		m := make(map[string]any, len(envVars))
		for k, v := range envVars {
			m[k] = v
		}
		vars[envName] = m
	}
	return vars
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isTestFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			if isTestFile(arg) {
				files = append(files, arg)
			}
		}
	}

	return files, nil
}

func isTestFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".http" || ext == ".rest"
}
