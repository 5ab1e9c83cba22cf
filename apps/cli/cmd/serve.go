package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edouardp/ApiTest/packages/mock"
)

var (
	servePortFlag    int
	serveDelayFlag   string
	serveVerboseFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <file|directory>",
	Short: "Serve mock responses based on test files",
	Long: `Start an HTTP mock server that responds based on the requests and
expected responses defined in your .http files.

The mock server:
- Parses your .http files to extract routes
- Serves the expected response block of the matching request
- Dispatches on request bodies structurally, so [[NAME]] placeholders
  in a request body match any value and are echoed back in the response
- Supports path parameters (e.g., /users/:id)
- Can add artificial delays to simulate network latency

Examples:
  apitest serve api.http
  apitest serve api.http --port 8080
  apitest serve api.http --delay 100ms
  apitest serve ./tests/ --verbose`,
	Args: cobra.MinimumNArgs(1),
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().IntVarP(&servePortFlag, "port", "p", 3000, "Port to run the mock server on")
	serveCmd.Flags().StringVarP(&serveDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	serveCmd.Flags().BoolVarP(&serveVerboseFlag, "verbose", "v", false, "Enable verbose logging")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if serveDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(serveDelayFlag)
		if err != nil {
			return fmt.Errorf("invalid delay value %q: %w", serveDelayFlag, err)
		}
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no .http files found")
	}

	server := mock.NewServer(
		mock.WithPort(servePortFlag),
		mock.WithDelay(delay),
		mock.WithVerbose(serveVerboseFlag),
	)

	if err := server.LoadFiles(files); err != nil {
		return fmt.Errorf("failed to load files: %w", err)
	}

	routes := server.Routes()
	if len(routes) == 0 {
		return fmt.Errorf("no routes found in the provided files")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d routes from %d files\n", len(routes), len(files))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(cmd.OutOrStderr(), "\nShutting down mock server...")
		cancel()
	}()

	return server.StartWithContext(ctx)
}
