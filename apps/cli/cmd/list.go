package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edouardp/ApiTest/packages/core/parser"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>",
	Short: "List all tests in test files",
	Long: `List all tests defined in .http files.

Examples:
  apitest list api.http
  apitest list ./tests/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no .http files found")
	}

	for _, file := range files {
		f, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s:\n", file)
		for _, req := range f.Requests {
			name := req.Name
			if name == "" {
				name = fmt.Sprintf("%s %s", req.Method, req.URL)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", name)
			if len(req.Tags) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    tags: %s\n", strings.Join(req.Tags, ", "))
			}
			if req.Metadata != nil && len(req.Metadata.Depends) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "    depends: %s\n", strings.Join(req.Metadata.Depends, ", "))
			}
		}
	}

	return nil
}
