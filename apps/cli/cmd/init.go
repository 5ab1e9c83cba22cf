package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new apitest project",
	Long: `Initialize a new apitest project in the current directory.

This creates:
  - apitest.yaml   - Configuration file with environments
  - example.http   - Example test file

Examples:
  apitest init
  apitest init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "apitest.yaml")
	exampleFile := filepath.Join(cwd, "example.http")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	configContent := map[string]any{
		"defaultEnvironment": "dev",
		"timeout":            30000,
		"followRedirects":    true,
		"validateSSL":        true,
		"reporters":          []string{"console"},
		"headers": map[string]string{
			"User-Agent": "apitest/1.0",
		},
		"environments": map[string]map[string]string{
			"dev": {
				"baseUrl": "http://localhost:3000",
			},
			"staging": {
				"baseUrl": "https://staging.api.example.com",
			},
			"prod": {
				"baseUrl": "https://api.example.com",
			},
		},
	}

	configYAML, _ := yaml.Marshal(configContent)
	if err := os.WriteFile(configFile, configYAML, 0o644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	exampleContent := `@baseUrl = {{baseUrl}}

### Health check
# @name healthCheck
# @tags smoke

GET {{baseUrl}}/health

HTTP/1.1 200 OK

{
  "status": "[[STATUS]]"
}

### Create a job
# @name createJob
# @tags crud

POST {{baseUrl}}/jobs
Content-Type: application/json

{
  "name": "Example Job"
}

HTTP/1.1 201 Created

{
  "id": "[[JOBID]]",
  "name": "Example Job",
  "state": "pending"
}

### Poll the job until we have its id
# @name getJob
# @tags crud
# @depends createJob

GET {{baseUrl}}/jobs/{{JOBID}}

HTTP/1.1 200 OK

{
  "id": "{{JOBID}}",
  "name": "Example Job"
}

>>>
expect status 200
expect body.state in ["pending", "running", "complete"]
<<<
`

	if err := os.WriteFile(exampleFile, []byte(exampleContent), 0o644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\napitest project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'apitest run example.http' to execute the example tests.\n")

	return nil
}
