package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment is a named set of variables for one run, assembled from
// the config file's environments section plus .env files on disk.
type Environment struct {
	Name      string
	Variables map[string]any
}

// LoadEnvironment merges, in increasing precedence: the config-declared
// variables for envName, .env, and .env.<envName> from dir. Missing .env
// files are not an error.
func LoadEnvironment(dir, envName string, configEnvs map[string]map[string]any) (*Environment, error) {
	environment := &Environment{
		Name:      envName,
		Variables: make(map[string]any),
	}

	if configEnvs != nil {
		for k, v := range configEnvs[envName] {
			environment.Variables[k] = v
		}
	}

	for _, name := range []string{".env", ".env." + envName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		for k, v := range vars {
			environment.Variables[k] = v
		}
	}

	return environment, nil
}

// LoadDotEnvFile reads a specific .env file and exports its values to
// the process environment so {{$VAR}} references resolve. Existing OS
// values win.
func LoadDotEnvFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	for k, v := range vars {
		if os.Getenv(k) == "" {
			_ = os.Setenv(k, v)
		}
	}
	return vars, nil
}

// MergeVariables folds several variable maps left to right, later maps
// winning.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}
