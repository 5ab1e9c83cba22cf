// Package config loads project configuration from apitest.yaml.
//
// Configuration is optional: when no file is found, defaults are used.
// Settings merge with precedence config file < environment < CLI flags,
// so a flag always wins over the file.
package config
