// Package common holds helpers shared by the CLI actions.
package common

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dtnitsch/llm-archive-reader/internal/app"
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/logger"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// LoadConfig loads the config file named by --config and applies the global
// flag overrides.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("archive-dir") {
		cfg.Archives.Directory = c.String("archive-dir")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap loads configuration and builds the logger and App.
// The caller must Close the App and Sync the logger.
func Bootstrap(c *cli.Context) (*app.App, logger.Logger, error) {
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a, err := app.Bootstrap(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

// Render writes v to w as YAML when format is yaml, otherwise as indented JSON.
func Render(w io.Writer, format string, v any) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(format) == FormatYAML {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(string(data), "\n"))
	return err
}

// SplitList splits a comma-separated flag value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FilterFields keeps only the requested top-level JSON fields of v. An empty
// field list keeps everything.
func FilterFields(v any, fields []string) map[string]any {
	full := structToMap(v)
	if len(fields) == 0 {
		return full
	}
	filtered := make(map[string]any, len(fields))
	for _, f := range fields {
		if value, ok := full[f]; ok {
			filtered[f] = value
		}
	}
	return filtered
}

// structToMap converts a struct to map[string]any using JSON marshaling.
func structToMap(obj any) map[string]any {
	data, _ := json.Marshal(obj)
	var result map[string]any
	_ = json.Unmarshal(data, &result)
	return result
}

// GlobalFlags are accepted by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   "config.yaml",
			Usage:   "Path to the YAML config file (missing file means defaults)",
			EnvVars: []string{"LAR_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "archive-dir",
			Aliases: []string{"d"},
			Usage:   "Directory holding the archives (overrides config)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error (overrides config)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   FormatJSON,
			Usage:   "Output format: json or yaml",
		},
	}
}
