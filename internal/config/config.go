// Package config loads the dqcheck YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/go-scripts/dqcheck/internal/artifact"
	"github.com/go-scripts/dqcheck/internal/browser"
	"github.com/go-scripts/dqcheck/internal/extract"
	"github.com/go-scripts/dqcheck/internal/flow"
	"github.com/go-scripts/dqcheck/internal/poll"
	"github.com/go-scripts/dqcheck/internal/postgres"
)

// DefaultFile is read when no config file is given
const DefaultFile = "config.yaml"

// Config is the complete configuration
type Config struct {
	Reconcile flow.Config     `yaml:"reconcile"`
	Chart     ChartConfig     `yaml:"chart"`
	Browser   browser.Options `yaml:"browser"`
	Postgres  postgres.Config `yaml:"postgres"`
	Artifact  ArtifactConfig  `yaml:"artifact"`
	Checks    ChecksConfig    `yaml:"checks"`
}

// ChartConfig configures the chart snapshot series
type ChartConfig struct {
	HTMLPath   string               `yaml:"html"`
	Locator    extract.ChartLocator `yaml:"locator"`
	Legend     string               `yaml:"legend"`
	LegendItem string               `yaml:"legend_item"`
	Timeout    time.Duration        `yaml:"timeout"`
	Settle     poll.Options         `yaml:"settle"`
	OutputDir  string               `yaml:"output_dir"`
	Prefix     string               `yaml:"prefix"`
	// PerRun writes each run into its own subdirectory of OutputDir
	PerRun bool `yaml:"per_run"`
}

// ArtifactConfig locates the reference artifact published by CI
type ArtifactConfig struct {
	URL              string `yaml:"url"`
	Dest             string `yaml:"dest"`
	artifact.Options `yaml:",inline"`
}

// ChecksConfig configures the data-quality checks run against a CSV file
type ChecksConfig struct {
	Path     string                `yaml:"path"`
	Schema   []string              `yaml:"schema"`
	Unique   []string              `yaml:"unique"`
	NotNull  []string              `yaml:"not_null"`
	Ranges   map[string][2]float64 `yaml:"ranges"`
	Patterns map[string]string     `yaml:"patterns"`
	// ExpectDuplicates marks the duplicate check as a known failure
	ExpectDuplicates bool `yaml:"expect_duplicates"`
	// FloatColumns are parsed as numbers before the checks run
	FloatColumns []string     `yaml:"float_columns"`
	Values       []ValueCheck `yaml:"values"`
	// Reference is a CSV file the checked file must equal row for row
	Reference string `yaml:"reference"`
}

// ValueCheck expects Want in Column on every row where KeyColumn is Key
type ValueCheck struct {
	KeyColumn string `yaml:"key_column"`
	Key       string `yaml:"key"`
	Column    string `yaml:"column"`
	Want      string `yaml:"want"`
}

// Default returns the configuration used when no file overrides it
func Default() Config {
	return Config{
		Reconcile: flow.DefaultConfig(),
		Chart: ChartConfig{
			Locator:    extract.DoughnutChart(),
			Legend:     ".legend",
			LegendItem: ".traces",
			Timeout:    extract.DefaultTimeout,
			Settle:     poll.Options{Interval: 100 * time.Millisecond, Timeout: 3 * time.Second},
			OutputDir:  "output_chart",
			Prefix:     "output_chart",
		},
		Browser: browser.Options{LoadTimeout: 30 * time.Second, WindowWidth: 1280, WindowHeight: 1024},
		Postgres: postgres.Config{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Artifact: ArtifactConfig{
			Dest:    filepath.Join("data", "reference.parquet"),
			Options: artifact.Options{Timeout: 2 * time.Minute},
		},
	}
}

// Load reads name over the defaults, then <name>.local.<ext> over that.
// A missing file is not an error unless it was asked for explicitly.
func Load(name string, explicit bool) (Config, error) {
	cfg := Default()

	found, err := merge(&cfg, name)
	if err != nil {
		return cfg, err
	}
	if !found && explicit {
		return cfg, fmt.Errorf("config file %s: %w", name, os.ErrNotExist)
	}

	local := localName(name)
	foundLocal, err := merge(&cfg, local)
	if err != nil {
		return cfg, err
	}
	if foundLocal {
		log.Info("Merging config with local overrides", "local", local)
	}
	return cfg, nil
}

// merge decodes the YAML file at path and merges its set fields into cfg
func merge(cfg *Config, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read config: %w", err)
	}
	if len(data) == 0 {
		return true, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	var override Config
	if err := doc.Decode(&override); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
		return false, fmt.Errorf("failed to merge config %s: %w", path, err)
	}
	if len(doc.Content) > 0 {
		replaceExplicit(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(override), doc.Content[0])
	}
	return true, nil
}

// replaceExplicit copies the fields mergo leaves alone: a list or map written
// in the file replaces the default instead of merging with it, so [] and {}
// clear it, and a zero value such as false or 0 replaces a non-zero default.
func replaceExplicit(dst, src reflect.Value, node *yaml.Node) {
	if node.Kind != yaml.MappingNode {
		return
	}
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			continue
		}
		if opts == "inline" && f.Type.Kind() == reflect.Struct {
			replaceExplicit(dst.Field(i), src.Field(i), node)
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}

		value := mappingValue(node, name)
		if value == nil {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Struct:
			replaceExplicit(dst.Field(i), src.Field(i), value)
		case reflect.Map, reflect.Slice, reflect.Array:
			dst.Field(i).Set(src.Field(i))
		default:
			if src.Field(i).IsZero() {
				dst.Field(i).Set(src.Field(i))
			}
		}
	}
}

// mappingValue returns the value node stored under key, or nil
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// localName turns config.yaml into config.local.yaml
func localName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}
