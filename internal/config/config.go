package config

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration loaded from the YAML config file.
type Config struct {
	Roots         []string `yaml:"roots"           json:"roots"`
	RootsFile     string   `yaml:"roots_file"      json:"roots_file"`
	ExcludePaths  []string `yaml:"exclude_paths"   json:"exclude_paths"`
	Extensions    []string `yaml:"extensions"      json:"extensions"`
	Workers       int      `yaml:"workers"         json:"workers"`
	MaxFiles      int      `yaml:"max_files"       json:"max_files"`
	MaxFileSize   int64    `yaml:"max_file_size"   json:"max_file_size"`
	PerFileCounts bool     `yaml:"per_file_counts" json:"per_file_counts"`
	OutputPath    string   `yaml:"output_path"     json:"output_path"`
	DBPath        string   `yaml:"db_path"         json:"-"`
	HTTPAddr      string   `yaml:"http_addr"       json:"-"`
	Schedule      string   `yaml:"schedule"        json:"schedule"`
	LogLevel      string   `yaml:"log_level"       json:"-"`
}

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".c", ".h", ".cpp", ".hpp"}
	}
	if c.RootsFile == "" {
		c.RootsFile = "line_count.in"
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxFiles == 0 {
		c.MaxFiles = 256 * 1024
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 10 * 1024 * 1024
	}
	if c.OutputPath == "" {
		c.OutputPath = "line_count.out"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.Schedule == "" {
		c.Schedule = "0 2 * * 0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the tool
// runs with command-line roots and no config file at all.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		var cfg Config
		cfg.applyDefaults()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadRoots reads a newline-delimited list of search roots. Blank and
// whitespace-only lines are ignored.
func LoadRoots(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roots file %q: %w", path, err)
	}
	defer f.Close()

	var roots []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		roots = append(roots, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read roots file %q: %w", path, err)
	}
	return roots, nil
}
