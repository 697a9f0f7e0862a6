package main

import (
	"flag"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/xdg-go/jarr"
)

// Config mirrors the command line flags so runs can be described in a YAML
// file.  Flags given explicitly on the command line win over config values.
type Config struct {
	File           string  `yaml:"file"`
	Input          string  `yaml:"input"`
	Filter         string  `yaml:"filter"`
	Indent         int     `yaml:"indent"`
	MaxDepth       int     `yaml:"max_depth"`
	Comments       bool    `yaml:"comments"`
	TrailingCommas bool    `yaml:"trailing_commas"`
	Capacity       int     `yaml:"capacity"`
	Rate           float64 `yaml:"rate"`
}

func defaultConfig() *Config {
	return &Config{
		Input:    "auto",
		MaxDepth: jarr.DefaultMaxDepth,
	}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfig overlays file values onto cfg, except for flags the user set
// explicitly on the command line.
func mergeConfig(cfg, fileCfg *Config) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["file"] {
		cfg.File = fileCfg.File
	}
	if !set["in"] {
		cfg.Input = fileCfg.Input
	}
	if !set["filter"] {
		cfg.Filter = fileCfg.Filter
	}
	if !set["indent"] {
		cfg.Indent = fileCfg.Indent
	}
	if !set["maxdepth"] {
		cfg.MaxDepth = fileCfg.MaxDepth
	}
	if !set["comments"] {
		cfg.Comments = fileCfg.Comments
	}
	if !set["trailing-commas"] {
		cfg.TrailingCommas = fileCfg.TrailingCommas
	}
	if !set["capacity"] {
		cfg.Capacity = fileCfg.Capacity
	}
	if !set["rate"] {
		cfg.Rate = fileCfg.Rate
	}
}
