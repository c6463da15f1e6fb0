package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration file. Flags override it.
type Config struct {
	// Packed selects the packed encoding for input and output messages.
	Packed bool `yaml:"packed"`

	TraverseLimit uint64 `yaml:"traverse_limit"`
	DepthLimit    uint   `yaml:"depth_limit"`

	// MaxMessageSize caps what a packed message may unpack to.
	MaxMessageSize uint64 `yaml:"max_message_size"`

	// Compression is the frame compressor: none, zstd, lz4 or xz.
	Compression  string `yaml:"compression"`
	MaxFrameSize uint32 `yaml:"max_frame_size"`
	SkipCorrupt  bool   `yaml:"skip_corrupt"`

	// Jobs bounds concurrent verification; zero or less means one per file.
	Jobs int `yaml:"jobs"`
}

func defaultConfig() Config {
	return Config{Compression: "none", Jobs: 4}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
