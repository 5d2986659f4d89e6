// Package config loads the settings of the nufs command: built-in defaults,
// then an optional YAML file, then NUFS_* environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mit-pdos/go-nufs/fs"
)

const envVarPrefix = "NUFS"

type Config struct {
	// Image is the path of the backing file.
	Image string `envconfig:"IMAGE" yaml:"image"`
	// Debug is the util.DPrintf level.
	Debug uint64 `envconfig:"DEBUG" yaml:"debug"`
	// Sync makes every operation wait for the image to reach storage.
	Sync bool `envconfig:"SYNC" yaml:"sync"`
}

func Default() *Config {
	return &Config{Image: "nufs.img"}
}

// Load reads path if it is non-empty and exists and applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}
	if err := envconfig.Process(envVarPrefix, c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	if c.Image == "" {
		return nil, fmt.Errorf("missing required configuration: image / %s_IMAGE", envVarPrefix)
	}
	return c, nil
}

func (c *Config) Options() fs.Options {
	return fs.Options{Sync: c.Sync}
}
