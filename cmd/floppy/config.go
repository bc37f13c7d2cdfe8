package main

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "FLOPPY"
	appName      = "floppy"
)

type Config struct {
	Image   string `envconfig:"FLOPPY_IMAGE"    yaml:"image"`
	Debug   uint64 `envconfig:"FLOPPY_DEBUG"    yaml:"debug"`
	DumpDir string `envconfig:"FLOPPY_DUMP_DIR" yaml:"dumpDir"`
}

// LoadConfig starts from the defaults, reads the optional YAML file named by FLOPPY_CONFIG_FILE and
// then applies environment overrides. Unset variables keep earlier values.
func LoadConfig() (*Config, error) {
	c := Config{Image: "floppy.disk", DumpDir: "."}
	if configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE"); configFile != "" {
		data, err := ioutil.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshaling config file: %w", err)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return &c, nil
}
