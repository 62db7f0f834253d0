// Package factory loads, defaults, and validates the MME configuration.
package factory

import (
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/free5gc/mme/internal/logger"
)

// ReadConfig reads YAML from the given path, applies defaults, and
// validates. The effective configuration is dumped at debug level.
func ReadConfig(path string) (*Config, error) {
	data, readError := os.ReadFile(path)
	if readError != nil {
		return nil, errors.Wrap(readError, "read config file")
	}

	var cfg Config
	if unmarshalError := yaml.Unmarshal(data, &cfg); unmarshalError != nil {
		return nil, errors.Wrap(unmarshalError, "unmarshal yaml")
	}

	applyDefaults(&cfg)

	if validateError := validateConfig(&cfg); validateError != nil {
		return nil, errors.Wrap(validateError, "validate config")
	}

	logger.CfgLog.Debugf("effective configuration:\n%s", spew.Sdump(cfg))

	return &cfg, nil
}
