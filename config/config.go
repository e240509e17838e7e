package config

import (
	"sync"
	"time"

	"github.com/jinzhu/configor"
	"github.com/sirupsen/logrus"

	"github.com/shallowclouds/unitsdb/backend"
)

type configStruct struct {
	Backend struct {
		Kind     string `yaml:"Kind"`
		URL      string `yaml:"URL"`
		Database string `yaml:"Database"`
		Username string `yaml:"Username"`
		Password string `yaml:"Password"`
		Token    string `yaml:"Token"`
		// TimeoutSeconds bounds one write request, 0 for the default.
		TimeoutSeconds int `yaml:"TimeoutSeconds"`
	} `yaml:"Backend"`
	// Batch is the auto-commit threshold, 0 for manual commits only.
	Batch int `yaml:"Batch"`
}

// BackendConfig translates the file section into a connector config.
func (c *configStruct) BackendConfig() backend.Config {
	return backend.Config{
		Kind:     backend.Kind(c.Backend.Kind),
		URL:      c.Backend.URL,
		Database: c.Backend.Database,
		Username: c.Backend.Username,
		Password: c.Backend.Password,
		Token:    c.Backend.Token,
		Timeout:  time.Duration(c.Backend.TimeoutSeconds) * time.Second,
	}
}

var (
	configFilePath string
	initConfigOnce sync.Once
	config         *configStruct
)

func SetConfigFilePath(filepath string) {
	configFilePath = filepath
}

func Config() *configStruct {
	initConfigOnce.Do(func() {
		config = new(configStruct)
		if err := configor.Load(config, configFilePath, "conf/config.yaml"); err != nil {
			logrus.WithError(err).Fatal("failed to load config from file")
		}
	})
	return config
}
