package csc

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"fiberspec/pkg/sal"
)

// s3instancePattern constrains the Large File Annex instance name.
var s3instancePattern = regexp.MustCompile(`^[a-z0-9][.a-z0-9]*[a-z0-9]$`)

// Config is the CSC configuration. It is persisted in the store and can
// be partially overridden from a YAML file by the start command.
type Config struct {
	// S3Instance selects the Large File Annex instance, for example
	// "summit" or "tucson".
	S3Instance string `json:"s3instance" yaml:"s3instance"`
	// S3Endpoint is the S3 server to upload to.
	S3Endpoint string `json:"s3endpoint" yaml:"s3endpoint"`
	S3Secure   bool   `json:"s3secure" yaml:"s3secure"`
	// Location is the telescope location code written as TELCODE.
	Location string `json:"location" yaml:"location"`
	// ImageServiceURL is the image name service used to obtain OBSIDs.
	ImageServiceURL string `json:"imageServiceUrl" yaml:"imageServiceUrl"`

	MQTT sal.MQTTConfig `json:"mqtt" yaml:"mqtt"`
}

var defaultConfig = Config{
	S3Instance:      "summit",
	S3Endpoint:      "s3.cp.lsst.org",
	S3Secure:        true,
	Location:        "CC",
	ImageServiceURL: "http://imagename:8080",
	MQTT: sal.MQTTConfig{
		Host:      "tcp://localhost:1883",
		TopicRoot: "lsst/sal",
	},
}

// Validate checks the configuration for values the downstream systems
// would reject.
func (c Config) Validate() error {
	if !s3instancePattern.MatchString(c.S3Instance) {
		return fmt.Errorf("invalid s3instance %q: must match %s", c.S3Instance, s3instancePattern)
	}
	if c.Location == "" {
		return fmt.Errorf("location must not be empty")
	}
	return nil
}

// ApplyOverride layers a YAML override file on top of cfg. An empty
// path returns cfg unchanged. The result is validated.
func ApplyOverride(cfg Config, path string) (Config, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read override file: %v", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse override file %s: %v", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
