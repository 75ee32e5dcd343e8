package unistor

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v2"
)

// Profile names a backend scheme together with its driver options.
type Profile struct {
	Scheme  string            `yaml:"scheme"`
	Options map[string]string `yaml:"options"`
}

// Config holds named backend profiles loaded from a yaml file.
type Config struct {
	Profiles map[string]Profile `yaml:"profiles"`

	filename string
}

// DefaultConfig is used for missing config files and as the base for
// loaded ones.
var DefaultConfig = Config{
	Profiles: map[string]Profile{},
}

// LoadConfig reads a yaml config file. "~" in filename is expanded to the
// user home directory. A missing file yields DefaultConfig.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig
	c.Profiles = make(map[string]Profile)
	filename, err := homedir.Expand(filename)
	if err != nil {
		return nil, err
	}
	c.filename = filename
	b, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes the config back to the file it was loaded from.
func (c *Config) Save() error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(c.filename), os.ModeDir|0750); err != nil {
		return err
	}
	return os.WriteFile(c.filename, b, 0640)
}
