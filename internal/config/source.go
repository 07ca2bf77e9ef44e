package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/helpers"
	"github.com/temoto/dsmr-bridge/log2"
	"gopkg.in/yaml.v3"
)

type FullReader interface {
	Normalize(key string) string
	// nil,nil = not found
	ReadAll(key string) ([]byte, error)
}

type OsFullReader struct{}

func (OsFullReader) Normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (OsFullReader) ReadAll(path string) ([]byte, error) {
	b, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

type MockFullReader struct {
	Map map[string]string
}

func NewMockFullReader(sources map[string]string) *MockFullReader {
	return &MockFullReader{Map: sources}
}

func (self *MockFullReader) Normalize(name string) string { return filepath.Clean(name) }

func (self *MockFullReader) ReadAll(name string) ([]byte, error) {
	if s, ok := self.Map[name]; ok {
		return []byte(s), nil
	}
	return nil, nil
}

// ReadFile merges file over c. Format by extension: .yaml .yml or hcl otherwise.
func (c *Config) ReadFile(log *log2.Log, fs FullReader, name string) error {
	norm := fs.Normalize(name)
	log.Debugf("config reading source='%s' path=%s", name, norm)
	bs, err := fs.ReadAll(norm)
	if err != nil {
		return errors.Annotatef(err, "config source=%s", name)
	}
	if bs == nil {
		return errors.NotFoundf("config name=%s path=%s", name, norm)
	}
	switch strings.ToLower(filepath.Ext(norm)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bs, c)
	default:
		err = hcl.Unmarshal(bs, c)
	}
	return errors.Annotatef(err, "config unmarshal source=%s", name)
}

// Load resolves configuration: defaults, then file if name is not empty, then environment.
func Load(log *log2.Log, fs FullReader, name string, getenv func(string) string) (*Config, error) {
	c := Default()
	errs := make([]error, 0, 4)
	if name != "" {
		if err := c.ReadFile(log, fs, name); err != nil {
			// broken file makes further checks meaningless
			return nil, err
		}
	}
	if getenv != nil {
		if err := c.ApplyEnv(log, getenv); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return nil, err
	}
	return c, nil
}

func MustLoad(log *log2.Log, fs FullReader, name string, getenv func(string) string) *Config {
	c, err := Load(log, fs, name, getenv)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
