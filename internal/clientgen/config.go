// Package clientgen wraps the external OpenAPI client generator: it builds
// the command line, checks that the tool is installed, runs it under a
// timeout and reports the files it produced.
package clientgen

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Client styles accepted in Config.ClientType.
const (
	ClientAsync = "asyncio"
	ClientSync  = "sync"
)

// Config describes one client generation run.
type Config struct {
	GeneratorType        string            `yaml:"generator_type" json:"generator_type"`
	PackageName          string            `yaml:"package_name" json:"package_name"`
	ClientType           string            `yaml:"client_type" json:"client_type"`
	GenerateModels       bool              `yaml:"generate_models" json:"generate_models"`
	GenerateAPIs         bool              `yaml:"generate_apis" json:"generate_apis"`
	GenerateDocs         bool              `yaml:"generate_docs" json:"generate_docs"`
	AdditionalProperties map[string]string `yaml:"additional_properties,omitempty" json:"additional_properties,omitempty"`
}

// DefaultConfig returns the python asyncio client configuration.
func DefaultConfig() Config {
	return Config{
		GeneratorType:  "python",
		PackageName:    "api_client",
		ClientType:     ClientAsync,
		GenerateModels: true,
		GenerateAPIs:   true,
		GenerateDocs:   true,
	}
}

// ForAsyncClient returns the default configuration for an asyncio client.
func ForAsyncClient(packageName string) Config {
	c := DefaultConfig()
	if packageName != "" {
		c.PackageName = packageName
	}
	return c
}

// ForSyncClient returns the default configuration for a synchronous client.
func ForSyncClient(packageName string) Config {
	c := ForAsyncClient(packageName)
	c.ClientType = ClientSync
	return c
}

// Library maps the client style onto the generator's library option.
func (c Config) Library() string {
	if c.ClientType == ClientSync {
		return "urllib3"
	}
	return "asyncio"
}

// Package is the package name the generator will emit: a packageName
// additional property overrides PackageName.
func (c Config) Package() string {
	if v := strings.TrimSpace(c.AdditionalProperties["packageName"]); v != "" {
		return v
	}
	return c.PackageName
}

// Properties renders the additional-properties list: packageName and
// library first, then the remaining additional properties sorted by key.
// Additional properties may override the first two.
func (c Config) Properties() []string {
	pkg, lib := c.Package(), c.Library()
	if v, ok := c.AdditionalProperties["library"]; ok {
		lib = v
	}
	props := []string{"packageName=" + pkg, "library=" + lib}
	keys := make([]string, 0, len(c.AdditionalProperties))
	for k := range c.AdditionalProperties {
		if k != "packageName" && k != "library" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		props = append(props, k+"="+c.AdditionalProperties[k])
	}
	return props
}

// globalProperties restricts what the generator emits when models, APIs or
// docs are disabled. Supporting files are always generated because the
// package entry point and api_client module live there.
func (c Config) globalProperties() []string {
	var out []string
	if !c.GenerateModels || !c.GenerateAPIs {
		if c.GenerateModels {
			out = append(out, "models")
		}
		if c.GenerateAPIs {
			out = append(out, "apis")
		}
		out = append(out, "supportingFiles")
	}
	if !c.GenerateDocs {
		out = append(out, "modelDocs=false", "apiDocs=false")
	}
	return out
}

// Args builds the generator command line for one run.
func (c Config) Args(specPath, outputDir string) []string {
	args := []string{
		"generate",
		"-i", specPath,
		"-o", outputDir,
		"-g", c.GeneratorType,
		"--package-name", c.Package(),
		"--additional-properties=" + strings.Join(c.Properties(), ","),
	}
	if g := c.globalProperties(); len(g) > 0 {
		args = append(args, "--global-property="+strings.Join(g, ","))
	}
	return args
}

// Validate reports configuration values the generator would reject.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GeneratorType) == "" {
		errs = append(errs, errors.New("generator_type is required"))
	}
	if strings.TrimSpace(c.Package()) == "" {
		errs = append(errs, errors.New("package_name is required"))
	}
	if c.ClientType != ClientAsync && c.ClientType != ClientSync {
		errs = append(errs, fmt.Errorf("client_type must be %q or %q, got %q", ClientAsync, ClientSync, c.ClientType))
	}
	return errors.Join(errs...)
}

// LoadConfigFile overlays the YAML file at path onto base. Keys absent from
// the file keep their base value; unknown keys are an error.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read client config %s: %w", path, err)
	}
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parse client config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("client config %s: %w", path, err)
	}
	return cfg, nil
}
