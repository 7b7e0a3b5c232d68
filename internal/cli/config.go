package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/openapi2mcp/internal/clientgen"
)

// Environment holds the OPENAPI2MCP_* settings. They sit between the
// built-in defaults and the config file.
type Environment struct {
	Generator   clientgen.Settings
	PythonBin   string        `env:"PYTHON_BIN" envDefault:"python3"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
}

func loadEnvironment() (Environment, error) {
	var e Environment
	if err := env.ParseWithOptions(&e, env.Options{Prefix: clientgen.EnvPrefix}); err != nil {
		return Environment{}, newUsageError(fmt.Sprintf("environment: %v", err))
	}
	return e, nil
}

// configKeys lists every key any command reads from the config file, so a
// file shared between commands only fails on keys no command knows.
var configKeys = map[string]bool{
	"spec": true, "name": true, "description": true, "author": true, "outputdir": true,
	"pythonversion": true, "nodocker": true, "noci": true, "testframework": true,
	"generatorengine": true, "asyncclient": true, "includeauth": true, "clientconfig": true,
	"validateonly": true, "includeexamples": true, "maxtools": true, "includetags": true,
	"excludetags": true, "baseurl": true, "dryrun": true, "force": true, "verbose": true,
}

// configSetter stores one config file value into the command's config.
type configSetter func(value any) error

// applyConfigFile reads the YAML file at path and hands each known key to
// its setter. Keys are matched with normalizeKey.
func applyConfigFile(path string, setters map[string]configSetter) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		set, ok := setters[normalized]
		if !ok {
			if configKeys[normalized] {
				continue
			}
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if err := set(value); err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}
	return nil
}

func setString(dst *string) configSetter {
	return func(v any) error {
		s, err := valueAsString(v)
		if err == nil {
			*dst = s
		}
		return err
	}
}

func setBool(dst *bool) configSetter {
	return func(v any) error {
		b, err := valueAsBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func setBoolPtr(dst **bool) configSetter {
	return func(v any) error {
		b, err := valueAsBool(v)
		if err == nil {
			*dst = &b
		}
		return err
	}
}

func setTags(dst *[]string) configSetter {
	return func(v any) error {
		list, err := valueAsStringSlice(v)
		if err == nil {
			*dst = sanitizeTags(list)
		}
		return err
	}
}

func setInt(dst **int) configSetter {
	return func(v any) error {
		n, err := valueAsInt(v)
		if err == nil {
			*dst = &n
		}
		return err
	}
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	case int, float64:
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid integer value %q", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

// configPath returns the trimmed persistent --config value.
func configPath(flags *pflag.FlagSet) (string, error) {
	p, err := flags.GetString("config")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(p), nil
}
