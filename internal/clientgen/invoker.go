package clientgen

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is the prefix of every environment variable the tool reads.
const EnvPrefix = "OPENAPI2MCP_"

// Settings locate and bound the external generator.
type Settings struct {
	Binary         string        `env:"GENERATOR_BIN" envDefault:"openapi-generator"`
	VersionTimeout time.Duration `env:"GENERATOR_VERSION_TIMEOUT" envDefault:"10s"`
	Timeout        time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"300s"`
}

// DefaultSettings returns the built-in settings without consulting the
// environment.
func DefaultSettings() Settings {
	return Settings{
		Binary:         "openapi-generator",
		VersionTimeout: 10 * time.Second,
		Timeout:        300 * time.Second,
	}
}

// SettingsFromEnv reads OPENAPI2MCP_GENERATOR_* variables over the defaults.
func SettingsFromEnv() (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Prefix: EnvPrefix}); err != nil {
		return DefaultSettings(), fmt.Errorf("clientgen: read environment: %w", err)
	}
	return s, nil
}

// Option mutates an Invoker.
type Option func(*Invoker)

func WithBinary(bin string) Option              { return func(i *Invoker) { i.settings.Binary = bin } }
func WithTimeout(d time.Duration) Option        { return func(i *Invoker) { i.settings.Timeout = d } }
func WithVersionTimeout(d time.Duration) Option { return func(i *Invoker) { i.settings.VersionTimeout = d } }

// Invoker runs the external client generator.
type Invoker struct {
	settings Settings
	run      runFunc
}

// New returns an Invoker using settings, adjusted by opts.
func New(settings Settings, opts ...Option) *Invoker {
	inv := &Invoker{settings: settings, run: execute}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Settings returns the effective settings.
func (inv *Invoker) Settings() Settings { return inv.settings }

// Output describes a successful generation.
type Output struct {
	Dir          string
	ToolVersion  string
	Args         []string
	FilesCreated []string // slash-separated, relative to Dir, sorted
	Log          string
}

// CheckAvailable runs "<bin> version" under the version timeout and returns
// the reported version. Any failure is a ToolNotFound error.
func (inv *Invoker) CheckAvailable(ctx context.Context) (string, error) {
	out := inv.run(ctx, execInput{
		Command: inv.settings.Binary,
		Args:    []string{"version"},
		Timeout: inv.settings.VersionTimeout,
	})
	switch {
	case out.TimedOut:
		return "", &Error{Kind: ToolNotFound, Message: fmt.Sprintf("%s did not answer a version query within %s", inv.settings.Binary, inv.settings.VersionTimeout), Cause: out.Err}
	case out.Err != nil:
		return "", &Error{Kind: ToolNotFound, Message: fmt.Sprintf("%s not found: %v", inv.settings.Binary, out.Err), Cause: out.Err}
	case out.ExitCode != 0:
		return "", &Error{Kind: ToolNotFound, Message: fmt.Sprintf("%s version exited with code %d", inv.settings.Binary, out.ExitCode), Output: out.combined()}
	}
	return strings.TrimSpace(out.Stdout), nil
}

// Generate checks the tool, then generates a client for specPath into
// outputDir. Failures are returned as *Error.
func (inv *Invoker) Generate(ctx context.Context, specPath, outputDir string, cfg Config) (*Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: ExecFailed, Message: fmt.Sprintf("invalid client configuration: %v", err), Cause: err}
	}
	version, err := inv.CheckAvailable(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &Error{Kind: ExecFailed, Message: fmt.Sprintf("create %s: %v", outputDir, err), Cause: err}
	}

	args := cfg.Args(specPath, outputDir)
	out := inv.run(ctx, execInput{
		Command: inv.settings.Binary,
		Args:    args,
		Timeout: inv.settings.Timeout,
	})
	switch {
	case out.TimedOut:
		return nil, &Error{Kind: Timeout, Message: fmt.Sprintf("client generation timed out after %s", inv.settings.Timeout), Output: out.combined(), Cause: out.Err}
	case out.Err != nil:
		return nil, &Error{Kind: ExecFailed, Message: fmt.Sprintf("run %s: %v", inv.settings.Binary, out.Err), Output: out.combined(), Cause: out.Err}
	case out.ExitCode != 0:
		return nil, &Error{Kind: NonZeroExit, Message: fmt.Sprintf("client generation failed with exit code %d", out.ExitCode), Output: out.combined()}
	}

	files, err := ListFiles(outputDir)
	if err != nil {
		return nil, &Error{Kind: ExecFailed, Message: fmt.Sprintf("list generated files: %v", err), Cause: err}
	}
	return &Output{Dir: outputDir, ToolVersion: version, Args: args, FilesCreated: files, Log: out.combined()}, nil
}

// ListFiles returns every regular file under dir as sorted slash-separated
// relative paths.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(files)
	return files, err
}
