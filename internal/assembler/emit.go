package assembler

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// PlannedFile describes a file the assembler writes (or would write in a
// dry run).
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// fileSet maps slash-separated paths relative to the project directory to
// their content.
type fileSet map[string][]byte

func (s fileSet) add(rel string, content []byte) {
	s[path.Clean(filepath.ToSlash(rel))] = content
}

// plan returns the files in deterministic order.
func (s fileSet) plan() []PlannedFile {
	rels := make([]string, 0, len(s))
	for p := range s {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{
			RelPath: rel,
			Size:    len(s[rel]),
			Mode:    fileMode(rel),
		})
	}
	return planned
}

func fileMode(rel string) os.FileMode {
	if isExecutable(rel) {
		return 0o755
	}
	return 0o644
}

// emit writes files under dir unless dryRun is set. It returns the planned
// files as paths joined onto dir.
func emit(dir string, files fileSet, dryRun bool) ([]string, error) {
	planned := files.plan()
	out := make([]string, 0, len(planned))
	for _, pf := range planned {
		out = append(out, filepath.Join(dir, filepath.FromSlash(pf.RelPath)))
	}
	if dryRun {
		return out, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project directory: %w", err)
	}
	if err := createDirectoryStructure(abs, files); err != nil {
		return nil, fmt.Errorf("create directory structure: %w", err)
	}
	for _, pf := range planned {
		if err := writeFileAtomic(abs, pf.RelPath, files[pf.RelPath]); err != nil {
			return nil, fmt.Errorf("write file %s: %w", pf.RelPath, err)
		}
	}
	return out, nil
}

// validateOutputDirectory refuses an existing non-empty directory unless
// force is set. A missing directory is fine; it will be created.
func validateOutputDirectory(dir string, force bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve project directory: %w", err)
	}
	stat, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory %q: %w", abs, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("output path %q is not a directory", abs)
	}
	if force {
		return nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("cannot read output directory %q: %w", abs, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %q is not empty (use --force to overwrite)", abs)
	}
	return nil
}

// createDirectoryStructure creates every parent directory of files, plus
// dirs.
func createDirectoryStructure(baseDir string, files fileSet, dirs ...string) error {
	want := make(map[string]bool)
	for rel := range files {
		if d := path.Dir(rel); d != "." {
			want[d] = true
		}
	}
	for _, d := range dirs {
		want[path.Clean(d)] = true
	}
	for d := range want {
		if err := os.MkdirAll(filepath.Join(baseDir, filepath.FromSlash(d)), 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}

// writeFileAtomic writes through a temporary file in the target directory
// and renames it into place.
func writeFileAtomic(baseDir, relPath string, content []byte) error {
	fullPath := filepath.Join(baseDir, filepath.FromSlash(relPath))
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure target directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-openapi2mcp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", relPath, err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
		}
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(content); err != nil {
		return fmt.Errorf("write content to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Chmod(fileMode(relPath)); err != nil {
		return fmt.Errorf("set file permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("atomic rename %s to %s: %w", tmpPath, fullPath, err)
	}
	success = true
	return nil
}

// isExecutable reports whether a generated file gets the executable bit:
// Makefiles, shell scripts and Python scripts under scripts/.
func isExecutable(relPath string) bool {
	name := path.Base(relPath)
	if name == "Makefile" || name == "makefile" {
		return true
	}
	switch path.Ext(name) {
	case ".sh", ".bash":
		return true
	case ".py":
		return strings.HasPrefix(relPath, "scripts/")
	}
	return false
}

// readTree loads every regular file under root into a fileSet rooted at
// prefix. Compiled Python caches are skipped.
func readTree(root, prefix string) (fileSet, error) {
	files := fileSet{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasSuffix(d.Name(), ".pyc") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files.add(path.Join(prefix, filepath.ToSlash(rel)), data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
