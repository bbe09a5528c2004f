// Package manifest reads and writes the YAML record produced by a snapshot:
// the hash of every included file plus advisory metadata about the run.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidManifest is returned when a document has no usable files map.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the persisted outcome of a snapshot.
type Manifest struct {
	// Files maps root-relative, slash-separated paths to their hashes.
	Files map[string]string
	// BackupDir is where file copies were placed, or nil when none were made.
	BackupDir *string
	// Meta describes the run. It is informational and never validated.
	Meta Meta
}

// Meta records how a snapshot was taken.
type Meta struct {
	RunID             string              `yaml:"run_id,omitempty"`
	CreatedAt         time.Time           `yaml:"created_at,omitempty"`
	Version           string              `yaml:"version,omitempty"`
	DiscoveryMethod   string              `yaml:"discovery_method"`
	HashCommand       string              `yaml:"hash_command"`
	Ignored           []string            `yaml:"ignored"`
	MaxWorkers        int                 `yaml:"max_workers"`
	IgnoreRuleSources map[string][]string `yaml:"ignore_rule_sources"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{Files: make(map[string]string)}
}

// Paths returns the recorded paths in sorted order.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Backup returns the backup directory and whether one is recorded.
func (m *Manifest) Backup() (string, bool) {
	if m.BackupDir == nil || *m.BackupDir == "" {
		return "", false
	}
	return *m.BackupDir, true
}

// SetBackup records dir as the backup location; an empty dir clears it.
func (m *Manifest) SetBackup(dir string) {
	if dir == "" {
		m.BackupDir = nil
		return
	}
	m.BackupDir = &dir
}

// document is the on-disk layout. The legacy keys are read so manifests from
// older releases still load; they are never written.
type document struct {
	Files     *map[string]string `yaml:"files"`
	BackupDir *string            `yaml:"backup_dir"`
	Meta      *Meta              `yaml:"meta,omitempty"`

	LegacyBackupDir *string     `yaml:"tmp_backup_dir,omitempty"`
	LegacyMeta      *legacyMeta `yaml:"_meta_unused,omitempty"`
}

type legacyMeta struct {
	Directory   string              `yaml:"directory"`
	Method      string              `yaml:"method"`
	HashCmd     string              `yaml:"hash_cmd"`
	Ignored     []string            `yaml:"ignored"`
	MaxWorkers  int                 `yaml:"max_workers"`
	IgnoreMetas map[string][]string `yaml:"ignore_metas"`
}

// Save writes m to w as YAML.
func Save(w io.Writer, m *Manifest) error {
	files := m.Files
	if files == nil {
		files = map[string]string{}
	}
	meta := m.Meta
	if meta.Ignored == nil {
		meta.Ignored = []string{}
	}
	if meta.IgnoreRuleSources == nil {
		meta.IgnoreRuleSources = map[string][]string{}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Files: &files, BackupDir: m.BackupDir, Meta: &meta}); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return enc.Close()
}

// Load parses a manifest. A missing, null or malformed files mapping, or a
// path that is absolute or leaves the root, yields ErrInvalidManifest.
func Load(r io.Reader) (*Manifest, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidManifest)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if doc.Files == nil {
		return nil, fmt.Errorf("%w: missing files mapping", ErrInvalidManifest)
	}
	for p := range *doc.Files {
		if err := checkPath(p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	}

	m := &Manifest{Files: *doc.Files}
	switch {
	case doc.BackupDir != nil:
		m.SetBackup(*doc.BackupDir)
	case doc.LegacyBackupDir != nil:
		m.SetBackup(*doc.LegacyBackupDir)
	}

	switch {
	case doc.Meta != nil:
		m.Meta = *doc.Meta
	case doc.LegacyMeta != nil:
		m.Meta = Meta{
			DiscoveryMethod:   doc.LegacyMeta.Method,
			HashCommand:       doc.LegacyMeta.HashCmd,
			Ignored:           doc.LegacyMeta.Ignored,
			MaxWorkers:        doc.LegacyMeta.MaxWorkers,
			IgnoreRuleSources: doc.LegacyMeta.IgnoreMetas,
		}
	}

	return m, nil
}

func checkPath(p string) error {
	switch {
	case p == "":
		return errors.New("empty path")
	case path.IsAbs(p) || filepath.IsAbs(p):
		return fmt.Errorf("absolute path %q", p)
	case p == ".." || strings.HasPrefix(path.Clean(p), "../"):
		return fmt.Errorf("path %q leaves the root", p)
	}
	return nil
}

// WriteFile saves m to filePath atomically: the document is written to a
// temporary file in the same directory and renamed into place.
func WriteFile(filePath string, m *Manifest) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := Save(tmp, m); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set manifest permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadFile loads the manifest at filePath.
func ReadFile(filePath string) (*Manifest, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return m, nil
}
