package guard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/changeguard/pkg/changeguard/discovery"
	"github.com/jamesainslie/changeguard/pkg/changeguard/hasher"
	"github.com/jamesainslie/changeguard/pkg/changeguard/ignore"
	"github.com/jamesainslie/changeguard/pkg/changeguard/manifest"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func sha256Hasher(t *testing.T) hasher.Hasher {
	t.Helper()
	h, err := hasher.New("builtin:sha256", nil)
	require.NoError(t, err)
	return h
}

func sampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":           "alpha",
		"b.txt":           "bravo",
		"src/main.go":     "package main",
		"src/lib/util.go": "package lib",
		"docs/readme.md":  "# docs",
	})
	return root
}

func snapshot(t *testing.T, root string, h hasher.Hasher, workers int) *SnapshotResult {
	t.Helper()
	res, err := Snapshot(context.Background(), SnapshotOptions{
		Root:       root,
		Method:     discovery.MethodWalk,
		Hasher:     h,
		MaxWorkers: workers,
	})
	require.NoError(t, err)
	require.Empty(t, res.Failures)
	return res
}

func TestSnapshotThenAudit_NoChanges(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	h := sha256Hasher(t)

	for _, workers := range []int{1, 2, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			t.Parallel()
			res := snapshot(t, root, h, workers)
			assert.Len(t, res.Manifest.Files, 5)

			failures, err := Audit(context.Background(), res.Manifest, AuditOptions{Root: root, Hasher: h, MaxWorkers: workers})
			require.NoError(t, err)
			assert.Empty(t, failures)
		})
	}
}

func TestAudit_OneByteChange(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	h := sha256Hasher(t)
	res := snapshot(t, root, h, 4)

	writeTree(t, root, map[string]string{"src/main.go": "package maim"})

	failures, err := Audit(context.Background(), res.Manifest, AuditOptions{Root: root, Hasher: h, MaxWorkers: 4})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, types.HashMismatch, failures[0].Kind)
	assert.Equal(t, "src/main.go", failures[0].Path)
	assert.Equal(t, res.Manifest.Files["src/main.go"], failures[0].Expected)
	assert.NotEqual(t, failures[0].Expected, failures[0].Actual)
}

func TestAudit_DeletedFile(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	h := sha256Hasher(t)
	res := snapshot(t, root, h, 2)

	require.NoError(t, os.Remove(filepath.Join(root, "docs", "readme.md")))

	failures, err := Audit(context.Background(), res.Manifest, AuditOptions{Root: root, Hasher: h, MaxWorkers: 2})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, types.NewMissing("docs/readme.md"), failures[0])
}

func TestAudit_DashNamedFileWithCommand(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sha256sum"); err != nil {
		t.Skip("sha256sum not available")
	}

	root := t.TempDir()
	writeTree(t, root, map[string]string{"-b": "original", "a.txt": "alpha"})
	h, err := hasher.New("sha256sum", nil)
	require.NoError(t, err)

	res := snapshot(t, root, h, 2)
	digest, err := sha256Hasher(t).Hash(context.Background(), root, "-b")
	require.NoError(t, err)
	assert.Equal(t, digest, res.Manifest.Files["-b"])

	writeTree(t, root, map[string]string{"-b": "TAMPERED"})

	failures, err := Audit(context.Background(), res.Manifest, AuditOptions{Root: root, Hasher: h, MaxWorkers: 2})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, types.HashMismatch, failures[0].Kind)
	assert.Equal(t, "-b", failures[0].Path)
}

func TestAudit_DanglingSymlinkIsMissing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{"target.txt": "data"})
	require.NoError(t, os.Symlink("target.txt", filepath.Join(root, "link.txt")))

	h := sha256Hasher(t)
	res := snapshot(t, root, h, 2)
	require.Contains(t, res.Manifest.Files, "link.txt")

	require.NoError(t, os.Remove(filepath.Join(root, "target.txt")))

	failures, err := Audit(context.Background(), res.Manifest, AuditOptions{Root: root, Hasher: h, MaxWorkers: 2})
	require.NoError(t, err)
	assert.Equal(t, []types.Failure{
		types.NewMissing("link.txt"),
		types.NewMissing("target.txt"),
	}, failures)
}

func TestAudit_CollectsEverything(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	h := sha256Hasher(t)
	res := snapshot(t, root, h, 0)

	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	writeTree(t, root, map[string]string{"a.txt": "changed", "src/lib/util.go": "changed"})

	failures, err := Audit(context.Background(), res.Manifest, AuditOptions{Root: root, Hasher: h})
	require.NoError(t, err)
	require.Len(t, failures, 3)
	assert.Equal(t, []string{"a.txt", "b.txt", "src/lib/util.go"},
		[]string{failures[0].Path, failures[1].Path, failures[2].Path})
	assert.Equal(t, []types.FailureKind{types.HashMismatch, types.MissingFile, types.HashMismatch},
		[]types.FailureKind{failures[0].Kind, failures[1].Kind, failures[2].Kind})
}

func TestSnapshot_IgnoreFileScenario(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":     "hi",
		"b.txt":     "bye",
		".ignoreme": "b.txt\n",
	})

	src, err := ignore.ReadFileSource(filepath.Join(root, ".ignoreme"))
	require.NoError(t, err)
	rules, err := ignore.Compile(src)
	require.NoError(t, err)

	h := sha256Hasher(t)
	res, err := Snapshot(context.Background(), SnapshotOptions{Root: root, Rules: rules, Hasher: h, MaxWorkers: 10})
	require.NoError(t, err)
	require.Empty(t, res.Failures)

	var buf bytes.Buffer
	require.NoError(t, manifest.Save(&buf, res.Manifest))
	loaded, err := manifest.Load(&buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt"}, loaded.Paths())
	assert.Equal(t, []string{".ignoreme", "b.txt"}, loaded.Meta.Ignored)
	assert.Equal(t, "walk", loaded.Meta.DiscoveryMethod)
	assert.Equal(t, "builtin:sha256", loaded.Meta.HashCommand)
	assert.Contains(t, loaded.Meta.IgnoreRuleSources, src.Name)

	failures, err := Audit(context.Background(), loaded, AuditOptions{Root: root, Hasher: h, MaxWorkers: 10})
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestSnapshot_ExcludesArtifacts(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	writeTree(t, root, map[string]string{"audit.yaml": "files: {}\n"})

	res, err := Snapshot(context.Background(), SnapshotOptions{
		Root:      root,
		Hasher:    sha256Hasher(t),
		BackupDir: filepath.Join(root, "backup"),
		Exclude:   []string{filepath.Join(root, "audit.yaml"), "/elsewhere/out.yaml"},
	})
	require.NoError(t, err)

	assert.NotContains(t, res.Manifest.Files, "audit.yaml")
	assert.Contains(t, res.Discovery.Ignored, "audit.yaml")
	assert.Len(t, res.Manifest.Files, 5)

	// A second snapshot must not pick up the backup copies.
	again, err := Snapshot(context.Background(), SnapshotOptions{
		Root:      root,
		Hasher:    sha256Hasher(t),
		BackupDir: filepath.Join(root, "backup"),
	})
	require.NoError(t, err)
	assert.Len(t, again.Manifest.Files, 6)
	for p := range again.Manifest.Files {
		assert.NotContains(t, p, "backup/")
	}
}

func TestSnapshot_Backup(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	dir := filepath.Join(t.TempDir(), "bk")

	res, err := Snapshot(context.Background(), SnapshotOptions{Root: root, Hasher: sha256Hasher(t), BackupDir: dir, MaxWorkers: 2})
	require.NoError(t, err)
	require.NotNil(t, res.Backup)
	assert.Equal(t, 5, res.Backup.Files)

	got, ok := res.Manifest.Backup()
	require.True(t, ok)
	assert.Equal(t, dir, got)

	data, err := os.ReadFile(filepath.Join(dir, "src", "lib", "util.go"))
	require.NoError(t, err)
	assert.Equal(t, "package lib", string(data))
}

type failingHasher struct {
	hasher.Hasher
	bad string
}

func (f failingHasher) Hash(ctx context.Context, root, rel string) (string, error) {
	if rel == f.bad {
		return "", fmt.Errorf("%w: exit status 1", hasher.ErrHashCommandFailed)
	}
	return f.Hasher.Hash(ctx, root, rel)
}

func TestSnapshot_HashFailureSkipsBackup(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	dir := filepath.Join(t.TempDir(), "bk")
	h := failingHasher{Hasher: sha256Hasher(t), bad: "b.txt"}

	res, err := Snapshot(context.Background(), SnapshotOptions{Root: root, Hasher: h, BackupDir: dir, MaxWorkers: 3})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, types.HashCommandError, res.Failures[0].Kind)
	assert.Equal(t, "b.txt", res.Failures[0].Path)
	assert.True(t, errors.Is(res.Failures[0].Cause, hasher.ErrHashCommandFailed))

	assert.NotContains(t, res.Manifest.Files, "b.txt")
	assert.Len(t, res.Manifest.Files, 4)
	assert.Nil(t, res.Backup)
	_, ok := res.Manifest.Backup()
	assert.False(t, ok)
	assert.NoDirExists(t, dir)
}

func TestAudit_HashFailure(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	res := snapshot(t, root, sha256Hasher(t), 1)

	failures, err := Audit(context.Background(), res.Manifest, AuditOptions{
		Root:   root,
		Hasher: failingHasher{Hasher: sha256Hasher(t), bad: "a.txt"},
	})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, types.HashCommandError, failures[0].Kind)
}

func TestSnapshotThenAudit_CommandHasher(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("sha256sum"); err != nil {
		t.Skip("sha256sum not available")
	}

	root := sampleTree(t)
	h, err := hasher.New("sha256sum", nil)
	require.NoError(t, err)

	res := snapshot(t, root, h, 4)
	failures, err := Audit(context.Background(), res.Manifest, AuditOptions{Root: root, Hasher: h, MaxWorkers: 4})
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestNoHasher(t *testing.T) {
	t.Parallel()

	_, err := Snapshot(context.Background(), SnapshotOptions{Root: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoHasher)
	_, err = Audit(context.Background(), manifest.New(), AuditOptions{Root: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoHasher)
}

func TestSubset(t *testing.T) {
	t.Parallel()

	m := manifest.New()
	m.Files = map[string]string{"a": "1", "b": "2", "c": "3"}
	m.SetBackup("/bk")
	m.Meta.HashCommand = "xxhsum -H0"

	sub := Subset(m, []string{"c", "a", "zzz"})
	assert.Equal(t, map[string]string{"a": "1", "c": "3"}, sub.Files)
	dir, ok := sub.Backup()
	assert.True(t, ok)
	assert.Equal(t, "/bk", dir)
	assert.Equal(t, "xxhsum -H0", sub.Meta.HashCommand)
}
