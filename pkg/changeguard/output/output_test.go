package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

func failingSummary() *types.Summary {
	hashErr := types.NewHashError("c.bin", errors.New("failed to run \"xxhsum\": exit status 1\n  stderr:\n    boom"))
	mismatch := types.NewMismatch("a.txt", "abc", "def")
	mismatch.Diff = "-hi\n+ho\n"
	return &types.Summary{
		Operation: types.OpAudit,
		Root:      "/srv/data",
		Manifest:  "/srv/audit.yaml",
		Files:     3,
		Started:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:   1500 * time.Millisecond,
		Failures: []types.Failure{
			mismatch,
			types.NewMissing("b.txt"),
			hashErr,
		},
	}
}

func passingSummary() *types.Summary {
	return &types.Summary{
		Operation: types.OpSnapshot,
		RunID:     "run-1",
		Root:      "/srv/data",
		Method:    "walk",
		Files:     12,
		Ignored:   2,
		Failures:  []types.Failure{},
	}
}

func format(t *testing.T, name string, s *types.Summary) string {
	t.Helper()
	f, err := Get(name)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, s))
	return buf.String()
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"json", "plain", "pretty", "yaml"}, Available())

	_, err := Get("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: json, plain, pretty, yaml")

	r := NewRegistry()
	r.Register("plain", func() Formatter { return &PlainFormatter{} })
	f, err := r.Get("plain")
	require.NoError(t, err)
	assert.IsType(t, &PlainFormatter{}, f)
}

func TestPlainFormatter_Failures(t *testing.T) {
	out := format(t, "plain", failingSummary())

	for _, want := range []string{
		"operation: audit",
		"manifest:  /srv/audit.yaml",
		"Failures: 3",
		`hash mismatch: expected="abc" actual="def"`,
		"  at: a.txt",
		"  diff:\n    -hi\n    +ho",
		"file does not exist\n  at: b.txt",
		"  error:\n    failed to run",
		"        boom",
		"Exiting due to failures",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "OK\n")
	assert.Equal(t, 2, strings.Count(out, "Failures: 3"))
}

func TestPlainFormatter_Pass(t *testing.T) {
	out := format(t, "plain", passingSummary())

	assert.Contains(t, out, "method:    walk")
	assert.Contains(t, out, "files:     12")
	assert.True(t, strings.HasSuffix(out, "OK\n"), out)
	assert.NotContains(t, out, "Failures")
}

func TestPlainFormatter_DeltaAndNotes(t *testing.T) {
	s := &types.Summary{
		Operation: types.OpCheck,
		Root:      "/r",
		Delta:     []string{"untracked.txt"},
		Notes:     []string{"paths differ only by case: A.txt, a.txt"},
	}
	out := format(t, "plain", s)

	assert.Contains(t, out, "delta: untracked.txt")
	assert.Contains(t, out, "note: paths differ only by case")
	assert.NotContains(t, out, "OK\n")
}

func TestPrettyFormatter(t *testing.T) {
	out := format(t, "pretty", failingSummary())
	assert.Contains(t, out, "AUDIT")
	assert.Contains(t, out, "/srv/data")
	assert.Contains(t, out, "at: b.txt")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "missing_file:")

	out = format(t, "pretty", passingSummary())
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "12 files verified")
}

func TestJSONFormatter(t *testing.T) {
	out := format(t, "json", failingSummary())

	var got report
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.False(t, got.Passed)
	assert.Equal(t, "audit", got.Operation)
	assert.Equal(t, "1.5s", got.Elapsed)
	assert.Equal(t, map[string]int{"hash_mismatch": 1, "missing_file": 1, "hash_command_error": 1}, got.Counts)
	require.Len(t, got.Failures, 3)
	assert.Equal(t, "hash_mismatch", got.Failures[0].Kind)
	assert.Equal(t, "def", got.Failures[0].Actual)
	assert.Contains(t, got.Failures[2].Error, "boom")
}

func TestYAMLFormatter(t *testing.T) {
	out := format(t, "yaml", passingSummary())

	var got report
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.True(t, got.Passed)
	assert.Equal(t, 12, got.Files)
	assert.Equal(t, "run-1", got.RunID)
	assert.Empty(t, got.Failures)
}
