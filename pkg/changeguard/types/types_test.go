package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureKind_TextRoundTrip(t *testing.T) {
	t.Parallel()

	for _, k := range Kinds() {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var got FailureKind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}

	var k FailureKind
	assert.Error(t, k.UnmarshalText([]byte("exploded")))
	assert.Equal(t, "unknown(0)", k.String())
}

func TestFailure_Message(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		failure Failure
		want    string
	}{
		{"missing", NewMissing("a.txt"), "file does not exist"},
		{"mismatch", NewMismatch("a.txt", "abc", "def"), `hash mismatch: expected="abc" actual="def"`},
		{"hash error first line only", NewHashError("a.txt", errors.New("exit status 2\n  stderr: boom")), "failed to hash file: exit status 2"},
		{"hash error without cause", Failure{Kind: HashCommandError}, "failed to hash file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.failure.Message())
		})
	}
}

func TestFailure_MarshalJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewHashError("x/y.bin", errors.New("boom\ndetail")))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "hash_command_error", got["kind"])
	assert.Equal(t, "x/y.bin", got["path"])
	assert.Equal(t, "failed to hash file: boom", got["message"])
	assert.Equal(t, "boom\ndetail", got["error"])
	assert.NotContains(t, got, "expected")
}

func TestSortFailures(t *testing.T) {
	t.Parallel()

	failures := []Failure{
		NewMismatch("b", "1", "2"),
		NewMissing("a"),
		NewHashError("b", nil),
		NewMissing("b"),
	}
	SortFailures(failures)

	got := make([]string, len(failures))
	for i, f := range failures {
		got[i] = f.Path + ":" + f.Kind.String()
	}
	assert.Equal(t, []string{"a:missing_file", "b:missing_file", "b:hash_mismatch", "b:hash_command_error"}, got)

	counts := CountByKind(failures)
	assert.Equal(t, 2, counts[MissingFile])
	assert.Equal(t, 1, counts[HashMismatch])
}

func TestSummary_Passed(t *testing.T) {
	t.Parallel()

	s := &Summary{}
	assert.True(t, s.Passed())
	s.Failures = append(s.Failures, NewMissing("a"))
	assert.False(t, s.Passed())

	assert.False(t, (&Summary{Delta: []string{"only-in-walk"}}).Passed())
}

func TestFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "-1.0 KiB", FormatSize(-1024))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond+300*time.Microsecond))
}
