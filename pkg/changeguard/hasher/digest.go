package hasher

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
	"xxh64":  func() hash.Hash { return xxhash.New() },
}

// Algorithms lists the builtin algorithm names.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const readBufferSize = 256 << 10

// DigestHasher hashes file contents in process.
type DigestHasher struct {
	algo    string
	newHash func() hash.Hash
}

// NewDigestHasher returns a hasher for one of Algorithms().
func NewDigestHasher(algo string) (*DigestHasher, error) {
	algo = strings.ToLower(strings.TrimSpace(algo))
	fn, ok := algorithms[algo]
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownAlgorithm, algo, strings.Join(Algorithms(), ", "))
	}
	return &DigestHasher{algo: algo, newHash: fn}, nil
}

// Name returns "builtin:<algorithm>".
func (h *DigestHasher) Name() string {
	return BuiltinPrefix + h.algo
}

// Hash implements Hasher. The result is lower-case hex.
func (h *DigestHasher) Hash(ctx context.Context, root, rel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer f.Close()

	sum := h.newHash()
	if _, err := io.CopyBuffer(sum, f, make([]byte, readBufferSize)); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}
