// Package cache persists previously computed file hashes in a Badger
// database so repeated snapshots of a large, mostly unchanged tree can skip
// re-hashing files whose size and modification time are unchanged.
//
// The cache is an accelerator for snapshots only. Audits always hash.
package cache

import (
	"bytes"
	"encoding/gob"
	"io/fs"
)

// FormatVersion is bumped whenever Entry changes shape; entries with another
// version are treated as misses.
const FormatVersion = 1

// keySeparator splits root from relative path in a key.
const keySeparator = '\x00'

// keyspace prefixes every hash key so the database can hold other records.
var keyspace = []byte("hash/")

// Entry is a cached hash together with the file state it was computed for.
type Entry struct {
	Version int
	Size    int64
	Mtime   int64 // UnixNano
	Hasher  string
	Hash    string
}

// NewEntry records hash for a file in the state described by info.
func NewEntry(info fs.FileInfo, hasher, hash string) *Entry {
	return &Entry{
		Version: FormatVersion,
		Size:    info.Size(),
		Mtime:   info.ModTime().UnixNano(),
		Hasher:  hasher,
		Hash:    hash,
	}
}

// Fresh reports whether the entry still describes info hashed by hasher.
func (e *Entry) Fresh(info fs.FileInfo, hasher string) bool {
	return e.Version == FormatVersion &&
		e.Hasher == hasher &&
		e.Size == info.Size() &&
		e.Mtime == info.ModTime().UnixNano()
}

func (e *Entry) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Entry) decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// makeKey builds "hash/<root>\x00<rel>".
func makeKey(root, rel string) []byte {
	return append(rootPrefix(root), rel...)
}

func rootPrefix(root string) []byte {
	key := make([]byte, 0, len(keyspace)+len(root)+1)
	key = append(key, keyspace...)
	key = append(key, root...)
	return append(key, keySeparator)
}

// splitKey is the inverse of makeKey.
func splitKey(key []byte) (root, rel string) {
	key = bytes.TrimPrefix(key, keyspace)
	i := bytes.IndexByte(key, keySeparator)
	if i < 0 {
		return string(key), ""
	}
	return string(key[:i]), string(key[i+1:])
}
