package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/asford/jug/internal/codec"
)

// largeValueThreshold is the encoded-size cutoff above which a result is
// written as a side file referenced by the manifest instead of inline
// under results/<hash> (§4.2's "large-array results may be stored as side
// files referenced by a small manifest").
const largeValueThreshold = 1 << 20 // 1 MiB

var manifestBucket = []byte("manifest")

// Directory is the on-disk backend: results/, locks/, tempfiles/
// subdirectories plus a bbolt-backed manifest for side-file references
// (§4.2).
type Directory struct {
	root     string
	resultsD string
	locksD   string
	tempD    string
	manifest *bbolt.DB
}

// NewDirectory opens (creating if necessary) a jug directory rooted at
// path.
func NewDirectory(path string) (*Directory, error) {
	d := &Directory{
		root:     path,
		resultsD: filepath.Join(path, "results"),
		locksD:   filepath.Join(path, "locks"),
		tempD:    filepath.Join(path, "tempfiles"),
	}
	for _, sub := range []string{d.resultsD, d.locksD, d.tempD} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("store: directory: %w", err)
		}
	}
	mdb, err := bbolt.Open(filepath.Join(d.tempD, "manifest.db"), 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("store: directory: opening manifest: %w", err)
	}
	if err := mdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(manifestBucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("store: directory: initializing manifest: %w", err)
	}
	d.manifest = mdb
	return d, nil
}

func (d *Directory) resultPath(hash string) string { return filepath.Join(d.resultsD, hash) }
func (d *Directory) lockPath(hash string) string    { return filepath.Join(d.locksD, hash) }

func (d *Directory) manifestGet(hash string) (string, bool) {
	var path string
	_ = d.manifest.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(manifestBucket).Get([]byte(hash))
		if b != nil {
			path = string(b)
		}
		return nil
	})
	return path, path != ""
}

func (d *Directory) manifestPut(hash, path string) error {
	return d.manifest.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(manifestBucket).Put([]byte(hash), []byte(path))
	})
}

func (d *Directory) manifestDelete(hash string) error {
	return d.manifest.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(manifestBucket).Delete([]byte(hash))
	})
}

// Dump encodes value and persists it under hash. Atomic: writes to a
// sibling temp file then renames into place, so a concurrent CanLoad sees
// either nothing or the complete entry, never partial bytes.
func (d *Directory) Dump(hash string, value any) error {
	encoded, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("store: directory: encode %s: %w", hash, err)
	}
	tmp, err := os.CreateTemp(d.tempD, hash+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: directory: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: directory: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: directory: closing temp file: %w", err)
	}
	if len(encoded) > largeValueThreshold {
		sidePath := filepath.Join(d.resultsD, hash+".data")
		if err := os.Rename(tmpPath, sidePath); err != nil {
			return fmt.Errorf("store: directory: rename side file: %w", err)
		}
		if err := d.manifestPut(hash, sidePath); err != nil {
			return fmt.Errorf("store: directory: manifest put: %w", err)
		}
		// write a small pointer marker so CanLoad can stat results/<hash>
		// without a manifest lookup.
		return os.WriteFile(d.resultPath(hash), []byte("jug-sidefile"), 0o644)
	}
	if err := os.Rename(tmpPath, d.resultPath(hash)); err != nil {
		return fmt.Errorf("store: directory: rename: %w", err)
	}
	return nil
}

// Load reads and decodes the entry for hash.
func (d *Directory) Load(hash string) (any, error) {
	if sidePath, ok := d.manifestGet(hash); ok {
		raw, err := os.ReadFile(sidePath)
		if err != nil {
			return nil, fmt.Errorf("store: directory: reading side file: %w", err)
		}
		return codec.Decode(raw)
	}
	raw, err := os.ReadFile(d.resultPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("store: directory: reading result: %w", err)
	}
	return codec.Decode(raw)
}

// CanLoad is a non-blocking existence check.
func (d *Directory) CanLoad(hash string) bool {
	_, err := os.Stat(d.resultPath(hash))
	return err == nil
}

// Remove deletes the result (and any side file) for hash.
func (d *Directory) Remove(hash string) (bool, error) {
	if sidePath, ok := d.manifestGet(hash); ok {
		_ = os.Remove(sidePath)
		_ = d.manifestDelete(hash)
	}
	err := os.Remove(d.resultPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: directory: remove: %w", err)
	}
	return true, nil
}

// List enumerates every present result entry's hash.
func (d *Directory) List() ([]string, error) {
	entries, err := os.ReadDir(d.resultsD)
	if err != nil {
		return nil, fmt.Errorf("store: directory: list: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == ".data" {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// GetLock returns a lock handle for hash without acquiring it.
func (d *Directory) GetLock(hash string) Lock {
	return &directoryLock{path: d.lockPath(hash)}
}

// Cleanup deletes every result entry whose hash is not in active.
func (d *Directory) Cleanup(active map[string]bool) (int, error) {
	hashes, err := d.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, hash := range hashes {
		if !active[hash] {
			if ok, err := d.Remove(hash); err != nil {
				return count, err
			} else if ok {
				count++
			}
		}
	}
	return count, nil
}

// RemoveLocks deletes every held lock entry, used to recover from crashed
// workers.
func (d *Directory) RemoveLocks() (int, error) {
	hashes, err := d.ListLocks()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, hash := range hashes {
		if err := os.Remove(d.lockPath(hash)); err == nil {
			count++
		} else if !os.IsNotExist(err) {
			return count, fmt.Errorf("store: directory: remove lock: %w", err)
		}
	}
	if count > 0 {
		slog.Info("removed stale locks", "count", count)
	}
	return count, nil
}

// ListLocks enumerates every held lock's hash.
func (d *Directory) ListLocks() ([]string, error) {
	entries, err := os.ReadDir(d.locksD)
	if err != nil {
		return nil, fmt.Errorf("store: directory: list locks: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// Close releases the manifest database handle.
func (d *Directory) Close() error {
	if d.manifest == nil {
		return nil
	}
	return d.manifest.Close()
}

type directoryLock struct {
	path string
}

// Acquire exclusively creates the lock file: O_CREAT|O_EXCL is the
// filesystem's native compare-and-set (§4.2).
func (l *directoryLock) Acquire() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: directory: lock acquire: %w", err)
	}
	return true, f.Close()
}

func (l *directoryLock) Release() error {
	err := os.Remove(l.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *directoryLock) IsLocked() bool {
	_, err := os.Stat(l.path)
	return err == nil
}
