package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/asford/jug/internal/codec"
	"github.com/asford/jug/internal/resilience"
)

// hybridInlineThreshold mirrors largeValueThreshold: below it, result
// bytes go directly into the KV bucket; at or above it, they go to the
// object store bucket and the KV entry holds only the pointer (§4.2's
// hybrid variant).
const hybridInlineThreshold = 64 * 1024

// Hybrid is the kv+object backend: small results live directly in the KV
// bucket; large ones live in a JetStream Object Store bucket, with the KV
// entry holding only the object name.
type Hybrid struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	obj    jetstream.ObjectStore
	prefix string
	cb     *resilience.CircuitBreaker
}

const hybridPointerPrefix = "obj:"

// NewHybrid connects to url, opens a "jug" KV bucket and an ObjectStore
// bucket named bucket ("jug-objects" when empty), namespacing keys under
// prefix.
func NewHybrid(url, bucket, prefix string) (*Hybrid, error) {
	if bucket == "" {
		bucket = "jug-objects"
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("store: hybrid: connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("store: hybrid: jetstream: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: "jug"})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("store: hybrid: kv bucket: %w", err)
	}
	obj, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: bucket})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("store: hybrid: object bucket: %w", err)
	}
	return &Hybrid{
		nc:     nc,
		kv:     kv,
		obj:    obj,
		prefix: prefix,
		cb:     resilience.NewCircuitBreaker("hybrid", 30*time.Second, 6, 5, 0.5, 10*time.Second, 2),
	}, nil
}

func (s *Hybrid) resultKey(hash string) string { return keyJoin(resultPrefix, s.prefix, hash) }
func (s *Hybrid) lockKey(hash string) string    { return keyJoin(lockPrefix, s.prefix, hash) }
func (s *Hybrid) objectName(hash string) string { return keyJoin("object", s.prefix, hash) }

func (s *Hybrid) call(ctx context.Context, fn func() error) error {
	if !s.cb.Allow() {
		return fmt.Errorf("store: hybrid: circuit open")
	}
	_, err := resilience.Retry(ctx, "hybrid", 3, 100*time.Millisecond, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	s.cb.RecordResult(err == nil)
	return err
}

func (s *Hybrid) Dump(hash string, value any) error {
	encoded, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("store: hybrid: encode: %w", err)
	}
	ctx := context.Background()
	if len(encoded) >= hybridInlineThreshold {
		name := s.objectName(hash)
		if err := s.call(ctx, func() error {
			_, err := s.obj.PutBytes(ctx, name, encoded)
			return err
		}); err != nil {
			return fmt.Errorf("store: hybrid: object put: %w", err)
		}
		return s.call(ctx, func() error {
			_, err := s.kv.Put(ctx, s.resultKey(hash), []byte(hybridPointerPrefix+name))
			return err
		})
	}
	return s.call(ctx, func() error {
		_, err := s.kv.Put(ctx, s.resultKey(hash), encoded)
		return err
	})
}

func (s *Hybrid) Load(hash string) (any, error) {
	ctx := context.Background()
	var raw []byte
	err := s.call(ctx, func() error {
		entry, err := s.kv.Get(ctx, s.resultKey(hash))
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				return ErrMissing
			}
			return err
		}
		v := entry.Value()
		if len(v) >= len(hybridPointerPrefix) && string(v[:len(hybridPointerPrefix)]) == hybridPointerPrefix {
			name := string(v[len(hybridPointerPrefix):])
			raw, err = s.obj.GetBytes(ctx, name)
			return err
		}
		raw = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codec.Decode(raw)
}

func (s *Hybrid) CanLoad(hash string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.kv.Get(ctx, s.resultKey(hash))
	return err == nil
}

func (s *Hybrid) Remove(hash string) (bool, error) {
	present := s.CanLoad(hash)
	ctx := context.Background()
	entry, getErr := s.kv.Get(ctx, s.resultKey(hash))
	if getErr == nil {
		v := entry.Value()
		if len(v) >= len(hybridPointerPrefix) && string(v[:len(hybridPointerPrefix)]) == hybridPointerPrefix {
			_ = s.obj.Delete(ctx, string(v[len(hybridPointerPrefix):]))
		}
	}
	if err := s.call(ctx, func() error { return s.kv.Delete(ctx, s.resultKey(hash)) }); err != nil {
		return false, err
	}
	return present, nil
}

func (s *Hybrid) List() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lister, err := s.kv.ListKeysFiltered(ctx, keyJoin(resultPrefix, s.prefix, "")+"*")
	if err != nil {
		return nil, fmt.Errorf("store: hybrid: list: %w", err)
	}
	var out []string
	for k := range lister.Keys() {
		out = append(out, hashFromKey(k))
	}
	return out, nil
}

func (s *Hybrid) GetLock(hash string) Lock {
	return &hybridLock{store: s, hash: hash}
}

func (s *Hybrid) Cleanup(active map[string]bool) (int, error) {
	hashes, err := s.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, h := range hashes {
		if !active[h] {
			if ok, err := s.Remove(h); err != nil {
				return count, err
			} else if ok {
				count++
			}
		}
	}
	return count, nil
}

func (s *Hybrid) RemoveLocks() (int, error) {
	hashes, err := s.ListLocks()
	if err != nil {
		return 0, err
	}
	ctx := context.Background()
	count := 0
	for _, h := range hashes {
		if err := s.kv.Delete(ctx, s.lockKey(h)); err == nil {
			count++
		}
	}
	return count, nil
}

func (s *Hybrid) ListLocks() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lister, err := s.kv.ListKeysFiltered(ctx, keyJoin(lockPrefix, s.prefix, "")+"*")
	if err != nil {
		return nil, fmt.Errorf("store: hybrid: list locks: %w", err)
	}
	var out []string
	for k := range lister.Keys() {
		out = append(out, hashFromKey(k))
	}
	return out, nil
}

func (s *Hybrid) Close() error {
	s.nc.Close()
	return nil
}

type hybridLock struct {
	store *Hybrid
	hash  string
}

func (l *hybridLock) Acquire() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := l.store.kv.Create(ctx, l.store.lockKey(l.hash), []byte("1"))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("store: hybrid: lock acquire: %w", err)
	}
	return true, nil
}

func (l *hybridLock) Release() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.store.kv.Delete(ctx, l.store.lockKey(l.hash))
	if err != nil && errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (l *hybridLock) IsLocked() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := l.store.kv.Get(ctx, l.store.lockKey(l.hash))
	return err == nil
}
