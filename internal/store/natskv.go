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

// resultPrefix/lockPrefix namespace keys within the shared KV bucket,
// mirroring the reference project's redis_store key layout of
// "result:<prefix>/<hash>" and "lock:<prefix>/<hash>".
const (
	resultPrefix = "result"
	lockPrefix   = "lock"
)

// NATSKV is the key-value-service backend (§4.2): a remote JetStream KV
// bucket with namespaced keys and native create-if-absent semantics for
// locks (the Go/NATS analogue of Redis SETNX).
type NATSKV struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	prefix string
	cb     *resilience.CircuitBreaker
}

// NewNATSKV connects to url and opens (creating if absent) a JetStream KV
// bucket named "jug", namespacing all keys under prefix.
func NewNATSKV(url, prefix string) (*NATSKV, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("store: natskv: connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("store: natskv: jetstream: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: "jug"})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("store: natskv: bucket: %w", err)
	}
	return &NATSKV{
		nc:     nc,
		kv:     kv,
		prefix: prefix,
		cb:     resilience.NewCircuitBreaker("natskv", 30*time.Second, 6, 5, 0.5, 10*time.Second, 2),
	}, nil
}

func (s *NATSKV) resultKey(hash string) string { return keyJoin(resultPrefix, s.prefix, hash) }
func (s *NATSKV) lockKey(hash string) string    { return keyJoin(lockPrefix, s.prefix, hash) }

func keyJoin(kind, prefix, hash string) string {
	if prefix == "" {
		return kind + "." + hash
	}
	return kind + "." + prefix + "." + hash
}

func (s *NATSKV) call(ctx context.Context, fn func() error) error {
	if !s.cb.Allow() {
		return fmt.Errorf("store: natskv: circuit open")
	}
	_, err := resilience.Retry(ctx, "natskv", 3, 100*time.Millisecond, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	s.cb.RecordResult(err == nil)
	return err
}

// Dump encodes value and Put()s it; JetStream KV Put is atomic (§4.2's
// SET semantics).
func (s *NATSKV) Dump(hash string, value any) error {
	encoded, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("store: natskv: encode: %w", err)
	}
	ctx := context.Background()
	return s.call(ctx, func() error {
		_, err := s.kv.Put(ctx, s.resultKey(hash), encoded)
		return err
	})
}

func (s *NATSKV) Load(hash string) (any, error) {
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
		raw = entry.Value()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codec.Decode(raw)
}

func (s *NATSKV) CanLoad(hash string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.kv.Get(ctx, s.resultKey(hash))
	return err == nil
}

func (s *NATSKV) Remove(hash string) (bool, error) {
	present := s.CanLoad(hash)
	ctx := context.Background()
	err := s.call(ctx, func() error { return s.kv.Delete(ctx, s.resultKey(hash)) })
	if err != nil {
		return false, err
	}
	return present, nil
}

func (s *NATSKV) List() ([]string, error) {
	return s.listByPrefix(resultPrefix)
}

func (s *NATSKV) listByPrefix(kind string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	lister, err := s.kv.ListKeysFiltered(ctx, keyJoin(kind, s.prefix, "")+"*")
	if err != nil {
		return nil, fmt.Errorf("store: natskv: list: %w", err)
	}
	var out []string
	for k := range lister.Keys() {
		out = append(out, hashFromKey(k))
	}
	return out, nil
}

func hashFromKey(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '.' {
			return key[i+1:]
		}
	}
	return key
}

func (s *NATSKV) GetLock(hash string) Lock {
	return &natsLock{store: s, hash: hash}
}

func (s *NATSKV) Cleanup(active map[string]bool) (int, error) {
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

func (s *NATSKV) RemoveLocks() (int, error) {
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

func (s *NATSKV) ListLocks() ([]string, error) {
	return s.listByPrefix(lockPrefix)
}

func (s *NATSKV) Close() error {
	s.nc.Close()
	return nil
}

type natsLock struct {
	store *NATSKV
	hash  string
}

// Acquire uses JetStream KV's Create, which fails if the key already
// exists — the atomic compare-and-set primitive §4.2 requires (the
// NATS analogue of Redis SETNX / getset used by the reference project's
// redis_lock).
func (l *natsLock) Acquire() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := l.store.kv.Create(ctx, l.store.lockKey(l.hash), []byte("1"))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return false, nil
		}
		return false, fmt.Errorf("store: natskv: lock acquire: %w", err)
	}
	return true, nil
}

func (l *natsLock) Release() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.store.kv.Delete(ctx, l.store.lockKey(l.hash))
	if err != nil && errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (l *natsLock) IsLocked() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := l.store.kv.Get(ctx, l.store.lockKey(l.hash))
	return err == nil
}
