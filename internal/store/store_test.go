package store

import (
	"testing"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir, err := NewDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	t.Cleanup(func() { dir.Close() })
	return map[string]Store{
		"directory": dir,
		"memory":    NewMemory(),
	}
}

func TestDumpLoadCanLoadRemove(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			hash := "0000000000000000000000000000000000000a"
			if s.CanLoad(hash) {
				t.Fatalf("expected CanLoad false before dump")
			}
			if err := s.Dump(hash, map[string]any{"x": int64(42)}); err != nil {
				t.Fatalf("dump: %v", err)
			}
			if !s.CanLoad(hash) {
				t.Fatalf("expected CanLoad true after dump")
			}
			v, err := s.Load(hash)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			m, ok := v.(map[string]any)
			if !ok || m["x"] != int64(42) {
				t.Fatalf("unexpected loaded value: %#v", v)
			}
			removed, err := s.Remove(hash)
			if err != nil {
				t.Fatalf("remove: %v", err)
			}
			if !removed {
				t.Fatalf("expected Remove to report true")
			}
			if s.CanLoad(hash) {
				t.Fatalf("expected CanLoad false after remove")
			}
		})
	}
}

func TestLoadMissingReturnsErrMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Load("deadbeef"); err != ErrMissing {
				t.Fatalf("expected ErrMissing, got %v", err)
			}
		})
	}
}

func TestLockMutualExclusion(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			hash := "0000000000000000000000000000000000000b"
			l1 := s.GetLock(hash)
			l2 := s.GetLock(hash)
			ok1, err := l1.Acquire()
			if err != nil {
				t.Fatalf("acquire 1: %v", err)
			}
			if !ok1 {
				t.Fatalf("expected first acquire to succeed")
			}
			ok2, err := l2.Acquire()
			if err != nil {
				t.Fatalf("acquire 2: %v", err)
			}
			if ok2 {
				t.Fatalf("expected second acquire to fail while held")
			}
			if err := l1.Release(); err != nil {
				t.Fatalf("release: %v", err)
			}
			ok3, err := l2.Acquire()
			if err != nil {
				t.Fatalf("acquire 3: %v", err)
			}
			if !ok3 {
				t.Fatalf("expected acquire to succeed after release")
			}
		})
	}
}

func TestCleanupRemovesInactive(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			hashes := []string{
				"1111111111111111111111111111111111111a",
				"1111111111111111111111111111111111111b",
			}
			for _, h := range hashes {
				if err := s.Dump(h, "v"); err != nil {
					t.Fatalf("dump: %v", err)
				}
			}
			count, err := s.Cleanup(map[string]bool{hashes[0]: true})
			if err != nil {
				t.Fatalf("cleanup: %v", err)
			}
			if count != 1 {
				t.Fatalf("expected 1 removed, got %d", count)
			}
			if !s.CanLoad(hashes[0]) {
				t.Fatalf("expected active hash to survive cleanup")
			}
			if s.CanLoad(hashes[1]) {
				t.Fatalf("expected inactive hash to be removed")
			}
		})
	}
}
