package store

import (
	"testing"
)

func TestSelectInMemory(t *testing.T) {
	s, err := Select("in-memory")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("expected *Memory, got %T", s)
	}
}

func TestSelectDirectoryFallback(t *testing.T) {
	s, err := Select(t.TempDir())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*Directory); !ok {
		t.Fatalf("expected *Directory, got %T", s)
	}
}

func TestSelectKVObjectRejectsMalformedConnString(t *testing.T) {
	if _, err := Select("kv+object://no-plus-separator"); err == nil {
		t.Fatalf("expected an error for a kv+object connection string missing bucket+host separator")
	}
}
