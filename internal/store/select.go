package store

import (
	"fmt"
	"strings"
)

// Select parses a connection string and opens the corresponding backend,
// mirroring the four forms in §6:
//
//	kv://host[:port]/prefix        -> NATS JetStream KV backend
//	kv+object://bucket+host[:port]/prefix -> NATS KV+ObjectStore hybrid
//	in-memory                      -> in-memory backend
//	<path>                         -> directory backend (the default/else
//	                                   branch)
func Select(connString string) (Store, error) {
	switch {
	case strings.HasPrefix(connString, "kv+object://"):
		rest := strings.TrimPrefix(connString, "kv+object://")
		bucket, hostAndPrefix, ok := strings.Cut(rest, "+")
		if !ok {
			return nil, fmt.Errorf("store: select: malformed kv+object connection string %q, expected bucket+host/prefix", connString)
		}
		host, prefix, _ := strings.Cut(hostAndPrefix, "/")
		return NewHybrid("nats://"+host, bucket, prefix)
	case strings.HasPrefix(connString, "kv://"):
		rest := strings.TrimPrefix(connString, "kv://")
		host, prefix, _ := strings.Cut(rest, "/")
		return NewNATSKV("nats://"+host, prefix)
	case connString == "in-memory":
		return NewMemory(), nil
	default:
		return NewDirectory(connString)
	}
}
