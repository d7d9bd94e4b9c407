// Package hashing implements the content-hash kernel (C2): a stable
// 40-hex-character digest over a task's name and its recursively hashed
// argument values.
package hashing

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// Hashable is implemented by task-graph nodes (Task, Tasklet) that
// contribute their own digest rather than being hashed structurally.
type Hashable interface {
	Hash() string
}

// CustomHasher is the "user-supplied object exposing a custom-hash
// capability" escape hatch in §9: any value may opt out of structural
// hashing by returning its own digest bytes.
type CustomHasher interface {
	JugHash() []byte
}

// kind tags, one byte each, prepended before a value's contribution so
// that differently-kinded values with coincidentally similar byte
// representations never collide.
const (
	tagNil byte = iota
	tagBool
	tagInt
	tagUint
	tagFloat
	tagString
	tagBytes
	tagSequence
	tagMapping
	tagSet
	tagTask
	tagTasklet
	tagCustom
	tagOpaque
	tagPositional
	tagKeyword
)

// Digest wraps a running SHA-1 computation, mirroring the original
// project's new_hash_object()/hash_update() pair: a digest is opened,
// fed a sequence of contributions in a fixed order, then finalized.
type Digest struct {
	h []byte
}

// New starts a fresh digest computation.
func New() *Digest {
	return &Digest{}
}

func (d *Digest) write(b []byte) {
	d.h = append(d.h, b...)
}

func (d *Digest) writeTag(t byte) {
	d.h = append(d.h, t)
}

// Sum finalizes the digest and returns its 40-character hex encoding.
func (d *Digest) Sum() string {
	sum := sha1.Sum(d.h)
	return hex.EncodeToString(sum[:])
}

// SumBytes finalizes the digest and returns the raw 20-byte SHA-1 sum,
// used internally when folding one digest into another (e.g. sorted set
// members, or a Task's hash contributing to its dependents' hashes).
func (d *Digest) SumBytes() [sha1.Size]byte {
	return sha1.Sum(d.h)
}

// Of computes the 40-hex digest of a single value.
func Of(v any) string {
	d := New()
	d.Add(v)
	return d.Sum()
}

// TaskHash computes the digest described in spec §4.1: the UTF-8 bytes of
// the fully qualified name, then each positional argument tagged with its
// index, then each keyword argument tagged with its key in insertion
// order. kwargOrder must list kwargs' keys in the map's insertion order,
// since Go maps do not preserve one.
func TaskHash(name string, args []any, kwargs map[string]any, kwargOrder []string) string {
	d := New()
	d.write([]byte(name))
	for i, a := range args {
		d.writeTag(tagPositional)
		d.writeVarint(uint64(i))
		d.Add(a)
	}
	for _, k := range kwargOrder {
		d.writeTag(tagKeyword)
		d.write([]byte(k))
		d.Add(kwargs[k])
	}
	return d.Sum()
}

func (d *Digest) writeVarint(v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	d.write(buf[:n])
}

// Add folds a value's structural hash contribution into the digest,
// dispatching over the supported value kinds (§9's tagged-variant note).
func (d *Digest) Add(v any) {
	switch t := v.(type) {
	case nil:
		d.writeTag(tagNil)
	case bool:
		d.writeTag(tagBool)
		if t {
			d.write([]byte{1})
		} else {
			d.write([]byte{0})
		}
	case int:
		d.addInt(int64(t))
	case int8:
		d.addInt(int64(t))
	case int16:
		d.addInt(int64(t))
	case int32:
		d.addInt(int64(t))
	case int64:
		d.addInt(t)
	case uint:
		d.addUint(uint64(t))
	case uint8:
		d.addUint(uint64(t))
	case uint16:
		d.addUint(uint64(t))
	case uint32:
		d.addUint(uint64(t))
	case uint64:
		d.addUint(t)
	case float32:
		d.addFloat(float64(t))
	case float64:
		d.addFloat(t)
	case string:
		d.writeTag(tagString)
		d.writeVarint(uint64(len(t)))
		d.write([]byte(t))
	case []byte:
		d.writeTag(tagBytes)
		d.writeVarint(uint64(len(t)))
		d.write(t)
	case Hashable:
		// Task or Tasklet: fold in the node's own hash (§4.1 (a) "A
		// Task: its own hash (recursively)").
		tag := tagTask
		if _, isTasklet := t.(interface{ Base() Hashable }); isTasklet {
			tag = tagTasklet
		}
		d.writeTag(tag)
		sum, err := hex.DecodeString(t.Hash())
		if err != nil {
			panic(fmt.Sprintf("hashing: malformed node hash %q: %v", t.Hash(), err))
		}
		d.write(sum)
	case CustomHasher:
		d.writeTag(tagCustom)
		b := t.JugHash()
		d.writeVarint(uint64(len(b)))
		d.write(b)
	case []any:
		d.writeTag(tagSequence)
		d.writeVarint(uint64(len(t)))
		for _, e := range t {
			d.Add(e)
		}
	case map[string]any:
		d.addMapping(t, sortedKeys(t))
	case OrderedMap:
		d.addMapping(t.Values, t.Order)
	case Set:
		d.addSet(t)
	default:
		d.addOpaque(v)
	}
}

func (d *Digest) addInt(v int64) {
	d.writeTag(tagInt)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	d.write(buf[:])
}

func (d *Digest) addUint(v uint64) {
	d.writeTag(tagUint)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	d.write(buf[:])
}

func (d *Digest) addFloat(v float64) {
	d.writeTag(tagFloat)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	d.write(buf[:])
}

func (d *Digest) addMapping(m map[string]any, order []string) {
	d.writeTag(tagMapping)
	d.writeVarint(uint64(len(order)))
	for _, k := range order {
		d.Add(k)
		d.Add(m[k])
	}
}

// Set is a hashable collection with no meaningful order; §4.1 requires
// members to be folded in sorted-digest order to remove nondeterminism.
type Set []any

func (d *Digest) addSet(members Set) {
	d.writeTag(tagSet)
	d.writeVarint(uint64(len(members)))
	digests := make([][sha1.Size]byte, len(members))
	for i, m := range members {
		sub := New()
		sub.Add(m)
		digests[i] = sub.SumBytes()
	}
	sort.Slice(digests, func(i, j int) bool {
		return lessBytes(digests[i][:], digests[j][:])
	})
	for _, dg := range digests {
		d.write(dg[:])
	}
}

// addOpaque is the fallback for any value with no structural case above:
// §4.1 "any other value: a stable byte encoding (the codec)". The hash
// kernel does not import the codec package (it would create a cycle), so
// it hashes the value's %#v text instead; callers that need opaque values
// hashed by the real codec should encode them first and pass the result
// through a CustomHasher.
func (d *Digest) addOpaque(v any) {
	d.writeTag(tagOpaque)
	d.write([]byte(fmt.Sprintf("%#v", v)))
}

// OrderedMap lets callers hash a mapping whose insertion order matters
// (§4.1 (c): kwargs are tagged "in insertion order") without losing that
// order to Go's unordered map type.
type OrderedMap struct {
	Values map[string]any
	Order  []string
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lessBytes(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
