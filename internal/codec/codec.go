// Package codec implements the value codec (C1): self-describing
// prefix-tagged encoders wrapped in zstd compression. Encoders are
// probed in order; the first one that claims a value encodes it.
package codec

import (
	"bytes"
	"fmt"
	"io"
)

// Encoder is one entry in the probed encoder chain.
type Encoder interface {
	// Prefix is the single byte written before the payload so Decode can
	// dispatch without re-probing.
	Prefix() byte
	// CanEncode reports whether this encoder claims responsibility for v.
	CanEncode(v any) bool
	// Write encodes v to w, not including the prefix byte.
	Write(v any, w io.Writer) error
	// Read decodes a value previously written by Write.
	Read(r io.Reader) (any, error)
}

// defaultChain is probed in order: numeric arrays and opaque byte blobs
// get dedicated, more compact encodings; anything else falls through to
// the general object encoder, the codec's catch-all (mirrors the
// reference project's NDArrayEncoder-then-PickleEncoder probe order).
func defaultChain() []Encoder {
	return []Encoder{
		arrayEncoder{},
		blobEncoder{},
		objectEncoder{},
	}
}

var byPrefix = func() map[byte]Encoder {
	m := map[byte]Encoder{}
	for _, e := range defaultChain() {
		m[e.Prefix()] = e
	}
	return m
}()

// Encode serializes v to a compressed, prefix-tagged byte stream.
func Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var raw bytes.Buffer
	var chosen Encoder
	for _, e := range defaultChain() {
		if e.CanEncode(v) {
			chosen = e
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("codec: no encoder claimed value of type %T", v)
	}
	raw.WriteByte(chosen.Prefix())
	if err := chosen.Write(v, &raw); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return compress(raw.Bytes())
}

// Decode reads a value previously produced by Encode.
func Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := decompress(data)
	if err != nil {
		return nil, fmt.Errorf("codec: decompress: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("codec: empty payload after decompression")
	}
	prefix := raw[0]
	enc, ok := byPrefix[prefix]
	if !ok {
		return nil, fmt.Errorf("codec: unknown encoder prefix %q", prefix)
	}
	v, err := enc.Read(bytes.NewReader(raw[1:]))
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return v, nil
}
