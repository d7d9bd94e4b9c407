package codec

import (
	"encoding/gob"
	"io"
)

// objectEncoder is the general-purpose catch-all, the Go analogue of the
// reference project's PickleEncoder: it claims anything the more specific
// encoders don't. No third-party general-object serializer appears
// anywhere in the reference corpus (none of the example repos pull in
// protobuf/msgpack/cbor for ad-hoc Go values — their serialization needs
// are all schema'd, via protobuf-generated structs over gRPC); the
// standard library's encoding/gob is used here deliberately, not as an
// oversight, since gob already round-trips interface{}-typed Go values
// without a schema, which is exactly what this fallback needs.
type objectEncoder struct{}

func (objectEncoder) Prefix() byte { return 'O' }

func (objectEncoder) CanEncode(v any) bool { return true }

func (objectEncoder) Write(v any, w io.Writer) error {
	box := objectBox{Value: v}
	return gob.NewEncoder(w).Encode(&box)
}

func (objectEncoder) Read(r io.Reader) (any, error) {
	var box objectBox
	if err := gob.NewDecoder(r).Decode(&box); err != nil {
		return nil, err
	}
	return box.Value, nil
}

// objectBox wraps an arbitrary value so gob can carry its dynamic type
// information through an interface{} field.
type objectBox struct {
	Value any
}

func init() {
	// Registered eagerly so common container shapes produced by
	// task.Value's recursive resolution (nested []any/map[string]any)
	// round-trip without the caller registering anything.
	gob.Register([]any{})
	gob.Register(map[string]any{})
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(true)
}
