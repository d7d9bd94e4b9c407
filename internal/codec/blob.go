package codec

import (
	"encoding/binary"
	"io"
)

// blobEncoder handles opaque binary payloads ([]byte), such as images or
// pre-serialized blobs a task chooses to pass through untouched, the Go
// analogue of the reference project's H5PyFileManager / opaque-file
// carve-out: raw bytes are stored verbatim rather than boxed through the
// general object encoder.
type blobEncoder struct{}

func (blobEncoder) Prefix() byte { return 'B' }

func (blobEncoder) CanEncode(v any) bool {
	_, ok := v.([]byte)
	return ok
}

func (blobEncoder) Write(v any, w io.Writer) error {
	b := v.([]byte)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func (blobEncoder) Read(r io.Reader) (any, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
