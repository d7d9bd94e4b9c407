package codec

import (
	"github.com/klauspost/compress/zstd"
)

// compress wraps raw in a single zstd frame. Both directions work on whole
// in-memory buffers (EncodeAll/DecodeAll); neither streams, so a large
// array is held in memory both encoded and decoded.
func compress(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
