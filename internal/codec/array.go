package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// arrayEncoder handles the common numeric-slice case with a compact
// shape+dtype+raw-bytes layout instead of falling through to the general
// object encoder, mirroring the reference project's NDArrayEncoder
// carve-out for numpy.ndarray.
type arrayEncoder struct{}

func (arrayEncoder) Prefix() byte { return 'N' }

func (arrayEncoder) CanEncode(v any) bool {
	switch v.(type) {
	case []float64, []float32, []int64, []int32:
		return true
	}
	return false
}

const (
	dtypeFloat64 = 1
	dtypeFloat32 = 2
	dtypeInt64   = 3
	dtypeInt32   = 4
)

func (arrayEncoder) Write(v any, w io.Writer) error {
	var dtype byte
	var n int
	var write func() error
	switch a := v.(type) {
	case []float64:
		dtype, n = dtypeFloat64, len(a)
		write = func() error { return binary.Write(w, binary.LittleEndian, a) }
	case []float32:
		dtype, n = dtypeFloat32, len(a)
		write = func() error { return binary.Write(w, binary.LittleEndian, a) }
	case []int64:
		dtype, n = dtypeInt64, len(a)
		write = func() error { return binary.Write(w, binary.LittleEndian, a) }
	case []int32:
		dtype, n = dtypeInt32, len(a)
		write = func() error { return binary.Write(w, binary.LittleEndian, a) }
	default:
		return fmt.Errorf("codec: array encoder cannot handle %T", v)
	}
	if err := binary.Write(w, binary.LittleEndian, dtype); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(n)); err != nil {
		return err
	}
	return write()
}

func (arrayEncoder) Read(r io.Reader) (any, error) {
	var dtype byte
	if err := binary.Read(r, binary.LittleEndian, &dtype); err != nil {
		return nil, err
	}
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	switch dtype {
	case dtypeFloat64:
		out := make([]float64, n)
		if err := binary.Read(r, binary.LittleEndian, out); err != nil {
			return nil, err
		}
		return out, nil
	case dtypeFloat32:
		out := make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, out); err != nil {
			return nil, err
		}
		return out, nil
	case dtypeInt64:
		out := make([]int64, n)
		if err := binary.Read(r, binary.LittleEndian, out); err != nil {
			return nil, err
		}
		return out, nil
	case dtypeInt32:
		out := make([]int32, n)
		if err := binary.Read(r, binary.LittleEndian, out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codec: unknown array dtype %d", dtype)
	}
}
