package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes a value sequence into base64(varint pairs). The pairs are
// (value, run_len) repeated. Heights and feature flags are both non-negative
// and plateau-heavy, so runs compress well.
func EncodeRLE(vals []uint32) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(vals) {
		v := vals[i]
		run := 1
		for j := i + 1; j < len(vals) && vals[j] == v && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint32
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFFFFFF {
			return nil, fmt.Errorf("value too large: %d", v)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, uint32(v))
		}
	}
	return out, nil
}

// EncodeHeights/DecodeHeights adapt the RLE codec to the int32 height grids.
// Heights are always non-negative.
func EncodeHeights(hs []int32) string {
	vals := make([]uint32, len(hs))
	for i, h := range hs {
		vals[i] = uint32(h)
	}
	return EncodeRLE(vals)
}

func DecodeHeights(b64 string) ([]int32, error) {
	vals, err := DecodeRLE(b64)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(v)
	}
	return out, nil
}
