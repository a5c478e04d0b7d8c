package encoding

import "testing"

func TestRLE_RoundTrip(t *testing.T) {
	cases := [][]uint32{
		nil,
		{0},
		{1, 1, 1, 1},
		{0, 0, 3, 3, 3, 1, 0, 0, 0, 0},
		{7, 6, 5, 4, 3, 2, 1, 0},
	}
	for _, vals := range cases {
		enc := EncodeRLE(vals)
		dec, err := DecodeRLE(enc)
		if err != nil {
			t.Fatalf("decode %v: %v", vals, err)
		}
		if len(dec) != len(vals) {
			t.Fatalf("round trip %v -> %v", vals, dec)
		}
		for i := range dec {
			if dec[i] != vals[i] {
				t.Fatalf("round trip %v -> %v", vals, dec)
			}
		}
	}
}

func TestRLE_PlateauCompresses(t *testing.T) {
	vals := make([]uint32, 17*17)
	for i := range vals {
		vals[i] = 3
	}
	enc := EncodeRLE(vals)
	// One (value, run) pair: a couple of varint bytes, not 289 entries.
	if len(enc) > 16 {
		t.Fatalf("flat grid encoded to %d chars", len(enc))
	}
}

func TestRLE_RejectsGarbage(t *testing.T) {
	if _, err := DecodeRLE("not base64!!"); err == nil {
		t.Fatalf("expected base64 error")
	}
}

func TestHeights_RoundTrip(t *testing.T) {
	hs := []int32{0, 0, 1, 2, 2, 2, 3, 0}
	dec, err := DecodeHeights(EncodeHeights(hs))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(dec) != len(hs) {
		t.Fatalf("round trip %v -> %v", hs, dec)
	}
	for i := range dec {
		if dec[i] != hs[i] {
			t.Fatalf("round trip %v -> %v", hs, dec)
		}
	}
}
