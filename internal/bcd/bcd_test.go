package bcd

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		value uint64
		width int
	}{
		{0, 1}, {9, 1}, {99, 1},
		{1234, 2}, {9999, 2},
		{123456, 3},
		{304, 3},
		{12345678, 4},
	}
	for _, c := range cases {
		enc, err := Encode(c.value, c.width)
		if err != nil {
			t.Fatalf("Encode(%d, %d): %v", c.value, c.width, err)
		}
		if len(enc) != c.width {
			t.Fatalf("Encode(%d, %d) returned %d bytes", c.value, c.width, len(enc))
		}
		got := Decode(enc)
		if got != c.value {
			t.Errorf("Decode(Encode(%d)) = %d, want %d", c.value, got, c.value)
		}
	}
}

func TestEncodeOverflow(t *testing.T) {
	if _, err := Encode(100, 1); err == nil {
		t.Error("expected overflow error for 100 in 1 byte")
	}
	if _, err := Encode(99, 1); err != nil {
		t.Errorf("99 in 1 byte should not overflow: %v", err)
	}
}

func TestDecodeInvalidNibble(t *testing.T) {
	// 0x3A has an invalid low nibble (A > 9)
	if got := Decode([]byte{0x03, 0x3A}); got != 0 {
		t.Errorf("Decode with invalid nibble = %d, want 0", got)
	}
}

func TestDecodeZeroPadded(t *testing.T) {
	// Identity: 5 bytes of BCD zero-padded to 10 digits
	got := Decode([]byte{0x00, 0x00, 0x12, 0x34, 0x56})
	if got != 123456 {
		t.Errorf("Decode = %d, want 123456", got)
	}
}
