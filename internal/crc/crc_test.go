package crc

import "testing"

func TestCalculateDeterministic(t *testing.T) {
	data := []byte{0x50, 0x00, 0x01, 0x01, 0x00}
	a := Calculate(data)
	b := Calculate(data)
	if a != b {
		t.Errorf("CRC not deterministic: %04X != %04X", a, b)
	}
}

func TestCalculateKnownVector(t *testing.T) {
	// The standard check value of CRC-16-CCITT with poly 0x1021, init
	// 0xFFFF, no reflection and no final XOR (CRC-16/CCITT-FALSE) over
	// "123456789" is 0x29B1. (0x31C3 is the zero-init XModem variant.)
	a := Calculate([]byte("123456789"))
	if a != 0x29B1 {
		t.Errorf("Calculate(\"123456789\") = %04X, want 29B1", a)
	}
	b := Calculate([]byte("123456780"))
	if a == b {
		t.Error("expected different CRCs for different inputs")
	}
}

func TestSplit(t *testing.T) {
	hi, lo := Split(0xABCD)
	if hi != 0xAB || lo != 0xCD {
		t.Errorf("Split(0xABCD) = %02X %02X, want AB CD", hi, lo)
	}
}

func TestEmptyInput(t *testing.T) {
	if Calculate(nil) != 0xFFFF {
		t.Errorf("Calculate(nil) = %04X, want FFFF (initial value unchanged)", Calculate(nil))
	}
}
