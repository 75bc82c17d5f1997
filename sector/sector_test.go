// SPDX-License-Identifier: GPL-3.0-or-later

package sector

import (
	"bytes"
	"testing"
)

// buildMode1 returns a byte-exact Mode 1 sector carrying the given 2048
// bytes of user data, with address left zeroed.
func buildMode1(t *testing.T, data []byte) []byte {
	t.Helper()
	if len(data) != 2048 {
		t.Fatalf("data must be 2048 bytes, got %d", len(data))
	}
	var buf [FullSize]byte
	copy(buf[m1Data:m1EDC], data)
	Reconstruct(&buf, Mode1)
	out := make([]byte, FullSize)
	copy(out, buf[:])
	return out
}

func buildMode2Form1(t *testing.T, data []byte) []byte {
	t.Helper()
	if len(data) != 2048 {
		t.Fatalf("data must be 2048 bytes, got %d", len(data))
	}
	var buf [FullSize]byte
	buf[m2FullFlagsDup] = 0x08
	buf[m2FullFlagsDup+1] = 0x00
	buf[m2FullFlagsDup+2] = 0x00
	buf[m2FullFlagsDup+3] = 0x00
	copy(buf[m2FullData:m2FullEDCForm1], data)
	Reconstruct(&buf, Mode2Form1)
	return OutputSlice(&buf, Mode2Form1)
}

func buildMode2Form2(t *testing.T, data []byte) []byte {
	t.Helper()
	if len(data) != 2324 {
		t.Fatalf("data must be 2324 bytes, got %d", len(data))
	}
	var buf [FullSize]byte
	buf[m2FullFlagsDup] = 0x08
	buf[m2FullFlagsDup+1] = 0x00
	buf[m2FullFlagsDup+2] = 0x00
	buf[m2FullFlagsDup+3] = 0x00
	copy(buf[m2FullData:m2FullEDCForm2], data)
	Reconstruct(&buf, Mode2Form2)
	return OutputSlice(&buf, Mode2Form2)
}

func TestClassifyRoundTripMode1(t *testing.T) {
	t.Parallel()
	data := bytes.Repeat([]byte{0x42}, 2048)
	raw := buildMode1(t, data)

	if got := Classify(raw); got != Mode1 {
		t.Fatalf("Classify() = %v, want Mode1", got)
	}

	var buf [FullSize]byte
	copy(buf[m1Address:m1Address+3], raw[m1Address:m1Address+3])
	copy(buf[m1Data:m1EDC], raw[m1Data:m1EDC])
	Reconstruct(&buf, Mode1)

	if !bytes.Equal(buf[:], raw) {
		t.Fatalf("reconstructed sector does not match original raw sector")
	}
}

func TestClassifyRoundTripMode2Form1(t *testing.T) {
	t.Parallel()
	data := bytes.Repeat([]byte{0x7A}, 2048)
	raw := buildMode2Form1(t, data)

	if got := Classify(raw); got != Mode2Form1 {
		t.Fatalf("Classify() = %v, want Mode2Form1", got)
	}

	var buf [FullSize]byte
	copy(buf[m2FullFlagsDup:m2FullFlagsDup+0x804], raw[4:4+0x804])
	Reconstruct(&buf, Mode2Form1)

	if !bytes.Equal(OutputSlice(&buf, Mode2Form1), raw) {
		t.Fatalf("reconstructed sector does not match original raw sector")
	}
}

func TestClassifyRoundTripMode2Form2(t *testing.T) {
	t.Parallel()
	data := bytes.Repeat([]byte{0x5C}, 2324)
	raw := buildMode2Form2(t, data)

	if got := Classify(raw); got != Mode2Form2 {
		t.Fatalf("Classify() = %v, want Mode2Form2", got)
	}

	var buf [FullSize]byte
	copy(buf[m2FullFlagsDup:m2FullFlagsDup+0x918], raw[4:4+0x918])
	Reconstruct(&buf, Mode2Form2)

	if !bytes.Equal(OutputSlice(&buf, Mode2Form2), raw) {
		t.Fatalf("reconstructed sector does not match original raw sector")
	}
}

func TestClassifyLiteral(t *testing.T) {
	t.Parallel()
	junk := bytes.Repeat([]byte{0xAA, 0x55}, 1200)
	if got := Classify(junk); got != Literal {
		t.Fatalf("Classify() = %v, want Literal", got)
	}
}

func TestClassifyExclusive(t *testing.T) {
	t.Parallel()
	// A tampered Mode 1 sector (one data byte flipped after EDC/ECC were
	// computed) must not still classify as Mode1, and must not spuriously
	// match a different type either.
	raw := buildMode1(t, bytes.Repeat([]byte{0x11}, 2048))
	raw[m1Data] ^= 0xFF

	if got := Classify(raw); got != Literal {
		t.Fatalf("Classify() on tampered sector = %v, want Literal", got)
	}
}

func TestClassifyShortWindow(t *testing.T) {
	t.Parallel()
	if got := Classify(nil); got != Literal {
		t.Fatalf("Classify(nil) = %v, want Literal", got)
	}
	if got := Classify(make([]byte, 100)); got != Literal {
		t.Fatalf("Classify(short) = %v, want Literal", got)
	}
}

func TestPayloadLength(t *testing.T) {
	t.Parallel()
	cases := map[Type]int{
		Mode1:      2051,
		Mode2Form1: 2052,
		Mode2Form2: 2328,
	}
	for typ, want := range cases {
		if got := PayloadLength(typ); got != want {
			t.Errorf("PayloadLength(%v) = %d, want %d", typ, got, want)
		}
	}
}
