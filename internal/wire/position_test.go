package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodePositionNumericPair(t *testing.T) {
	x, y, err := DecodePosition(json.RawMessage(`[1.5, -2.25]`))
	if err != nil {
		t.Fatalf("DecodePosition failed: %v", err)
	}
	if x != 1.5 || y != -2.25 {
		t.Errorf("got (%v, %v), want (1.5, -2.25)", x, y)
	}
}

func TestDecodePositionStringPair(t *testing.T) {
	tests := []struct {
		raw   string
		wantX float64
		wantY float64
	}{
		{`"1.5,-2.25"`, 1.5, -2.25},
		{`"(3, 4)"`, 3, 4},
		{`"[0.5, 0.75]"`, 0.5, 0.75},
		{`" 7 , 8 "`, 7, 8},
	}
	for _, tt := range tests {
		x, y, err := DecodePosition(json.RawMessage(tt.raw))
		if err != nil {
			t.Errorf("DecodePosition(%s) failed: %v", tt.raw, err)
			continue
		}
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("DecodePosition(%s) = (%v, %v), want (%v, %v)", tt.raw, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestDecodePositionInvalid(t *testing.T) {
	tests := []string{
		``,
		`null`,
		`"not a position"`,
		`"1,2,3"`,
		`[1]`,
		`[1, 2, 3]`,
		`{"x": 1, "y": 2}`,
		`"NaN,2"`,
	}
	for _, raw := range tests {
		if _, _, err := DecodePosition(json.RawMessage(raw)); !errors.Is(err, ErrInvalidPosition) {
			t.Errorf("DecodePosition(%q) = %v, want ErrInvalidPosition", raw, err)
		}
	}
}
