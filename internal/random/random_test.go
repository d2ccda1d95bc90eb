package random

import "testing"

func TestLetters(t *testing.T) {
	tests := []struct {
		name    string
		length  uint
		wantErr bool
	}{
		{
			name:    "zero length",
			length:  0,
			wantErr: false,
		},
		{
			name:    "32 length",
			length:  32,
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Letters(tt.length)
			if (err != nil) != tt.wantErr {
				t.Errorf("Letters() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if uint(len(got)) != tt.length {
				t.Errorf("Letters() got length = %v, want length %v", len(got), tt.length)
			}
		})
	}
}

func TestBetween(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int
	}{
		{name: "trait range", lo: 60, hi: 100},
		{name: "single value", lo: 7, hi: 7},
		{name: "swapped bounds", lo: 10, hi: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := min(tt.lo, tt.hi), max(tt.lo, tt.hi)
			for range 200 {
				got, err := Between(tt.lo, tt.hi)
				if err != nil {
					t.Fatalf("Between() error = %v", err)
				}
				if got < lo || got > hi {
					t.Fatalf("Between() = %d, want in [%d, %d]", got, lo, hi)
				}
			}
		})
	}
}
