package frame

import "testing"

func TestAlign(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"already aligned", 16, 16},
		{"needs padding", 17, 24},
		{"one byte", 1, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Align(tt.in); got != tt.want {
				t.Errorf("Align(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFramedLength(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"empty payload", 0, Align(HeaderLength)},
		{"small payload", 5, Align(HeaderLength + 5)},
		{"payload crossing boundary", 100, Align(HeaderLength + 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FramedLength(tt.in); got != tt.want {
				t.Errorf("FramedLength(%d) = %d, want %d", tt.in, got, tt.want)
			}
			if got := FramedLength(tt.in); got%FrameAlignment != 0 {
				t.Errorf("FramedLength(%d) = %d is not aligned to %d", tt.in, got, FrameAlignment)
			}
		})
	}
}
