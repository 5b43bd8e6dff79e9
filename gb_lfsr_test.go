package main

import "testing"

func TestLFSRWidePeriod(t *testing.T) {
	var l gbLFSR
	for i := 1; i <= 40000; i++ {
		l.Next()
		if l.State() == 0 {
			if i != 32767 {
				t.Fatalf("wide period = %d, want 32767", i)
			}
			return
		}
	}
	t.Fatalf("wide register never returned to zero")
}

func TestLFSRNarrowPeriod(t *testing.T) {
	var l gbLFSR
	l.SetNarrow(true)
	// Only the low 7 bits cycle in narrow mode. The full state never
	// returns to zero: it reads 0x0080 at step 127.
	period := 0
	for i := 1; i <= 1000; i++ {
		l.Next()
		if l.State()&0x7F == 0 {
			period = i
			break
		}
	}
	if period != 127 {
		t.Fatalf("narrow period = %d, want 127", period)
	}

	l.Reset()
	outputs := make([]uint8, 600)
	for i := range outputs {
		outputs[i] = l.Next()
	}
	for i := 0; i+127 < len(outputs); i++ {
		if outputs[i] != outputs[i+127] {
			t.Fatalf("narrow output %d differs from output %d", i, i+127)
		}
	}
}

func TestLFSRGoldenOutputs(t *testing.T) {
	tests := []struct {
		name   string
		narrow bool
		want   uint32
	}{
		{"wide", false, 0xFFFC0008},
		{"narrow", true, 0xFC0830A3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l gbLFSR
			l.SetNarrow(tt.narrow)
			var got uint32
			for i := 0; i < 32; i++ {
				got = got<<1 | uint32(l.Next())
			}
			if got != tt.want {
				t.Fatalf("first 32 outputs = 0x%08X, want 0x%08X", got, tt.want)
			}
		})
	}
}
