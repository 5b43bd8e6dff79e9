package main

import "testing"

func TestImpulseKernelRowsSumToUnit(t *testing.T) {
	for phase, row := range gbImpulseKernel {
		sum := 0
		for _, tap := range row {
			sum += int(tap)
		}
		if sum != gbImpulseUnit {
			t.Fatalf("phase %d sums to %d, want %d", phase, sum, gbImpulseUnit)
		}
	}
}

func TestImpulseKernelPeakNearCentre(t *testing.T) {
	row := gbImpulseKernel[0]
	peak := 0
	for k := range row {
		if row[k] > row[peak] {
			peak = k
		}
	}
	if peak != gbImpulseWidth/2-1 {
		t.Fatalf("phase 0 peak at tap %d, want %d", peak, gbImpulseWidth/2-1)
	}
}

// A square wave fed through the synth integrates back to its exact levels
// everywhere outside the kernel span around each edge.
func TestImpulseSquareWaveRoundTrip(t *testing.T) {
	const (
		rate        = 44100
		samples     = 512
		halfPeriod  = 3000
		totalCycles = 200000
		level       = 1200
	)
	synth := newImpulseSynth(gbClock, rate, samples)

	var got []int16
	synth.SetSoundCallback(func(buf []int16) {
		got = append(got, buf...)
	})

	type edge struct {
		sample int64
		level  int32
	}
	var edges []edge
	current := int32(-level)
	fp := int64(0)
	for cycle := 0; cycle < totalCycles; cycle += 4 {
		want := int32(level)
		if (cycle/halfPeriod)%2 == 1 {
			want = -level
		}
		if want != current {
			edges = append(edges, edge{sample: fp / synth.divTC, level: want})
			current = want
		}
		synth.Level(want, -want)
		synth.Advance(4)
		fp += 4 << 16
	}

	if len(got) == 0 {
		t.Fatalf("no buffers flushed")
	}
	checked := 0
	for n := 0; n < len(got)/2; n++ {
		expected := int32(0)
		settled := true
		for _, e := range edges {
			if int64(n) >= e.sample && int64(n) < e.sample+gbImpulseWidth {
				settled = false
				break
			}
			if int64(n) >= e.sample+gbImpulseWidth {
				expected = e.level
			}
		}
		if !settled {
			continue
		}
		checked++
		if int32(got[n*2]) != expected || int32(got[n*2+1]) != -expected {
			t.Fatalf("sample %d = (%d,%d), want (%d,%d)", n, got[n*2], got[n*2+1], expected, -expected)
		}
	}
	if checked < len(got)/4 {
		t.Fatalf("only %d settled samples checked", checked)
	}
}

func TestImpulseUnchangedLevelAddsNothing(t *testing.T) {
	synth := newImpulseSynth(gbClock, 44100, 64)
	synth.Level(0, 0)
	synth.Advance(1000)
	for i, v := range synth.impL {
		if v != 0 || synth.impR[i] != 0 {
			t.Fatalf("delta buffer touched at %d", i)
		}
	}
}

// collectSynth records every flushed buffer and its frame count.
func collectSynth(s *gbImpulseSynth) *[][]int16 {
	var bufs [][]int16
	s.SetSoundCallback(func(buf []int16) {
		bufs = append(bufs, append([]int16(nil), buf...))
	})
	return &bufs
}

func requireSettledLevel(t *testing.T, bufs [][]int16, l, r int16) {
	t.Helper()
	if len(bufs) == 0 {
		t.Fatalf("no buffers flushed")
	}
	last := bufs[len(bufs)-1]
	if gotL, gotR := last[len(last)-2], last[len(last)-1]; gotL != l || gotR != r {
		t.Fatalf("settled output = (%d,%d), want (%d,%d)", gotL, gotR, l, r)
	}
}

func TestImpulseResizeKeepsPendingLevel(t *testing.T) {
	synth := newImpulseSynth(gbClock, 44100, 1024)
	bufs := collectSynth(synth)
	synth.Level(1000, -1000)
	synth.Advance(400)
	synth.SetOutputBuffer(make([]int16, 128*2))
	synth.Advance(gbClock / 10)

	requireSettledLevel(t, *bufs, 1000, -1000)
	for i, buf := range *bufs {
		if len(buf) != 128*2 {
			t.Fatalf("buffer %d has %d values, want %d", i, len(buf), 128*2)
		}
	}
}

func TestImpulseShrinkBelowPosition(t *testing.T) {
	synth := newImpulseSynth(gbClock, 44100, 1024)
	bufs := collectSynth(synth)
	synth.Advance(50000) // about 525 samples in
	synth.Level(700, 700)
	synth.SetOutputBuffer(make([]int16, 128*2))
	synth.Level(-300, 200)
	synth.Advance(gbClock / 10)

	requireSettledLevel(t, *bufs, -300, 200)
}

func TestImpulseRateChangeMidBuffer(t *testing.T) {
	synth := newImpulseSynth(gbClock, 8000, 1024)
	bufs := collectSynth(synth)
	synth.Advance(gbClock / 10)
	synth.SetSampleRate(192000)
	synth.Level(100, 100)
	synth.Advance(gbClock / 10)

	if synth.SampleRate() != 192000 {
		t.Fatalf("rate = %d", synth.SampleRate())
	}
	requireSettledLevel(t, *bufs, 100, 100)
}

func TestImpulseEmptyBufferKeepsPrevious(t *testing.T) {
	synth := newImpulseSynth(gbClock, 44100, 64)
	bufs := collectSynth(synth)
	synth.SetOutputBuffer(nil)
	synth.SetOutputBuffer(make([]int16, 1))
	for cycle := 0; cycle < 100000; cycle += 500 {
		level := int32(400)
		if (cycle/2000)%2 == 1 {
			level = -400
		}
		synth.Level(level, level)
		synth.Advance(500)
	}
	synth.Advance(gbClock / 100)

	if len(*bufs) == 0 {
		t.Fatalf("no buffers flushed")
	}
	for i, buf := range *bufs {
		if len(buf) != 64*2 {
			t.Fatalf("buffer %d has %d values, want %d", i, len(buf), 64*2)
		}
	}
}
