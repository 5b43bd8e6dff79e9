// gb_impulse.go - Band-limited step synthesis for the sound hardware.
//
// Level changes are not written as hard steps. Each change is convolved with a
// windowed-sinc step kernel at its fractional sample position and added into
// a delta buffer. Flushing integrates the deltas back into absolute levels.

package main

import (
	"math"
	"sort"
)

const (
	gbImpulsePhases = 128
	gbImpulseWidth  = 12
	gbImpulseShift  = 8
	gbImpulseUnit   = 1 << gbImpulseShift
)

// gbImpulseKernel holds one 12-tap row per sub-sample phase. Every row sums
// to exactly gbImpulseUnit.
var gbImpulseKernel = buildImpulseKernel()

func buildImpulseKernel() [gbImpulsePhases][gbImpulseWidth]int16 {
	var kernel [gbImpulsePhases][gbImpulseWidth]int16
	for phase := 0; phase < gbImpulsePhases; phase++ {
		frac := float64(phase) / gbImpulsePhases
		var taps [gbImpulseWidth]float64
		for k := range taps {
			x := float64(k-(gbImpulseWidth/2-1)) - frac
			n := x + gbImpulseWidth/2
			taps[k] = sinc(x) * blackman(n, gbImpulseWidth)
		}
		kernel[phase] = quantizeKernelRow(taps)
	}
	return kernel
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}

func blackman(n float64, width int) float64 {
	w := float64(width)
	return 0.42 - 0.5*math.Cos(2*math.Pi*n/w) + 0.08*math.Cos(4*math.Pi*n/w)
}

// quantizeKernelRow scales a row to the unit gain, rounds it, and nudges the
// largest taps by one until the integer sum is exact.
func quantizeKernelRow(taps [gbImpulseWidth]float64) [gbImpulseWidth]int16 {
	var row [gbImpulseWidth]int16
	gain := float64(gbImpulseUnit)
	for iter := 0; iter < 8; iter++ {
		sum := 0.0
		for _, v := range taps {
			sum += v
		}
		scale := gain / sum
		total := 0
		for k, v := range taps {
			row[k] = int16(math.Round(v * scale))
			total += int(row[k])
		}
		if total == gbImpulseUnit {
			return row
		}
		gain += float64(gbImpulseUnit - total)
	}

	order := make([]int, gbImpulseWidth)
	for k := range order {
		order[k] = k
	}
	sort.Slice(order, func(a, b int) bool {
		return math.Abs(taps[order[a]]) > math.Abs(taps[order[b]])
	})
	total := 0
	for _, v := range row {
		total += int(v)
	}
	for i := 0; total != gbImpulseUnit; i++ {
		k := order[i%gbImpulseWidth]
		if total < gbImpulseUnit {
			row[k]++
			total++
		} else {
			row[k]--
			total--
		}
	}
	return row
}

// gbImpulseSynth converts a stream of stereo level changes, timed in hardware
// cycles, into interleaved 16-bit PCM.
type gbImpulseSynth struct {
	clock    int64
	rate     int
	divTC    int64 // cycles per sample, 16.16 fixed point
	cyclesFP int64 // position inside the current buffer, 16.16 cycles

	out     []int16
	samples int
	impL    []int32
	impR    []int32
	sumL    int64
	sumR    int64
	lastL   int32
	lastR   int32

	callback func([]int16)
}

func newImpulseSynth(clock int64, rate int, samples int) *gbImpulseSynth {
	if samples <= 0 {
		samples = 1024
	}
	s := &gbImpulseSynth{clock: clock}
	s.SetSampleRate(rate)
	s.SetOutputBuffer(make([]int16, samples*2))
	return s
}

// SetSampleRate changes the cycle to sample ratio. The position inside the
// current buffer is kept in samples, so pending deltas stay where they were.
func (s *gbImpulseSynth) SetSampleRate(rate int) {
	if rate <= 0 {
		rate = 44100
	}
	divTC := (s.clock << 16) / int64(rate)
	if s.divTC > 0 {
		pos := s.cyclesFP / s.divTC
		frac := float64(s.cyclesFP%s.divTC) / float64(s.divTC)
		s.cyclesFP = pos*divTC + int64(frac*float64(divTC))
	}
	s.rate = rate
	s.divTC = divTC
}

func (s *gbImpulseSynth) SampleRate() int {
	return s.rate
}

// SetOutputBuffer installs an interleaved stereo buffer and resizes the delta
// buffers to match. Pending deltas and the position carry over; a buffer
// already past the new size flushes on the next Advance. A buffer without a
// full stereo frame is ignored.
func (s *gbImpulseSynth) SetOutputBuffer(buf []int16) {
	samples := len(buf) / 2
	if samples == 0 {
		return
	}
	size := samples + gbImpulseWidth
	if s.divTC > 0 {
		size = max(size, int(s.cyclesFP/s.divTC)+gbImpulseWidth)
	}
	impL := make([]int32, size)
	impR := make([]int32, size)
	copy(impL, s.impL)
	copy(impR, s.impR)
	s.out = buf
	s.samples = samples
	s.impL = impL
	s.impR = impR
}

func (s *gbImpulseSynth) SetSoundCallback(fn func([]int16)) {
	s.callback = fn
}

// Level records the mixed output level at the current position. Only changes
// produce impulses.
func (s *gbImpulseSynth) Level(l, r int32) {
	if l == s.lastL && r == s.lastR {
		return
	}
	pos := int(s.cyclesFP / s.divTC)
	phase := int((s.cyclesFP % s.divTC) * gbImpulsePhases / s.divTC)
	row := &gbImpulseKernel[phase]
	dl := l - s.lastL
	dr := r - s.lastR
	for k, tap := range row {
		s.impL[pos+k] += dl * int32(tap)
		s.impR[pos+k] += dr * int32(tap)
	}
	s.lastL = l
	s.lastR = r
}

// Advance moves the position forward, flushing each time a full buffer of
// samples has been covered.
func (s *gbImpulseSynth) Advance(cycles int) {
	s.cyclesFP += int64(cycles) << 16
	limit := int64(s.samples) * s.divTC
	for s.samples > 0 && s.cyclesFP >= limit {
		s.Flush()
		s.cyclesFP -= limit
	}
}

// Flush integrates the delta buffers into the output buffer and hands it to
// the callback, then carries the kernel tail into the next period.
func (s *gbImpulseSynth) Flush() {
	for i := 0; i < s.samples; i++ {
		s.sumL += int64(s.impL[i])
		s.sumR += int64(s.impR[i])
		s.out[i*2] = clampInt16(s.sumL >> gbImpulseShift)
		s.out[i*2+1] = clampInt16(s.sumR >> gbImpulseShift)
	}
	if s.callback != nil {
		s.callback(s.out)
	}
	n := copy(s.impL, s.impL[s.samples:])
	copy(s.impR, s.impR[s.samples:])
	clear(s.impL[n:])
	clear(s.impR[n:])
}

func clampInt16(v int64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
