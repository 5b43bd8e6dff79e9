package main

import (
	"testing"
	"time"
)

func newTestAPU() *GBAPU {
	return NewGBAPU(nil, nil)
}

func TestAPUReadMasks(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR11, 0x80)
	requireLREqualU8(t, "NR11", apu.Read(gbRegNR11), 0xBF)
	requireLREqualU8(t, "NR13", apu.Read(gbRegNR13), 0xFF)
	requireLREqualU8(t, "NR50", apu.Read(gbRegNR50), 0x77)
	requireLREqualU8(t, "unused 0xFF27", apu.Read(0xFF27), 0xFF)

	apu.Write(gbWaveRAM+3, 0x5A)
	requireLREqualU8(t, "wave RAM", apu.Read(gbWaveRAM+3), 0x5A)
}

func TestAPUPowerOffClearsRegisters(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR12, 0xF0)
	apu.Write(gbRegNR14, 0x80)

	apu.Write(gbRegNR52, 0x00)
	requireLREqualU8(t, "NR12", apu.Read(gbRegNR12), 0x00)
	requireLREqualU8(t, "NR52", apu.Read(gbRegNR52), 0x70)

	apu.Write(gbRegNR12, 0xF0)
	requireLREqualU8(t, "NR12 while off", apu.Read(gbRegNR12), 0x00)

	apu.Write(gbRegNR52, 0x80)
	apu.Write(gbRegNR12, 0xF0)
	requireLREqualU8(t, "NR12 after power on", apu.Read(gbRegNR12), 0xF0)
}

func TestAPUTriggerStartsChannel(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR12, 0xF0)
	apu.Write(gbRegNR14, 0x80)

	status := apu.Channels()[0]
	if !status.Active || status.Volume != 15 {
		t.Fatalf("channel 1 = %+v, want active at volume 15", status)
	}
	requireLREqualU8(t, "NR52", apu.Read(gbRegNR52), 0xF1)
}

func TestAPUDACOffStopsChannel(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR22, 0xF0)
	apu.Write(gbRegNR24, 0x80)
	apu.Write(gbRegNR22, 0x07)

	if apu.Channels()[1].Active {
		t.Fatalf("channel 2 still active after DAC off")
	}
}

func TestAPULengthCounterSilences(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR11, 0x3F) // length 1
	apu.Write(gbRegNR12, 0xF0)
	apu.Write(gbRegNR14, 0xC0)

	apu.Step(gbFrameTickCycle - gbTickCycles)
	if !apu.Channels()[0].Active {
		t.Fatalf("channel stopped before the first frame tick")
	}
	apu.Step(gbTickCycles)
	status := apu.Channels()[0]
	if status.Active || status.Volume != 0 {
		t.Fatalf("channel 1 = %+v, want silenced", status)
	}
}

func TestAPUWaveLength(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR30, 0x80)
	apu.Write(gbRegNR31, 0xFE) // length 2
	apu.Write(gbRegNR32, 0x20)
	apu.Write(gbRegNR34, 0xC0)

	apu.Step(gbFrameTickCycle)
	if !apu.Channels()[2].Active {
		t.Fatalf("wave channel stopped after one tick")
	}
	apu.Step(gbFrameTickCycle)
	if apu.Channels()[2].Active {
		t.Fatalf("wave channel still active after two ticks")
	}
}

func TestAPUEnvelope(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR12, 0xF1) // volume 15, decreasing, period 1
	apu.Write(gbRegNR14, 0x80)

	apu.Step(3 * gbFrameTickCycle)
	if v := apu.Channels()[0].Volume; v != 15 {
		t.Fatalf("volume after 3 ticks = %d, want 15", v)
	}
	apu.Step(gbFrameTickCycle)
	if v := apu.Channels()[0].Volume; v != 14 {
		t.Fatalf("volume after 4 ticks = %d, want 14", v)
	}

	apu.Write(gbRegNR42, 0xF9) // volume 15, increasing
	apu.Write(gbRegNR44, 0x80)
	apu.Step(16 * gbFrameTickCycle)
	if v := apu.Channels()[3].Volume; v != 15 {
		t.Fatalf("increasing envelope volume = %d, want clamp at 15", v)
	}
}

func TestAPUSweep(t *testing.T) {
	tests := []struct {
		name string
		nr10 byte
		nr14 byte
		want int32
	}{
		{"raise frequency", 0x11, 0x84, 512},
		{"lower frequency", 0x19, 0x84, 1536},
		{"no headroom", 0x18, 0x80, 2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apu := newTestAPU()
			apu.Write(gbRegNR10, tt.nr10)
			apu.Write(gbRegNR12, 0xF0)
			apu.Write(gbRegNR13, 0x00)
			apu.Write(gbRegNR14, tt.nr14)

			apu.Step(2 * gbFrameTickCycle)

			if got := apu.Channels()[0].Divider; got != tt.want {
				t.Fatalf("divider = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAPUNoiseDivider(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR43, 0x21)
	if got := apu.Channels()[3].Divider; got != 64 {
		t.Fatalf("noise divider = %d, want 64", got)
	}
	apu.Write(gbRegNR43, 0x08)
	if !apu.ch[3].lfsr.Narrow() {
		t.Fatalf("expected narrow LFSR mode")
	}
}

func TestAPUPulseDuty(t *testing.T) {
	for duty, want := range gbDutyTC {
		apu := newTestAPU()
		apu.Write(gbRegNR11, byte(duty)<<6)
		apu.Write(gbRegNR12, 0xF0)
		apu.Write(gbRegNR13, 0xFF)
		apu.Write(gbRegNR14, 0x87) // frequency 2047, one duty step per tick

		high := 0
		for i := 0; i < 8; i++ {
			apu.Step(gbTickCycles)
			if apu.ch[0].lvl > 0 {
				high++
			}
		}
		if high != want {
			t.Fatalf("duty %d: %d high steps of 8, want %d", duty, high, want)
		}
	}
}

func TestAPUWaveLevels(t *testing.T) {
	tests := []struct {
		nr32 byte
		want int32
	}{
		{0x00, 0},
		{0x20, 15},
		{0x40, 7},
		{0x60, 3},
	}
	for _, tt := range tests {
		apu := newTestAPU()
		for i := 0; i < 16; i++ {
			apu.Write(gbWaveRAM+uint16(i), 0xFF)
		}
		apu.Write(gbRegNR30, 0x80)
		apu.Write(gbRegNR32, tt.nr32)
		apu.Write(gbRegNR34, 0x80)
		apu.Step(gbTickCycles)
		if got := apu.ch[2].lvl; got != tt.want {
			t.Fatalf("NR32=0x%02X: level = %d, want %d", tt.nr32, got, tt.want)
		}
	}
}

func TestAPUMixGatesAndMute(t *testing.T) {
	apu := newTestAPU()
	apu.Write(gbRegNR51, 0x10) // channel 1 left only
	apu.Write(gbRegNR11, 0xC0)
	apu.Write(gbRegNR12, 0xF0)
	apu.Write(gbRegNR14, 0x80)
	apu.ch[0].lvl = 15

	l, r := apu.mix()
	if l != 15*8*64 || r != 0 {
		t.Fatalf("mix = (%d,%d), want (%d,0)", l, r, 15*8*64)
	}

	apu.SetMute(0, true)
	l, r = apu.mix()
	if l != 0 || r != 0 {
		t.Fatalf("muted mix = (%d,%d), want silence", l, r)
	}
	if !apu.Channels()[0].Mute {
		t.Fatalf("status does not report mute")
	}
}

func TestAPUFadeOut(t *testing.T) {
	apu := newTestAPU()
	apu.StartFadeOut(time.Second)
	if !apu.Fading() {
		t.Fatalf("expected fade to be running")
	}
	apu.Step(128 * gbFrameTickCycle)
	if m := apu.Master(); m != gbMasterMax/2 {
		t.Fatalf("master after half fade = %d, want %d", m, gbMasterMax/2)
	}
	apu.Step(128 * gbFrameTickCycle)
	if m := apu.Master(); m != 0 || apu.Fading() {
		t.Fatalf("master = %d fading=%v, want 0 and stopped", m, apu.Fading())
	}
}

func TestAPUFadeOutSubSecond(t *testing.T) {
	apu := newTestAPU()
	apu.StartFadeOut(400 * time.Millisecond)
	// 0.4 s is 102.4 frame ticks
	apu.Step(100 * gbFrameTickCycle)
	if m := apu.Master(); m == 0 || !apu.Fading() {
		t.Fatalf("master = %d fading=%v after 100 ticks, want still ramping", m, apu.Fading())
	}
	apu.Step(3 * gbFrameTickCycle)
	if m := apu.Master(); m != 0 || apu.Fading() {
		t.Fatalf("master = %d fading=%v after 103 ticks, want 0 and stopped", m, apu.Fading())
	}
}

func TestAPUFadeOutShorterThanATick(t *testing.T) {
	apu := newTestAPU()
	apu.StartFadeOut(time.Millisecond)
	if apu.Master() != 0 || apu.Fading() {
		t.Fatalf("master = %d fading=%v, want an immediate cut", apu.Master(), apu.Fading())
	}
}
