// gb_apu.go - DMG sound hardware: two pulse channels, wave and noise.
//
// The channels advance in 4-cycle ticks. A 256 Hz frame tick, derived from
// the cycle count, drives length counters, envelopes, the channel 1 sweep and
// the player's master fade. Mixed levels go to the impulse synth, which only
// sees changes.

package main

import (
	"math"
	"time"
)

const (
	gbClock          = 4194304
	gbTickCycles     = 4
	gbFrameTickCycle = gbClock / 256 // 16384
	gbMasterMax      = 65536
	gbChannels       = 4

	gbRegNR10 = 0xFF10
	gbRegNR11 = 0xFF11
	gbRegNR12 = 0xFF12
	gbRegNR13 = 0xFF13
	gbRegNR14 = 0xFF14
	gbRegNR21 = 0xFF16
	gbRegNR22 = 0xFF17
	gbRegNR23 = 0xFF18
	gbRegNR24 = 0xFF19
	gbRegNR30 = 0xFF1A
	gbRegNR31 = 0xFF1B
	gbRegNR32 = 0xFF1C
	gbRegNR33 = 0xFF1D
	gbRegNR34 = 0xFF1E
	gbRegNR41 = 0xFF20
	gbRegNR42 = 0xFF21
	gbRegNR43 = 0xFF22
	gbRegNR44 = 0xFF23
	gbRegNR50 = 0xFF24
	gbRegNR51 = 0xFF25
	gbRegNR52 = 0xFF26
	gbWaveRAM = 0xFF30

	gbSoundRegFirst = 0xFF10
	gbSoundRegLast  = 0xFF3F
)

var gbDutyTC = [4]int{1, 2, 4, 6}

var gbNoiseDivisors = [8]int32{8, 16, 32, 48, 64, 80, 96, 112}

// Bits that always read back as 1 on DMG hardware, indexed from NR10.
var gbSoundReadMask = [0x20]byte{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // unused, NR21-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // unused, NR41-NR44
	0x00, 0x00, 0x70, // NR50-NR52
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

type gbChannel struct {
	mute    bool
	running bool
	dacOn   bool

	volume    int
	envVolume int // initial volume loaded on trigger
	envDir    int
	envTC     int
	envCtr    int

	lenEnable bool
	length    int

	freq   uint16
	divTC  int32
	divCtr int32

	dutyTC  int
	dutyCtr int

	sweepTime  int
	sweepShift uint
	sweepDown  bool
	sweepTC    int
	sweepCtr   int

	wavePos   int
	waveShift int // 0 mutes, otherwise shift+1

	lfsr     gbLFSR
	noiseBit uint8

	left  bool
	right bool
	lvl   int32
}

// GBChannelStatus is a read-only view of one channel for status displays.
type GBChannelStatus struct {
	Mute    bool
	Volume  int
	Divider int32
	Active  bool
}

type GBAPU struct {
	ch      [gbChannels]gbChannel
	regs    [0x30]byte
	powered bool

	masterL int32
	masterR int32
	master  int32
	fade    int32

	tickCtr int
	synth   *gbImpulseSynth
	log     *gbLogger
}

func NewGBAPU(synth *gbImpulseSynth, log *gbLogger) *GBAPU {
	a := &GBAPU{synth: synth, log: log}
	a.Reset()
	return a
}

// Reset restores the post-boot register state. Player mute flags survive.
func (a *GBAPU) Reset() {
	a.resetChannels()
	a.regs = [0x30]byte{}
	a.powered = true
	a.master = gbMasterMax
	a.fade = 0
	a.tickCtr = 0
	a.Write(gbRegNR50, 0x77)
	a.Write(gbRegNR51, 0xF3)
	a.regs[gbRegNR52-gbSoundRegFirst] = 0x80
}

func (a *GBAPU) resetChannels() {
	for i := range a.ch {
		a.ch[i] = gbChannel{mute: a.ch[i].mute, divTC: 2048}
	}
	a.ch[3].divTC = gbNoiseDivisors[0]
}

func (a *GBAPU) SetMute(channel int, mute bool) {
	if channel >= 0 && channel < gbChannels {
		a.ch[channel].mute = mute
	}
}

func (a *GBAPU) ToggleMute(channel int) {
	if channel >= 0 && channel < gbChannels {
		a.ch[channel].mute = !a.ch[channel].mute
	}
}

// Master returns the current master volume in [0, gbMasterMax].
func (a *GBAPU) Master() int32 {
	return a.master
}

func (a *GBAPU) SetMaster(level int32) {
	a.master = min(max(level, 0), gbMasterMax)
}

// SetFade changes the master volume by rate on every frame tick, clamped to
// [0, gbMasterMax]. A rate of zero stops fading.
func (a *GBAPU) SetFade(rate int32) {
	a.fade = rate
}

// StartFadeOut ramps the master volume from its current level to zero over
// d, in whole frame ticks. Fades shorter than one tick cut to silence.
func (a *GBAPU) StartFadeOut(d time.Duration) {
	ticks := d.Seconds() * (gbClock / gbFrameTickCycle)
	if ticks < 1 {
		a.master = 0
		a.fade = 0
		return
	}
	rate := int32(math.Ceil(float64(a.master) / ticks))
	a.fade = -max(rate, 1)
}

func (a *GBAPU) Fading() bool {
	return a.fade != 0
}

func (a *GBAPU) Channels() [gbChannels]GBChannelStatus {
	var out [gbChannels]GBChannelStatus
	for i := range a.ch {
		c := &a.ch[i]
		out[i] = GBChannelStatus{
			Mute:    c.mute,
			Volume:  c.volume,
			Divider: c.divTC,
			Active:  c.running && c.audible(i),
		}
	}
	return out
}

func (c *gbChannel) audible(index int) bool {
	if index == 2 {
		return c.waveShift != 0
	}
	return c.volume > 0
}

func (a *GBAPU) Read(addr uint16) byte {
	if addr >= gbWaveRAM && addr <= gbSoundRegLast {
		return a.regs[addr-gbSoundRegFirst]
	}
	if addr < gbSoundRegFirst || addr > gbSoundRegLast {
		return 0xFF
	}
	idx := addr - gbSoundRegFirst
	if addr == gbRegNR52 {
		value := byte(0x70)
		if a.powered {
			value |= 0x80
		}
		for i := range a.ch {
			if a.ch[i].running {
				value |= 1 << i
			}
		}
		return value
	}
	return a.regs[idx] | gbSoundReadMask[idx]
}

func (a *GBAPU) Write(addr uint16, value byte) {
	if addr < gbSoundRegFirst || addr > gbSoundRegLast {
		return
	}
	if addr >= gbWaveRAM {
		a.regs[addr-gbSoundRegFirst] = value
		return
	}
	if addr == gbRegNR52 {
		a.writePower(value)
		return
	}
	if !a.powered {
		return
	}
	a.regs[addr-gbSoundRegFirst] = value

	switch addr {
	case gbRegNR10:
		c := &a.ch[0]
		c.sweepTime = int(value>>4) & 7
		c.sweepDown = value&0x08 != 0
		c.sweepShift = uint(value & 7)
		c.sweepTC = c.sweepTime * 2
	case gbRegNR11, gbRegNR21:
		c := &a.ch[pulseIndex(addr)]
		c.dutyTC = gbDutyTC[value>>6]
		c.length = 64 - int(value&63)
	case gbRegNR12, gbRegNR22, gbRegNR42:
		a.writeEnvelope(&a.ch[envelopeIndex(addr)], value)
	case gbRegNR13, gbRegNR23, gbRegNR33:
		c := &a.ch[freqIndex(addr)]
		c.freq = c.freq&0x700 | uint16(value)
		c.divTC = 2048 - int32(c.freq)
	case gbRegNR14, gbRegNR24, gbRegNR34:
		idx := freqIndex(addr)
		c := &a.ch[idx]
		c.freq = c.freq&0xFF | uint16(value&7)<<8
		c.divTC = 2048 - int32(c.freq)
		c.lenEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.trigger(idx)
		}
	case gbRegNR30:
		c := &a.ch[2]
		c.dacOn = value&0x80 != 0
		if !c.dacOn {
			c.running = false
		}
	case gbRegNR31:
		a.ch[2].length = 256 - int(value)
	case gbRegNR32:
		a.ch[2].waveShift = int(value>>5) & 3
	case gbRegNR41:
		a.ch[3].length = 64 - int(value&63)
	case gbRegNR43:
		c := &a.ch[3]
		c.lfsr.SetNarrow(value&0x08 != 0)
		c.divTC = gbNoiseDivisors[value&7] << (value >> 4)
	case gbRegNR44:
		c := &a.ch[3]
		c.lenEnable = value&0x40 != 0
		if value&0x80 != 0 {
			a.trigger(3)
		}
	case gbRegNR50:
		a.masterR = int32(value&7) + 1
		a.masterL = int32(value>>4&7) + 1
	case gbRegNR51:
		for i := range a.ch {
			a.ch[i].right = value&(1<<i) != 0
			a.ch[i].left = value&(0x10<<i) != 0
		}
	}
}

func pulseIndex(addr uint16) int {
	if addr >= gbRegNR21 {
		return 1
	}
	return 0
}

func envelopeIndex(addr uint16) int {
	switch addr {
	case gbRegNR22:
		return 1
	case gbRegNR42:
		return 3
	default:
		return 0
	}
}

func freqIndex(addr uint16) int {
	switch {
	case addr >= gbRegNR30:
		return 2
	case addr >= gbRegNR21:
		return 1
	default:
		return 0
	}
}

func (a *GBAPU) writeEnvelope(c *gbChannel, value byte) {
	c.envVolume = int(value >> 4)
	c.envDir = -1
	if value&0x08 != 0 {
		c.envDir = 1
	}
	c.envTC = int(value&7) * 4
	c.dacOn = value&0xF8 != 0
	if !c.dacOn {
		c.running = false
		c.volume = 0
	}
}

func (a *GBAPU) writePower(value byte) {
	on := value&0x80 != 0
	if a.powered && !on {
		for addr := uint16(gbSoundRegFirst); addr < gbRegNR52; addr++ {
			a.regs[addr-gbSoundRegFirst] = 0
		}
		a.resetChannels()
		a.masterL = 1
		a.masterR = 1
	}
	a.powered = on
	a.regs[gbRegNR52-gbSoundRegFirst] = value & 0x80
}

func (a *GBAPU) trigger(idx int) {
	c := &a.ch[idx]
	c.running = c.dacOn
	if c.length == 0 {
		if idx == 2 {
			c.length = 256
		} else {
			c.length = 64
		}
	}
	switch idx {
	case 0, 1:
		c.volume = c.envVolume
		c.envCtr = c.envTC
		c.divCtr = c.divTC * 4
		c.dutyCtr = 0
		if idx == 0 {
			c.sweepCtr = c.sweepTC
		}
	case 2:
		c.divCtr = c.divTC * 2
		c.wavePos = 0
	case 3:
		c.volume = c.envVolume
		c.envCtr = c.envTC
		c.divCtr = c.divTC
		c.lfsr.Reset()
		c.noiseBit = 0
	}
}

// Step advances the channels by the given number of clock cycles.
func (a *GBAPU) Step(cycles int) {
	for ; cycles > 0; cycles -= gbTickCycles {
		a.tick()
	}
}

func (a *GBAPU) tick() {
	for i := 0; i < 2; i++ {
		c := &a.ch[i]
		c.divCtr -= gbTickCycles
		for c.divCtr <= 0 {
			if c.divTC <= 0 {
				c.divCtr = gbTickCycles
				break
			}
			c.divCtr += c.divTC * 4
			c.dutyCtr = (c.dutyCtr + 1) & 7
		}
		if c.dutyCtr < c.dutyTC {
			c.lvl = int32(c.volume)
		} else {
			c.lvl = -int32(c.volume)
		}
	}

	w := &a.ch[2]
	w.divCtr -= gbTickCycles
	for w.divCtr <= 0 {
		if w.divTC <= 0 {
			w.divCtr = gbTickCycles
			break
		}
		w.divCtr += w.divTC * 2
		w.wavePos = (w.wavePos + 1) & 31
	}
	w.lvl = 0
	if w.waveShift != 0 {
		sample := a.regs[gbWaveRAM-gbSoundRegFirst+uint16(w.wavePos>>1)]
		if w.wavePos&1 == 0 {
			sample >>= 4
		}
		nibble := int32(sample & 0x0F)
		s := w.waveShift - 1
		w.lvl = 2*(nibble>>s) - (15 >> s)
	}

	n := &a.ch[3]
	n.divCtr -= gbTickCycles
	for n.divCtr <= 0 {
		if n.divTC <= 0 {
			n.divCtr = gbTickCycles
			break
		}
		n.divCtr += n.divTC
		n.noiseBit = n.lfsr.Next()
	}
	if n.noiseBit != 0 {
		n.lvl = int32(n.volume)
	} else {
		n.lvl = -int32(n.volume)
	}

	a.tickCtr += gbTickCycles
	if a.tickCtr >= gbFrameTickCycle {
		a.tickCtr -= gbFrameTickCycle
		a.frameTick()
	}

	if a.synth != nil {
		l, r := a.mix()
		a.synth.Level(l, r)
		a.synth.Advance(gbTickCycles)
	}
}

func (a *GBAPU) mix() (int32, int32) {
	var l, r int32
	for i := range a.ch {
		c := &a.ch[i]
		if !c.running || c.mute {
			continue
		}
		if c.left {
			l += c.lvl
		}
		if c.right {
			r += c.lvl
		}
	}
	l = int32(int64(l) * int64(a.masterL) * 64 * int64(a.master) >> 16)
	r = int32(int64(r) * int64(a.masterR) * 64 * int64(a.master) >> 16)
	return l, r
}

func (a *GBAPU) frameTick() {
	for i := range a.ch {
		c := &a.ch[i]
		if c.lenEnable && c.length > 0 {
			c.length--
			if c.length == 0 {
				c.volume = 0
				c.running = false
			}
		}
		if i != 2 && c.envTC != 0 {
			c.envCtr--
			if c.envCtr <= 0 {
				c.envCtr = c.envTC
				c.volume = min(max(c.volume+c.envDir, 0), 15)
			}
		}
	}

	c := &a.ch[0]
	if c.sweepTC != 0 {
		c.sweepCtr--
		if c.sweepCtr <= 0 {
			c.sweepCtr = c.sweepTC
			delta := c.divTC >> c.sweepShift
			next := c.divTC - delta
			if c.sweepDown {
				next = c.divTC + delta
			}
			if next >= 1 && next <= 2048 {
				c.divTC = next
				c.freq = uint16(2048 - next)
			}
		}
	}

	if a.fade != 0 {
		a.master = min(max(a.master+a.fade, 0), gbMasterMax)
		if a.master == 0 || a.master == gbMasterMax {
			a.fade = 0
		}
	}
}
