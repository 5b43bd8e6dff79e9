// gb_hardware.go - One emulation session: CPU, bus, sound and timers.
//
// Memory map:
//   0x0000-0x3FFF  ROM bank 0
//   0x4000-0x7FFF  ROM bank N (select via writes to 0x2000-0x3FFF)
//   0xA000-0xBFFF  external RAM
//   0xC000-0xDFFF  work RAM
//   0xFF00-0xFFFF  I/O registers, high RAM, IE
//
// Everything else reads as 0xFF.

package main

import (
	"fmt"
)

const (
	gbVBlankCycles   = 70224
	gbLineCycles     = 456
	gbLinesPerFrame  = 154
	gbStubEntry      = 0x0050
	gbVBlankVector   = 0x0040
	gbTimerVector    = 0x0048
	gbIntVBlank      = 0x01
	gbIntTimer       = 0x04
	gbDefaultSamples = 1024

	gbRegP1   = 0xFF00
	gbRegDIV  = 0xFF04
	gbRegTIMA = 0xFF05
	gbRegTMA  = 0xFF06
	gbRegTAC  = 0xFF07
	gbRegIF   = 0xFF0F
	gbRegLCDC = 0xFF40
	gbRegLY   = 0xFF44
	gbRegIE   = 0xFFFF
	gbHRAM    = 0xFF80
)

var gbTimerDividers = [4]int64{1024, 16, 64, 256}

// IOWriteFunc observes sound register writes, timed in cycles since the
// session started.
type IOWriteFunc func(cycles uint64, addr uint16, value byte)

type GBHardware struct {
	bus    *GBBus
	cpu    *CPU_LR35902
	apu    *GBAPU
	synth  *gbImpulseSynth
	mapper *gbMapper
	rom    []byte

	eram *gbRAM
	wram *gbRAM
	hram [0x7F]byte

	ie   byte
	ifl  byte
	lcdc byte
	tima byte
	tma  byte
	tac  byte

	cycles    uint64
	divBase   uint64
	vblankCtr int64
	timerCtr  int64
	timerTC   int64

	nextMapperID int
	onIOWrite    IOWriteFunc
	log          *gbLogger
}

func NewGBHardware(rate int, log *gbLogger) *GBHardware {
	if log == nil {
		log = newGBLogger(nil, gbLogQuiet)
	}
	h := &GBHardware{
		bus:  NewGBBus(),
		eram: newGBRAM(0xA000, 0x2000),
		wram: newGBRAM(0xC000, 0x2000),
		log:  log,
	}
	h.synth = newImpulseSynth(gbClock, rate, gbDefaultSamples)
	h.apu = NewGBAPU(h.synth, log)
	h.cpu = NewCPU_LR35902(h.bus, log)
	return h
}

func (h *GBHardware) CPU() *CPU_LR35902 {
	return h.cpu
}

func (h *GBHardware) APU() *GBAPU {
	return h.apu
}

func (h *GBHardware) Bus() *GBBus {
	return h.bus
}

func (h *GBHardware) Mapper() *gbMapper {
	return h.mapper
}

// Cycles returns the clock cycles executed since Init.
func (h *GBHardware) Cycles() uint64 {
	return h.cycles
}

func (h *GBHardware) SetOutputBuffer(buf []int16) {
	h.synth.SetOutputBuffer(buf)
}

func (h *GBHardware) SetSampleRate(rate int) {
	h.synth.SetSampleRate(rate)
}

func (h *GBHardware) SampleRate() int {
	return h.synth.SampleRate()
}

func (h *GBHardware) SetSoundCallback(fn func([]int16)) {
	h.synth.SetSoundCallback(fn)
}

func (h *GBHardware) SetIOWriteCallback(fn IOWriteFunc) {
	h.onIOWrite = fn
}

// Init resets the whole machine around a new ROM image and rewires the bus.
func (h *GBHardware) Init(rom []byte) error {
	mapper, err := newGBMapper(h.nextMapperID, rom, h.log)
	if err != nil {
		return err
	}
	h.nextMapperID++
	h.mapper = mapper
	h.rom = rom

	h.cpu.Reset()
	h.apu.Reset()
	h.eram.Reset()
	h.wram.Reset()
	h.hram = [0x7F]byte{}
	h.ie = 0
	h.ifl = 0
	h.lcdc = 0
	h.tima = 0
	h.tma = 0
	h.tac = 0
	h.cycles = 0
	h.divBase = 0
	h.vblankCtr = gbVBlankCycles
	h.timerTC = gbTimerDividers[0] * 256
	h.timerCtr = h.timerTC

	h.bus.Clear()
	h.mapper.Install(h.bus)
	h.bus.AddHandler(0xA0, 0xBF, gbRAMWrite, gbRAMRead, h.eram)
	h.bus.AddHandler(0xC0, 0xDF, gbRAMWrite, gbRAMRead, h.wram)
	h.bus.AddHandler(0xFF, 0xFF, gbIOWrite, gbIORead, h)
	return nil
}

// StartSubsong installs the player stub at 0x0050 and points the CPU at it.
// The stub calls init with A holding the subsong, then idles in HALT so the
// interrupt vectors can run the play routine.
func (h *GBHardware) StartSubsong(load, init, stack uint16, subsong byte) error {
	if h.mapper == nil {
		return fmt.Errorf("hardware: no ROM loaded")
	}
	stub := []byte{
		0xCD, byte(init), byte(init >> 8), // CALL init
		0xFB,       // EI
		0x76,       // HALT
		0x18, 0xFD, // JR -3
	}
	copy(h.rom[gbStubEntry:], stub)

	h.cpu.Reset()
	h.cpu.PC = gbStubEntry
	h.cpu.SP = stack
	h.cpu.SetHL(load - 0x70)
	h.cpu.A = subsong
	return nil
}

// Run executes instructions until at least cycles clock cycles have elapsed.
// It returns the cycles executed, or -1 with the CPU fault once the CPU has
// stopped.
func (h *GBHardware) Run(cycles int64) (int64, error) {
	var done int64
	for done < cycles {
		n := h.cpu.Step()
		if n == cpuStepFault {
			return -1, h.cpu.Fault()
		}
		h.advance(n)
		done += int64(n)
		done += h.serviceInterrupts()
	}
	return done, nil
}

func (h *GBHardware) advance(cycles int) {
	h.apu.Step(cycles)
	h.cycles += uint64(cycles)

	h.vblankCtr -= int64(cycles)
	for h.vblankCtr <= 0 {
		h.vblankCtr += gbVBlankCycles
		h.ifl |= gbIntVBlank
	}
	if h.tac&0x04 != 0 {
		h.timerCtr -= int64(cycles)
		for h.timerCtr <= 0 {
			h.timerCtr += h.timerTC
			h.tima = h.tma
			h.ifl |= gbIntTimer
		}
	}
}

// serviceInterrupts delivers the highest-priority pending interrupt that is
// enabled in IE while IME is set. Requests stay latched in IF until then.
func (h *GBHardware) serviceInterrupts() int64 {
	if !h.cpu.IME || h.cpu.Stopped() {
		return 0
	}
	pending := h.ie & h.ifl
	vector := uint16(0)
	switch {
	case pending&gbIntVBlank != 0:
		h.ifl &^= gbIntVBlank
		vector = gbVBlankVector
	case pending&gbIntTimer != 0:
		h.ifl &^= gbIntTimer
		vector = gbTimerVector
	default:
		return 0
	}
	h.cpu.DeliverInterrupt(vector)
	h.advance(lr35902InterruptCycles)
	return lr35902InterruptCycles
}

func (h *GBHardware) reprogramTimer() {
	h.timerTC = (256 - int64(h.tma)) * gbTimerDividers[h.tac&3]
	h.timerCtr = h.timerTC
}

// TimerPeriod returns the cycles between timer interrupts for the current
// TMA and TAC values.
func (h *GBHardware) TimerPeriod() int64 {
	return h.timerTC
}

func (h *GBHardware) ly() byte {
	into := gbVBlankCycles - h.vblankCtr
	return byte((into / gbLineCycles) % gbLinesPerFrame)
}

func gbIORead(ctx any, addr uint16) byte {
	h := ctx.(*GBHardware)
	switch {
	case addr >= gbSoundRegFirst && addr <= gbSoundRegLast:
		return h.apu.Read(addr)
	case addr >= gbHRAM && addr < gbRegIE:
		return h.hram[addr-gbHRAM]
	}
	switch addr {
	case gbRegP1:
		return 0xFF // no buttons pressed
	case gbRegDIV:
		return byte((h.cycles - h.divBase) >> 8)
	case gbRegTIMA:
		return h.tima
	case gbRegTMA:
		return h.tma
	case gbRegTAC:
		return h.tac | 0xF8
	case gbRegIF:
		return h.ifl | 0xE0
	case gbRegLCDC:
		return h.lcdc
	case gbRegLY:
		return h.ly()
	case gbRegIE:
		return h.ie
	}
	h.log.WarnOnce(fmt.Sprintf("io-read-%04X", addr), "io", "read from unimplemented register 0x%04X", addr)
	return 0xFF
}

func gbIOWrite(ctx any, addr uint16, value byte) {
	h := ctx.(*GBHardware)
	switch {
	case addr >= gbSoundRegFirst && addr <= gbSoundRegLast:
		h.apu.Write(addr, value)
		if h.onIOWrite != nil {
			h.onIOWrite(h.cycles, addr, value)
		}
		return
	case addr >= gbHRAM && addr < gbRegIE:
		h.hram[addr-gbHRAM] = value
		return
	}
	switch addr {
	case gbRegP1:
	case gbRegDIV:
		h.divBase = h.cycles
	case gbRegTIMA:
		h.tima = value
	case gbRegTMA:
		h.tma = value
		h.reprogramTimer()
	case gbRegTAC:
		h.tac = value & 0x07
		h.reprogramTimer()
	case gbRegIF:
		h.ifl = value & 0x1F
	case gbRegLCDC:
		h.lcdc = value
	case gbRegIE:
		h.ie = value
	default:
		h.log.WarnOnce(fmt.Sprintf("io-write-%04X", addr), "io", "write 0x%02X to unimplemented register 0x%04X", value, addr)
	}
}
