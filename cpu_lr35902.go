// cpu_lr35902.go - Sharp LR35902 (DMG) CPU interpreter for GBS playback.
//
// The core runs single-threaded inside the stepping loop. Step() executes one
// instruction and reports the hardware clock cycles it consumed, so the
// caller can advance the sound hardware and the interrupt timers in lockstep.

package main

import (
	"errors"
	"fmt"
)

// LR35902Bus is the memory interface seen by the CPU.
type LR35902Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

type lr35902State byte

const (
	lr35902Running lr35902State = iota
	lr35902Halted
	lr35902Stopped
)

func (s lr35902State) String() string {
	switch s {
	case lr35902Running:
		return "running"
	case lr35902Halted:
		return "halted"
	case lr35902Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", byte(s))
	}
}

const (
	lrFlagZ = 0x80
	lrFlagN = 0x40
	lrFlagH = 0x20
	lrFlagC = 0x10
)

// cpuStepFault is returned by Step once the CPU can no longer make progress.
const cpuStepFault = -1

// Cycles reported while halted with interrupts enabled.
const lr35902HaltIdleCycles = 16

// Cycles taken to push PC and jump to an interrupt vector.
const lr35902InterruptCycles = 20

var (
	// ErrHaltLockup is reported when HALT is executed with interrupts
	// disabled. Nothing can wake the CPU again in this player.
	ErrHaltLockup = errors.New("cpu: halted with interrupts disabled")
	// ErrCPUStopped is reported after an explicit STOP instruction.
	ErrCPUStopped = errors.New("cpu: stop instruction executed")
)

// UnknownOpcodeError identifies an undecodable instruction.
type UnknownOpcodeError struct {
	Opcode   byte
	Addr     uint16
	Prefixed bool
}

func (e *UnknownOpcodeError) Error() string {
	if e.Prefixed {
		return fmt.Sprintf("cpu: unknown opcode 0xCB 0x%02X at 0x%04X", e.Opcode, e.Addr)
	}
	return fmt.Sprintf("cpu: unknown opcode 0x%02X at 0x%04X", e.Opcode, e.Addr)
}

type CPU_LR35902 struct {
	A byte
	F byte
	B byte
	C byte
	D byte
	E byte
	H byte
	L byte

	SP uint16
	PC uint16

	IME    bool
	state  lr35902State
	fault  error
	Cycles uint64

	stepCycles int
	opAddr     uint16

	bus LR35902Bus
	log *gbLogger

	baseOps [256]func(*CPU_LR35902)
	cbOps   [256]func(*CPU_LR35902)
}

func NewCPU_LR35902(bus LR35902Bus, log *gbLogger) *CPU_LR35902 {
	if log == nil {
		log = newGBLogger(nil, gbLogQuiet)
	}
	cpu := &CPU_LR35902{
		bus: bus,
		log: log,
	}
	cpu.initBaseOps()
	cpu.initCBOps()
	cpu.Reset()
	return cpu
}

func (c *CPU_LR35902) Reset() {
	c.A = 0
	c.F = 0
	c.B = 0
	c.C = 0
	c.D = 0
	c.E = 0
	c.H = 0
	c.L = 0
	c.SP = 0xFFFE
	c.PC = 0
	c.IME = false
	c.state = lr35902Running
	c.fault = nil
	c.Cycles = 0
}

func (c *CPU_LR35902) AF() uint16 {
	return uint16(c.A)<<8 | uint16(c.F)
}

func (c *CPU_LR35902) BC() uint16 {
	return uint16(c.B)<<8 | uint16(c.C)
}

func (c *CPU_LR35902) DE() uint16 {
	return uint16(c.D)<<8 | uint16(c.E)
}

func (c *CPU_LR35902) HL() uint16 {
	return uint16(c.H)<<8 | uint16(c.L)
}

// SetAF drops the low nibble of F; those bits do not exist in hardware.
func (c *CPU_LR35902) SetAF(value uint16) {
	c.A = byte(value >> 8)
	c.F = byte(value) & 0xF0
}

func (c *CPU_LR35902) SetBC(value uint16) {
	c.B = byte(value >> 8)
	c.C = byte(value)
}

func (c *CPU_LR35902) SetDE(value uint16) {
	c.D = byte(value >> 8)
	c.E = byte(value)
}

func (c *CPU_LR35902) SetHL(value uint16) {
	c.H = byte(value >> 8)
	c.L = byte(value)
}

func (c *CPU_LR35902) Flag(mask byte) bool {
	return c.F&mask != 0
}

func (c *CPU_LR35902) SetFlag(mask byte, on bool) {
	if on {
		c.F |= mask
	} else {
		c.F &^= mask
	}
}

// Halted reports whether the CPU is waiting for an interrupt.
func (c *CPU_LR35902) Halted() bool {
	return c.state == lr35902Halted
}

// Stopped reports whether the CPU reached a terminal state.
func (c *CPU_LR35902) Stopped() bool {
	return c.state == lr35902Stopped
}

// Fault returns the condition that stopped the CPU, or nil.
func (c *CPU_LR35902) Fault() error {
	return c.fault
}

// Step executes one instruction and returns the clock cycles it took, or
// cpuStepFault when the CPU is stopped.
func (c *CPU_LR35902) Step() int {
	switch c.state {
	case lr35902Stopped:
		return cpuStepFault
	case lr35902Halted:
		if !c.IME {
			c.stop(ErrHaltLockup)
			return cpuStepFault
		}
		c.Cycles += lr35902HaltIdleCycles
		return lr35902HaltIdleCycles
	}

	c.stepCycles = 0
	c.opAddr = c.PC
	opcode := c.fetchByte()
	c.baseOps[opcode](c)
	if c.state == lr35902Stopped {
		return cpuStepFault
	}
	return c.stepCycles
}

// DeliverInterrupt wakes the CPU, pushes PC and jumps to vector. IME is
// cleared the way the hardware does; RETI sets it again.
func (c *CPU_LR35902) DeliverInterrupt(vector uint16) {
	if c.state == lr35902Stopped {
		return
	}
	c.state = lr35902Running
	c.IME = false
	c.push16(c.PC)
	c.PC = vector
	c.Cycles += lr35902InterruptCycles
}

func (c *CPU_LR35902) stop(err error) {
	c.state = lr35902Stopped
	c.fault = err
	c.log.Warnf("cpu", "%v (PC=0x%04X SP=0x%04X AF=0x%04X)", err, c.PC, c.SP, c.AF())
}

func (c *CPU_LR35902) tick(cycles int) {
	c.stepCycles += cycles
	c.Cycles += uint64(cycles)
}

func (c *CPU_LR35902) read(addr uint16) byte {
	return c.bus.Read(addr)
}

func (c *CPU_LR35902) write(addr uint16, value byte) {
	c.bus.Write(addr, value)
}

func (c *CPU_LR35902) fetchByte() byte {
	value := c.read(c.PC)
	c.PC++
	return value
}

func (c *CPU_LR35902) fetchWord() uint16 {
	lo := c.fetchByte()
	hi := c.fetchByte()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU_LR35902) push16(value uint16) {
	c.SP--
	c.write(c.SP, byte(value>>8))
	c.SP--
	c.write(c.SP, byte(value))
}

func (c *CPU_LR35902) pop16() uint16 {
	lo := c.read(c.SP)
	c.SP++
	hi := c.read(c.SP)
	c.SP++
	return uint16(hi)<<8 | uint16(lo)
}

// readReg8 and writeReg8 use the opcode encoding: B, C, D, E, H, L, (HL), A.
func (c *CPU_LR35902) readReg8(code byte) byte {
	switch code {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read(c.HL())
	default:
		return c.A
	}
}

func (c *CPU_LR35902) writeReg8(code byte, value byte) {
	switch code {
	case 0:
		c.B = value
	case 1:
		c.C = value
	case 2:
		c.D = value
	case 3:
		c.E = value
	case 4:
		c.H = value
	case 5:
		c.L = value
	case 6:
		c.write(c.HL(), value)
	default:
		c.A = value
	}
}

// readReg16 and writeReg16 use the BC, DE, HL, SP encoding of bits 5-4.
func (c *CPU_LR35902) readReg16(code byte) uint16 {
	switch code {
	case 0:
		return c.BC()
	case 1:
		return c.DE()
	case 2:
		return c.HL()
	default:
		return c.SP
	}
}

func (c *CPU_LR35902) writeReg16(code byte, value uint16) {
	switch code {
	case 0:
		c.SetBC(value)
	case 1:
		c.SetDE(value)
	case 2:
		c.SetHL(value)
	default:
		c.SP = value
	}
}

// condition decodes NZ, Z, NC, C from bits 4-3.
func (c *CPU_LR35902) condition(code byte) bool {
	switch code {
	case 0:
		return !c.Flag(lrFlagZ)
	case 1:
		return c.Flag(lrFlagZ)
	case 2:
		return !c.Flag(lrFlagC)
	default:
		return c.Flag(lrFlagC)
	}
}

func (c *CPU_LR35902) initBaseOps() {
	for i := range c.baseOps {
		c.baseOps[i] = (*CPU_LR35902).opUnknown
	}

	c.baseOps[0x00] = (*CPU_LR35902).opNOP
	c.baseOps[0x10] = (*CPU_LR35902).opSTOP
	c.baseOps[0x76] = (*CPU_LR35902).opHALT
	c.baseOps[0xF3] = (*CPU_LR35902).opDI
	c.baseOps[0xFB] = (*CPU_LR35902).opEI
	c.baseOps[0xCB] = (*CPU_LR35902).opCBPrefix

	for opcode := 0x40; opcode <= 0x7F; opcode++ {
		if opcode == 0x76 {
			continue
		}
		dest := byte(opcode>>3) & 0x07
		src := byte(opcode) & 0x07
		c.baseOps[opcode] = func(cpu *CPU_LR35902) {
			cpu.opLDRegReg(dest, src)
		}
	}

	for reg := byte(0); reg < 8; reg++ {
		r := reg
		c.baseOps[0x06|r<<3] = func(cpu *CPU_LR35902) {
			cpu.opLDRegImm(r)
		}
		c.baseOps[0x04|r<<3] = func(cpu *CPU_LR35902) {
			cpu.opINC8(r)
		}
		c.baseOps[0x05|r<<3] = func(cpu *CPU_LR35902) {
			cpu.opDEC8(r)
		}
	}

	for opcode := 0x80; opcode <= 0xBF; opcode++ {
		op := lrALUOp(byte(opcode>>3) & 0x07)
		src := byte(opcode) & 0x07
		c.baseOps[opcode] = func(cpu *CPU_LR35902) {
			cpu.opALUReg(op, src)
		}
	}
	for op := lrALUOp(0); op < 8; op++ {
		aluOp := op
		c.baseOps[0xC6|byte(op)<<3] = func(cpu *CPU_LR35902) {
			cpu.opALUImm(aluOp)
		}
	}

	for pair := byte(0); pair < 4; pair++ {
		rr := pair
		c.baseOps[0x01|rr<<4] = func(cpu *CPU_LR35902) {
			cpu.opLD16Imm(rr)
		}
		c.baseOps[0x03|rr<<4] = func(cpu *CPU_LR35902) {
			cpu.opINC16(rr)
		}
		c.baseOps[0x0B|rr<<4] = func(cpu *CPU_LR35902) {
			cpu.opDEC16(rr)
		}
		c.baseOps[0x09|rr<<4] = func(cpu *CPU_LR35902) {
			cpu.opADDHL(rr)
		}
		c.baseOps[0xC1|rr<<4] = func(cpu *CPU_LR35902) {
			cpu.opPOP(rr)
		}
		c.baseOps[0xC5|rr<<4] = func(cpu *CPU_LR35902) {
			cpu.opPUSH(rr)
		}
	}

	for cc := byte(0); cc < 4; cc++ {
		cond := cc
		c.baseOps[0x20|cond<<3] = func(cpu *CPU_LR35902) {
			cpu.opJRCond(cond)
		}
		c.baseOps[0xC2|cond<<3] = func(cpu *CPU_LR35902) {
			cpu.opJPCond(cond)
		}
		c.baseOps[0xC4|cond<<3] = func(cpu *CPU_LR35902) {
			cpu.opCALLCond(cond)
		}
		c.baseOps[0xC0|cond<<3] = func(cpu *CPU_LR35902) {
			cpu.opRETCond(cond)
		}
	}

	for n := uint16(0); n < 8; n++ {
		vector := n * 8
		c.baseOps[0xC7|byte(vector)] = func(cpu *CPU_LR35902) {
			cpu.opRST(vector)
		}
	}

	c.baseOps[0x02] = (*CPU_LR35902).opLDBCA
	c.baseOps[0x12] = (*CPU_LR35902).opLDDEA
	c.baseOps[0x0A] = (*CPU_LR35902).opLDABC
	c.baseOps[0x1A] = (*CPU_LR35902).opLDADE
	c.baseOps[0x22] = (*CPU_LR35902).opLDHLIA
	c.baseOps[0x32] = (*CPU_LR35902).opLDHLDA
	c.baseOps[0x2A] = (*CPU_LR35902).opLDAHLI
	c.baseOps[0x3A] = (*CPU_LR35902).opLDAHLD
	c.baseOps[0x08] = (*CPU_LR35902).opLDNNSP
	c.baseOps[0xE0] = (*CPU_LR35902).opLDHNA
	c.baseOps[0xF0] = (*CPU_LR35902).opLDHANN
	c.baseOps[0xE2] = (*CPU_LR35902).opLDCA
	c.baseOps[0xF2] = (*CPU_LR35902).opLDAC
	c.baseOps[0xEA] = (*CPU_LR35902).opLDNNA
	c.baseOps[0xFA] = (*CPU_LR35902).opLDANN
	c.baseOps[0xF9] = (*CPU_LR35902).opLDSPHL
	c.baseOps[0xF8] = (*CPU_LR35902).opLDHLSPE
	c.baseOps[0xE8] = (*CPU_LR35902).opADDSPE

	c.baseOps[0x07] = (*CPU_LR35902).opRLCA
	c.baseOps[0x0F] = (*CPU_LR35902).opRRCA
	c.baseOps[0x17] = (*CPU_LR35902).opRLA
	c.baseOps[0x1F] = (*CPU_LR35902).opRRA
	c.baseOps[0x27] = (*CPU_LR35902).opDAA
	c.baseOps[0x2F] = (*CPU_LR35902).opCPL
	c.baseOps[0x37] = (*CPU_LR35902).opSCF
	c.baseOps[0x3F] = (*CPU_LR35902).opCCF

	c.baseOps[0x18] = (*CPU_LR35902).opJR
	c.baseOps[0xC3] = (*CPU_LR35902).opJP
	c.baseOps[0xE9] = (*CPU_LR35902).opJPHL
	c.baseOps[0xCD] = (*CPU_LR35902).opCALL
	c.baseOps[0xC9] = (*CPU_LR35902).opRET
	c.baseOps[0xD9] = (*CPU_LR35902).opRETI
}

func (c *CPU_LR35902) initCBOps() {
	for i := range c.cbOps {
		c.cbOps[i] = (*CPU_LR35902).opCBUnknown
	}
	for opcode := 0; opcode < 0x40; opcode++ {
		op := lrShiftOp(byte(opcode>>3) & 0x07)
		reg := byte(opcode) & 0x07
		c.cbOps[opcode] = func(cpu *CPU_LR35902) {
			cpu.opCBShift(op, reg)
		}
	}
	for opcode := 0x40; opcode < 0x100; opcode++ {
		bit := byte(opcode>>3) & 0x07
		reg := byte(opcode) & 0x07
		switch opcode >> 6 {
		case 1:
			c.cbOps[opcode] = func(cpu *CPU_LR35902) {
				cpu.opBIT(bit, reg)
			}
		case 2:
			c.cbOps[opcode] = func(cpu *CPU_LR35902) {
				cpu.opRES(bit, reg)
			}
		case 3:
			c.cbOps[opcode] = func(cpu *CPU_LR35902) {
				cpu.opSET(bit, reg)
			}
		}
	}
}

func (c *CPU_LR35902) opUnknown() {
	c.stop(&UnknownOpcodeError{Opcode: c.read(c.opAddr), Addr: c.opAddr})
}

func (c *CPU_LR35902) opCBUnknown() {
	c.stop(&UnknownOpcodeError{Opcode: c.read(c.opAddr + 1), Addr: c.opAddr, Prefixed: true})
}

func (c *CPU_LR35902) opCBPrefix() {
	opcode := c.fetchByte()
	c.cbOps[opcode](c)
}

func (c *CPU_LR35902) opNOP() {
	c.tick(4)
}

func (c *CPU_LR35902) opSTOP() {
	c.fetchByte()
	c.tick(4)
	c.stop(ErrCPUStopped)
}

func (c *CPU_LR35902) opHALT() {
	c.state = lr35902Halted
	c.tick(4)
}

func (c *CPU_LR35902) opDI() {
	c.IME = false
	c.tick(4)
}

func (c *CPU_LR35902) opEI() {
	c.IME = true
	c.tick(4)
}
