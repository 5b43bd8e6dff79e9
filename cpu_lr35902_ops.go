// cpu_lr35902_ops.go - LR35902 instruction implementations and ALU.

package main

type lrALUOp byte

const (
	lrALUAdd lrALUOp = iota
	lrALUAdc
	lrALUSub
	lrALUSbc
	lrALUAnd
	lrALUXor
	lrALUOr
	lrALUCp
)

type lrShiftOp byte

const (
	lrShiftRLC lrShiftOp = iota
	lrShiftRRC
	lrShiftRL
	lrShiftRR
	lrShiftSLA
	lrShiftSRA
	lrShiftSwap
	lrShiftSRL
)

// ALU flag rules: carry and half-carry come from comparing the operand
// before and after the operation, masked to the relevant width.

func (c *CPU_LR35902) add8(value byte, withCarry bool) {
	old := c.A
	result := old + value
	if withCarry && c.Flag(lrFlagC) {
		result++
	}
	c.F = boolFlag(result == 0, lrFlagZ) |
		boolFlag(old&0x0F > result&0x0F, lrFlagH) |
		boolFlag(old > result, lrFlagC)
	c.A = result
}

func (c *CPU_LR35902) sub8(value byte, withCarry bool, store bool) {
	old := c.A
	result := old - value
	if withCarry && c.Flag(lrFlagC) {
		result--
	}
	c.F = lrFlagN |
		boolFlag(result == 0, lrFlagZ) |
		boolFlag(old&0x0F < result&0x0F, lrFlagH) |
		boolFlag(old < result, lrFlagC)
	if store {
		c.A = result
	}
}

func (c *CPU_LR35902) alu(op lrALUOp, value byte) {
	switch op {
	case lrALUAdd:
		c.add8(value, false)
	case lrALUAdc:
		c.add8(value, true)
	case lrALUSub:
		c.sub8(value, false, true)
	case lrALUSbc:
		c.sub8(value, true, true)
	case lrALUAnd:
		c.A &= value
		c.F = boolFlag(c.A == 0, lrFlagZ) | lrFlagH
	case lrALUXor:
		c.A ^= value
		c.F = boolFlag(c.A == 0, lrFlagZ)
	case lrALUOr:
		c.A |= value
		c.F = boolFlag(c.A == 0, lrFlagZ)
	case lrALUCp:
		c.sub8(value, false, false)
	}
}

func boolFlag(cond bool, mask byte) byte {
	if cond {
		return mask
	}
	return 0
}

func (c *CPU_LR35902) opALUReg(op lrALUOp, src byte) {
	c.alu(op, c.readReg8(src))
	if src == 6 {
		c.tick(8)
	} else {
		c.tick(4)
	}
}

func (c *CPU_LR35902) opALUImm(op lrALUOp) {
	c.alu(op, c.fetchByte())
	c.tick(8)
}

func (c *CPU_LR35902) opLDRegReg(dest, src byte) {
	c.writeReg8(dest, c.readReg8(src))
	if dest == 6 || src == 6 {
		c.tick(8)
	} else {
		c.tick(4)
	}
}

func (c *CPU_LR35902) opLDRegImm(dest byte) {
	c.writeReg8(dest, c.fetchByte())
	if dest == 6 {
		c.tick(12)
	} else {
		c.tick(8)
	}
}

// INC and DEC leave C untouched.
func (c *CPU_LR35902) opINC8(reg byte) {
	old := c.readReg8(reg)
	result := old + 1
	c.writeReg8(reg, result)
	c.F = c.F&lrFlagC |
		boolFlag(result == 0, lrFlagZ) |
		boolFlag(old&0x0F > result&0x0F, lrFlagH)
	if reg == 6 {
		c.tick(12)
	} else {
		c.tick(4)
	}
}

func (c *CPU_LR35902) opDEC8(reg byte) {
	old := c.readReg8(reg)
	result := old - 1
	c.writeReg8(reg, result)
	c.F = c.F&lrFlagC | lrFlagN |
		boolFlag(result == 0, lrFlagZ) |
		boolFlag(old&0x0F < result&0x0F, lrFlagH)
	if reg == 6 {
		c.tick(12)
	} else {
		c.tick(4)
	}
}

func (c *CPU_LR35902) opLD16Imm(pair byte) {
	c.writeReg16(pair, c.fetchWord())
	c.tick(12)
}

func (c *CPU_LR35902) opINC16(pair byte) {
	c.writeReg16(pair, c.readReg16(pair)+1)
	c.tick(8)
}

func (c *CPU_LR35902) opDEC16(pair byte) {
	c.writeReg16(pair, c.readReg16(pair)-1)
	c.tick(8)
}

// ADD HL,rr keeps Z.
func (c *CPU_LR35902) opADDHL(pair byte) {
	old := c.HL()
	result := old + c.readReg16(pair)
	c.SetHL(result)
	c.F = c.F&lrFlagZ |
		boolFlag(old&0x0FFF > result&0x0FFF, lrFlagH) |
		boolFlag(old > result, lrFlagC)
	c.tick(8)
}

// POP and PUSH use BC, DE, HL, AF for the pair code.
func (c *CPU_LR35902) opPOP(pair byte) {
	value := c.pop16()
	if pair == 3 {
		c.SetAF(value)
	} else {
		c.writeReg16(pair, value)
	}
	c.tick(12)
}

func (c *CPU_LR35902) opPUSH(pair byte) {
	if pair == 3 {
		c.push16(c.AF())
	} else {
		c.push16(c.readReg16(pair))
	}
	c.tick(16)
}

// addSPSigned computes SP+e with flags taken from the low byte.
func (c *CPU_LR35902) addSPSigned() uint16 {
	offset := c.fetchByte()
	sp := c.SP
	result := sp + uint16(int8(offset))
	low := byte(sp)
	sum := low + offset
	c.F = boolFlag(low&0x0F > sum&0x0F, lrFlagH) |
		boolFlag(low > sum, lrFlagC)
	return result
}

func (c *CPU_LR35902) opLDHLSPE() {
	c.SetHL(c.addSPSigned())
	c.tick(12)
}

func (c *CPU_LR35902) opADDSPE() {
	c.SP = c.addSPSigned()
	c.tick(16)
}

func (c *CPU_LR35902) opLDSPHL() {
	c.SP = c.HL()
	c.tick(8)
}

func (c *CPU_LR35902) opLDBCA() {
	c.write(c.BC(), c.A)
	c.tick(8)
}

func (c *CPU_LR35902) opLDDEA() {
	c.write(c.DE(), c.A)
	c.tick(8)
}

func (c *CPU_LR35902) opLDABC() {
	c.A = c.read(c.BC())
	c.tick(8)
}

func (c *CPU_LR35902) opLDADE() {
	c.A = c.read(c.DE())
	c.tick(8)
}

func (c *CPU_LR35902) opLDHLIA() {
	hl := c.HL()
	c.write(hl, c.A)
	c.SetHL(hl + 1)
	c.tick(8)
}

func (c *CPU_LR35902) opLDHLDA() {
	hl := c.HL()
	c.write(hl, c.A)
	c.SetHL(hl - 1)
	c.tick(8)
}

func (c *CPU_LR35902) opLDAHLI() {
	hl := c.HL()
	c.A = c.read(hl)
	c.SetHL(hl + 1)
	c.tick(8)
}

func (c *CPU_LR35902) opLDAHLD() {
	hl := c.HL()
	c.A = c.read(hl)
	c.SetHL(hl - 1)
	c.tick(8)
}

func (c *CPU_LR35902) opLDNNSP() {
	addr := c.fetchWord()
	c.write(addr, byte(c.SP))
	c.write(addr+1, byte(c.SP>>8))
	c.tick(20)
}

func (c *CPU_LR35902) opLDHNA() {
	c.write(0xFF00|uint16(c.fetchByte()), c.A)
	c.tick(12)
}

func (c *CPU_LR35902) opLDHANN() {
	c.A = c.read(0xFF00 | uint16(c.fetchByte()))
	c.tick(12)
}

func (c *CPU_LR35902) opLDCA() {
	c.write(0xFF00|uint16(c.C), c.A)
	c.tick(8)
}

func (c *CPU_LR35902) opLDAC() {
	c.A = c.read(0xFF00 | uint16(c.C))
	c.tick(8)
}

func (c *CPU_LR35902) opLDNNA() {
	c.write(c.fetchWord(), c.A)
	c.tick(16)
}

func (c *CPU_LR35902) opLDANN() {
	c.A = c.read(c.fetchWord())
	c.tick(16)
}

// Accumulator rotates always clear Z.
func (c *CPU_LR35902) opRLCA() {
	carry := c.A >> 7
	c.A = c.A<<1 | carry
	c.F = boolFlag(carry != 0, lrFlagC)
	c.tick(4)
}

func (c *CPU_LR35902) opRRCA() {
	carry := c.A & 1
	c.A = c.A>>1 | carry<<7
	c.F = boolFlag(carry != 0, lrFlagC)
	c.tick(4)
}

func (c *CPU_LR35902) opRLA() {
	carry := c.A >> 7
	c.A = c.A<<1 | boolFlag(c.Flag(lrFlagC), 1)
	c.F = boolFlag(carry != 0, lrFlagC)
	c.tick(4)
}

func (c *CPU_LR35902) opRRA() {
	carry := c.A & 1
	c.A = c.A>>1 | boolFlag(c.Flag(lrFlagC), 0x80)
	c.F = boolFlag(carry != 0, lrFlagC)
	c.tick(4)
}

// DAA is accepted but does not adjust A.
func (c *CPU_LR35902) opDAA() {
	c.log.WarnOnce("cpu-daa", "cpu", "DAA at 0x%04X not implemented, treated as NOP", c.opAddr)
	c.tick(4)
}

func (c *CPU_LR35902) opCPL() {
	c.A = ^c.A
	c.F |= lrFlagN | lrFlagH
	c.tick(4)
}

func (c *CPU_LR35902) opSCF() {
	c.F = c.F&lrFlagZ | lrFlagC
	c.tick(4)
}

func (c *CPU_LR35902) opCCF() {
	c.F = c.F&lrFlagZ | (c.F^lrFlagC)&lrFlagC
	c.tick(4)
}

func (c *CPU_LR35902) opJR() {
	offset := int8(c.fetchByte())
	c.PC += uint16(offset)
	c.tick(12)
}

func (c *CPU_LR35902) opJRCond(cond byte) {
	offset := int8(c.fetchByte())
	if c.condition(cond) {
		c.PC += uint16(offset)
		c.tick(12)
		return
	}
	c.tick(8)
}

func (c *CPU_LR35902) opJP() {
	c.PC = c.fetchWord()
	c.tick(16)
}

func (c *CPU_LR35902) opJPCond(cond byte) {
	addr := c.fetchWord()
	if c.condition(cond) {
		c.PC = addr
		c.tick(16)
		return
	}
	c.tick(12)
}

func (c *CPU_LR35902) opJPHL() {
	c.PC = c.HL()
	c.tick(4)
}

func (c *CPU_LR35902) opCALL() {
	addr := c.fetchWord()
	c.push16(c.PC)
	c.PC = addr
	c.tick(24)
}

func (c *CPU_LR35902) opCALLCond(cond byte) {
	addr := c.fetchWord()
	if c.condition(cond) {
		c.push16(c.PC)
		c.PC = addr
		c.tick(24)
		return
	}
	c.tick(12)
}

func (c *CPU_LR35902) opRET() {
	c.PC = c.pop16()
	c.tick(16)
}

func (c *CPU_LR35902) opRETCond(cond byte) {
	if c.condition(cond) {
		c.PC = c.pop16()
		c.tick(20)
		return
	}
	c.tick(8)
}

func (c *CPU_LR35902) opRETI() {
	c.PC = c.pop16()
	c.IME = true
	c.tick(16)
}

func (c *CPU_LR35902) opRST(vector uint16) {
	c.push16(c.PC)
	c.PC = vector
	c.tick(16)
}

func (c *CPU_LR35902) shift(op lrShiftOp, value byte) byte {
	var result, carry byte
	switch op {
	case lrShiftRLC:
		carry = value >> 7
		result = value<<1 | carry
	case lrShiftRRC:
		carry = value & 1
		result = value>>1 | carry<<7
	case lrShiftRL:
		carry = value >> 7
		result = value<<1 | boolFlag(c.Flag(lrFlagC), 1)
	case lrShiftRR:
		carry = value & 1
		result = value>>1 | boolFlag(c.Flag(lrFlagC), 0x80)
	case lrShiftSLA:
		carry = value >> 7
		result = value << 1
	case lrShiftSRA:
		carry = value & 1
		result = value>>1 | value&0x80
	case lrShiftSwap:
		result = value<<4 | value>>4
	case lrShiftSRL:
		carry = value & 1
		result = value >> 1
	}
	c.F = boolFlag(result == 0, lrFlagZ) | boolFlag(carry != 0, lrFlagC)
	return result
}

func (c *CPU_LR35902) opCBShift(op lrShiftOp, reg byte) {
	c.writeReg8(reg, c.shift(op, c.readReg8(reg)))
	if reg == 6 {
		c.tick(16)
	} else {
		c.tick(8)
	}
}

func (c *CPU_LR35902) opBIT(bit, reg byte) {
	value := c.readReg8(reg)
	c.F = c.F&lrFlagC | lrFlagH | boolFlag(value&(1<<bit) == 0, lrFlagZ)
	if reg == 6 {
		c.tick(12)
	} else {
		c.tick(8)
	}
}

func (c *CPU_LR35902) opRES(bit, reg byte) {
	c.writeReg8(reg, c.readReg8(reg)&^(1<<bit))
	if reg == 6 {
		c.tick(16)
	} else {
		c.tick(8)
	}
}

func (c *CPU_LR35902) opSET(bit, reg byte) {
	c.writeReg8(reg, c.readReg8(reg)|1<<bit)
	if reg == 6 {
		c.tick(16)
	} else {
		c.tick(8)
	}
}
