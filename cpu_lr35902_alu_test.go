package main

import "testing"

func TestLR35902ALUAddHalfCarry(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x80}) // ADD A,B
	rig.cpu.A = 0x0F
	rig.cpu.B = 0x01

	rig.cpu.Step()

	requireLREqualU8(t, "A", rig.cpu.A, 0x10)
	requireLREqualU8(t, "F", rig.cpu.F, lrFlagH)
}

func TestLR35902ALUAddWrap(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x80}) // ADD A,B
	rig.cpu.A = 0xFF
	rig.cpu.B = 0x01

	rig.cpu.Step()

	requireLREqualU8(t, "A", rig.cpu.A, 0x00)
	requireLREqualU8(t, "F", rig.cpu.F, lrFlagZ|lrFlagH|lrFlagC)
}

func TestLR35902ALUAdcWithCarry(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x88}) // ADC A,B
	rig.cpu.A = 0xFF
	rig.cpu.B = 0x00
	rig.cpu.F = lrFlagC

	rig.cpu.Step()

	requireLREqualU8(t, "A", rig.cpu.A, 0x00)
	requireLREqualU8(t, "F", rig.cpu.F, lrFlagZ|lrFlagH|lrFlagC)
}

func TestLR35902ALUSub(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x90}) // SUB B
	rig.cpu.A = 0x10
	rig.cpu.B = 0x01

	rig.cpu.Step()

	requireLREqualU8(t, "A", rig.cpu.A, 0x0F)
	requireLREqualU8(t, "F", rig.cpu.F, lrFlagN|lrFlagH)
}

func TestLR35902ALUSubBorrow(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x90}) // SUB B
	rig.cpu.A = 0x00
	rig.cpu.B = 0x01

	rig.cpu.Step()

	requireLREqualU8(t, "A", rig.cpu.A, 0xFF)
	requireLREqualU8(t, "F", rig.cpu.F, lrFlagN|lrFlagH|lrFlagC)
}

func TestLR35902ALUCompareKeepsA(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0xFE, 0x42}) // CP 0x42
	rig.cpu.A = 0x42

	cycles := rig.cpu.Step()

	requireLRCycles(t, cycles, 8)
	requireLREqualU8(t, "A", rig.cpu.A, 0x42)
	requireLREqualU8(t, "F", rig.cpu.F, lrFlagZ|lrFlagN)
}

func TestLR35902ALULogic(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0xA0, 0xAF, 0xB1}) // AND B; XOR A; OR C
	rig.cpu.A = 0xF0
	rig.cpu.B = 0x0F
	rig.cpu.C = 0x81

	rig.cpu.Step()
	requireLREqualU8(t, "A after AND", rig.cpu.A, 0x00)
	requireLREqualU8(t, "F after AND", rig.cpu.F, lrFlagZ|lrFlagH)

	rig.cpu.A = 0x55
	rig.cpu.Step()
	requireLREqualU8(t, "A after XOR", rig.cpu.A, 0x00)
	requireLREqualU8(t, "F after XOR", rig.cpu.F, lrFlagZ)

	rig.cpu.Step()
	requireLREqualU8(t, "A after OR", rig.cpu.A, 0x81)
	requireLREqualU8(t, "F after OR", rig.cpu.F, 0x00)
}

func TestLR35902IncDecPreserveCarry(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x04, 0x0D, 0x0D}) // INC B; DEC C; DEC C
	rig.cpu.B = 0x0F
	rig.cpu.C = 0x01
	rig.cpu.F = lrFlagC

	rig.cpu.Step()
	requireLREqualU8(t, "B", rig.cpu.B, 0x10)
	requireLREqualU8(t, "F after INC", rig.cpu.F, lrFlagH|lrFlagC)

	rig.cpu.Step()
	requireLREqualU8(t, "C", rig.cpu.C, 0x00)
	requireLREqualU8(t, "F after DEC", rig.cpu.F, lrFlagZ|lrFlagN|lrFlagC)

	rig.cpu.Step()
	requireLREqualU8(t, "C", rig.cpu.C, 0xFF)
	requireLREqualU8(t, "F after DEC wrap", rig.cpu.F, lrFlagN|lrFlagH|lrFlagC)
}

func TestLR35902AddHLKeepsZero(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x09}) // ADD HL,BC
	rig.cpu.SetHL(0x0FFF)
	rig.cpu.SetBC(0x0001)
	rig.cpu.F = lrFlagZ | lrFlagN

	cycles := rig.cpu.Step()

	requireLRCycles(t, cycles, 8)
	requireLREqualU16(t, "HL", rig.cpu.HL(), 0x1000)
	requireLREqualU8(t, "F", rig.cpu.F, lrFlagZ|lrFlagH)
}

func TestLR35902AddSPSigned(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0xE8, 0x01, 0xF8, 0xFF}) // ADD SP,1; LD HL,SP-1
	rig.cpu.SP = 0x00FF
	rig.cpu.F = lrFlagZ | lrFlagN

	requireLRCycles(t, rig.cpu.Step(), 16)
	requireLREqualU16(t, "SP", rig.cpu.SP, 0x0100)
	requireLREqualU8(t, "F after ADD SP", rig.cpu.F, lrFlagH|lrFlagC)

	rig.cpu.SP = 0x1000
	requireLRCycles(t, rig.cpu.Step(), 12)
	requireLREqualU16(t, "HL", rig.cpu.HL(), 0x0FFF)
	requireLREqualU8(t, "F after LD HL,SP-1", rig.cpu.F, 0x00)
}

func TestLR35902PopAFMasksLowNibble(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0xF1}) // POP AF
	rig.bus.mem[0xD000] = 0xFF
	rig.bus.mem[0xD001] = 0x12

	rig.cpu.Step()

	requireLREqualU8(t, "A", rig.cpu.A, 0x12)
	requireLREqualU8(t, "F", rig.cpu.F, 0xF0)
	requireLREqualU16(t, "SP", rig.cpu.SP, 0xD002)
}

func TestLR35902AccumulatorRotatesClearZero(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x07, 0x17}) // RLCA; RLA
	rig.cpu.A = 0x80
	rig.cpu.F = lrFlagZ

	rig.cpu.Step()
	requireLREqualU8(t, "A after RLCA", rig.cpu.A, 0x01)
	requireLREqualU8(t, "F after RLCA", rig.cpu.F, lrFlagC)

	rig.cpu.A = 0x80
	rig.cpu.F = 0
	rig.cpu.Step()
	requireLREqualU8(t, "A after RLA", rig.cpu.A, 0x00)
	requireLREqualU8(t, "F after RLA", rig.cpu.F, lrFlagC)
}

func TestLR35902DAAIsNoOp(t *testing.T) {
	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, []byte{0x27}) // DAA
	rig.cpu.A = 0x1A
	rig.cpu.F = lrFlagN

	requireLRCycles(t, rig.cpu.Step(), 4)
	requireLREqualU8(t, "A", rig.cpu.A, 0x1A)
	requireLREqualU8(t, "F", rig.cpu.F, lrFlagN)
}

// Every operand pair is checked against the before/after comparison rules.
func TestLR35902ALUComparisonRules(t *testing.T) {
	type aluCase struct {
		name   string
		opcode byte
		sub    bool
		carry  bool
	}
	ops := []aluCase{
		{"ADD", 0x80, false, false},
		{"ADC", 0x88, false, true},
		{"SUB", 0x90, true, false},
		{"SBC", 0x98, true, true},
		{"CP", 0xB8, true, false},
	}

	rig := newCPULRTestRig()
	rig.resetAndLoad(0x0000, nil)
	for _, op := range ops {
		rig.bus.mem[0] = op.opcode
		for carryIn := 0; carryIn < 2; carryIn++ {
			for a := 0; a < 256; a++ {
				for b := 0; b < 256; b++ {
					rig.cpu.PC = 0
					rig.cpu.A = byte(a)
					rig.cpu.B = byte(b)
					rig.cpu.F = boolFlag(carryIn == 1, lrFlagC)

					rig.cpu.Step()

					old := byte(a)
					var result byte
					extra := byte(0)
					if op.carry && carryIn == 1 {
						extra = 1
					}
					if op.sub {
						result = old - byte(b) - extra
					} else {
						result = old + byte(b) + extra
					}
					if op.opcode != 0xB8 && rig.cpu.A != result {
						t.Fatalf("%s A=%02X B=%02X C=%d: A = %02X, want %02X", op.name, a, b, carryIn, rig.cpu.A, result)
					}

					var wantC, wantH bool
					if op.sub {
						wantC = old < result
						wantH = old&0x0F < result&0x0F
					} else {
						wantC = old > result
						wantH = old&0x0F > result&0x0F
					}
					want := boolFlag(result == 0, lrFlagZ) |
						boolFlag(op.sub, lrFlagN) |
						boolFlag(wantH, lrFlagH) |
						boolFlag(wantC, lrFlagC)
					if rig.cpu.F != want {
						t.Fatalf("%s A=%02X B=%02X C=%d: F = %02X, want %02X", op.name, a, b, carryIn, rig.cpu.F, want)
					}
				}
			}
		}
	}
}
