package main

import "testing"

type lrTestBus struct {
	mem [0x10000]byte
}

func (b *lrTestBus) Read(addr uint16) byte {
	return b.mem[addr]
}

func (b *lrTestBus) Write(addr uint16, value byte) {
	b.mem[addr] = value
}

type cpuLRTestRig struct {
	bus *lrTestBus
	cpu *CPU_LR35902
}

func newCPULRTestRig() *cpuLRTestRig {
	bus := &lrTestBus{}
	return &cpuLRTestRig{
		bus: bus,
		cpu: NewCPU_LR35902(bus, nil),
	}
}

func (r *cpuLRTestRig) resetAndLoad(start uint16, program []byte) {
	r.bus = &lrTestBus{}
	r.cpu = NewCPU_LR35902(r.bus, nil)
	for i, value := range program {
		r.bus.mem[start+uint16(i)] = value
	}
	r.cpu.PC = start
	r.cpu.SP = 0xD000
}

func requireLREqualU16(t *testing.T, name string, got, want uint16) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = 0x%04X, want 0x%04X", name, got, want)
	}
}

func requireLREqualU8(t *testing.T, name string, got, want byte) {
	t.Helper()
	if got != want {
		t.Fatalf("%s = 0x%02X, want 0x%02X", name, got, want)
	}
}

func requireLRCycles(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Fatalf("cycles = %d, want %d", got, want)
	}
}
