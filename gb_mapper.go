// gb_mapper.go - Simple ROM banking for 0x0000-0x7FFF.
//
// Bank 0 is fixed at 0x0000-0x3FFF. Writes to 0x2000-0x3FFF select which bank
// appears at 0x4000-0x7FFF. Selecting 0 maps bank 1, and values past the end
// of the image clamp to the last bank.

package main

import (
	"errors"
	"fmt"
)

const gbBankSize = 0x4000

var ErrROMSize = errors.New("mapper: ROM size must be a non-zero multiple of 16 KiB")

// gbROMBank is one 16 KiB slice of the image. Owner is the id of the mapper
// that created it.
type gbROMBank struct {
	Owner  int
	Number int
	data   []byte
}

type gbMapper struct {
	id       int
	banks    []gbROMBank
	selected int
	log      *gbLogger
}

func newGBMapper(id int, rom []byte, log *gbLogger) (*gbMapper, error) {
	if len(rom) == 0 || len(rom)%gbBankSize != 0 {
		return nil, fmt.Errorf("%w (got %d bytes)", ErrROMSize, len(rom))
	}
	m := &gbMapper{id: id, log: log}
	count := len(rom) / gbBankSize
	m.banks = make([]gbROMBank, count)
	for i := range m.banks {
		m.banks[i] = gbROMBank{
			Owner:  id,
			Number: i,
			data:   rom[i*gbBankSize : (i+1)*gbBankSize],
		}
	}
	m.Select(1)
	return m, nil
}

func (m *gbMapper) ID() int {
	return m.id
}

func (m *gbMapper) Banks() int {
	return len(m.banks)
}

func (m *gbMapper) Selected() int {
	return m.selected
}

// Bank returns the descriptor for bank n.
func (m *gbMapper) Bank(n int) *gbROMBank {
	return &m.banks[n]
}

func (m *gbMapper) Select(value byte) {
	bank := int(value)
	if bank == 0 {
		bank = 1
	}
	if bank >= len(m.banks) {
		last := len(m.banks) - 1
		if bank != 1 || last != 0 {
			m.log.WarnOnce(fmt.Sprintf("mapper-%d-clamp", m.id), "mapper",
				"bank %d selected but ROM has %d banks, using bank %d", bank, len(m.banks), last)
		}
		bank = last
	}
	m.selected = bank
}

// Install wires the fixed and switchable ROM windows into bus pages 0x00-0x7F.
func (m *gbMapper) Install(bus *GBBus) {
	bus.AddHandler(0x00, 0x3F, gbMapperWrite, gbMapperReadFixed, m)
	bus.AddHandler(0x40, 0x7F, gbMapperWrite, gbMapperReadBanked, m)
}

func gbMapperReadFixed(ctx any, addr uint16) byte {
	m := ctx.(*gbMapper)
	return m.banks[0].data[addr]
}

func gbMapperReadBanked(ctx any, addr uint16) byte {
	m := ctx.(*gbMapper)
	return m.banks[m.selected].data[addr-gbBankSize]
}

func gbMapperWrite(ctx any, addr uint16, value byte) {
	m := ctx.(*gbMapper)
	if addr >= 0x2000 && addr < 0x4000 {
		m.Select(value)
	}
}
