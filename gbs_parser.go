package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const (
	gbsHeaderSize   = 0x70
	gbsMinLoadAddr  = 0x0060
	gbsMaxROMBanks  = 256
	gbsMinROMSize   = 2 * gbBankSize
	gbsStringLength = 32
)

var gbsMagic = []byte("GBS")

// GBSHeader represents the parsed GBS v1 header
type GBSHeader struct {
	Version   byte   // Format version (1)
	Songs     int    // Number of subsongs
	FirstSong int    // Default subsong, 1-based
	Load      uint16 // Address the data is loaded at
	Init      uint16 // Init routine, called with A = subsong
	Play      uint16 // Play routine, called from the interrupt vector
	Stack     uint16 // Initial stack pointer
	TMA       byte   // Timer modulo
	TAC       byte   // Timer control
	Title     string
	Author    string
	Copyright string
}

// GBSFile represents a fully parsed GBS file
type GBSFile struct {
	Header GBSHeader
	Data   []byte // ROM data following the header
	raw    []byte // First 0x70 bytes, copied into the image below the load address
}

func isGBSData(data []byte) bool {
	return len(data) >= gbsHeaderSize && bytes.HasPrefix(data, gbsMagic)
}

// ParseGBSFile loads and parses a GBS file from disk
func ParseGBSFile(path string, log *gbLogger) (*GBSFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	file, err := ParseGBSData(data, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// ParseGBSData parses GBS data from a byte slice
func ParseGBSData(data []byte, log *gbLogger) (*GBSFile, error) {
	if !isGBSData(data) {
		return nil, errors.New("not a valid GBS file: missing GBS signature")
	}

	h := GBSHeader{
		Version:   data[0x03],
		Songs:     int(data[0x04]),
		FirstSong: int(data[0x05]),
		Load:      binary.LittleEndian.Uint16(data[0x06:]),
		Init:      binary.LittleEndian.Uint16(data[0x08:]),
		Play:      binary.LittleEndian.Uint16(data[0x0A:]),
		Stack:     binary.LittleEndian.Uint16(data[0x0C:]),
		TMA:       data[0x0E],
		TAC:       data[0x0F],
		Title:     gbsString(data[0x10:0x30]),
		Author:    gbsString(data[0x30:0x50]),
		Copyright: gbsString(data[0x50:0x70]),
	}

	if h.Version != 1 {
		return nil, fmt.Errorf("unsupported GBS version %d", h.Version)
	}
	if h.Songs < 1 {
		return nil, errors.New("GBS file declares no subsongs")
	}
	if h.FirstSong < 1 || h.FirstSong > h.Songs {
		log.Warnf("gbs", "first subsong %d out of range 1..%d, using 1", h.FirstSong, h.Songs)
		h.FirstSong = 1
	}
	if h.Load < gbsMinLoadAddr {
		return nil, fmt.Errorf("load address 0x%04X overlaps the player stub (minimum 0x%04X)", h.Load, gbsMinLoadAddr)
	}
	if h.TAC&0x80 != 0 {
		log.Warnf("gbs", "TAC requests CGB double speed, ignored")
	}

	payload := data[gbsHeaderSize:]
	if len(payload) == 0 {
		return nil, errors.New("GBS file has no ROM data")
	}
	if int(h.Load)+len(payload) > gbsMaxROMBanks*gbBankSize {
		return nil, fmt.Errorf("ROM data of %d bytes at 0x%04X exceeds %d banks", len(payload), h.Load, gbsMaxROMBanks)
	}

	return &GBSFile{
		Header: h,
		Data:   payload,
		raw:    data[:gbsHeaderSize],
	}, nil
}

// gbsString trims a fixed 32-byte field at its first NUL
func gbsString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(bytes.TrimSpace(field))
}

// UsesTimer reports whether the play routine is driven by the timer interrupt
func (f *GBSFile) UsesTimer() bool {
	return f.Header.TAC&0x04 != 0
}

// InterruptEnable returns the IE value selecting the play interrupt
func (f *GBSFile) InterruptEnable() byte {
	if f.UsesTimer() {
		return gbIntTimer
	}
	return gbIntVBlank
}

// BuildROM lays the data out at its load address inside a zero-padded image
// and fills in the RST and interrupt vectors
func (f *GBSFile) BuildROM() []byte {
	h := f.Header
	end := int(h.Load) + len(f.Data)
	size := (end + gbBankSize - 1) / gbBankSize * gbBankSize
	size = max(size, gbsMinROMSize)

	rom := make([]byte, size)
	copy(rom[h.Load:], f.Data)
	if int(h.Load)-gbsHeaderSize >= gbsMinLoadAddr {
		copy(rom[int(h.Load)-gbsHeaderSize:], f.raw)
	}

	for vector := uint16(0); vector <= 0x38; vector += 8 {
		target := h.Load + vector
		rom[vector] = 0xC3 // JP nn
		rom[vector+1] = byte(target)
		rom[vector+2] = byte(target >> 8)
	}
	for _, vector := range []uint16{gbVBlankVector, gbTimerVector} {
		rom[vector] = 0xCD // CALL play
		rom[vector+1] = byte(h.Play)
		rom[vector+2] = byte(h.Play >> 8)
		rom[vector+3] = 0xD9 // RETI
	}
	return rom
}

// Start loads a fresh image into the hardware and prepares the CPU to run
// the given 0-based subsong
func (f *GBSFile) Start(hw *GBHardware, subsong int) error {
	if subsong < 0 || subsong >= f.Header.Songs {
		return fmt.Errorf("subsong %d out of range 1..%d", subsong+1, f.Header.Songs)
	}
	if err := hw.Init(f.BuildROM()); err != nil {
		return fmt.Errorf("load GBS image: %w", err)
	}
	hw.Bus().Write(gbRegTMA, f.Header.TMA)
	hw.Bus().Write(gbRegTAC, f.Header.TAC)
	hw.Bus().Write(gbRegIE, f.InterruptEnable())
	return hw.StartSubsong(f.Header.Load, f.Header.Init, f.Header.Stack, byte(subsong))
}
