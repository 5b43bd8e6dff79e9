package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testGBS struct {
	songs     byte
	first     byte
	load      uint16
	init      uint16
	play      uint16
	stack     uint16
	tma       byte
	tac       byte
	title     string
	author    string
	copyright string
	code      []byte
}

// build lays out a version 1 GBS image. The code lands at the load address.
func (g testGBS) build() []byte {
	data := make([]byte, gbsHeaderSize, gbsHeaderSize+len(g.code))
	copy(data, "GBS")
	data[0x03] = 1
	data[0x04] = g.songs
	data[0x05] = g.first
	binary.LittleEndian.PutUint16(data[0x06:], g.load)
	binary.LittleEndian.PutUint16(data[0x08:], g.init)
	binary.LittleEndian.PutUint16(data[0x0A:], g.play)
	binary.LittleEndian.PutUint16(data[0x0C:], g.stack)
	data[0x0E] = g.tma
	data[0x0F] = g.tac
	copy(data[0x10:0x30], g.title)
	copy(data[0x30:0x50], g.author)
	copy(data[0x50:0x70], g.copyright)
	return append(data, g.code...)
}

// newRetGBS returns a file whose init and play routines are a bare RET
func newRetGBS(songs byte) testGBS {
	return testGBS{
		songs: songs,
		first: 1,
		load:  0x0400,
		init:  0x0400,
		play:  0x0401,
		stack: 0xFFFE,
		title: "Test Tune",
		code:  []byte{0xC9, 0xC9},
	}
}

func TestIsGBSData(t *testing.T) {
	if !isGBSData(newRetGBS(1).build()) {
		t.Error("expected GBS signature to be detected")
	}
	if isGBSData([]byte("GBS")) {
		t.Error("expected short data to be rejected")
	}
	if isGBSData(append([]byte("SAP\r\n"), make([]byte, 0x80)...)) {
		t.Error("expected SAP data to be rejected")
	}
}

func TestParseGBSData_Header(t *testing.T) {
	g := newRetGBS(5)
	g.first = 3
	g.tma = 0xC0
	g.tac = 0x04
	g.title = "Title"
	g.author = "  Someone  "
	g.copyright = "1994 Nobody"
	file, err := ParseGBSData(g.build(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := file.Header
	if h.Songs != 5 || h.FirstSong != 3 {
		t.Errorf("songs = %d first = %d, want 5 and 3", h.Songs, h.FirstSong)
	}
	if h.Load != 0x0400 || h.Init != 0x0400 || h.Play != 0x0401 || h.Stack != 0xFFFE {
		t.Errorf("addresses = %04X %04X %04X %04X", h.Load, h.Init, h.Play, h.Stack)
	}
	if h.Title != "Title" || h.Author != "Someone" || h.Copyright != "1994 Nobody" {
		t.Errorf("strings = %q %q %q", h.Title, h.Author, h.Copyright)
	}
	if !file.UsesTimer() {
		t.Error("expected TAC bit 2 to select the timer")
	}
	if file.InterruptEnable() != gbIntTimer {
		t.Errorf("IE = %02X, want timer", file.InterruptEnable())
	}
	if len(file.Data) != 2 {
		t.Errorf("payload length = %d, want 2", len(file.Data))
	}
}

func TestParseGBSData_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   string
	}{
		{"magic", func(d []byte) []byte { d[0] = 'X'; return d }, "signature"},
		{"version", func(d []byte) []byte { d[0x03] = 2; return d }, "version"},
		{"no songs", func(d []byte) []byte { d[0x04] = 0; return d }, "no subsongs"},
		{"low load", func(d []byte) []byte { binary.LittleEndian.PutUint16(d[0x06:], 0x0040); return d }, "load address"},
		{"no data", func(d []byte) []byte { return d[:gbsHeaderSize] }, "no ROM data"},
		{"too large", func(d []byte) []byte {
			binary.LittleEndian.PutUint16(d[0x06:], 0xF000)
			return append(d, make([]byte, gbsMaxROMBanks*gbBankSize)...)
		}, "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGBSData(tt.mutate(newRetGBS(1).build()), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestParseGBSData_FirstSongOutOfRange(t *testing.T) {
	g := newRetGBS(2)
	g.first = 9
	var out strings.Builder
	file, err := ParseGBSData(g.build(), newGBLogger(&out, gbLogWarn))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if file.Header.FirstSong != 1 {
		t.Errorf("first song = %d, want 1", file.Header.FirstSong)
	}
	if !strings.Contains(out.String(), "gbs: first subsong 9") {
		t.Errorf("warning missing, log = %q", out.String())
	}
}

func TestParseGBSFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tune.gbs")
	if err := os.WriteFile(path, newRetGBS(1).build(), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseGBSFile(path, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseGBSFile(filepath.Join(t.TempDir(), "missing.gbs"), nil); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestBuildROM_Layout(t *testing.T) {
	g := newRetGBS(1)
	g.play = 0x1234
	file, err := ParseGBSData(g.build(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rom := file.BuildROM()
	if len(rom) != gbsMinROMSize {
		t.Fatalf("ROM size = %d, want %d", len(rom), gbsMinROMSize)
	}
	requireLREqualU8(t, "code", rom[0x0400], 0xC9)
	requireLREqualU8(t, "header copy", rom[0x0400-gbsHeaderSize], 'G')

	for vector := uint16(0); vector <= 0x38; vector += 8 {
		requireLREqualU8(t, "RST opcode", rom[vector], 0xC3)
		requireLREqualU16(t, "RST target", binary.LittleEndian.Uint16(rom[vector+1:]), 0x0400+vector)
	}
	for _, vector := range []uint16{gbVBlankVector, gbTimerVector} {
		requireLREqualU8(t, "CALL", rom[vector], 0xCD)
		requireLREqualU16(t, "play", binary.LittleEndian.Uint16(rom[vector+1:]), 0x1234)
		requireLREqualU8(t, "RETI", rom[vector+3], 0xD9)
	}
}

func TestBuildROM_RoundsUpToBanks(t *testing.T) {
	g := newRetGBS(1)
	g.code = make([]byte, 3*gbBankSize)
	file, err := ParseGBSData(g.build(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(file.BuildROM()); n != 4*gbBankSize {
		t.Fatalf("ROM size = %d, want %d", n, 4*gbBankSize)
	}
}

func TestGBSStart_ProgramsTimerAndCPU(t *testing.T) {
	g := newRetGBS(3)
	g.tma = 0xF0
	g.tac = 0x05
	file, err := ParseGBSData(g.build(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hw := NewGBHardware(44100, nil)
	if err := file.Start(hw, 2); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	requireLREqualU8(t, "TMA", hw.Bus().Read(gbRegTMA), 0xF0)
	requireLREqualU8(t, "IE", hw.Bus().Read(gbRegIE), gbIntTimer)
	requireLREqualU8(t, "A", hw.CPU().A, 2)
	requireLREqualU16(t, "PC", hw.CPU().PC, gbStubEntry)
	requireLREqualU16(t, "SP", hw.CPU().SP, 0xFFFE)
	if want := int64((256 - 0xF0) * 16); hw.TimerPeriod() != want {
		t.Errorf("timer period = %d, want %d", hw.TimerPeriod(), want)
	}

	if err := file.Start(hw, 3); err == nil {
		t.Error("expected out of range subsong to fail")
	}
}
