// vgm_writer.go - VGM 1.61 export of sound register writes.
//
// Each subsong becomes its own file. Register writes are buffered with their
// cycle stamps turned into 44100 Hz wait commands, and the file is written
// when the subsong ends because the header needs the total sample count.

package main

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf16"
)

const (
	vgmSampleRate  = 44100
	vgmVersion     = 0x161
	vgmHeaderSize  = 0x100
	vgmDataOffset  = 0xCC // relative to 0x34
	vgmGD3Version  = 0x100
	vgmMaxWait     = 0xFFFF
	vgmCmdDMGWrite = 0xB3
	vgmCmdWait     = 0x61
	vgmCmdWait735  = 0x62
	vgmCmdWait882  = 0x63
	vgmCmdEnd      = 0x66
)

// vgmSink records one VGM file per subsong. It takes no PCM; register
// writes arrive through OnIOWrite.
type vgmSink struct {
	pattern   string
	game      string
	author    string
	copyright string

	open     bool
	subsong  int
	title    string
	data     bytes.Buffer
	samples  uint64 // samples emitted as waits so far
	lastPath string
}

func newVGMSink(pattern string, header GBSHeader) *vgmSink {
	return &vgmSink{
		pattern:   pattern,
		game:      header.Title,
		author:    header.Author,
		copyright: header.Copyright,
	}
}

func (v *vgmSink) StartSubsong(subsong int, info GBSSubsongInfo) error {
	v.open = true
	v.subsong = subsong
	v.title = info.Title
	v.data.Reset()
	v.samples = 0
	// Power-on state so the file plays from a clean APU
	v.writeReg(gbRegNR52, 0x80)
	v.writeReg(gbRegNR50, 0x77)
	v.writeReg(gbRegNR51, 0xF3)
	return nil
}

// OnIOWrite matches IOWriteFunc. Cycles restart at zero with every subsong.
func (v *vgmSink) OnIOWrite(cycles uint64, addr uint16, value byte) {
	if !v.open || addr < gbSoundRegFirst || addr > gbSoundRegLast {
		return
	}
	v.waitUntil(cycles)
	v.writeReg(addr, value)
}

func (v *vgmSink) writeReg(addr uint16, value byte) {
	v.data.Write([]byte{vgmCmdDMGWrite, byte(addr - gbSoundRegFirst), value})
}

func (v *vgmSink) waitUntil(cycles uint64) {
	target := cycles * vgmSampleRate / gbClock
	if target <= v.samples {
		return
	}
	wait := target - v.samples
	v.samples = target
	for wait > 0 {
		switch {
		case wait == 735:
			v.data.WriteByte(vgmCmdWait735)
			return
		case wait == 882:
			v.data.WriteByte(vgmCmdWait882)
			return
		}
		n := min(wait, vgmMaxWait)
		v.data.WriteByte(vgmCmdWait)
		v.data.Write(binary.LittleEndian.AppendUint16(nil, uint16(n)))
		wait -= n
	}
}

func (v *vgmSink) EndSubsong(subsong int, cycles int64) error {
	if !v.open {
		return nil
	}
	v.open = false
	if cycles > 0 {
		v.waitUntil(uint64(cycles))
	}
	v.data.WriteByte(vgmCmdEnd)

	path := subsongOutputPath(v.pattern, subsong, true)
	v.lastPath = path
	if err := writeVGMFile(path, v.build()); err != nil {
		return fmt.Errorf("vgm: %s: %w", path, err)
	}
	return nil
}

// build assembles header, command stream and GD3 tag
func (v *vgmSink) build() []byte {
	gd3 := vgmGD3(v.title, v.game, v.author, v.copyright)
	out := make([]byte, vgmHeaderSize, vgmHeaderSize+v.data.Len()+len(gd3))
	le := binary.LittleEndian
	copy(out, "Vgm ")
	le.PutUint32(out[0x08:], vgmVersion)
	le.PutUint32(out[0x18:], uint32(v.samples))
	le.PutUint32(out[0x34:], vgmDataOffset)
	le.PutUint32(out[0x80:], gbClock)
	out = append(out, v.data.Bytes()...)
	le.PutUint32(out[0x14:], uint32(len(out)-0x14))
	out = append(out, gd3...)
	le.PutUint32(out[0x04:], uint32(len(out)-0x04))
	return out
}

// vgmGD3 builds the tag: English and Japanese track, game, system and
// author names, then date, ripper and notes, all UTF-16LE with NUL
// terminators.
func vgmGD3(title, game, author, copyright string) []byte {
	fields := []string{
		title, "",
		game, "",
		"Nintendo Game Boy", "",
		author, "",
		copyright,
		"",
		"",
	}
	var body []byte
	for _, f := range fields {
		for _, u := range utf16.Encode([]rune(f)) {
			body = binary.LittleEndian.AppendUint16(body, u)
		}
		body = append(body, 0, 0)
	}
	out := []byte("Gd3 ")
	out = binary.LittleEndian.AppendUint32(out, vgmGD3Version)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	return append(out, body...)
}

func vgmCompressed(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".vgz") || strings.HasSuffix(lower, ".vgm.gz")
}

func writeVGMFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	var w io.Writer = f
	var gz *gzip.Writer
	if vgmCompressed(path) {
		gz = gzip.NewWriter(f)
		w = gz
	}
	_, err = w.Write(data)
	if gz != nil {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (v *vgmSink) WritePCM([]int16) error {
	return nil
}

func (v *vgmSink) Close() error {
	return nil
}
