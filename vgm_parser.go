// vgm_parser.go - VGM/VGZ reader for Game Boy DMG register streams.
//
// DMG writes (cmd 0xB3) are returned as events addressed in the 0xFF10-0xFF3F
// register window. Writes for other chips are skipped by their command size.

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

// DMGEvent is one sound register write at a 44100 Hz sample position
type DMGEvent struct {
	Sample uint64
	Addr   uint16
	Value  byte
}

type VGMFile struct {
	Version      uint32
	ClockHz      uint32 // DMG clock from header (0 if not present)
	Events       []DMGEvent
	TotalSamples uint64
	LoopSamples  uint64
	LoopSample   uint64
	Tags         []string
}

// Title returns the English track title from the GD3 tag
func (v *VGMFile) Title() string {
	if len(v.Tags) == 0 {
		return ""
	}
	return v.Tags[0]
}

func ParseVGMFile(path string) (*VGMFile, error) {
	data, err := readVGMData(path)
	if err != nil {
		return nil, err
	}
	return ParseVGMData(data)
}

// vgmCommandSize is the encoded length of a command the reader skips
func vgmCommandSize(cmd byte) int {
	switch {
	case cmd >= 0x30 && cmd <= 0x3F, cmd == 0x4F, cmd == 0x50:
		return 2
	case cmd >= 0x40 && cmd <= 0x4E, cmd >= 0x51 && cmd <= 0x5F, cmd >= 0xA0 && cmd <= 0xBF:
		return 3
	case cmd >= 0xC0 && cmd <= 0xDF:
		return 4
	case cmd >= 0xE0:
		return 5
	case cmd == 0x90 || cmd == 0x91 || cmd == 0x95:
		return 5
	case cmd == 0x92:
		return 6
	case cmd == 0x93:
		return 11
	case cmd == 0x94:
		return 2
	case cmd == 0x68:
		return 12
	}
	return 1
}

func ParseVGMData(data []byte) (*VGMFile, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("vgm too short")
	}
	if data[0] == 0x1F && data[1] == 0x8B {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		data, err = io.ReadAll(gz)
		if err != nil {
			return nil, err
		}
	}
	if len(data) < 0x40 {
		return nil, fmt.Errorf("vgm too short")
	}
	if !bytes.Equal(data[0:4], []byte("Vgm ")) {
		return nil, fmt.Errorf("invalid vgm header")
	}

	le := binary.LittleEndian
	vgm := &VGMFile{
		Version:      le.Uint32(data[0x08:0x0C]),
		TotalSamples: uint64(le.Uint32(data[0x18:0x1C])),
		LoopSamples:  uint64(le.Uint32(data[0x20:0x24])),
	}
	loopOffset := le.Uint32(data[0x1C:0x20])

	dataOffset := le.Uint32(data[0x34:0x38])
	dataStart := uint32(0x40)
	if vgm.Version >= 0x150 && dataOffset != 0 {
		dataStart = 0x34 + dataOffset
	}
	if int(dataStart) >= len(data) {
		return nil, fmt.Errorf("vgm data offset out of range")
	}
	// The DMG clock field only exists from v1.61 on
	if vgm.Version >= 0x161 && dataStart >= 0x84 {
		vgm.ClockHz = le.Uint32(data[0x80:0x84])
	}
	if gd3 := le.Uint32(data[0x14:0x18]); gd3 != 0 {
		tags, err := parseGD3(data, int(0x14+gd3))
		if err != nil {
			return nil, err
		}
		vgm.Tags = tags
	}

	loopStart := uint32(0)
	if loopOffset != 0 {
		loopStart = 0x1C + loopOffset
	}
	samplePos := uint64(0)
	events := make([]DMGEvent, 0, 1024)

commands:
	for i := int(dataStart); i < len(data); {
		if loopStart != 0 && uint32(i) == loopStart {
			vgm.LoopSample = samplePos
		}
		cmd := data[i]
		switch {
		case cmd == vgmCmdEnd:
			break commands
		case cmd == vgmCmdDMGWrite:
			if i+2 >= len(data) {
				return nil, fmt.Errorf("vgm truncated DMG write at offset %d", i)
			}
			// Bit 7 of the register byte selects a second chip
			if data[i+1]&0x80 == 0 {
				events = append(events, DMGEvent{
					Sample: samplePos,
					Addr:   gbSoundRegFirst + uint16(data[i+1]),
					Value:  data[i+2],
				})
			}
			i += 3
		case cmd == vgmCmdWait:
			if i+2 >= len(data) {
				return nil, fmt.Errorf("vgm truncated wait at offset %d", i)
			}
			samplePos += uint64(le.Uint16(data[i+1 : i+3]))
			i += 3
		case cmd == vgmCmdWait735:
			samplePos += 735
			i++
		case cmd == vgmCmdWait882:
			samplePos += 882
			i++
		case cmd >= 0x70 && cmd <= 0x7F:
			samplePos += uint64(cmd&0x0F) + 1
			i++
		case cmd >= 0x80 && cmd <= 0x8F:
			// YM2612 DAC write plus wait
			samplePos += uint64(cmd & 0x0F)
			i++
		case cmd == 0x67:
			if i+6 >= len(data) {
				return nil, fmt.Errorf("vgm truncated data block at offset %d", i)
			}
			if data[i+1] != 0x66 {
				return nil, fmt.Errorf("vgm invalid data block at offset %d", i)
			}
			i += 7 + int(le.Uint32(data[i+3:i+7]))
		default:
			n := vgmCommandSize(cmd)
			if i+n > len(data) {
				return nil, fmt.Errorf("vgm truncated command 0x%02X at offset %d", cmd, i)
			}
			i += n
		}
	}

	vgm.Events = events
	if len(events) > 0 {
		vgm.TotalSamples = max(vgm.TotalSamples, events[len(events)-1].Sample+1)
	}
	if vgm.LoopSample == 0 && vgm.LoopSamples > 0 && vgm.TotalSamples >= vgm.LoopSamples {
		vgm.LoopSample = vgm.TotalSamples - vgm.LoopSamples
	}
	return vgm, nil
}

// parseGD3 returns the NUL-separated UTF-16LE strings of a GD3 tag
func parseGD3(data []byte, off int) ([]string, error) {
	if off+12 > len(data) || string(data[off:off+4]) != "Gd3 " {
		return nil, fmt.Errorf("vgm GD3 tag out of range")
	}
	size := int(binary.LittleEndian.Uint32(data[off+8:]))
	body := data[off+12:]
	if size > len(body) || size%2 != 0 {
		return nil, fmt.Errorf("vgm GD3 tag truncated")
	}
	units := make([]uint16, size/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(body[i*2:])
	}
	tags := strings.Split(string(utf16.Decode(units)), "\x00")
	if n := len(tags); n > 0 && tags[n-1] == "" {
		tags = tags[:n-1]
	}
	return tags, nil
}

// isVGMPath reports whether path names a VGM rip rather than a GBS file
func isVGMPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".vgm") || strings.HasSuffix(lower, ".vgz") || strings.HasSuffix(lower, ".vgm.gz")
}

func readVGMData(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, 2)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	if header[0] == 0x1F && header[1] == 0x8B {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}

	return io.ReadAll(f)
}
