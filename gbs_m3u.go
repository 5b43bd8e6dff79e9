package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// GBSTrackInfo holds per-subsong metadata from an extended M3U playlist
type GBSTrackInfo struct {
	File   string
	Track  int           // 1-based subsong number
	Title  string
	Length time.Duration // 0 when not declared
	Fade   time.Duration
}

// GBSPlaylist maps 1-based subsong numbers to their metadata
type GBSPlaylist struct {
	Tracks map[int]GBSTrackInfo
}

// ParseM3UFile loads a NEZplug-style playlist from disk
func ParseM3UFile(path string) (*GBSPlaylist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pl, err := ParseM3U(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pl, nil
}

// ParseM3U reads lines of the form
//
//	file.gbs::GBS,track,title,time,loop,fade
//
// Blank lines and lines starting with '#' are skipped.
func ParseM3U(r io.Reader) (*GBSPlaylist, error) {
	pl := &GBSPlaylist{Tracks: make(map[int]GBSTrackInfo)}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		info, err := parseM3ULine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		pl.Tracks[info.Track] = info
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pl, nil
}

func parseM3ULine(line string) (GBSTrackInfo, error) {
	var info GBSTrackInfo
	file, rest, ok := strings.Cut(line, "::")
	if !ok {
		return info, fmt.Errorf("missing '::' separator")
	}
	info.File = file

	fields := splitM3UFields(rest)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "GBS") {
		return info, fmt.Errorf("not a GBS entry: %q", rest)
	}
	track, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil || track < 1 {
		return info, fmt.Errorf("invalid track number %q", fields[1])
	}
	info.Track = track
	if len(fields) > 2 {
		info.Title = strings.TrimSpace(fields[2])
	}
	// Field 4 is the loop point. The emulated driver loops on its own, so
	// it is not read.
	if len(fields) > 3 {
		if info.Length, err = m3uTimeField("time", fields[3]); err != nil {
			return info, err
		}
	}
	if len(fields) > 5 {
		if info.Fade, err = m3uTimeField("fade", fields[5]); err != nil {
			return info, err
		}
	}
	return info, nil
}

// m3uTimeField parses an optional time column; empty means not declared
func m3uTimeField(name, value string) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	d, ok := parseM3UTime(value)
	if !ok {
		return 0, fmt.Errorf("invalid %s %q", name, strings.TrimSpace(value))
	}
	return d, nil
}

// splitM3UFields splits on commas, honouring "\," escapes inside titles
func splitM3UFields(s string) []string {
	var fields []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			i++
			cur.WriteByte(s[i])
		case s[i] == ',':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	return append(fields, cur.String())
}

// parseM3UTime parses [[h:]m:]s[.ms]
func parseM3UTime(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var total float64
	for _, part := range parts[:len(parts)-1] {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + float64(n)
	}
	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	total = total*60 + secs
	return time.Duration(total * float64(time.Second)).Round(time.Millisecond), true
}

// Lookup returns the metadata for a 1-based track
func (pl *GBSPlaylist) Lookup(track int) (GBSTrackInfo, bool) {
	if pl == nil {
		return GBSTrackInfo{}, false
	}
	info, ok := pl.Tracks[track]
	return info, ok
}
