package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// subsongOutputPath expands a %d verb with the 1-based subsong number. With
// suffix set and no verb, "-NN" is inserted before the extension instead.
func subsongOutputPath(pattern string, subsong int, suffix bool) string {
	if hasSubsongVerb(pattern) {
		return fmt.Sprintf(pattern, subsong+1)
	}
	if !suffix {
		return pattern
	}
	ext := filepath.Ext(pattern)
	if strings.HasSuffix(strings.ToLower(pattern), ".vgm.gz") {
		ext = ".vgm.gz"
	}
	return fmt.Sprintf("%s-%02d%s", strings.TrimSuffix(pattern, ext), subsong+1, ext)
}

func hasSubsongVerb(pattern string) bool {
	return strings.Contains(pattern, "%d") || strings.Contains(pattern, "%02d")
}

// wavSink writes 16-bit stereo WAV files, one per session or, when the path
// holds a %d verb, one per subsong
type wavSink struct {
	pattern    string
	rate       int
	perSubsong bool

	file *os.File
	enc  *wav.Encoder
	buf  *audio.IntBuffer
	path string
}

func newWAVSink(pattern string, rate int) *wavSink {
	return &wavSink{
		pattern:    pattern,
		rate:       rate,
		perSubsong: hasSubsongVerb(pattern),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}
}

func (w *wavSink) StartSubsong(subsong int, info GBSSubsongInfo) error {
	if w.enc != nil && !w.perSubsong {
		return nil
	}
	if err := w.closeFile(); err != nil {
		return err
	}
	path := subsongOutputPath(w.pattern, subsong, false)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	w.file = f
	w.path = path
	w.enc = wav.NewEncoder(f, w.rate, 16, 2, 1)
	return nil
}

func (w *wavSink) WritePCM(samples []int16) error {
	if w.enc == nil {
		return nil
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(s)
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("wav: %s: %w", w.path, err)
	}
	return nil
}

func (w *wavSink) closeFile() error {
	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.enc = nil
	w.file = nil
	if err != nil {
		return fmt.Errorf("wav: %s: %w", w.path, err)
	}
	return nil
}

func (w *wavSink) Close() error {
	return w.closeFile()
}
