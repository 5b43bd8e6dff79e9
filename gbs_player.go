// gbs_player.go - GBS subsong lifecycle on top of the emulated hardware.
//
// Step advances emulated time in slices. Between slices the player checks
// the subsong length, the silence timeout and a running fadeout, and moves
// on to the next subsong when one of them expires.

package main

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionEnd means the play order has no further subsong
var ErrSessionEnd = errors.New("player: no more subsongs")

// PCMSink consumes interleaved 16-bit stereo buffers as they are flushed
type PCMSink interface {
	WritePCM(samples []int16) error
	Close() error
}

// SubsongSink is notified when a new subsong starts, before any of its audio
type SubsongSink interface {
	StartSubsong(subsong int, info GBSSubsongInfo) error
}

// SubsongEndSink is told how many cycles a subsong ran once it is over
type SubsongEndSink interface {
	EndSubsong(subsong int, cycles int64) error
}

// IOWriteSink observes sound register writes as they happen
type IOWriteSink interface {
	OnIOWrite(cycles uint64, addr uint16, value byte)
}

// GBSSubsongInfo describes the subsong being played
type GBSSubsongInfo struct {
	Index  int // 0-based
	Songs  int
	Title  string
	Length time.Duration // declared or timeout length, 0 when unbounded
}

// NextSubsongFunc picks the subsong to play after current.
type NextSubsongFunc func(current int) (int, bool)

type GBSPlayer struct {
	file     *GBSFile
	hw       *GBHardware
	cfg      GBSConfig
	playlist *GBSPlaylist
	order    *gbsSubsongOrder
	log      *gbLogger

	current       int
	elapsed       int64 // cycles into the subsong
	silentSamples int64
	fading        bool
	fadeEnd       int64
	paused        bool
	started       bool

	next    NextSubsongFunc
	sinks   []PCMSink
	ioSinks []IOWriteSink
	sinkErr error
	status  [gbChannels]GBChannelStatus
	sleep   func(time.Duration)
}

func NewGBSPlayer(file *GBSFile, cfg GBSConfig, playlist *GBSPlaylist, log *gbLogger) (*GBSPlayer, error) {
	if log == nil {
		log = newGBLogger(nil, gbLogQuiet)
	}
	songs := file.Header.Songs
	first, last := 0, songs-1
	if cfg.StartSong > 0 {
		first = min(cfg.StartSong, songs) - 1
	}
	if cfg.StopSong > 0 {
		last = min(max(cfg.StopSong, first+1), songs) - 1
	}

	p := &GBSPlayer{
		file:     file,
		cfg:      cfg,
		playlist: playlist,
		log:      log,
		sleep:    time.Sleep,
	}
	p.order = newGBSSubsongOrder(cfg.Order, first, last, cfg.Loop, cfg.Seed)
	p.next = p.order.Next

	p.hw = NewGBHardware(cfg.Rate, log)
	frames := cfg.BufferFrames
	if frames <= 0 {
		frames = gbDefaultSamples
	}
	p.hw.SetOutputBuffer(make([]int16, frames*2))
	p.hw.SetSoundCallback(p.onSound)
	for ch, mute := range cfg.Mute {
		p.hw.APU().SetMute(ch, mute)
	}

	start := first
	if cfg.StartSong == 0 {
		start = file.Header.FirstSong - 1
	}
	if err := p.startSubsong(p.order.Start(start)); err != nil {
		return nil, err
	}
	return p, nil
}

// Hardware exposes the emulated machine, mainly for export sinks
func (p *GBSPlayer) Hardware() *GBHardware {
	return p.hw
}

// AddSink registers a PCM consumer
func (p *GBSPlayer) AddSink(sink PCMSink) {
	p.sinks = append(p.sinks, sink)
	if s, ok := sink.(IOWriteSink); ok {
		p.ioSinks = append(p.ioSinks, s)
		p.hw.SetIOWriteCallback(p.onIOWrite)
	}
	if s, ok := sink.(SubsongSink); ok {
		if err := s.StartSubsong(p.current, p.SubsongInfo()); err != nil {
			p.sinkErr = err
		}
	}
}

// SetNextSubsong replaces the play order callback
func (p *GBSPlayer) SetNextSubsong(fn NextSubsongFunc) {
	p.next = fn
}

func (p *GBSPlayer) Current() int {
	return p.current
}

func (p *GBSPlayer) Paused() bool {
	return p.paused
}

func (p *GBSPlayer) Elapsed() time.Duration {
	return time.Duration(float64(p.elapsed) / gbClock * float64(time.Second))
}

// Seed returns the seed of the current shuffle permutation
func (p *GBSPlayer) Seed() int64 {
	return p.order.Seed()
}

// Channels returns the channel snapshot taken at the end of the last Step
func (p *GBSPlayer) Channels() [gbChannels]GBChannelStatus {
	return p.status
}

func (p *GBSPlayer) SubsongInfo() GBSSubsongInfo {
	info := GBSSubsongInfo{
		Index:  p.current,
		Songs:  p.file.Header.Songs,
		Title:  p.file.Header.Title,
		Length: p.subsongLength(),
	}
	if track, ok := p.playlist.Lookup(p.current + 1); ok && track.Title != "" {
		info.Title = track.Title
	}
	return info
}

// subsongLength is the declared playlist length, else the timeout
func (p *GBSPlayer) subsongLength() time.Duration {
	if track, ok := p.playlist.Lookup(p.current + 1); ok && track.Length > 0 {
		return track.Length
	}
	return p.cfg.SubsongTimeout
}

func (p *GBSPlayer) fadeout() time.Duration {
	if track, ok := p.playlist.Lookup(p.current + 1); ok && track.Fade > 0 {
		return track.Fade
	}
	return p.cfg.Fadeout
}

func (p *GBSPlayer) endSubsong() error {
	if !p.started {
		return nil
	}
	p.started = false
	for _, sink := range p.sinks {
		if s, ok := sink.(SubsongEndSink); ok {
			if err := s.EndSubsong(p.current, p.elapsed); err != nil {
				return fmt.Errorf("end subsong %d: %w", p.current+1, err)
			}
		}
	}
	return nil
}

func (p *GBSPlayer) startSubsong(subsong int) error {
	if err := p.endSubsong(); err != nil {
		return err
	}
	if err := p.file.Start(p.hw, subsong); err != nil {
		return err
	}
	p.started = true
	p.current = subsong
	p.elapsed = 0
	p.silentSamples = 0
	p.fading = false
	p.hw.APU().SetMaster(gbMasterMax)
	p.hw.APU().SetFade(0)
	p.log.Infof("player", "subsong %d/%d", subsong+1, p.file.Header.Songs)

	info := p.SubsongInfo()
	for _, sink := range p.sinks {
		if s, ok := sink.(SubsongSink); ok {
			if err := s.StartSubsong(subsong, info); err != nil {
				return fmt.Errorf("start subsong %d: %w", subsong+1, err)
			}
		}
	}
	return nil
}

// Step emulates ms milliseconds and runs the subsong lifecycle checks. It
// returns the cycles executed, or -1 with ErrSessionEnd or the CPU fault
// when the session has to stop. While paused it only sleeps.
func (p *GBSPlayer) Step(ms int) (int64, error) {
	if p.paused {
		p.sleep(time.Duration(ms) * time.Millisecond)
		return 0, nil
	}

	cycles, err := p.hw.Run(int64(ms) * gbClock / 1000)
	if err != nil {
		return -1, fmt.Errorf("subsong %d: %w", p.current+1, err)
	}
	if p.sinkErr != nil {
		err := p.sinkErr
		p.sinkErr = nil
		return -1, err
	}
	p.elapsed += cycles
	p.status = p.hw.APU().Channels()

	if p.fading {
		if p.elapsed >= p.fadeEnd {
			return p.advance(cycles)
		}
		return cycles, nil
	}

	silenceLimit := int64(p.cfg.SilenceTimeout.Seconds() * float64(p.hw.SampleRate()))
	if silenceLimit > 0 && p.silentSamples >= silenceLimit {
		p.log.Infof("player", "subsong %d silent for %v", p.current+1, p.cfg.SilenceTimeout)
		return p.advance(cycles)
	}

	if length := p.subsongLength(); length > 0 && p.elapsed >= durationCycles(length) {
		fade := p.fadeout()
		if fade <= 0 {
			return p.advance(cycles)
		}
		p.fading = true
		p.fadeEnd = p.elapsed + durationCycles(fade)
		p.hw.APU().StartFadeOut(fade)
	}
	return cycles, nil
}

func durationCycles(d time.Duration) int64 {
	return int64(d.Seconds() * gbClock)
}

// advance hands the decision to the next-subsong callback
func (p *GBSPlayer) advance(cycles int64) (int64, error) {
	next, ok := p.next(p.current)
	if !ok {
		return -1, ErrSessionEnd
	}
	if err := p.startSubsong(next); err != nil {
		return -1, err
	}
	return cycles, nil
}

// NextSubsong skips to the next subsong in play order
func (p *GBSPlayer) NextSubsong() error {
	next, ok := p.order.Next(p.current)
	if !ok {
		return ErrSessionEnd
	}
	return p.startSubsong(next)
}

// PrevSubsong restarts at the previous subsong in play order
func (p *GBSPlayer) PrevSubsong() error {
	return p.startSubsong(p.order.Prev(p.current))
}

func (p *GBSPlayer) TogglePause() {
	p.paused = !p.paused
}

func (p *GBSPlayer) ToggleMute(channel int) {
	p.hw.APU().ToggleMute(channel)
	p.status = p.hw.APU().Channels()
}

// onSound runs inside the synth flush. It feeds the sinks and tracks how
// long the output has been flat.
func (p *GBSPlayer) onSound(buf []int16) {
	if bufferFlat(buf) {
		p.silentSamples += int64(len(buf) / 2)
	} else {
		p.silentSamples = 0
	}
	if p.sinkErr != nil {
		return
	}
	for _, sink := range p.sinks {
		if err := sink.WritePCM(buf); err != nil {
			p.sinkErr = err
			return
		}
	}
}

func (p *GBSPlayer) onIOWrite(cycles uint64, addr uint16, value byte) {
	for _, s := range p.ioSinks {
		s.OnIOWrite(cycles, addr, value)
	}
}

// bufferFlat reports whether each side of an interleaved stereo buffer holds
// one constant level. The two sides may differ.
func bufferFlat(buf []int16) bool {
	for i := 2; i < len(buf); i++ {
		if buf[i] != buf[i&1] {
			return false
		}
	}
	return true
}

// Close releases every sink
func (p *GBSPlayer) Close() error {
	errs := []error{p.endSubsong()}
	for _, sink := range p.sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}
