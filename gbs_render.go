// gbs_render.go - Stepping goroutine, player commands and status publishing.
//
// The player and the hardware belong to the goroutine running Run. UIs talk
// to it through the command channel and read what it publishes on the
// status board.

package main

import (
	"context"
	"errors"
	"sync"
	"time"
)

type GBSCommandKind int

const (
	GBSCmdNext GBSCommandKind = iota
	GBSCmdPrev
	GBSCmdPause
	GBSCmdMute
	GBSCmdQuit
)

// GBSCommand is a control request for the stepping goroutine
type GBSCommand struct {
	Kind    GBSCommandKind
	Channel int // 0-based, GBSCmdMute only
}

// GBSStatus is the published view of the player
type GBSStatus struct {
	File      string
	Title     string
	Author    string
	Copyright string
	Subsong   int // 1-based
	Songs     int
	Elapsed   time.Duration
	Length    time.Duration
	Paused    bool
	Channels  [gbChannels]GBChannelStatus
	Done      bool
}

// statusBoard hands snapshots from the stepping goroutine to the UIs
type statusBoard struct {
	mu      sync.Mutex
	status  GBSStatus
	updated chan struct{}
}

func newStatusBoard() *statusBoard {
	return &statusBoard{updated: make(chan struct{}, 1)}
}

func (b *statusBoard) Publish(s GBSStatus) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
	select {
	case b.updated <- struct{}{}:
	default:
	}
}

func (b *statusBoard) Snapshot() GBSStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Updated signals, without blocking the publisher, that a new snapshot exists
func (b *statusBoard) Updated() <-chan struct{} {
	return b.updated
}

func (p *GBSPlayer) statusSnapshot(file string) GBSStatus {
	info := p.SubsongInfo()
	h := p.file.Header
	return GBSStatus{
		File:      file,
		Title:     info.Title,
		Author:    h.Author,
		Copyright: h.Copyright,
		Subsong:   p.current + 1,
		Songs:     h.Songs,
		Elapsed:   p.Elapsed(),
		Length:    info.Length,
		Paused:    p.paused,
		Channels:  p.status,
	}
}

// apply executes one command. It returns true when the session should end.
func (p *GBSPlayer) apply(cmd GBSCommand) (bool, error) {
	switch cmd.Kind {
	case GBSCmdNext:
		if err := p.NextSubsong(); err != nil {
			return errors.Is(err, ErrSessionEnd), ignoreSessionEnd(err)
		}
	case GBSCmdPrev:
		return false, p.PrevSubsong()
	case GBSCmdPause:
		p.TogglePause()
	case GBSCmdMute:
		p.ToggleMute(cmd.Channel)
	case GBSCmdQuit:
		return true, nil
	}
	return false, nil
}

func ignoreSessionEnd(err error) error {
	if errors.Is(err, ErrSessionEnd) {
		return nil
	}
	return err
}

// Run steps the player until the play order is exhausted, a quit command
// arrives or ctx is cancelled. A finished play order is not an error.
func (p *GBSPlayer) Run(ctx context.Context, file string, cmds <-chan GBSCommand, board *statusBoard) error {
	refresh := p.cfg.Refresh
	if refresh <= 0 {
		refresh = 10 * time.Millisecond
	}
	ms := max(int(refresh/time.Millisecond), 1)

	defer func() {
		if board != nil {
			final := p.statusSnapshot(file)
			final.Done = true
			board.Publish(final)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-cmds:
			quit, err := p.apply(cmd)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		default:
		}

		if _, err := p.Step(ms); err != nil {
			if errors.Is(err, ErrSessionEnd) {
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
		if board != nil {
			board.Publish(p.statusSnapshot(file))
		}
	}
}
